package esi

import (
	"context"
	"fmt"
	"time"
)

// IndustryJob mirrors one entry of the corporation industry jobs endpoint.
type IndustryJob struct {
	JobID         int32     `json:"job_id"`
	InstallerID   int32     `json:"installer_id"`
	ActivityID    int32     `json:"activity_id"`
	BlueprintID   int64     `json:"blueprint_id"`
	BlueprintType int32     `json:"blueprint_type_id"`
	ProductTypeID int32     `json:"product_type_id"`
	LocationID    int64     `json:"location_id"`
	Runs          int32     `json:"runs"`
	Status        string    `json:"status"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
}

// FetchCorporationJobs lists a corporation's industry jobs. The endpoint's
// page count is discovered by probing from page 1 in steps of 2.
func (c *Client) FetchCorporationJobs(ctx context.Context, corporationID int64, includeCompleted bool) ([]IndustryJob, error) {
	if !c.HasToken() {
		return nil, fmt.Errorf("corporation %d jobs: no ESI token configured", corporationID)
	}
	completed := 0
	if includeCompleted {
		completed = 1
	}
	urlFor := func(page int) string {
		return fmt.Sprintf("%s/corporations/%d/industry/jobs/?datasource=tranquility&include_completed=%d&page=%d",
			c.baseURL, corporationID, completed, page)
	}
	return findAndFetch[IndustryJob](ctx, c, urlFor, true, 1, 2, Named("corp-jobs"))
}

// BlueprintsInUse returns the set of blueprint item IDs referenced by jobs.
func BlueprintsInUse(jobs []IndustryJob) map[int64]bool {
	used := make(map[int64]bool, len(jobs))
	for _, j := range jobs {
		used[j.BlueprintID] = true
	}
	return used
}
