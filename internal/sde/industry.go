package sde

import (
	"encoding/json"
	"fmt"

	"eve-industry/internal/logger"
)

// Blueprint links a blueprint type to what one run produces.
type Blueprint struct {
	BlueprintTypeID int32
	ProductTypeID   int32
	ProductQuantity int32
	Activity        string // "manufacturing" or "reaction"
	Time            int32  // base seconds per run
}

// MaterialYield is one output of reprocessing a portion of an item.
type MaterialYield struct {
	TypeID   int32
	Quantity int32 // per portion at 100% yield
}

// IndustryData holds blueprint and reprocessing tables.
type IndustryData struct {
	Blueprints         map[int32]*Blueprint      // blueprintTypeID -> Blueprint
	ProductToBlueprint map[int32]int32           // productTypeID -> blueprintTypeID
	Reprocessing       map[int32][]MaterialYield // source typeID -> yields
}

// NewIndustryData creates an empty IndustryData.
func NewIndustryData() *IndustryData {
	return &IndustryData{
		Blueprints:         make(map[int32]*Blueprint),
		ProductToBlueprint: make(map[int32]int32),
		Reprocessing:       make(map[int32][]MaterialYield),
	}
}

// LoadIndustry loads blueprints and reprocessing yields from the SDE.
func LoadIndustry(extractDir string) (*IndustryData, error) {
	ind := NewIndustryData()
	if err := ind.loadBlueprints(extractDir); err != nil {
		return nil, fmt.Errorf("load blueprints: %w", err)
	}
	if err := ind.loadReprocessing(extractDir); err != nil {
		return nil, fmt.Errorf("load reprocessing: %w", err)
	}
	return ind, nil
}

// loadBlueprints tries the file names the SDE has used over time.
func (ind *IndustryData) loadBlueprints(dir string) error {
	for _, name := range []string{"blueprints", "industryBlueprints"} {
		count := 0
		err := readJSONL(dir, name, func(raw json.RawMessage) error {
			count++
			return ind.parseBlueprintLine(raw)
		})
		if err != nil {
			return err
		}
		if count > 0 {
			logger.Info("SDE", fmt.Sprintf("Loaded %d blueprints from %s.jsonl", count, name))
			return nil
		}
	}
	logger.Warn("SDE", "No blueprint files found")
	return nil
}

type activityJSON struct {
	Time     int32 `json:"time"`
	Products []struct {
		TypeID   int32 `json:"typeID"`
		Quantity int32 `json:"quantity"`
	} `json:"products"`
}

func (ind *IndustryData) parseBlueprintLine(raw json.RawMessage) error {
	var bp struct {
		Key        int32 `json:"_key"`
		Activities struct {
			Manufacturing *activityJSON `json:"manufacturing"`
			Reaction      *activityJSON `json:"reaction"`
		} `json:"activities"`
	}
	if err := json.Unmarshal(raw, &bp); err != nil {
		return err
	}

	activity, act := "manufacturing", bp.Activities.Manufacturing
	if act == nil || len(act.Products) == 0 {
		activity, act = "reaction", bp.Activities.Reaction
	}
	if act == nil || len(act.Products) == 0 {
		return nil
	}
	ind.AddBlueprint(&Blueprint{
		BlueprintTypeID: bp.Key,
		ProductTypeID:   act.Products[0].TypeID,
		ProductQuantity: max(act.Products[0].Quantity, 1),
		Activity:        activity,
		Time:            act.Time,
	})
	return nil
}

// AddBlueprint registers a blueprint and its product index entry.
func (ind *IndustryData) AddBlueprint(bp *Blueprint) {
	ind.Blueprints[bp.BlueprintTypeID] = bp
	ind.ProductToBlueprint[bp.ProductTypeID] = bp.BlueprintTypeID
}

// loadReprocessing loads refining yields from typeMaterials.jsonl.
func (ind *IndustryData) loadReprocessing(dir string) error {
	return readJSONL(dir, "typeMaterials", func(raw json.RawMessage) error {
		var tm struct {
			Key       int32 `json:"_key"`
			Materials []struct {
				MaterialTypeID int32 `json:"materialTypeID"`
				TypeID         int32 `json:"typeID"`
				Quantity       int32 `json:"quantity"`
			} `json:"materials"`
		}
		if err := json.Unmarshal(raw, &tm); err != nil {
			return err
		}
		for _, m := range tm.Materials {
			id := m.MaterialTypeID
			if id == 0 {
				id = m.TypeID
			}
			ind.Reprocessing[tm.Key] = append(ind.Reprocessing[tm.Key], MaterialYield{TypeID: id, Quantity: m.Quantity})
		}
		return nil
	})
}

// GetBlueprintForProduct returns the blueprint that produces the given type.
func (ind *IndustryData) GetBlueprintForProduct(typeID int32) (*Blueprint, bool) {
	bpID, ok := ind.ProductToBlueprint[typeID]
	if !ok {
		return nil, false
	}
	bp, ok := ind.Blueprints[bpID]
	return bp, ok
}

// RefineYields returns the per-portion yields of a reprocessable type as a
// map, restricted to targets when targets is non-empty.
func (ind *IndustryData) RefineYields(typeID int32, targets map[int32]bool) map[int32]float64 {
	out := make(map[int32]float64)
	for _, y := range ind.Reprocessing[typeID] {
		if len(targets) > 0 && !targets[y.TypeID] {
			continue
		}
		out[y.TypeID] += float64(y.Quantity)
	}
	return out
}
