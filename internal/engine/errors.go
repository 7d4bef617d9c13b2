package engine

import (
	"errors"

	"eve-industry/internal/esi"
	"eve-industry/internal/gate"
	"eve-industry/internal/matcher"
)

var (
	// ErrInfeasible means no combination of recipes covers the requirement.
	ErrInfeasible = errors.New("no combination of recipes can cover the requested amounts")
	// ErrPlanNotFound is returned by a CostEngine for an unknown plan.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrZeroCost marks an advisory row whose unit cost is not positive.
	ErrZeroCost = errors.New("unit cost is zero")
	// ErrUnknownProduct marks a product name the catalog does not know.
	ErrUnknownProduct = errors.New("unknown product")
)

// UserMessage turns an engine, matcher, gate or ESI error into the line shown
// to the person who issued the command.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case gate.IsBusy(err):
		return gate.BusyMessage
	case errors.Is(err, ErrInfeasible):
		return "those amounts cannot be produced from the known compressed ores"
	case errors.Is(err, ErrPlanNotFound):
		return "no such plan, check the plan name"
	case errors.Is(err, ErrUnknownProduct):
		return err.Error()
	case errors.Is(err, matcher.ErrNotFound):
		return "no such matcher, or it belongs to someone else"
	case errors.Is(err, matcher.ErrDuplicateName):
		return "a matcher with that name already exists"
	case errors.Is(err, matcher.ErrInvalidKind):
		return "matcher type must be one of bp, structure, prod_block"
	case errors.Is(err, matcher.ErrUnknownKeyType):
		return "key type must be one of bp, market_group, group, meta, category"
	case errors.Is(err, matcher.ErrInvalidPayload):
		return "that value does not fit this matcher type"
	case errors.Is(err, matcher.ErrUnknownKey):
		return err.Error()
	case errors.Is(err, esi.ErrUpstreamUnavailable):
		return "the market service is not answering, try again later"
	}
	return "internal error: " + err.Error()
}
