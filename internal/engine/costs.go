package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"eve-industry/internal/logger"
	"eve-industry/internal/matcher"

	"gopkg.in/yaml.v3"
)

// Plan is a named production setup owned by one user.
type Plan struct {
	Name      string `yaml:"name"`
	Owner     int64  `yaml:"owner"`
	BPMatcher string `yaml:"bp_matcher"`
}

// ItemCost is the base cost of one unit before blueprint efficiency.
type ItemCost struct {
	MaterialCost float64 `yaml:"material_cost"`
	JobCost      float64 `yaml:"job_cost"`
}

// Resolver looks up one matcher override.
type Resolver interface {
	Resolve(ctx context.Context, name string, owner int64, keyType matcher.KeyType, key string) (matcher.Payload, bool, error)
}

// PlanCostTable is a CostEngine backed by a static cost sheet. The material
// part of each cost is scaled by the plan's blueprint matcher.
type PlanCostTable struct {
	Plans []Plan              `yaml:"plans"`
	Items map[string]ItemCost `yaml:"items"` // keyed by product name

	catalog  Catalog
	matchers Resolver
}

// LoadPlanCostTable reads a cost sheet from YAML.
func LoadPlanCostTable(path string, catalog Catalog, matchers Resolver) (*PlanCostTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	t := &PlanCostTable{}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return nil, fmt.Errorf("parse plan file %s: %w", path, err)
	}
	t.catalog, t.matchers = catalog, matchers
	logger.Info("ADVICE", fmt.Sprintf("loaded %d plans, %d item costs from %s", len(t.Plans), len(t.Items), path))
	return t, nil
}

// NewPlanCostTable builds a table in memory.
func NewPlanCostTable(plans []Plan, items map[string]ItemCost, catalog Catalog, matchers Resolver) *PlanCostTable {
	return &PlanCostTable{Plans: plans, Items: items, catalog: catalog, matchers: matchers}
}

func (t *PlanCostTable) plan(user int64, name string) (Plan, bool) {
	for _, p := range t.Plans {
		if p.Owner == user && p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

// UnitCosts implements CostEngine. Items without a cost entry cost 0.
func (t *PlanCostTable) UnitCosts(ctx context.Context, user int64, plan string, items []ProductQuantity) (map[int32]float64, error) {
	p, ok := t.plan(user, plan)
	if !ok {
		return nil, fmt.Errorf("plan %q: %w", plan, ErrPlanNotFound)
	}
	out := make(map[int32]float64, len(items))
	for _, pq := range items {
		c, ok := t.Items[pq.Name]
		if !ok {
			out[pq.TypeID] = 0
			continue
		}
		me := 1.0
		if p.BPMatcher != "" {
			eff, found, err := t.efficiency(ctx, p, pq.TypeID)
			if err != nil {
				return nil, err
			}
			if found {
				me = eff.ME
			}
		}
		out[pq.TypeID] = c.MaterialCost*me + c.JobCost
	}
	return out, nil
}

// efficiency resolves the blueprint matcher for a product, most specific key
// type first: blueprint, market group, group, meta group, category.
func (t *PlanCostTable) efficiency(ctx context.Context, p Plan, typeID int32) (matcher.Efficiency, bool, error) {
	if t.catalog == nil || t.matchers == nil {
		return matcher.Efficiency{}, false, nil
	}
	it, ok := t.catalog.ItemByID(typeID)
	if !ok {
		return matcher.Efficiency{}, false, nil
	}
	keys := map[matcher.KeyType]string{
		matcher.KeyBlueprint:   it.Blueprint,
		matcher.KeyMarketGroup: it.MarketGroup,
		matcher.KeyGroup:       it.Group,
		matcher.KeyMeta:        it.TechTier,
		matcher.KeyCategory:    it.Category,
	}
	for _, kt := range matcher.KeyTypes {
		key := strings.TrimSpace(keys[kt])
		if key == "" {
			continue
		}
		payload, found, err := t.matchers.Resolve(ctx, p.BPMatcher, p.Owner, kt, key)
		if err != nil {
			return matcher.Efficiency{}, false, fmt.Errorf("plan %q matcher %q: %w", p.Name, p.BPMatcher, err)
		}
		if !found {
			continue
		}
		eff, ok := payload.(matcher.Efficiency)
		if !ok {
			return matcher.Efficiency{}, false, fmt.Errorf("plan %q matcher %q holds %s payloads: %w",
				p.Name, p.BPMatcher, payload.Kind(), matcher.ErrInvalidPayload)
		}
		return eff, true, nil
	}
	return matcher.Efficiency{}, false, nil
}
