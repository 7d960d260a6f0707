package seeding

import (
	"context"
	"fmt"

	"github.com/jonesrussell/goprospect/internal/directory"
	"github.com/jonesrussell/goprospect/internal/domain"
	"github.com/jonesrussell/goprospect/internal/logger"
)

// TargetInserter is the slice of the target store seeding writes through.
type TargetInserter interface {
	InsertBatch(ctx context.Context, targets []*domain.Target) (int64, error)
}

// insertBatchSize keeps each INSERT under the driver's parameter limit.
const insertBatchSize = 500

// Seeder plans targets from a registry through a directory source and
// bulk-inserts them.
type Seeder struct {
	targets TargetInserter
	source  directory.Source
	log     logger.Interface
}

// NewSeeder wires a seeder.
func NewSeeder(targets TargetInserter, source directory.Source, log logger.Interface) *Seeder {
	return &Seeder{
		targets: targets,
		source:  source,
		log:     log.WithComponent("seeding"),
	}
}

// Result summarizes one seeding run.
type Result struct {
	Planned  int64 `json:"planned"`
	Inserted int64 `json:"inserted"`
	Skipped  int64 `json:"skipped"`
}

// Seed plans every (state, city, category) tuple in the registry and
// inserts the ones not already present. Existing tuples are left alone,
// whatever their status.
func (s *Seeder) Seed(ctx context.Context, reg *Registry) (*Result, error) {
	plans := s.Plan(reg)

	result := &Result{Planned: int64(len(plans))}
	for start := 0; start < len(plans); start += insertBatchSize {
		end := min(start+insertBatchSize, len(plans))

		inserted, err := s.targets.InsertBatch(ctx, plans[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to insert targets %d-%d: %w", start, end, err)
		}
		result.Inserted += inserted
	}
	result.Skipped = result.Planned - result.Inserted

	s.log.Info("seeding complete",
		"planned", result.Planned,
		"inserted", result.Inserted,
		"already_present", result.Skipped)
	return result, nil
}

// Plan expands the registry into unsaved targets. City tier becomes claim
// priority; the page budget follows from the priority.
func (s *Seeder) Plan(reg *Registry) []*domain.Target {
	targets := make([]*domain.Target, 0, len(reg.States)*len(reg.Categories))
	for _, state := range reg.States {
		for _, city := range state.Cities {
			for _, category := range reg.Categories {
				plan := s.source.PlanTarget(state.Code, city.Name, category, city.Tier)
				targets = append(targets, &domain.Target{
					State:       plan.State,
					City:        plan.City,
					CitySlug:    plan.CitySlug,
					Category:    plan.Category,
					PrimaryURL:  plan.PrimaryURL,
					FallbackURL: plan.FallbackURL,
					Priority:    plan.Priority,
					PageTarget:  plan.PageTarget,
					Status:      domain.TargetStatusPlanned,
				})
			}
		}
	}
	return targets
}
