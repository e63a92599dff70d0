package reconcile

import (
	"context"
	"fmt"

	"caixa-imoveis/models"
	"caixa-imoveis/parser"
	"caixa-imoveis/store"
)

// Kind is the mutation a plan issues against the store
type Kind int

const (
	// NoOp: nothing new, nothing gone
	NoOp Kind = iota
	// AppendActive: new listings are appended to the region table
	AppendActive
	// ArchiveAndReplace: vanished listings go to the archive and the region table is rewritten without them
	ArchiveAndReplace
	// ArchiveAppendAndReplace: as ArchiveAndReplace, with the new listings added to the rewritten table
	ArchiveAppendAndReplace
)

func (k Kind) String() string {
	switch k {
	case NoOp:
		return "no-op"
	case AppendActive:
		return "append"
	case ArchiveAndReplace:
		return "archive+replace"
	case ArchiveAppendAndReplace:
		return "archive+append+replace"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Plan is the result of diffing a fresh feed against the stored snapshot of one region
type Plan struct {
	Region models.Region

	// New holds listings absent from the snapshot, in feed order. The geolocation
	// hook fills coordinates on these in place before Apply.
	New []models.Listing
	// Archived holds stored listings absent from the feed, in snapshot order
	Archived []models.Listing
	// Retained holds the stored copies of listings present in both, in snapshot order
	Retained []models.Listing
	// Duplicates lists incoming ids seen again after their first occurrence
	Duplicates []string
}

// Reconcile classifies incoming and persisted listings by id.
// Retained listings keep the stored copy, inclusion date and coordinates included;
// only the derived fields are recomputed. An id that was archived earlier and shows
// up again is treated as new.
func Reconcile(region models.Region, incoming, persisted []models.Listing) *Plan {
	plan := &Plan{Region: region}

	inFeed := make(map[string]bool, len(incoming))
	for _, l := range incoming {
		inFeed[l.ID] = true
	}

	stored := make(map[string]bool, len(persisted))
	for _, l := range persisted {
		if stored[l.ID] {
			continue
		}
		stored[l.ID] = true
		if !inFeed[l.ID] {
			plan.Archived = append(plan.Archived, l)
			continue
		}
		// a stored row with a zero appraisal keeps its old derived values
		_ = parser.Derive(&l)
		plan.Retained = append(plan.Retained, l)
	}

	seen := make(map[string]bool, len(incoming))
	for _, l := range incoming {
		if seen[l.ID] {
			plan.Duplicates = append(plan.Duplicates, l.ID)
			continue
		}
		seen[l.ID] = true
		if !stored[l.ID] {
			plan.New = append(plan.New, l)
		}
	}
	return plan
}

// Kind derives the mutation from what the diff found
func (p *Plan) Kind() Kind {
	switch {
	case len(p.New) == 0 && len(p.Archived) == 0:
		return NoOp
	case len(p.Archived) == 0:
		return AppendActive
	case len(p.New) == 0:
		return ArchiveAndReplace
	default:
		return ArchiveAppendAndReplace
	}
}

// Active returns the region table after the plan: retained listings followed by new ones
func (p *Plan) Active() []models.Listing {
	active := make([]models.Listing, 0, len(p.Retained)+len(p.New))
	active = append(active, p.Retained...)
	return append(active, p.New...)
}

// Apply issues the plan's mutations. The archive is written before the region table
// is replaced, so a failure in between leaves the listing in both tables rather than
// in neither.
func (p *Plan) Apply(ctx context.Context, s store.Store) error {
	table := p.Region.Table()
	switch p.Kind() {
	case NoOp:
		return nil
	case AppendActive:
		if err := s.Append(ctx, table, p.New); err != nil {
			return fmt.Errorf("failed to append %d listings to %s: %w", len(p.New), table, err)
		}
		return nil
	default:
		if err := s.Append(ctx, models.ArchiveTable, p.Archived); err != nil {
			return fmt.Errorf("failed to archive %d listings from %s: %w", len(p.Archived), table, err)
		}
		if err := s.ReplaceAll(ctx, table, p.Active()); err != nil {
			return fmt.Errorf("failed to replace %s: %w", table, err)
		}
		return nil
	}
}
