package verification

import (
	"context"
	"errors"
	"fmt"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/ingestion"
	"vault-indexer/internal/replay"
	"vault-indexer/internal/storage"
	"vault-indexer/internal/storage/memory"
)

// ArchiveVerifier rebuilds state from the archive into scratch in-memory
// stores and compares it with the live stores. The live stores are only read.
type ArchiveVerifier struct {
	live     *storage.Stores
	archive  storage.EventArchive
	typeTags []string
}

// NewArchiveVerifier creates a verifier over the given event types.
func NewArchiveVerifier(live *storage.Stores, archive storage.EventArchive, typeTags []string) *ArchiveVerifier {
	return &ArchiveVerifier{live: live, archive: archive, typeTags: typeTags}
}

// VerifyAll compares every vault and withdrawal request found on either side.
func (v *ArchiveVerifier) VerifyAll(ctx context.Context) (*Report, error) {
	scratch := memory.NewStores()
	engine := replay.NewApplyEngine(ingestion.NewApplier(scratch))
	if _, err := replay.NewRunner(v.archive, v.typeTags).Run(ctx, engine); err != nil {
		return nil, fmt.Errorf("replay archive: %w", err)
	}

	report := &Report{}
	if err := v.verifyVaults(ctx, scratch, report); err != nil {
		return nil, err
	}
	if err := v.verifyRequests(ctx, scratch, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (v *ArchiveVerifier) verifyVaults(ctx context.Context, scratch *storage.Stores, report *Report) error {
	stored, err := listAll(ctx, func(p storage.PageRequest) ([]*domain.Vault, int, error) {
		return v.live.Vaults.List(ctx, storage.VaultFilter{}, p)
	})
	if err != nil {
		return fmt.Errorf("list stored vaults: %w", err)
	}
	replayed, err := listAll(ctx, func(p storage.PageRequest) ([]*domain.Vault, int, error) {
		return scratch.Vaults.List(ctx, storage.VaultFilter{}, p)
	})
	if err != nil {
		return err
	}

	byID := make(map[string]*domain.Vault, len(replayed))
	for _, r := range replayed {
		byID[r.VaultID] = r
	}
	for _, s := range stored {
		r, ok := byID[s.VaultID]
		delete(byID, s.VaultID)
		report.add(result("vaults", s.VaultID, ok, func() []FieldDivergence { return CompareVaults(s, r) }, "stored"))
	}
	for id := range byID {
		report.add(result("vaults", id, false, nil, "replayed"))
	}
	return nil
}

func (v *ArchiveVerifier) verifyRequests(ctx context.Context, scratch *storage.Stores, report *Report) error {
	stored, err := listAll(ctx, func(p storage.PageRequest) ([]*domain.WithdrawalRequest, int, error) {
		return v.live.WithdrawalRequests.List(ctx, storage.WithdrawalRequestFilter{}, p)
	})
	if err != nil {
		return fmt.Errorf("list stored requests: %w", err)
	}

	for _, s := range stored {
		r, err := scratch.WithdrawalRequests.GetByID(ctx, s.RequestID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			report.add(result("withdrawal_requests", s.RequestID, false, nil, "stored"))
		case err != nil:
			return err
		default:
			report.add(result("withdrawal_requests", s.RequestID, true, func() []FieldDivergence { return CompareRequests(s, r) }, ""))
		}
	}

	replayed, err := listAll(ctx, func(p storage.PageRequest) ([]*domain.WithdrawalRequest, int, error) {
		return scratch.WithdrawalRequests.List(ctx, storage.WithdrawalRequestFilter{}, p)
	})
	if err != nil {
		return err
	}
	for _, r := range replayed {
		_, err := v.live.WithdrawalRequests.GetByID(ctx, r.RequestID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			report.add(result("withdrawal_requests", r.RequestID, false, nil, "replayed"))
		case err != nil:
			return err
		}
	}
	return nil
}

// result builds a row result. When the row exists on one side only,
// onlyIn names that side.
func result(table, id string, both bool, compare func() []FieldDivergence, onlyIn string) RecordResult {
	if !both {
		return RecordResult{
			Table: table,
			ID:    id,
			Divergences: []FieldDivergence{
				{Field: "Presence", Expected: onlyIn == "stored", Actual: onlyIn == "replayed"},
			},
		}
	}
	divs := compare()
	return RecordResult{Table: table, ID: id, Match: len(divs) == 0, Divergences: divs}
}

// listAll pages through a newest-first listing until every row is read.
func listAll[T any](ctx context.Context, list func(storage.PageRequest) ([]T, int, error)) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, total, err := list(storage.PageRequest{Page: page, Limit: storage.MaxLimit})
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if len(rows) == 0 || len(all) >= total {
			return all, nil
		}
	}
}
