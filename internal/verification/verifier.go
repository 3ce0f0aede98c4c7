// Package verification checks materialized tables against a rebuild from the
// raw event archive. Any divergence means an event was lost, applied out of
// order, or written by something other than the indexer.
package verification

import (
	"vault-indexer/internal/domain"
)

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string `json:"field"`
	Expected any    `json:"expected"` // stored value
	Actual   any    `json:"actual"`   // replayed value
}

// RecordResult contains the result of verifying one row.
type RecordResult struct {
	Table       string            `json:"table"`
	ID          string            `json:"id"`
	Match       bool              `json:"match"`
	Divergences []FieldDivergence `json:"divergences,omitempty"`
}

// Report contains results for a full verification.
type Report struct {
	TotalRecords     int            `json:"total_records"`
	MatchedRecords   int            `json:"matched_records"`
	DivergentRecords int            `json:"divergent_records"`
	Results          []RecordResult `json:"results,omitempty"` // divergent rows only
}

func (r *Report) add(res RecordResult) {
	r.TotalRecords++
	if res.Match {
		r.MatchedRecords++
		return
	}
	r.DivergentRecords++
	r.Results = append(r.Results, res)
}

// CompareVaults compares two vaults and returns divergences.
// Row bookkeeping (IndexedAt) is ignored.
func CompareVaults(stored, replayed *domain.Vault) []FieldDivergence {
	var d divergences
	d.check("Name", stored.Name, replayed.Name)
	d.check("Owner", stored.Owner, replayed.Owner)
	d.check("Beneficiary", stored.Beneficiary, replayed.Beneficiary)
	d.check("TargetAmount", stored.TargetAmount, replayed.TargetAmount)
	d.check("CreatedAtMs", stored.CreatedAtMs, replayed.CreatedAtMs)
	d.check("DeadlineMs", stored.DeadlineMs, replayed.DeadlineMs)
	d.check("CurrentBalance", stored.CurrentBalance, replayed.CurrentBalance)
	return d.list
}

// CompareRequests compares two withdrawal requests and returns divergences.
func CompareRequests(stored, replayed *domain.WithdrawalRequest) []FieldDivergence {
	var d divergences
	d.check("VaultID", stored.VaultID, replayed.VaultID)
	d.check("Amount", stored.Amount, replayed.Amount)
	d.check("Requester", stored.Requester, replayed.Requester)
	d.check("Status", stored.Status, replayed.Status)
	d.check("ApprovedBy", deref(stored.ApprovedBy), deref(replayed.ApprovedBy))
	d.check("AuditAtMs", deref(stored.AuditAtMs), deref(replayed.AuditAtMs))
	return d.list
}

type divergences struct {
	list []FieldDivergence
}

func (d *divergences) check(field string, expected, actual any) {
	if expected != actual {
		d.list = append(d.list, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}
}

// deref turns a nullable column into a comparable value; nil stays nil.
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
