package storage

import "vault-indexer/internal/domain"

// Pagination defaults for list queries.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage bounds Page so Offset cannot overflow.
	MaxPage = 10_000_000
)

// PageRequest selects one 1-based page of a newest-first listing.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps the request to 1 <= page <= MaxPage and 1 <= limit <= MaxLimit.
// Zero values fall back to the defaults.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the number of rows preceding the page.
func (p PageRequest) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Window returns the [start, end) slice bounds of the page within total rows.
func (p PageRequest) Window(total int) (int, int) {
	n := p.Normalize()
	start := n.Offset()
	if start > total {
		start = total
	}
	end := start + n.Limit
	if end > total {
		end = total
	}
	return start, end
}

// VaultFilter narrows vault listings. Empty fields match everything.
type VaultFilter struct {
	Owner       string
	Beneficiary string
}

// WithdrawalRequestFilter narrows withdrawal request listings.
type WithdrawalRequestFilter struct {
	VaultID   string
	Requester string
	Status    domain.RequestStatus
}

// DeadLetterFilter narrows dead letter listings.
type DeadLetterFilter struct {
	EventType string
	Resolved  *bool
}
