package domain

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when an event would move a withdrawal
// request along an edge the lifecycle does not allow (including regressions).
var ErrIllegalTransition = errors.New("illegal withdrawal request transition")

// TransitionResult describes how a transition should be applied.
type TransitionResult int

const (
	// TransitionApply moves the request to the target status.
	TransitionApply TransitionResult = iota
	// TransitionNoop means the request is already in the target status.
	TransitionNoop
	// TransitionMergeAudit keeps the current status but fills in missing audit fields.
	TransitionMergeAudit
)

// String returns the string representation of TransitionResult.
func (r TransitionResult) String() string {
	switch r {
	case TransitionApply:
		return "apply"
	case TransitionNoop:
		return "noop"
	case TransitionMergeAudit:
		return "merge_audit"
	}
	return fmt.Sprintf("TransitionResult(%d)", int(r))
}

// legalTransitions lists the forward edges of the request lifecycle:
//
//	Pending  -> Approved | Rejected | Cancelled | Withdrawn
//	Approved -> Withdrawn
//
// Pending -> Withdrawn covers a withdrawal polled before its approval;
// the ledger only emits a withdrawal for an approved request.
var legalTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled, StatusWithdrawn},
	StatusApproved: {StatusWithdrawn},
}

// ResolveTransition validates moving a request from current to target.
// Replaying the current status is a no-op. An approval arriving after the
// withdrawal it authorized only merges audit metadata.
func ResolveTransition(current, target RequestStatus) (TransitionResult, error) {
	if !current.IsValid() || !target.IsValid() {
		return 0, fmt.Errorf("%w: %q -> %q", ErrIllegalTransition, current, target)
	}
	if current == target {
		return TransitionNoop, nil
	}
	for _, next := range legalTransitions[current] {
		if next == target {
			return TransitionApply, nil
		}
	}
	if current == StatusWithdrawn && target == StatusApproved {
		return TransitionMergeAudit, nil
	}
	return 0, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, target)
}

// TransitionInput carries one lifecycle event to the request store.
type TransitionInput struct {
	RequestID string
	Target    RequestStatus
	Auditor   *string // set for Approved/Rejected
	AuditAtMs *int64
}

// ApplyTransition mutates r according to in and returns whether anything changed.
// Shared by store implementations so every backend applies the same rules.
func ApplyTransition(r *WithdrawalRequest, in TransitionInput) (bool, error) {
	result, err := ResolveTransition(r.Status, in.Target)
	if err != nil {
		return false, err
	}

	changed := false
	switch result {
	case TransitionApply:
		r.Status = in.Target
		changed = true
		if in.Auditor != nil {
			r.ApprovedBy = copyString(in.Auditor)
		}
		if in.AuditAtMs != nil {
			r.AuditAtMs = copyInt64(in.AuditAtMs)
		}
	case TransitionNoop, TransitionMergeAudit:
		if r.ApprovedBy == nil && in.Auditor != nil {
			r.ApprovedBy = copyString(in.Auditor)
			changed = true
		}
		if r.AuditAtMs == nil && in.AuditAtMs != nil {
			r.AuditAtMs = copyInt64(in.AuditAtMs)
			changed = true
		}
	}
	return changed, nil
}

func copyString(s *string) *string {
	v := *s
	return &v
}

func copyInt64(n *int64) *int64 {
	v := *n
	return &v
}
