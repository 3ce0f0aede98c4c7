package domain

import "fmt"

// RequestStatus is the lifecycle state of a withdrawal request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "Pending"
	StatusApproved  RequestStatus = "Approved"
	StatusRejected  RequestStatus = "Rejected"
	StatusCancelled RequestStatus = "Cancelled"
	StatusWithdrawn RequestStatus = "Withdrawn"
)

// String returns the string representation of RequestStatus.
func (s RequestStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known value.
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled, StatusWithdrawn:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is modeled from s.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusWithdrawn
}

// ParseRequestStatus maps a variant name to a status.
func ParseRequestStatus(name string) (RequestStatus, error) {
	s := RequestStatus(name)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown request status %q", name)
	}
	return s, nil
}
