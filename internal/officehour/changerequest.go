package officehour

import (
	"fmt"
	"time"
)

// Operation names what a change request asks the instructor to do.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationEdit   Operation = "edit"
	OperationDelete Operation = "delete"
)

// Valid reports whether the operation is one of the known values.
func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationEdit, OperationDelete:
		return true
	}
	return false
}

// Status tracks where a change request is in review.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ChangeRequest is a pending proposal from a TA awaiting instructor review.
type ChangeRequest struct {
	ID            string
	RequesterID   string
	RequesterName string
	Operation     Operation
	PrimaryOH     OfficeHour
	// TargetID and TargetDate identify the occurrence an edit or delete applies to.
	TargetID       string
	TargetDate     time.Time
	Note           string
	InstructorNote string
	Status         Status
	SubmittedAt    time.Time
	ProcessedAt    *time.Time
	ProcessedBy    string
}

// Transition moves a pending request to approved or rejected. Any other move
// returns ErrInvalidTransition.
func (c ChangeRequest) Transition(to Status, by, note string, at time.Time) (ChangeRequest, error) {
	if c.Status != StatusPending {
		return c, fmt.Errorf("%w: request %s is %s", ErrInvalidTransition, c.ID, c.Status)
	}
	if to != StatusApproved && to != StatusRejected {
		return c, fmt.Errorf("%w: cannot move to %q", ErrInvalidTransition, to)
	}
	out := c
	out.Status = to
	out.ProcessedBy = by
	out.InstructorNote = note
	processed := at
	out.ProcessedAt = &processed
	return out, nil
}
