package officehour

import (
	"fmt"
	"strings"
	"time"
)

// ExceptionAddition appends one excluded date to a recurring record.
type ExceptionAddition struct {
	RecordID string
	At       time.Time
}

// Mutation is the set of record changes an approved request implies. Any
// combination of fields may be set; an empty Mutation changes nothing.
type Mutation struct {
	Insert       *OfficeHour
	AddException *ExceptionAddition
	DeleteID     string
}

// Empty reports whether the mutation changes nothing.
func (m Mutation) Empty() bool {
	return m.Insert == nil && m.AddException == nil && m.DeleteID == ""
}

// Reconcile derives the record changes for an approved request. target is the
// record named by TargetID and is required for edit and delete.
func Reconcile(cr ChangeRequest, target *OfficeHour, newID func() string) (Mutation, error) {
	if cr.Status != StatusApproved {
		return Mutation{}, fmt.Errorf("%w: request %s is %s, not approved", ErrInvalidTransition, cr.ID, cr.Status)
	}

	switch cr.Operation {
	case OperationCreate:
		return Mutation{Insert: insertFor(cr, newID)}, nil
	case OperationEdit:
		if err := checkReconcileTarget(cr, target); err != nil {
			return Mutation{}, err
		}
		mutation := Mutation{Insert: insertFor(cr, newID)}
		if target.OwnerID != "" {
			mutation.Insert.OwnerID = target.OwnerID
		}
		if target.IsRecurring {
			mutation.AddException = &ExceptionAddition{RecordID: target.ID, At: cr.TargetDate}
		} else {
			mutation.DeleteID = target.ID
		}
		return mutation, nil
	case OperationDelete:
		if err := checkReconcileTarget(cr, target); err != nil {
			return Mutation{}, err
		}
		if target.IsRecurring {
			return Mutation{AddException: &ExceptionAddition{RecordID: target.ID, At: cr.TargetDate}}, nil
		}
		return Mutation{DeleteID: target.ID}, nil
	default:
		return Mutation{}, &MalformedRecordError{RecordID: cr.ID, Reason: fmt.Sprintf("unknown operation %q", cr.Operation)}
	}
}

func insertFor(cr ChangeRequest, newID func() string) *OfficeHour {
	oh := cr.PrimaryOH.Clone()
	oh.ID = newID()
	if strings.TrimSpace(oh.OwnerID) == "" {
		oh.OwnerID = cr.RequesterID
	}
	return &oh
}

func checkReconcileTarget(cr ChangeRequest, target *OfficeHour) error {
	if target == nil {
		return &MalformedRecordError{RecordID: cr.ID, Reason: fmt.Sprintf("%s request has no target record", cr.Operation)}
	}
	if target.ID != cr.TargetID {
		return &MalformedRecordError{RecordID: cr.ID, Reason: fmt.Sprintf("target %q does not match request target %q", target.ID, cr.TargetID)}
	}
	if target.IsRecurring && cr.TargetDate.IsZero() {
		return &MalformedRecordError{RecordID: cr.ID, Reason: "recurring target requires an occurrence date"}
	}
	return nil
}
