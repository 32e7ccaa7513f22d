package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WilliamHangXu/EasyOH/internal/officehour"
	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

// ChangeRequestService handles submission and review of change requests.
type ChangeRequestService struct {
	requests     persistence.ChangeRequestRepository
	records      persistence.OfficeHourRepository
	tx           persistence.Transactor
	materializer *officehour.Materializer
	names        officehour.DisplayNameLookup
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewChangeRequestService wires dependencies for the change request service.
// names resolves requester display names; tx runs approvals atomically.
func NewChangeRequestService(requests persistence.ChangeRequestRepository, records persistence.OfficeHourRepository, tx persistence.Transactor, materializer *officehour.Materializer, names officehour.DisplayNameLookup, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ChangeRequestService {
	if materializer == nil {
		materializer = officehour.NewMaterializer(officehour.MaterializerConfig{Now: now})
	}
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &ChangeRequestService{
		requests:     requests,
		records:      records,
		tx:           tx,
		materializer: materializer,
		names:        names,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *ChangeRequestService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ChangeRequestService", operation, attrs...)
}

// SubmitCreate files a request to add the office hour described by req.
func (s *ChangeRequestService) SubmitCreate(ctx context.Context, principal Principal, req officehour.Request) (officehour.ChangeRequest, error) {
	if s == nil {
		return officehour.ChangeRequest{}, fmt.Errorf("ChangeRequestService is nil")
	}
	return s.submit(ctx, "SubmitCreate", principal, func() (officehour.ChangeRequest, error) {
		return s.materializer.Materialize(ctx, principal.Actor(), s.names, req)
	})
}

// SubmitEdit files a request to move one occurrence of a record to a new slot.
func (s *ChangeRequestService) SubmitEdit(ctx context.Context, principal Principal, params OccurrenceEditParams) (officehour.ChangeRequest, error) {
	if s == nil {
		return officehour.ChangeRequest{}, fmt.Errorf("ChangeRequestService is nil")
	}
	return s.submit(ctx, "SubmitEdit", principal, func() (officehour.ChangeRequest, error) {
		target, day, err := s.loadTarget(ctx, principal, params.OfficeHourID, params.Date)
		if err != nil {
			return officehour.ChangeRequest{}, err
		}
		return s.materializer.MaterializeEdit(ctx, principal.Actor(), s.names, target, day, params.Replacement)
	})
}

// SubmitDelete files a request to remove one occurrence of a record.
func (s *ChangeRequestService) SubmitDelete(ctx context.Context, principal Principal, params OccurrenceDeleteParams) (officehour.ChangeRequest, error) {
	if s == nil {
		return officehour.ChangeRequest{}, fmt.Errorf("ChangeRequestService is nil")
	}
	return s.submit(ctx, "SubmitDelete", principal, func() (officehour.ChangeRequest, error) {
		target, day, err := s.loadTarget(ctx, principal, params.OfficeHourID, params.Date)
		if err != nil {
			return officehour.ChangeRequest{}, err
		}
		return s.materializer.MaterializeDelete(ctx, principal.Actor(), s.names, target, day, params.Note)
	})
}

func (s *ChangeRequestService) submit(ctx context.Context, operation string, principal Principal, build func() (officehour.ChangeRequest, error)) (cr officehour.ChangeRequest, err error) {
	logger := s.loggerWith(ctx, operation, "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "change request rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("change_request_id", cr.ID, "change_operation", cr.Operation).InfoContext(ctx, "change request submitted")
	}()

	if err = principal.authenticated(); err != nil {
		return
	}
	if cr, err = build(); err != nil {
		cr = officehour.ChangeRequest{}
		return
	}
	cr.ID = s.idGenerator()
	if err = s.requests.CreateChangeRequest(ctx, cr); err != nil {
		err = mapRepoError(err)
		cr = officehour.ChangeRequest{}
	}
	return
}

func (s *ChangeRequestService) loadTarget(ctx context.Context, principal Principal, id, rawDate string) (officehour.OfficeHour, time.Time, error) {
	if strings.TrimSpace(id) == "" {
		vErr := &ValidationError{}
		vErr.Add("office_hour_id", "office hour id is required")
		return officehour.OfficeHour{}, time.Time{}, vErr
	}
	target, err := s.records.GetOfficeHour(ctx, id)
	if err != nil {
		return officehour.OfficeHour{}, time.Time{}, mapRepoError(err)
	}
	if !principal.owns(target.OwnerID) {
		return officehour.OfficeHour{}, time.Time{}, ErrUnauthorized
	}
	if !target.IsRecurring {
		return target, target.TmpDate, nil
	}
	day, err := parseOccurrenceDate(rawDate, s.materializer.Zone())
	if err != nil {
		return officehour.OfficeHour{}, time.Time{}, err
	}
	if err := checkOccurrenceWeekday(target, day); err != nil {
		return officehour.OfficeHour{}, time.Time{}, err
	}
	return target, day, nil
}

// ListPending returns requests awaiting review, oldest first. Instructors only.
func (s *ChangeRequestService) ListPending(ctx context.Context, principal Principal) ([]officehour.ChangeRequest, error) {
	return s.List(ctx, principal, officehour.StatusPending)
}

// List returns requests in status, or every request when status is empty. Instructors only.
func (s *ChangeRequestService) List(ctx context.Context, principal Principal, status officehour.Status) ([]officehour.ChangeRequest, error) {
	if s == nil {
		return nil, fmt.Errorf("ChangeRequestService is nil")
	}
	if err := principal.authenticated(); err != nil {
		return nil, err
	}
	if !principal.IsInstructor() {
		return nil, ErrUnauthorized
	}
	if status != "" && !status.Valid() {
		vErr := &ValidationError{}
		vErr.Add("status", "status must be pending, approved or rejected")
		return nil, vErr
	}
	return s.requests.ListChangeRequests(ctx, persistence.ChangeRequestFilter{Status: status})
}

// ListMine returns the principal's own requests in every status.
func (s *ChangeRequestService) ListMine(ctx context.Context, principal Principal) ([]officehour.ChangeRequest, error) {
	if s == nil {
		return nil, fmt.Errorf("ChangeRequestService is nil")
	}
	if err := principal.authenticated(); err != nil {
		return nil, err
	}
	return s.requests.ListChangeRequests(ctx, persistence.ChangeRequestFilter{RequesterID: principal.UserID})
}

// Approve marks a pending request approved and applies its record changes in
// one transaction.
func (s *ChangeRequestService) Approve(ctx context.Context, principal Principal, id, note string) (officehour.ChangeRequest, error) {
	return s.review(ctx, "Approve", principal, id, officehour.StatusApproved, note)
}

// Reject marks a pending request rejected. Records are left untouched.
func (s *ChangeRequestService) Reject(ctx context.Context, principal Principal, id, note string) (officehour.ChangeRequest, error) {
	return s.review(ctx, "Reject", principal, id, officehour.StatusRejected, note)
}

func (s *ChangeRequestService) review(ctx context.Context, operation string, principal Principal, id string, to officehour.Status, note string) (cr officehour.ChangeRequest, err error) {
	if s == nil {
		err = fmt.Errorf("ChangeRequestService is nil")
		return
	}
	logger := s.loggerWith(ctx, operation, "principal_id", principal.UserID, "change_request_id", id)
	var mutation officehour.Mutation
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "review failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		attrs := []any{"status", cr.Status}
		if mutation.Insert != nil {
			attrs = append(attrs, "inserted_id", mutation.Insert.ID)
		}
		if mutation.AddException != nil {
			attrs = append(attrs, "excepted_id", mutation.AddException.RecordID)
		}
		if mutation.DeleteID != "" {
			attrs = append(attrs, "deleted_id", mutation.DeleteID)
		}
		logger.InfoContext(ctx, "change request reviewed", attrs...)
	}()

	if err = principal.authenticated(); err != nil {
		return
	}
	if !principal.IsInstructor() {
		err = ErrUnauthorized
		return
	}

	err = s.tx.WithTransaction(ctx, func(tx persistence.Tx) error {
		current, getErr := tx.ChangeRequests().GetChangeRequest(ctx, id)
		if getErr != nil {
			return mapRepoError(getErr)
		}
		updated, transitionErr := current.Transition(to, principal.UserID, strings.TrimSpace(note), s.now())
		if transitionErr != nil {
			return transitionErr
		}

		if to == officehour.StatusApproved {
			var applyErr error
			if mutation, applyErr = s.reconcile(ctx, tx, updated); applyErr != nil {
				return applyErr
			}
		}

		if updateErr := tx.ChangeRequests().UpdateChangeRequest(ctx, updated); updateErr != nil {
			return mapRepoError(updateErr)
		}
		cr = updated
		return nil
	})
	if err != nil {
		cr = officehour.ChangeRequest{}
		mutation = officehour.Mutation{}
	}
	return
}

func (s *ChangeRequestService) reconcile(ctx context.Context, tx persistence.Tx, cr officehour.ChangeRequest) (officehour.Mutation, error) {
	var target *officehour.OfficeHour
	if cr.Operation != officehour.OperationCreate {
		loaded, err := tx.OfficeHours().GetOfficeHour(ctx, cr.TargetID)
		switch {
		case err == nil:
			target = &loaded
		case !errors.Is(err, persistence.ErrNotFound):
			return officehour.Mutation{}, err
		}
	}

	mutation, err := officehour.Reconcile(cr, target, s.idGenerator)
	if err != nil {
		return officehour.Mutation{}, err
	}

	if mutation.AddException != nil {
		if err := tx.OfficeHours().AddException(ctx, mutation.AddException.RecordID, mutation.AddException.At); err != nil {
			return officehour.Mutation{}, mapRepoError(err)
		}
	}
	if mutation.DeleteID != "" {
		if err := tx.OfficeHours().DeleteOfficeHour(ctx, mutation.DeleteID); err != nil {
			return officehour.Mutation{}, mapRepoError(err)
		}
	}
	if mutation.Insert != nil {
		if mutation.Insert.CreatedAt.IsZero() {
			mutation.Insert.CreatedAt = s.now()
		}
		if err := tx.OfficeHours().CreateOfficeHour(ctx, *mutation.Insert); err != nil {
			return officehour.Mutation{}, mapRepoError(err)
		}
	}
	return mutation, nil
}
