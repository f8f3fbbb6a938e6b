package ticket

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-helpdesk/internal/common/errs"
	"go-helpdesk/internal/config"
	"go-helpdesk/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlaceholderTracker mirrors creation writes into the filer's live session
// so a new ticket renders before the store assigns its id.
type PlaceholderTracker interface {
	Track(actorID, tempID string, t Ticket)
	Confirm(actorID, tempID, realID string)
	Drop(actorID, tempID string)
}

// CreateInput describes a ticket creation payload.
type CreateInput struct {
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	Priority  string `json:"priority"`
	Location  string `json:"location"`
	Device    string `json:"device"`
	Inventory string `json:"inventory"`
	Activity  string `json:"activity"`
	// RequestID is the idempotency key. Retries after a timeout reuse it so
	// a write that landed server-side is recognized instead of duplicated.
	RequestID string `json:"requestId"`
}

// TicketService defines the ticket write path and one-shot reads.
type TicketService interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (Ticket, error)
	Get(ctx context.Context, actor Actor, id string) (Ticket, error)
	List(ctx context.Context, actor Actor, limit int) ([]Ticket, error)
	Apply(ctx context.Context, actor Actor, id string, action Action, params TransitionParams) (Ticket, error)
	EditFields(ctx context.Context, actor Actor, id string, fields map[string]any) (Ticket, error)
	Updates(ctx context.Context, actor Actor, id string) ([]UpdateEntry, error)
	Permissions(ctx context.Context, actor Actor, id string) ([]Action, error)
}

// TicketServiceImpl implements TicketService
type TicketServiceImpl struct {
	Store   store.Store
	Tracker PlaceholderTracker
	Config  *config.Config
	Logger  *zap.Logger
}

// NewTicketService creates a new ticket service
func NewTicketService(st store.Store, tracker PlaceholderTracker, cfg *config.Config, logger *zap.Logger) TicketService {
	return &TicketServiceImpl{Store: st, Tracker: tracker, Config: cfg, Logger: logger}
}

// Create files a new ticket. The write is bounded by the configured timeout;
// past it the operation is reported failed even though the underlying write
// may still land, which is why the idempotency key exists.
func (s *TicketServiceImpl) Create(ctx context.Context, actor Actor, input CreateInput) (Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return Ticket{}, errs.NewValidationFailed("subject is required", map[string]any{"field": "subject"})
	}

	requestID := input.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	// A retry with the same key resolves to the already-written document.
	if existing, ok := s.findByRequestID(ctx, requestID); ok {
		return existing, nil
	}

	now := time.Now()
	t := Ticket{
		Subject:         subject,
		Message:         strings.TrimSpace(input.Message),
		Status:          StatusOpen,
		Priority:        normalizePriority(input.Priority),
		OwnerUserID:     actor.ID,
		OwnerName:       actor.Name,
		OwnerEmail:      actor.Email,
		OwnerDepartment: actor.Department,
		Location:        input.Location,
		Device:          input.Device,
		Inventory:       input.Inventory,
		CreatedAt:       now,
		LastUpdatedAt:   now,
		RequestID:       requestID,
		Updates: []UpdateEntry{{
			Status:    StatusOpen,
			Notes:     "Ticket created",
			Timestamp: now,
			UpdatedBy: actor.DisplayName(),
		}},
	}

	tempID := "local-" + uuid.NewString()
	s.Tracker.Track(actor.ID, tempID, t)

	wctx, cancel := context.WithTimeout(ctx, s.Config.CreateTimeout)
	defer cancel()

	id, err := s.Store.Create(wctx, Collection, ToDocument(t))
	if err != nil {
		s.Tracker.Drop(actor.ID, tempID)
		if errors.Is(err, context.DeadlineExceeded) {
			return Ticket{}, errs.NewTimeout("ticket creation", err)
		}
		return Ticket{}, errs.NewStoreUnavailable(err)
	}
	t.ID = id

	// Code generation runs after the store hands back the id; the create
	// itself never blocks on it.
	t.Code = CodeFor(t, input.Activity, now)
	if err := s.Store.Update(ctx, Collection, id, store.Document{"code": t.Code}); err != nil {
		s.Logger.Warn("failed to stamp ticket code", zap.String("ticketId", id), zap.Error(err))
	}

	s.Tracker.Confirm(actor.ID, tempID, id)
	s.Logger.Info("ticket created",
		zap.String("ticketId", id),
		zap.String("code", t.Code),
		zap.String("actorId", actor.ID))
	return t, nil
}

func (s *TicketServiceImpl) findByRequestID(ctx context.Context, requestID string) (Ticket, bool) {
	docs, err := s.Store.RunQuery(ctx, store.Query{
		Collection: Collection,
		Filters:    []store.Filter{store.Eq("request_id", requestID)},
		Limit:      1,
	})
	if err != nil || len(docs) == 0 {
		return Ticket{}, false
	}
	return Normalize(docs[0]), true
}

// Get fetches one ticket, visible to staff and to its owner.
func (s *TicketServiceImpl) Get(ctx context.Context, actor Actor, id string) (Ticket, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	if !actor.Role.Staff() && !IsOwner(&t, actor) {
		return Ticket{}, errs.NewPermissionDenied("view")
	}
	return t, nil
}

// List is the one-shot read path: active tickets visible to the actor,
// newest first.
func (s *TicketServiceImpl) List(ctx context.Context, actor Actor, limit int) ([]Ticket, error) {
	if limit <= 0 {
		limit = s.Config.PageSize
	}
	q := store.Query{
		Collection: Collection,
		OrderBy:    "created_at",
		Desc:       true,
		Limit:      limit,
	}
	if !actor.Role.Staff() {
		q.Filters = append(q.Filters, store.Eq("user_id", actor.ID))
	}
	docs, err := s.Store.RunQuery(ctx, q)
	if err != nil {
		return nil, errs.NewStoreUnavailable(err)
	}
	tickets := make([]Ticket, 0, len(docs))
	for _, doc := range docs {
		t := Normalize(doc)
		if t.Deleted || t.Archived {
			continue
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

// Apply runs one lifecycle transition. Permissions were already used to gate
// the UI affordance; the transition re-checks them here against stale state.
func (s *TicketServiceImpl) Apply(ctx context.Context, actor Actor, id string, action Action, params TransitionParams) (Ticket, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return Ticket{}, err
	}

	updated, mutations, err := Transition(t, actor, action, params, time.Now())
	if err != nil {
		return Ticket{}, err
	}

	if err := s.Store.Update(ctx, Collection, id, mutations); err != nil {
		return Ticket{}, errs.NewStoreUnavailable(err)
	}
	s.Logger.Info("ticket transition",
		zap.String("ticketId", id),
		zap.String("action", string(action)),
		zap.String("status", string(updated.Status)),
		zap.String("actorId", actor.ID))
	return updated, nil
}

// EditFields applies non-lifecycle field edits.
func (s *TicketServiceImpl) EditFields(ctx context.Context, actor Actor, id string, fields map[string]any) (Ticket, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	updated, mutations, err := Edit(t, actor, fields, time.Now())
	if err != nil {
		return Ticket{}, err
	}
	if err := s.Store.Update(ctx, Collection, id, mutations); err != nil {
		return Ticket{}, errs.NewStoreUnavailable(err)
	}
	return updated, nil
}

// Updates returns the append-only audit trail.
func (s *TicketServiceImpl) Updates(ctx context.Context, actor Actor, id string) ([]UpdateEntry, error) {
	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return t.Updates, nil
}

// Permissions returns the actions the actor may perform, for UI gating.
func (s *TicketServiceImpl) Permissions(ctx context.Context, actor Actor, id string) ([]Action, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return Allowed(&t, actor), nil
}

func (s *TicketServiceImpl) load(ctx context.Context, id string) (Ticket, error) {
	doc, found, err := s.Store.Get(ctx, Collection, id)
	if err != nil {
		return Ticket{}, errs.NewStoreUnavailable(err)
	}
	if !found {
		return Ticket{}, errs.NewNotFound("ticket")
	}
	return Normalize(doc), nil
}
