package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"eventauthoring/internal/domain"
)

// LotRegistry manages the ticket lots of one persisted event. Every
// operation requires the parent event id: calls made before Load succeeds
// are contract breaches rejected at the boundary, with zero network calls.
//
// The composition slot has two modes: Composing-New (default) and
// Composing-Edit, bound to one existing lot's id. The modes are explicit
// rather than inferred from the presence of an id, so Cancel always knows
// what it resets.
type LotRegistry struct {
	mu       sync.Mutex
	api      domain.TicketLotWriter
	validate *validator.Validate
	logger   *slog.Logger
	onChange func(lots []*domain.TicketLot)

	parentID  string
	lots      []*domain.TicketLot
	slot      domain.LotDraft
	editingID string // empty => Composing-New
	busy      bool
	statusMsg string
}

// NewLotRegistry returns an uninitialized registry. onChange, if non-nil,
// is called (with the lock released) after every collection mutation.
func NewLotRegistry(api domain.TicketLotWriter, logger *slog.Logger, onChange func([]*domain.TicketLot)) *LotRegistry {
	return &LotRegistry{
		api:      api,
		validate: validator.New(),
		logger:   logger,
		onChange: onChange,
	}
}

// Load binds the registry to its parent event and fetches the current lot
// collection. This is the only transition out of the uninitialized state.
func (r *LotRegistry) Load(ctx context.Context, parentID string) error {
	if parentID == "" {
		r.logger.Warn("lot registry load without parent event id")
		return domain.ErrPreconditionViolation
	}

	r.mu.Lock()
	r.busy = true
	r.mu.Unlock()

	lots, err := r.api.List(ctx, parentID)
	r.mu.Lock()
	r.busy = false
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("load ticket lots: %w", err)
	}
	r.parentID = parentID
	r.lots = lots
	snapshot := r.snapshotLocked()
	r.mu.Unlock()
	r.notify(snapshot)
	return nil
}

// ParentID returns the bound parent event id, empty while uninitialized.
func (r *LotRegistry) ParentID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parentID
}

// Lots returns the collection in display order (insertion order; updates
// replace in place).
func (r *LotRegistry) Lots() []*domain.TicketLot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Draft returns the current composition slot contents.
func (r *LotRegistry) Draft() domain.LotDraft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slot
}

// IsEditing reports whether the slot is bound to an existing lot.
func (r *LotRegistry) IsEditing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.editingID != ""
}

// IsBusy reports whether a network operation is outstanding.
func (r *LotRegistry) IsBusy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

// Message returns the outcome message of the last mutation.
func (r *LotRegistry) Message() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusMsg
}

// EditExisting copies a persisted lot into the composition slot and switches
// it to Composing-Edit.
func (r *LotRegistry) EditExisting(lotID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.parentID == "" {
		r.logger.Warn("lot edit without parent event id")
		return domain.ErrPreconditionViolation
	}
	lot := r.findLocked(lotID)
	if lot == nil {
		return domain.ErrLotNotFound
	}
	r.slot = domain.LotDraft{
		Name:       lot.Name,
		Price:      lot.Price,
		Quantity:   lot.Quantity,
		Active:     lot.Active,
		MaxPerUser: lot.MaxPerUser,
	}
	r.editingID = lot.ID
	return nil
}

// CancelEdit resets the slot to Composing-New with empty fields.
func (r *LotRegistry) CancelEdit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetSlotLocked()
}

// SubmitDraft validates the slot fields client-side first and fails fast on
// a validation error with no network call. A create appends the returned lot
// (with its server id) to the end of the collection; an update replaces the
// matching entry in place. Either success resets the slot to Composing-New.
func (r *LotRegistry) SubmitDraft(ctx context.Context, draft domain.LotDraft) error {
	r.mu.Lock()
	if r.parentID == "" {
		r.mu.Unlock()
		r.logger.Warn("lot submission without parent event id")
		return domain.ErrPreconditionViolation
	}
	if err := r.validateDraft(draft); err != nil {
		r.statusMsg = err.Error()
		r.mu.Unlock()
		return err
	}
	parentID := r.parentID
	editingID := r.editingID
	r.busy = true
	r.mu.Unlock()

	lot := &domain.TicketLot{
		ID:         editingID,
		Name:       draft.Name,
		Price:      draft.Price,
		Quantity:   draft.Quantity,
		Active:     draft.Active,
		MaxPerUser: draft.MaxPerUser,
	}

	var (
		saved *domain.TicketLot
		err   error
	)
	if editingID == "" {
		saved, err = r.api.Create(ctx, parentID, lot)
	} else {
		saved, err = r.api.Update(ctx, lot)
	}

	r.mu.Lock()
	r.busy = false
	if err != nil {
		r.statusMsg = mutationMessage(err)
		r.mu.Unlock()
		return err
	}

	if editingID == "" {
		r.lots = append(r.lots, saved)
		r.statusMsg = "ticket lot created"
	} else {
		replaced := false
		for i, existing := range r.lots {
			if existing.ID == saved.ID {
				r.lots[i] = saved
				replaced = true
				break
			}
		}
		if !replaced {
			r.lots = append(r.lots, saved)
		}
		r.statusMsg = "ticket lot updated"
	}
	r.resetSlotLocked()
	snapshot := r.snapshotLocked()
	r.mu.Unlock()
	r.notify(snapshot)
	return nil
}

// Remove deletes a lot by id. The row is never removed optimistically: a
// failed delete leaves the collection untouched. Confirmation is the
// caller's responsibility.
func (r *LotRegistry) Remove(ctx context.Context, lotID string) error {
	r.mu.Lock()
	if r.parentID == "" {
		r.mu.Unlock()
		r.logger.Warn("lot removal without parent event id")
		return domain.ErrPreconditionViolation
	}
	r.busy = true
	r.mu.Unlock()

	err := r.api.Delete(ctx, lotID)

	r.mu.Lock()
	r.busy = false
	if err != nil {
		r.statusMsg = mutationMessage(err)
		r.mu.Unlock()
		return err
	}
	for i, lot := range r.lots {
		if lot.ID == lotID {
			r.lots = append(r.lots[:i], r.lots[i+1:]...)
			break
		}
	}
	if r.editingID == lotID {
		r.resetSlotLocked()
	}
	r.statusMsg = "ticket lot removed"
	snapshot := r.snapshotLocked()
	r.mu.Unlock()
	r.notify(snapshot)
	return nil
}

func (r *LotRegistry) validateDraft(draft domain.LotDraft) error {
	if err := r.validate.Struct(draft); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "Name":
				return &domain.ValidationError{Field: "name", Message: "must not be empty"}
			case "Price":
				return &domain.ValidationError{Field: "price", Message: "must not be negative"}
			case "Quantity":
				return &domain.ValidationError{Field: "quantity", Message: "must be at least 1"}
			case "MaxPerUser":
				return &domain.ValidationError{Field: "max_per_user", Message: "must be at least 1"}
			}
		}
		return &domain.ValidationError{Message: "invalid ticket lot"}
	}
	return nil
}

func (r *LotRegistry) resetSlotLocked() {
	r.slot = domain.LotDraft{}
	r.editingID = ""
}

func (r *LotRegistry) findLocked(lotID string) *domain.TicketLot {
	for _, lot := range r.lots {
		if lot.ID == lotID {
			return lot
		}
	}
	return nil
}

func (r *LotRegistry) snapshotLocked() []*domain.TicketLot {
	out := make([]*domain.TicketLot, len(r.lots))
	copy(out, r.lots)
	return out
}

func (r *LotRegistry) notify(lots []*domain.TicketLot) {
	if r.onChange != nil {
		r.onChange(lots)
	}
}

func mutationMessage(err error) string {
	var terr *domain.TransportError
	if errors.As(err, &terr) {
		return terr.UserMessage()
	}
	return "connection failed, please try again"
}
