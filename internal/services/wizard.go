package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"eventauthoring/internal/domain"
)

// WizardStep is the authoring wizard's current step.
type WizardStep int

const (
	StepDetails WizardStep = iota
	StepTickets
)

func (s WizardStep) String() string {
	switch s {
	case StepDetails:
		return "details"
	case StepTickets:
		return "tickets"
	}
	return "unknown"
}

// Wizard orchestrates the authoring workflow: it drives the draft controller
// through the details step, gates the tickets step on the persisted event
// id, and wires the location components into the draft. The registry becomes
// usable only once a submission has produced an identifier.
type Wizard struct {
	mu     sync.Mutex
	logger *slog.Logger
	emails domain.EmailService

	draft    *DraftController
	lots     *LotRegistry
	search   *SearchCoordinator
	location *LocationSynchronizer

	operatorEmail string
	step          WizardStep
	persistedID   string
	editMode      bool
	hasSelection  bool
	totalQuantity int
	finished      bool
	cancelled     bool

	// summary captured at submission time, before a create-mode reset
	// clears the form.
	eventName    string
	startsAt     string
	locationName string
}

// NewWizard wires the authoring components together. emails may be nil, in
// which case no summary mail is attempted on finish.
func NewWizard(geocoder domain.Geocoder, events domain.EventWriter, lotAPI domain.TicketLotWriter,
	emails domain.EmailService, operatorEmail string, debounce time.Duration, logger *slog.Logger) *Wizard {
	w := &Wizard{
		logger:        logger,
		emails:        emails,
		operatorEmail: operatorEmail,
		step:          StepDetails,
	}
	w.draft = NewDraftController(events, logger)
	w.location = NewLocationSynchronizer(geocoder, logger, func(loc *domain.Location) {
		// A location change during submission is dropped; the submission
		// snapshot was already taken.
		_ = w.draft.SetLocation(loc)
	})
	w.search = NewSearchCoordinator(geocoder, debounce, logger, nil)
	w.lots = NewLotRegistry(lotAPI, logger, func(lots []*domain.TicketLot) {
		total := 0
		for _, lot := range lots {
			total += lot.Quantity
		}
		w.mu.Lock()
		w.totalQuantity = total
		w.mu.Unlock()
	})
	return w
}

// LoadExisting switches the wizard to edit mode for a persisted event.
func (w *Wizard) LoadExisting(ev *domain.PersistedEvent) {
	w.draft.LoadFromExisting(ev)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.persistedID = ev.ID
	w.editMode = true
	if ev.Location != nil {
		w.hasSelection = true
	}
}

// Draft exposes the draft controller for field edits.
func (w *Wizard) Draft() *DraftController { return w.draft }

// Lots exposes the ticket-lot registry.
func (w *Wizard) Lots() *LotRegistry { return w.lots }

// Search exposes the debounced search coordinator.
func (w *Wizard) Search() *SearchCoordinator { return w.search }

// Location exposes the location synchronizer.
func (w *Wizard) Location() *LocationSynchronizer { return w.location }

// Step returns the current wizard step.
func (w *Wizard) Step() WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// PersistedEventID returns the identifier produced in this session, empty
// until a submission succeeds (or an existing event was loaded).
func (w *Wizard) PersistedEventID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.persistedID
}

// EditMode reports whether the wizard operates on a pre-existing event.
func (w *Wizard) EditMode() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.editMode
}

// TotalQuantity is the running ticket total across all lots, kept in sync
// by the registry's change notifications.
func (w *Wizard) TotalQuantity() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalQuantity
}

// Finished reports whether the terminal finish action was taken.
func (w *Wizard) Finished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finished
}

// Cancelled reports whether the wizard was abandoned.
func (w *Wizard) Cancelled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled
}

// SetAddressQuery feeds keystrokes of the address field into the search
// coordinator. Clearing the field before any selection resets the canonical
// location.
func (w *Wizard) SetAddressQuery(text string) {
	w.mu.Lock()
	hasSelection := w.hasSelection
	w.mu.Unlock()
	if strings.TrimSpace(text) == "" && !hasSelection {
		w.location.Clear()
	}
	w.search.SetQuery(text)
}

// SelectSearchResult applies a picked result as the canonical location and
// hides the result list immediately.
func (w *Wizard) SelectSearchResult(result domain.SearchResult) {
	w.mu.Lock()
	w.hasSelection = true
	w.mu.Unlock()
	w.location.SelectFromSearch(result)
	w.search.Clear()
}

// ClickMap applies a raw map-click coordinate as the canonical location.
func (w *Wizard) ClickMap(lat, lon float64) {
	w.mu.Lock()
	w.hasSelection = true
	w.mu.Unlock()
	w.location.SelectFromMapClick(lat, lon)
}

// SubmitDetails submits the draft. On success the resulting identifier is
// retained for the tickets step, even when a create-mode reset clears the
// form itself.
func (w *Wizard) SubmitDetails(ctx context.Context) (string, error) {
	snap := w.draft.Snapshot()
	id, err := w.draft.Submit(ctx)
	if err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.persistedID = id
	w.eventName = snap.Name
	w.startsAt = snap.StartDateTime
	if snap.Location != nil {
		w.locationName = snap.Location.DisplayName
	} else {
		w.locationName = ""
	}
	return id, nil
}

// GoToTickets transitions Details -> Tickets. The transition is offered,
// never forced, and is disallowed until a persisted identifier exists.
// Returning from Tickets and coming back does not reload the registry.
func (w *Wizard) GoToTickets(ctx context.Context) error {
	w.mu.Lock()
	id := w.persistedID
	w.mu.Unlock()
	if id == "" {
		w.logger.Warn("tickets step requested without persisted event id")
		return domain.ErrPreconditionViolation
	}
	if w.lots.ParentID() != id {
		if err := w.lots.Load(ctx, id); err != nil {
			return err
		}
	}
	w.mu.Lock()
	w.step = StepTickets
	w.mu.Unlock()
	return nil
}

// BackToDetails transitions Tickets -> Details. Always permitted; all
// registry state is preserved.
func (w *Wizard) BackToDetails() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = StepDetails
}

// Finish signals completion. Available only from the Tickets step. A summary
// email is sent best-effort; mail failures are logged and never block
// finishing.
func (w *Wizard) Finish(ctx context.Context) error {
	w.mu.Lock()
	if w.step != StepTickets {
		w.mu.Unlock()
		w.logger.Warn("finish requested outside tickets step")
		return domain.ErrPreconditionViolation
	}
	w.finished = true
	data := &domain.EventPublishedEmailData{
		Email:         w.operatorEmail,
		EventName:     w.eventName,
		StartsAt:      w.startsAt,
		LocationName:  w.locationName,
		TotalQuantity: w.totalQuantity,
	}
	w.mu.Unlock()

	data.LotCount = len(w.lots.Lots())
	if w.emails != nil && data.Email != "" {
		if err := w.emails.SendEventPublished(ctx, data); err != nil {
			w.logger.Warn("publish summary email failed", "error", err)
		}
	}
	return nil
}

// Cancel abandons the wizard without persisting further changes. Only
// available when editing a pre-existing event.
func (w *Wizard) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.editMode {
		w.logger.Warn("cancel requested outside edit mode")
		return domain.ErrPreconditionViolation
	}
	w.cancelled = true
	return nil
}

// Close tears down the asynchronous components. Any callback still in
// flight becomes a no-op.
func (w *Wizard) Close() {
	w.search.Close()
	w.location.Close()
}
