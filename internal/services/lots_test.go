package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventauthoring/internal/domain"
)

// fakeLotAPI is an in-memory TicketLotWriter for tests.
type fakeLotAPI struct {
	mu          sync.Mutex
	listResult  []*domain.TicketLot
	listErr     error
	createErr   error
	updateErr   error
	deleteErr   error
	nextID      int
	listCalls   int
	createCalls int
	updateCalls int
	deleteCalls int
}

func newFakeLotAPI() *fakeLotAPI {
	return &fakeLotAPI{nextID: 1}
}

func (f *fakeLotAPI) List(ctx context.Context, eventID string) ([]*domain.TicketLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listResult, nil
}

func (f *fakeLotAPI) Create(ctx context.Context, eventID string, lot *domain.TicketLot) (*domain.TicketLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	saved := *lot
	saved.ID = lotID(f.nextID)
	f.nextID++
	return &saved, nil
}

func (f *fakeLotAPI) Update(ctx context.Context, lot *domain.TicketLot) (*domain.TicketLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	saved := *lot
	return &saved, nil
}

func (f *fakeLotAPI) Delete(ctx context.Context, lotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakeLotAPI) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls + f.createCalls + f.updateCalls + f.deleteCalls
}

func lotID(n int) string {
	return "L" + string(rune('0'+n))
}

func loadedRegistry(t *testing.T, api *fakeLotAPI) *LotRegistry {
	t.Helper()
	r := NewLotRegistry(api, testLogger(), nil)
	require.NoError(t, r.Load(context.Background(), "E1"))
	return r
}

func TestLotRegistry_GatedUntilLoaded(t *testing.T) {
	api := newFakeLotAPI()
	r := NewLotRegistry(api, testLogger(), nil)
	ctx := context.Background()

	assert.ErrorIs(t, r.SubmitDraft(ctx, domain.LotDraft{Name: "Pista", Quantity: 1}), domain.ErrPreconditionViolation)
	assert.ErrorIs(t, r.Remove(ctx, "L1"), domain.ErrPreconditionViolation)
	assert.ErrorIs(t, r.EditExisting("L1"), domain.ErrPreconditionViolation)
	assert.ErrorIs(t, r.Load(ctx, ""), domain.ErrPreconditionViolation)

	// A gated rejection never reaches the network.
	assert.Zero(t, api.networkCalls())
}

func TestLotRegistry_SubmitDraftValidation(t *testing.T) {
	tests := []struct {
		name      string
		draft     domain.LotDraft
		wantField string
	}{
		{
			name:      "empty name",
			draft:     domain.LotDraft{Price: 30, Quantity: 200},
			wantField: "name",
		},
		{
			name:      "negative price",
			draft:     domain.LotDraft{Name: "Pista", Price: -1, Quantity: 200},
			wantField: "price",
		},
		{
			name:      "zero quantity",
			draft:     domain.LotDraft{Name: "Pista", Price: 30, Quantity: 0},
			wantField: "quantity",
		},
		{
			name:      "zero max per user",
			draft:     domain.LotDraft{Name: "Pista", Price: 30, Quantity: 200, MaxPerUser: intPtr(0)},
			wantField: "max_per_user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeLotAPI()
			r := loadedRegistry(t, api)

			err := r.SubmitDraft(context.Background(), tt.draft)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
			// Validation fails fast, before any request.
			assert.Zero(t, api.createCalls)
			assert.Empty(t, r.Lots())
		})
	}
}

func TestLotRegistry_FreeLotIsValid(t *testing.T) {
	api := newFakeLotAPI()
	r := loadedRegistry(t, api)

	// Price zero means a free lot, not a missing price.
	err := r.SubmitDraft(context.Background(), domain.LotDraft{Name: "X", Price: 0, Quantity: 1})

	require.NoError(t, err)
	lots := r.Lots()
	require.Len(t, lots, 1)
	assert.Equal(t, "X", lots[0].Name)
	assert.Zero(t, lots[0].Price)
}

func TestLotRegistry_CreateAppendsExactlyOnce(t *testing.T) {
	api := newFakeLotAPI()
	var notified [][]*domain.TicketLot
	r := NewLotRegistry(api, testLogger(), func(lots []*domain.TicketLot) {
		notified = append(notified, lots)
	})
	require.NoError(t, r.Load(context.Background(), "E1"))

	err := r.SubmitDraft(context.Background(), domain.LotDraft{Name: "Pista", Price: 30, Quantity: 200})

	require.NoError(t, err)
	lots := r.Lots()
	require.Len(t, lots, 1)
	assert.Equal(t, "L1", lots[0].ID)
	assert.Equal(t, "Pista", lots[0].Name)
	assert.Equal(t, 1, api.createCalls)
	assert.Equal(t, "ticket lot created", r.Message())
	// The slot resets to Composing-New after success.
	assert.Equal(t, domain.LotDraft{}, r.Draft())
	assert.False(t, r.IsEditing())
	// One notification for the load, one for the create.
	require.Len(t, notified, 2)
	assert.Len(t, notified[1], 1)
}

func TestLotRegistry_UpdateReplacesInPlace(t *testing.T) {
	api := newFakeLotAPI()
	api.listResult = []*domain.TicketLot{
		{ID: "L1", Name: "Pista", Price: 30, Quantity: 200},
		{ID: "L2", Name: "VIP", Price: 120, Quantity: 50},
	}
	r := loadedRegistry(t, api)

	require.NoError(t, r.EditExisting("L1"))
	assert.True(t, r.IsEditing())
	draft := r.Draft()
	assert.Equal(t, "Pista", draft.Name)

	draft.Price = 35
	require.NoError(t, r.SubmitDraft(context.Background(), draft))

	lots := r.Lots()
	require.Len(t, lots, 2)
	// Display order is preserved; the entry is replaced, not re-appended.
	assert.Equal(t, "L1", lots[0].ID)
	assert.InDelta(t, 35, lots[0].Price, 1e-9)
	assert.Equal(t, "L2", lots[1].ID)
	assert.Equal(t, 1, api.updateCalls)
	assert.Zero(t, api.createCalls)
	assert.Equal(t, "ticket lot updated", r.Message())
	assert.False(t, r.IsEditing())
}

func TestLotRegistry_EditUnknownLot(t *testing.T) {
	api := newFakeLotAPI()
	r := loadedRegistry(t, api)

	assert.ErrorIs(t, r.EditExisting("missing"), domain.ErrLotNotFound)
}

func TestLotRegistry_CancelEditResetsSlot(t *testing.T) {
	api := newFakeLotAPI()
	api.listResult = []*domain.TicketLot{{ID: "L1", Name: "Pista", Price: 30, Quantity: 200}}
	r := loadedRegistry(t, api)

	require.NoError(t, r.EditExisting("L1"))
	r.CancelEdit()

	assert.False(t, r.IsEditing())
	assert.Equal(t, domain.LotDraft{}, r.Draft())
}

func TestLotRegistry_RemoveIsNeverOptimistic(t *testing.T) {
	api := newFakeLotAPI()
	api.listResult = []*domain.TicketLot{{ID: "L1", Name: "Pista", Price: 30, Quantity: 200}}
	api.deleteErr = &domain.TransportError{StatusCode: 500, Message: "server fell over"}
	r := loadedRegistry(t, api)

	err := r.Remove(context.Background(), "L1")

	require.Error(t, err)
	// The failed delete leaves the row in place.
	assert.Len(t, r.Lots(), 1)
	assert.Equal(t, "server fell over", r.Message())
}

func TestLotRegistry_RemoveSuccess(t *testing.T) {
	api := newFakeLotAPI()
	api.listResult = []*domain.TicketLot{
		{ID: "L1", Name: "Pista", Quantity: 200},
		{ID: "L2", Name: "VIP", Quantity: 50},
	}
	r := loadedRegistry(t, api)
	require.NoError(t, r.EditExisting("L1"))

	require.NoError(t, r.Remove(context.Background(), "L1"))

	lots := r.Lots()
	require.Len(t, lots, 1)
	assert.Equal(t, "L2", lots[0].ID)
	assert.Equal(t, "ticket lot removed", r.Message())
	// Removing the lot under edit resets the slot too.
	assert.False(t, r.IsEditing())
}

func TestLotRegistry_SubmitFailureKeepsCollection(t *testing.T) {
	api := newFakeLotAPI()
	api.createErr = &domain.TransportError{Err: errors.New("dial tcp: refused")}
	r := loadedRegistry(t, api)

	err := r.SubmitDraft(context.Background(), domain.LotDraft{Name: "Pista", Price: 30, Quantity: 200})

	require.Error(t, err)
	assert.Empty(t, r.Lots())
	assert.Equal(t, "connection failed, please try again", r.Message())
	assert.False(t, r.IsBusy())
}

func intPtr(n int) *int { return &n }
