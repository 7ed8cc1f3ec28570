package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventauthoring/internal/domain"
)

// fakeEventWriter is an in-memory EventWriter for tests.
type fakeEventWriter struct {
	mu          sync.Mutex
	nextID      string
	createErr   error
	updateErr   error
	createCalls int
	updateCalls int
	lastSub     *domain.EventSubmission
	lastID      string
	block       chan struct{} // if set, Create/Update wait until closed
}

func newFakeEventWriter() *fakeEventWriter {
	return &fakeEventWriter{nextID: "E1"}
}

func (f *fakeEventWriter) Create(ctx context.Context, sub *domain.EventSubmission) (string, error) {
	f.mu.Lock()
	f.createCalls++
	f.lastSub = sub
	blocker := f.block
	f.mu.Unlock()
	if blocker != nil {
		<-blocker
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.nextID, nil
}

func (f *fakeEventWriter) Update(ctx context.Context, id string, sub *domain.EventSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.lastID = id
	f.lastSub = sub
	return f.updateErr
}

func validDraft(c *DraftController) {
	_ = c.SetName("Festival de Verão")
	_ = c.SetStartDateTime("2026-09-12T20:00")
	_ = c.SetCategory("music")
	_ = c.SetDescription("Open air show")
}

func TestDraftController_SubmitValidation(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(c *DraftController)
		wantField string
	}{
		{
			name: "missing name",
			setup: func(c *DraftController) {
				_ = c.SetStartDateTime("2026-09-12T20:00")
			},
			wantField: "name",
		},
		{
			name: "missing start datetime",
			setup: func(c *DraftController) {
				_ = c.SetName("Festival")
			},
			wantField: "startdatetime",
		},
		{
			name: "unparseable start datetime",
			setup: func(c *DraftController) {
				_ = c.SetName("Festival")
				_ = c.SetStartDateTime("next friday")
			},
			wantField: "start_datetime",
		},
		{
			name: "malformed external link",
			setup: func(c *DraftController) {
				_ = c.SetName("Festival")
				_ = c.SetStartDateTime("2026-09-12T20:00")
				_ = c.SetExternalLink("not a url")
			},
			wantField: "externallink",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := newFakeEventWriter()
			c := NewDraftController(writer, testLogger())
			tt.setup(c)

			id, err := c.Submit(context.Background())

			require.Error(t, err)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Empty(t, id)
			// Validation never contacts the network.
			assert.Zero(t, writer.createCalls)
			assert.Zero(t, writer.updateCalls)
		})
	}
}

func TestDraftController_CreateModeResetsForm(t *testing.T) {
	writer := newFakeEventWriter()
	c := NewDraftController(writer, testLogger())
	validDraft(c)
	_ = c.SetRelatedLinks("https://a.example\n\nhttps://b.example\n")
	_ = c.SetLocation(&domain.Location{Latitude: -3.1, Longitude: -60.0, DisplayName: "Manaus"})

	id, err := c.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "E1", id)
	assert.Equal(t, "event created", c.Message())

	// All fields return to their empty defaults, including the identifier.
	snap := c.Snapshot()
	assert.Equal(t, domain.DraftEvent{}, snap)

	// The wire payload carried the serialized draft.
	require.NotNil(t, writer.lastSub)
	assert.Equal(t, "Festival de Verão", writer.lastSub.Name)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, writer.lastSub.RelatedLinks)
	require.NotNil(t, writer.lastSub.Location)
	assert.Equal(t, "Manaus", writer.lastSub.Location.DisplayName)
	assert.Equal(t, time.Date(2026, 9, 12, 20, 0, 0, 0, time.Local), writer.lastSub.StartDateTime)
}

func TestDraftController_UpdateModeKeepsForm(t *testing.T) {
	writer := newFakeEventWriter()
	c := NewDraftController(writer, testLogger())
	c.LoadFromExisting(&domain.PersistedEvent{
		ID:            "E9",
		Name:          "Old name",
		StartDateTime: time.Date(2026, 9, 12, 20, 0, 0, 0, time.Local),
		RelatedLinks:  []string{"https://a.example", "https://b.example"},
	})
	_ = c.SetName("New name")

	id, err := c.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "E9", id)
	assert.Equal(t, 1, writer.updateCalls)
	assert.Zero(t, writer.createCalls)
	assert.Equal(t, "E9", writer.lastID)
	assert.Equal(t, "event updated", c.Message())

	// Edit mode never clears the form after a successful update.
	snap := c.Snapshot()
	assert.Equal(t, "New name", snap.Name)
	assert.Equal(t, "E9", snap.ID)
	assert.Equal(t, "https://a.example\nhttps://b.example", snap.RelatedLinks)
}

func TestDraftController_SubmitFailureKeepsFieldsForRetry(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMessage string
	}{
		{
			name:        "server supplied message",
			err:         &domain.TransportError{StatusCode: 422, Message: "name already taken"},
			wantMessage: "name already taken",
		},
		{
			name:        "generic connection failure",
			err:         &domain.TransportError{Err: errors.New("dial tcp: refused")},
			wantMessage: "connection failed, please try again",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := newFakeEventWriter()
			writer.createErr = tt.err
			c := NewDraftController(writer, testLogger())
			validDraft(c)

			id, err := c.Submit(context.Background())

			require.Error(t, err)
			assert.Empty(t, id)
			assert.Equal(t, tt.wantMessage, c.Message())
			assert.False(t, c.IsSubmitting())

			// Fields stay intact for retry.
			snap := c.Snapshot()
			assert.Equal(t, "Festival de Verão", snap.Name)
			assert.Equal(t, "2026-09-12T20:00", snap.StartDateTime)
		})
	}
}

func TestDraftController_EditsRejectedWhileSubmitting(t *testing.T) {
	writer := newFakeEventWriter()
	writer.block = make(chan struct{})
	c := NewDraftController(writer, testLogger())
	validDraft(c)

	done := make(chan struct{})
	go func() {
		_, _ = c.Submit(context.Background())
		close(done)
	}()

	waitFor(t, c.IsSubmitting)
	assert.ErrorIs(t, c.SetName("too late"), domain.ErrSubmitInProgress)
	assert.ErrorIs(t, c.SetDescription("too late"), domain.ErrSubmitInProgress)

	close(writer.block)
	<-done
	assert.False(t, c.IsSubmitting())
}

func TestDraftController_LoadFromExisting(t *testing.T) {
	writer := newFakeEventWriter()
	c := NewDraftController(writer, testLogger())
	c.LoadFromExisting(&domain.PersistedEvent{
		ID:            "E5",
		Name:          "Conf",
		Description:   "Annual",
		StartDateTime: time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local),
		Category:      "conference",
		RelatedLinks:  []string{"https://a.example", "https://b.example"},
		ParentEventID: "E1",
		Location:      &domain.Location{Latitude: 40.7, Longitude: -74.0, DisplayName: "NYC"},
	})

	snap := c.Snapshot()
	assert.Equal(t, "E5", snap.ID)
	assert.Equal(t, "2026-03-01T09:30", snap.StartDateTime)
	assert.Equal(t, "https://a.example\nhttps://b.example", snap.RelatedLinks)
	assert.Equal(t, "E1", snap.ParentEventID)
	require.NotNil(t, snap.Location)
	assert.Equal(t, "NYC", snap.Location.DisplayName)
}

func TestDraftController_ValidateAttachment(t *testing.T) {
	tests := []struct {
		name    string
		att     *domain.Attachment
		wantErr bool
	}{
		{
			name:    "jpeg within limit",
			att:     &domain.Attachment{Filename: "a.jpg", ContentType: "image/jpeg", Size: 1024},
			wantErr: false,
		},
		{
			name:    "png within limit",
			att:     &domain.Attachment{Filename: "a.png", ContentType: "image/png", Size: 5 * 1024 * 1024},
			wantErr: false,
		},
		{
			name:    "webp within limit",
			att:     &domain.Attachment{Filename: "a.webp", ContentType: "image/webp", Size: 10},
			wantErr: false,
		},
		{
			name:    "gif rejected",
			att:     &domain.Attachment{Filename: "a.gif", ContentType: "image/gif", Size: 10},
			wantErr: true,
		},
		{
			name:    "oversized rejected",
			att:     &domain.Attachment{Filename: "big.png", ContentType: "image/png", Size: 5*1024*1024 + 1},
			wantErr: true,
		},
		{
			name:    "nil rejected",
			att:     nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewDraftController(newFakeEventWriter(), testLogger())
			err := c.ValidateAttachment(tt.att)
			if tt.wantErr {
				var verr *domain.ValidationError
				require.True(t, errors.As(err, &verr))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDraftController_AttachImageTravelsWithSubmission(t *testing.T) {
	writer := newFakeEventWriter()
	c := NewDraftController(writer, testLogger())
	validDraft(c)
	require.NoError(t, c.AttachImage(&domain.Attachment{
		Filename:    "poster.png",
		ContentType: "image/png",
		Size:        3,
		Data:        []byte{1, 2, 3},
	}))

	_, err := c.Submit(context.Background())

	require.NoError(t, err)
	require.NotNil(t, writer.lastSub.Image)
	assert.Equal(t, "poster.png", writer.lastSub.Image.Filename)
}
