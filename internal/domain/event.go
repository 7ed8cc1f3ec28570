package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared across the authoring core.
var (
	// ErrNotFound is returned when the server reports the entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPreconditionViolation marks a programming-contract breach: an
	// operation was invoked before its precondition held (e.g. a ticket-lot
	// mutation without a persisted parent event). Rejected before any
	// network call.
	ErrPreconditionViolation = errors.New("precondition violation")

	// ErrSubmitInProgress is returned by draft mutations while a submission
	// is outstanding.
	ErrSubmitInProgress = errors.New("submission in progress")
)

// ValidationError is a local, pre-network validation failure. It never
// reaches the network and is surfaced as a message only.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// TransportError is a network-level failure: unreachable host, non-success
// status, or a malformed response body.
type TransportError struct {
	StatusCode int    // zero when the request never completed
	Message    string // server-supplied explanation, may be empty
	Err        error  // underlying error, may be nil
}

func (e *TransportError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UserMessage prefers the server-supplied explanation and falls back to a
// generic connection-failure message.
func (e *TransportError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return "connection failed, please try again"
}

// Location is the canonical selected place. Immutable value; replaced
// wholesale on every selection.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
}

// SearchResult is one candidate from a forward geocoding lookup. Ephemeral;
// discarded once a selection is made or the query changes.
type SearchResult struct {
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// DraftEvent holds the editable representation of an event while it is being
// authored. String fields keep the locally-editable form (ISO-local datetime,
// newline-delimited related links); submission converts to the wire shape.
type DraftEvent struct {
	ID            string // empty until persisted (create mode)
	Name          string
	Description   string
	StartDateTime string // "2006-01-02T15:04", no timezone
	Category      string
	ExternalLink  string
	RelatedLinks  string // newline-delimited display form
	ParentEventID string
	Location      *Location
}

// PersistedEvent is an event as returned by the server, used to hydrate the
// draft in edit mode.
type PersistedEvent struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	StartDateTime time.Time `json:"start_datetime"`
	Category      string    `json:"category"`
	ExternalLink  string    `json:"external_link"`
	RelatedLinks  []string  `json:"related_links"`
	ParentEventID string    `json:"parent_event_id"`
	Location      *Location `json:"location"`
}

// Attachment is a file descriptor for the optional event image. Only the
// declared content type and byte size are validated locally.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// EventSubmission is the wire payload for create/update.
type EventSubmission struct {
	Name          string
	Description   string
	StartDateTime time.Time
	Category      string
	ExternalLink  string
	RelatedLinks  []string
	ParentEventID string
	Location      *Location
	Image         *Attachment
}

// EventWriter persists events. Create returns the server-assigned id.
type EventWriter interface {
	Create(ctx context.Context, sub *EventSubmission) (string, error)
	Update(ctx context.Context, id string, sub *EventSubmission) error
}

// Geocoder resolves free text into candidate locations and coordinates into
// display names. Both lookups must tolerate mid-flight context cancellation.
// Reverse returns an empty name (not an error) when the service has none.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// CredentialStore supplies the bearer credential for lot mutations. Token
// returns an error when no credential is stored or it has expired.
type CredentialStore interface {
	Token() (string, error)
}
