package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"eventauthoring/internal/domain"
)

// startDateTimeLayout is the locally-editable datetime form: ISO local,
// minute precision, no timezone.
const startDateTimeLayout = "2006-01-02T15:04"

// relatedLinksDelimiter separates related links in the editable display
// string; submission splits on it and drops blanks.
const relatedLinksDelimiter = "\n"

// Attachment constraints for the optional event image.
const maxAttachmentBytes = 5 * 1024 * 1024

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// draftPayload carries the validator tags for submission-time checks.
type draftPayload struct {
	Name          string `validate:"required"`
	StartDateTime string `validate:"required"`
	ExternalLink  string `validate:"omitempty,url"`
}

// DraftController owns the editable event fields and the submission
// lifecycle. Every field mutation is an explicit named operation; while a
// submission is outstanding all mutations are rejected.
type DraftController struct {
	mu       sync.Mutex
	events   domain.EventWriter
	validate *validator.Validate
	logger   *slog.Logger

	draft      domain.DraftEvent
	image      *domain.Attachment
	editMode   bool
	submitting bool
	statusMsg  string
}

// NewDraftController returns a controller with an empty draft (create mode).
func NewDraftController(events domain.EventWriter, logger *slog.Logger) *DraftController {
	return &DraftController{
		events:   events,
		validate: validator.New(),
		logger:   logger,
	}
}

// LoadFromExisting hydrates the draft from a persisted event (edit mode):
// the stored timestamp becomes the locally-editable datetime string and the
// related-link array becomes one newline-delimited display string.
func (c *DraftController) LoadFromExisting(ev *domain.PersistedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = domain.DraftEvent{
		ID:            ev.ID,
		Name:          ev.Name,
		Description:   ev.Description,
		StartDateTime: ev.StartDateTime.Format(startDateTimeLayout),
		Category:      ev.Category,
		ExternalLink:  ev.ExternalLink,
		RelatedLinks:  strings.Join(ev.RelatedLinks, relatedLinksDelimiter),
		ParentEventID: ev.ParentEventID,
		Location:      ev.Location,
	}
	c.image = nil
	c.editMode = true
}

func (c *DraftController) SetName(v string) error {
	return c.setField(func(d *domain.DraftEvent) { d.Name = v })
}

func (c *DraftController) SetDescription(v string) error {
	return c.setField(func(d *domain.DraftEvent) { d.Description = v })
}

func (c *DraftController) SetStartDateTime(v string) error {
	return c.setField(func(d *domain.DraftEvent) { d.StartDateTime = v })
}

func (c *DraftController) SetCategory(v string) error {
	return c.setField(func(d *domain.DraftEvent) { d.Category = v })
}

func (c *DraftController) SetExternalLink(v string) error {
	return c.setField(func(d *domain.DraftEvent) { d.ExternalLink = v })
}

func (c *DraftController) SetRelatedLinks(v string) error {
	return c.setField(func(d *domain.DraftEvent) { d.RelatedLinks = v })
}

func (c *DraftController) SetParentEventID(v string) error {
	return c.setField(func(d *domain.DraftEvent) { d.ParentEventID = v })
}

// SetLocation replaces the draft's location reference. The canonical value
// is owned by the LocationSynchronizer; the draft only reads it.
func (c *DraftController) SetLocation(loc *domain.Location) error {
	return c.setField(func(d *domain.DraftEvent) { d.Location = loc })
}

func (c *DraftController) setField(apply func(*domain.DraftEvent)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return domain.ErrSubmitInProgress
	}
	apply(&c.draft)
	return nil
}

// ValidateAttachment checks the declared MIME type against the allow-list
// and the byte size against the 5 MiB ceiling. No state is mutated.
func (c *DraftController) ValidateAttachment(att *domain.Attachment) error {
	if att == nil {
		return &domain.ValidationError{Field: "image", Message: "no file provided"}
	}
	if !allowedImageTypes[att.ContentType] {
		return &domain.ValidationError{Field: "image", Message: fmt.Sprintf("unsupported file type %q", att.ContentType)}
	}
	if att.Size > maxAttachmentBytes {
		return &domain.ValidationError{Field: "image", Message: "file exceeds the 5 MiB limit"}
	}
	return nil
}

// AttachImage validates and stores the image for the next submission.
func (c *DraftController) AttachImage(att *domain.Attachment) error {
	if err := c.ValidateAttachment(att); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return domain.ErrSubmitInProgress
	}
	c.image = att
	return nil
}

// ClearImage drops the pending image attachment.
func (c *DraftController) ClearImage() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return domain.ErrSubmitInProgress
	}
	c.image = nil
	return nil
}

// Snapshot returns a copy of the current draft for rendering.
func (c *DraftController) Snapshot() domain.DraftEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// IsSubmitting reports whether a submission is outstanding.
func (c *DraftController) IsSubmitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Message returns the outcome message of the last submission.
func (c *DraftController) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusMsg
}

// Submit validates the draft, serializes it, and persists it: POST when no
// identifier exists yet (create), PUT otherwise (update). On a successful
// create all fields reset to their empty defaults and the stored identifier
// is nulled; an update keeps the form as-is. On failure every field is left
// intact for retry. Returns the persisted identifier.
func (c *DraftController) Submit(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return "", domain.ErrSubmitInProgress
	}

	sub, verr := c.buildSubmissionLocked()
	if verr != nil {
		c.statusMsg = verr.Error()
		c.mu.Unlock()
		return "", verr
	}

	c.submitting = true
	id := c.draft.ID
	edit := id != ""
	c.mu.Unlock()

	var submitErr error
	if edit {
		submitErr = c.events.Update(ctx, id, sub)
	} else {
		id, submitErr = c.events.Create(ctx, sub)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false

	if submitErr != nil {
		var terr *domain.TransportError
		if errors.As(submitErr, &terr) {
			c.statusMsg = terr.UserMessage()
		} else {
			c.statusMsg = "connection failed, please try again"
		}
		c.logger.Warn("event submission failed", "edit", edit, "error", submitErr)
		return "", submitErr
	}

	if edit {
		c.draft.ID = id
		c.statusMsg = "event updated"
	} else {
		c.draft = domain.DraftEvent{}
		c.image = nil
		c.statusMsg = "event created"
	}
	return id, nil
}

// buildSubmissionLocked validates the editable fields and converts them to
// the wire shape. Caller holds the lock.
func (c *DraftController) buildSubmissionLocked() (*domain.EventSubmission, error) {
	payload := draftPayload{
		Name:          strings.TrimSpace(c.draft.Name),
		StartDateTime: strings.TrimSpace(c.draft.StartDateTime),
		ExternalLink:  strings.TrimSpace(c.draft.ExternalLink),
	}
	if err := c.validate.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &domain.ValidationError{
				Field:   strings.ToLower(verrs[0].Field()),
				Message: "is missing or invalid",
			}
		}
		return nil, &domain.ValidationError{Message: "invalid draft"}
	}

	start, err := time.ParseInLocation(startDateTimeLayout, payload.StartDateTime, time.Local)
	if err != nil {
		return nil, &domain.ValidationError{Field: "start_datetime", Message: "must be a valid date and time"}
	}

	var links []string
	for _, raw := range strings.Split(c.draft.RelatedLinks, relatedLinksDelimiter) {
		if link := strings.TrimSpace(raw); link != "" {
			links = append(links, link)
		}
	}

	return &domain.EventSubmission{
		Name:          payload.Name,
		Description:   c.draft.Description,
		StartDateTime: start,
		Category:      c.draft.Category,
		ExternalLink:  payload.ExternalLink,
		RelatedLinks:  links,
		ParentEventID: strings.TrimSpace(c.draft.ParentEventID),
		Location:      c.draft.Location,
		Image:         c.image,
	}, nil
}
