package eventapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"eventauthoring/internal/domain"
)

const startDateTimeLayout = "2006-01-02T15:04"

// Client talks to the event persistence endpoint. Create/Update send a
// multipart payload; the response carries either an id or an error string.
type Client struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient returns an event persistence client.
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger) domain.EventWriter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{client: httpClient, baseURL: baseURL, logger: logger}
}

func (c *Client) Create(ctx context.Context, sub *domain.EventSubmission) (string, error) {
	return c.submit(ctx, http.MethodPost, c.baseURL+"/events", sub)
}

func (c *Client) Update(ctx context.Context, id string, sub *domain.EventSubmission) error {
	_, err := c.submit(ctx, http.MethodPut, c.baseURL+"/events/"+id, sub)
	return err
}

func (c *Client) submit(ctx context.Context, method, url string, sub *domain.EventSubmission) (string, error) {
	body, contentType, err := encodeForm(sub)
	if err != nil {
		return "", fmt.Errorf("failed to encode event payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	correlationID := uuid.NewString()
	c.logger.Debug("submitting event", "method", method, "correlation_id", correlationID)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &domain.TransportError{Err: fmt.Errorf("event request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		terr := &domain.TransportError{StatusCode: resp.StatusCode, Message: readServerError(resp.Body)}
		c.logger.Debug("event submission rejected",
			"status", resp.StatusCode, "correlation_id", correlationID)
		return "", terr
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &domain.TransportError{Err: fmt.Errorf("failed to decode event response: %w", err)}
	}
	return out.ID, nil
}

// encodeForm writes the multipart payload for create/update. Location fields
// are written all together or not at all; related links travel as a JSON
// array and are omitted when empty.
func encodeForm(sub *domain.EventSubmission) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := map[string]string{
		"name":           sub.Name,
		"description":    sub.Description,
		"start_datetime": sub.StartDateTime.Format(startDateTimeLayout),
		"category":       sub.Category,
		"external_link":  sub.ExternalLink,
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	if len(sub.RelatedLinks) > 0 {
		links, err := json.Marshal(sub.RelatedLinks)
		if err != nil {
			return nil, "", err
		}
		if err := w.WriteField("related_links", string(links)); err != nil {
			return nil, "", err
		}
	}
	if sub.ParentEventID != "" {
		if err := w.WriteField("parent_event_id", sub.ParentEventID); err != nil {
			return nil, "", err
		}
	}
	if sub.Location != nil {
		loc := map[string]string{
			"latitude":      strconv.FormatFloat(sub.Location.Latitude, 'f', -1, 64),
			"longitude":     strconv.FormatFloat(sub.Location.Longitude, 'f', -1, 64),
			"location_name": sub.Location.DisplayName,
		}
		for name, value := range loc {
			if err := w.WriteField(name, value); err != nil {
				return nil, "", err
			}
		}
	}
	if sub.Image != nil {
		part, err := w.CreateFormFile("image", sub.Image.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(sub.Image.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// readServerError extracts the human-readable error string from a failure
// body. A malformed body yields an empty message and the caller falls back
// to a generic one.
func readServerError(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return ""
	}
	return body.Error
}
