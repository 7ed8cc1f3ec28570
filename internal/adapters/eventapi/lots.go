package eventapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"eventauthoring/internal/domain"
)

// LotClient talks to the ticket-lot sub-resource endpoint. List and Create
// are scoped under the parent event id; Update and Delete by lot id. All
// mutations carry the bearer credential from the session store.
type LotClient struct {
	client  *http.Client
	baseURL string
	creds   domain.CredentialStore
	logger  *slog.Logger
}

// NewLotClient returns a ticket-lot client.
func NewLotClient(httpClient *http.Client, baseURL string, creds domain.CredentialStore, logger *slog.Logger) domain.TicketLotWriter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &LotClient{client: httpClient, baseURL: baseURL, creds: creds, logger: logger}
}

func (c *LotClient) List(ctx context.Context, eventID string) ([]*domain.TicketLot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events/"+eventID+"/lots", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("list lots failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Message: readServerError(resp.Body)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("read lots response: %w", err)}
	}
	return normalizeLotList(raw)
}

// normalizeLotList accepts either a bare JSON array or a wrapped
// {"lots": [...]} object and returns a uniform ordered slice. The rest of
// the core only ever sees the normalized shape.
func normalizeLotList(raw []byte) ([]*domain.TicketLot, error) {
	var list []*domain.TicketLot
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Lots []*domain.TicketLot `json:"lots"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("failed to decode lot list: %w", err)}
	}
	return wrapped.Lots, nil
}

func (c *LotClient) Create(ctx context.Context, eventID string, lot *domain.TicketLot) (*domain.TicketLot, error) {
	return c.mutate(ctx, http.MethodPost, c.baseURL+"/events/"+eventID+"/lots", lot)
}

func (c *LotClient) Update(ctx context.Context, lot *domain.TicketLot) (*domain.TicketLot, error) {
	return c.mutate(ctx, http.MethodPut, c.baseURL+"/lots/"+lot.ID, lot)
}

func (c *LotClient) Delete(ctx context.Context, lotID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/lots/"+lotID, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if err := c.authorize(req); err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.TransportError{Err: fmt.Errorf("delete lot failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.TransportError{StatusCode: resp.StatusCode, Message: readServerError(resp.Body)}
	}
	return nil
}

func (c *LotClient) mutate(ctx context.Context, method, url string, lot *domain.TicketLot) (*domain.TicketLot, error) {
	payload, err := json.Marshal(lot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lot: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("lot request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Message: readServerError(resp.Body)}
	}

	var out domain.TicketLot
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("failed to decode lot response: %w", err)}
	}
	return &out, nil
}

func (c *LotClient) authorize(req *http.Request) error {
	token, err := c.creds.Token()
	if err != nil {
		c.logger.Warn("lot mutation refused: no usable credential", "error", err)
		return &domain.TransportError{Message: "session expired, sign in again", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
