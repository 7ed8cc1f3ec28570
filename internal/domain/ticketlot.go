package domain

import (
	"context"
	"errors"
)

// ErrLotNotFound is returned when a lot id is not present in the registry
// collection.
var ErrLotNotFound = errors.New("ticket lot not found")

// TicketLot is a price tier belonging to one event. ID is empty until the
// server persists the lot.
type TicketLot struct {
	ID         string  `json:"id,omitempty"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	Active     bool    `json:"active"`
	MaxPerUser *int    `json:"max_per_user,omitempty"`
}

// LotDraft is the editable composition slot of the lot form. A price of
// exactly zero is valid; only negative prices are rejected.
type LotDraft struct {
	Name       string `validate:"required"`
	Price      float64 `validate:"gte=0"`
	Quantity   int    `validate:"gte=1"`
	Active     bool
	MaxPerUser *int `validate:"omitempty,gte=1"`
}

// TicketLotWriter is the sub-resource endpoint for ticket lots. List and
// Create are scoped under the parent event id; Update and Delete are scoped
// by lot id. Mutations carry the bearer credential.
type TicketLotWriter interface {
	List(ctx context.Context, eventID string) ([]*TicketLot, error)
	Create(ctx context.Context, eventID string, lot *TicketLot) (*TicketLot, error)
	Update(ctx context.Context, lot *TicketLot) (*TicketLot, error)
	Delete(ctx context.Context, lotID string) error
}
