package domain

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RoomPriceStore interface {
	GetAllByOwner(ctx context.Context, ownerID string) ([]*RoomPrice, error)
	GetByDate(ctx context.Context, ownerID string, date string) ([]*RoomPrice, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*RoomPrice, error)
	Insert(ctx context.Context, price *RoomPrice) error
	// UpdatePriceApplied sets price and applied together in one write.
	UpdatePriceApplied(ctx context.Context, id primitive.ObjectID, price float64) error
}

type EventStore interface {
	GetAllByOwner(ctx context.Context, ownerID string) ([]*Event, error)
	Insert(ctx context.Context, event *Event) error
}

// ApplyLockCache marks a record as having an adjustment in flight, so that
// ApplyOne and ApplyBulk never write the same record concurrently.
type ApplyLockCache interface {
	Acquire(ctx context.Context, recordID string) (bool, error)
	Release(ctx context.Context, recordID string) error
}
