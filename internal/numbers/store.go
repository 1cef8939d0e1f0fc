package numbers

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("numbers: binding not found")
	ErrConflict = errors.New("numbers: number already bound")
)

// BindingStore is the persistence contract for number bindings.
//
// GetByE164 is the hot path (one lookup per inbound call); everything else is
// management-plane traffic.
type BindingStore interface {
	Create(ctx context.Context, b Binding) error
	Update(ctx context.Context, b Binding) error
	Delete(ctx context.Context, id string) error

	GetByID(ctx context.Context, id string) (Binding, error)
	GetByE164(ctx context.Context, e164 string) (Binding, error)
	List(ctx context.Context) ([]Binding, error)
}
