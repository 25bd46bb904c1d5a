package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lunchbox-market/order-composer/internal/models"
)

// ErrNamespaceRequired is returned when a bridge is built without an owner.
var ErrNamespaceRequired = errors.New("draft namespace is required")

// KV is a small string-keyed store scoped by namespace, shaped after browser
// local storage.
type KV interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	SetMany(ctx context.Context, namespace string, values map[string][]byte) error
}

// Bridge saves and loads one buyer's draft through a KV backend.
type Bridge struct {
	kv        KV
	namespace string
	loc       *time.Location
}

// NewBridge binds a KV backend to one namespace. loc is the calendar zone
// used to read legacy timestamp strings.
func NewBridge(kv KV, namespace string, loc *time.Location) (*Bridge, error) {
	if namespace == "" {
		return nil, ErrNamespaceRequired
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Bridge{kv: kv, namespace: namespace, loc: loc}, nil
}

func (b *Bridge) Save(ctx context.Context, state models.DraftState) error {
	values, err := Encode(state)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := b.kv.SetMany(ctx, b.namespace, values); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Load reads all keys. Only backend failures are errors; damaged values
// come back as empty state.
func (b *Bridge) Load(ctx context.Context) (models.DraftState, error) {
	values := make(map[string][]byte, len(Keys))
	for _, key := range Keys {
		raw, ok, err := b.kv.Get(ctx, b.namespace, key)
		if err != nil {
			return models.NewDraftState(), fmt.Errorf("read %s: %w", key, err)
		}
		if ok {
			values[key] = raw
		}
	}
	return Decode(values, b.loc), nil
}
