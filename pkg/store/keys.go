package store

import (
	"github.com/google/uuid"
)

// Key scopes a subscription to a named slice of State.
type Key string

// Global is the sentinel key. Set with Global (or with no key) notifies every
// subscriber; callbacks subscribed under Global are woken by global updates
// only.
const Global Key = ""

// KeyGenerator allocates keys for anonymous bindings.
// Keys only need to be unique with high probability; the store retries on
// collision.
type KeyGenerator interface {
	NewKey() Key
}

// KeyGeneratorFunc adapts a function to KeyGenerator.
type KeyGeneratorFunc func() Key

// NewKey implements KeyGenerator.
func (f KeyGeneratorFunc) NewKey() Key {
	return f()
}

// UUIDKeys generates random UUIDv4 keys.
type UUIDKeys struct{}

// NewKey implements KeyGenerator.
func (UUIDKeys) NewKey() Key {
	return Key(uuid.NewString())
}

// normalizeKeys drops Global entries and duplicates, keeping first-seen order.
// It reports global=true when no named key remains.
func normalizeKeys(keys []Key) (named []Key, global bool) {
	if len(keys) == 0 {
		return nil, true
	}
	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if k == Global {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		named = append(named, k)
	}
	return named, len(named) == 0
}
