package storage

import (
	"context"
	"errors"
)

// Kind orders backends by capacity and durability. Lower kinds are tried
// first on load.
type Kind int

const (
	KindEphemeral Kind = iota
	KindPersistent
	KindBulk
)

func (k Kind) String() string {
	switch k {
	case KindEphemeral:
		return "ephemeral"
	case KindPersistent:
		return "persistent"
	case KindBulk:
		return "bulk"
	}
	return "unknown"
}

var (
	ErrNotFound      = errors.New("storage: key not found")
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
	ErrNoBackend     = errors.New("storage: no backend accepted the write")
	ErrClosed        = errors.New("storage: store closed")
)

// Backend is a byte-oriented key/value store. Get returns ErrNotFound for
// missing keys. Single-key writes must be atomic.
type Backend interface {
	Name() string
	Kind() Kind
	// Probe checks the backend is usable. A failing backend is disabled for
	// the lifetime of the store.
	Probe(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
