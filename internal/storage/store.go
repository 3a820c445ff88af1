package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options configure a Store.
type Options struct {
	Namespace     string
	Version       int
	FlushInterval time.Duration
	MaxBatch      int
}

// SaveOptions select which backends a write goes to. With no flag set, or
// when none of the flagged backends is available, every available backend
// is used.
type SaveOptions struct {
	Temporary  bool
	Persistent bool
	Large      bool
	// Immediate writes synchronously instead of queueing.
	Immediate bool
}

// LoadOptions select which backends a read consults.
type LoadOptions struct {
	Temporary  bool
	Persistent bool
	Large      bool
}

type pending struct {
	payload []byte
	targets []Backend
}

// Store persists JSON values across a prioritized set of backends.
// Persistence is advisory: backend failures are logged and skipped.
type Store struct {
	opts     Options
	log      zerolog.Logger
	backends []Backend
	disabled []string

	mu     sync.Mutex
	queue  map[string]pending
	closed bool

	// writeMu orders backend writes. It is taken before mu.
	writeMu sync.Mutex

	loopOnce  sync.Once
	running   bool
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// Open probes every backend and keeps the ones that respond. It never fails:
// a store with no usable backend accepts writes and drops them.
func Open(ctx context.Context, opts Options, log zerolog.Logger, backends ...Backend) *Store {
	if opts.Namespace == "" {
		opts.Namespace = "drill"
	}
	if opts.Version <= 0 {
		opts.Version = 1
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 50
	}

	s := &Store{
		opts:  opts,
		log:   log.With().Str("component", "session_store").Logger(),
		queue: make(map[string]pending),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	for _, b := range backends {
		if b == nil {
			continue
		}
		if err := probe(ctx, b); err != nil {
			s.log.Warn().Err(err).Str("backend", b.Name()).Msg("Storage backend unavailable, disabled")
			s.disabled = append(s.disabled, b.Name())
			continue
		}
		s.backends = append(s.backends, b)
	}
	sort.SliceStable(s.backends, func(i, j int) bool {
		return s.backends[i].Kind() < s.backends[j].Kind()
	})

	names := make([]string, len(s.backends))
	for i, b := range s.backends {
		names[i] = b.Name()
	}
	s.log.Info().Strs("backends", names).Strs("disabled", s.disabled).Msg("Session store ready")
	return s
}

func probe(ctx context.Context, b Backend) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return b.Probe(ctx)
}

// Backends returns the names of the enabled backends in priority order.
func (s *Store) Backends() []string {
	names := make([]string, len(s.backends))
	for i, b := range s.backends {
		names[i] = b.Name()
	}
	return names
}

// Disabled returns the names of backends that failed their probe.
func (s *Store) Disabled() []string {
	return append([]string(nil), s.disabled...)
}

func (s *Store) fullKey(key string) string {
	return s.opts.Namespace + "-" + key
}

func (s *Store) selectBackends(temporary, persistent, large bool) []Backend {
	var out []Backend
	for _, b := range s.backends {
		switch b.Kind() {
		case KindEphemeral:
			if temporary {
				out = append(out, b)
			}
		case KindPersistent:
			if persistent {
				out = append(out, b)
			}
		case KindBulk:
			if large {
				out = append(out, b)
			}
		}
	}
	if len(out) == 0 {
		return s.backends
	}
	return out
}

// Save writes v under key. Queued writes are deduplicated by key so only the
// latest value reaches the backends. A closed store rejects writes with
// ErrClosed.
func (s *Store) Save(ctx context.Context, key string, v any, opts SaveOptions) error {
	payload, err := wrap(v, time.Now().UnixMilli(), s.opts.Version)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	targets := s.selectBackends(opts.Temporary, opts.Persistent, opts.Large)
	fk := s.fullKey(key)

	if opts.Immediate {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrClosed, fk)
		}
		delete(s.queue, fk)
		s.mu.Unlock()
		return s.write(ctx, fk, payload, targets)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrClosed, fk)
	}
	s.queue[fk] = pending{payload: payload, targets: targets}
	full := len(s.queue) >= s.opts.MaxBatch
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

func (s *Store) write(ctx context.Context, fk string, payload []byte, targets []Backend) error {
	if len(targets) == 0 {
		s.log.Warn().Str("key", fk).Msg("No storage backend available, write dropped")
		return nil
	}
	ok := 0
	for _, b := range targets {
		if err := b.Set(ctx, fk, payload); err != nil {
			s.log.Warn().Err(err).Str("backend", b.Name()).Str("key", fk).Msg("Storage write failed")
			continue
		}
		ok++
	}
	if ok == 0 {
		return fmt.Errorf("%w: %s", ErrNoBackend, fk)
	}
	return nil
}

// Load decodes the first hit for key into out, trying backends in priority
// order. Pending queued writes are visible. It reports whether a value was
// found.
func (s *Store) Load(ctx context.Context, key string, out any, opts LoadOptions) (bool, error) {
	fk := s.fullKey(key)

	s.mu.Lock()
	p, queued := s.queue[fk]
	s.mu.Unlock()
	if queued && decodeInto(unwrap(p.payload), out) {
		return true, nil
	}

	for _, b := range s.selectBackends(opts.Temporary, opts.Persistent, opts.Large) {
		raw, err := b.Get(ctx, fk)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			s.log.Warn().Err(err).Str("backend", b.Name()).Str("key", fk).Msg("Storage read failed")
			continue
		}
		if !decodeInto(unwrap(raw), out) {
			s.log.Warn().Str("backend", b.Name()).Str("key", fk).Msg("Stored value does not decode")
			continue
		}
		return true, nil
	}
	return false, nil
}

// decodeInto unmarshals raw into a fresh value of out's element type and
// copies it into out only when decoding succeeds. out must be a non-nil
// pointer.
func decodeInto(raw []byte, out any) bool {
	dst := reflect.ValueOf(out)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return json.Unmarshal(raw, out) == nil
	}
	tmp := reflect.New(dst.Elem().Type())
	if err := json.Unmarshal(raw, tmp.Interface()); err != nil {
		return false
	}
	dst.Elem().Set(tmp.Elem())
	return true
}

// LoadAs loads key as a T, returning def when nothing usable is stored.
func LoadAs[T any](ctx context.Context, s *Store, key string, def T, opts LoadOptions) T {
	var v T
	found, err := s.Load(ctx, key, &v, opts)
	if err != nil || !found {
		return def
	}
	return v
}

// Remove deletes key from the queue and from every backend.
func (s *Store) Remove(ctx context.Context, key string) {
	fk := s.fullKey(key)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	delete(s.queue, fk)
	s.mu.Unlock()
	for _, b := range s.backends {
		if err := b.Delete(ctx, fk); err != nil {
			s.log.Warn().Err(err).Str("backend", b.Name()).Str("key", fk).Msg("Storage delete failed")
		}
	}
}

// Pending returns the number of queued writes.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Flush writes every queued value. It returns the last write error, if any.
// A save made while a flush is writing lands after it.
func (s *Store) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	batch := s.queue
	s.queue = make(map[string]pending)
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	var last error
	for fk, p := range batch {
		if err := s.write(ctx, fk, p.payload, p.targets); err != nil {
			last = err
		}
	}
	s.log.Debug().Int("count", len(batch)).Msg("Flushed queued writes")
	return last
}

// Start runs the periodic flush loop until Close.
func (s *Store) Start() {
	s.loopOnce.Do(func() {
		s.running = true
		go s.loop()
	})
}

func (s *Store) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.opts.FlushInterval*5)
			_ = s.Flush(ctx)
			cancel()
		}
	}
}

// Close stops the flush loop and flushes what is left. Later saves fail with
// ErrClosed.
func (s *Store) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		// Prevents a later Start from launching the loop.
		s.loopOnce.Do(func() {})
		close(s.stop)
		if s.running {
			<-s.done
		}

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		err = s.Flush(ctx)
	})
	return err
}
