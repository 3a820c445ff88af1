package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Index   int            `json:"index"`
	Answers map[string]int `json:"answers"`
	Flags   []bool         `json:"flags"`
}

// countingBackend wraps a MemoryBackend, optionally posing as another kind.
type countingBackend struct {
	*MemoryBackend
	name     string
	kind     Kind
	sets     atomic.Int32
	probeErr error
	setErr   error
}

func newCounting(name string, kind Kind) *countingBackend {
	return &countingBackend{MemoryBackend: NewMemoryBackend(0), name: name, kind: kind}
}

func (c *countingBackend) Name() string                    { return c.name }
func (c *countingBackend) Kind() Kind                      { return c.kind }
func (c *countingBackend) Probe(ctx context.Context) error { return c.probeErr }
func (c *countingBackend) Set(ctx context.Context, key string, v []byte) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.sets.Add(1)
	return c.MemoryBackend.Set(ctx, key, v)
}

func openStore(t *testing.T, opts Options, backends ...Backend) *Store {
	t.Helper()
	s := Open(context.Background(), opts, zerolog.Nop(), backends...)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, Options{Namespace: "test"}, NewMemoryBackend(0))

	in := snapshot{Index: 2, Answers: map[string]int{"q1": 1, "q2": 0}, Flags: []bool{true, false}}
	require.NoError(t, s.Save(ctx, "session", in, SaveOptions{Immediate: true}))

	var out snapshot
	found, err := s.Load(ctx, "session", &out, LoadOptions{})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in, out)
}

func TestStore_NamespacedEnvelope(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryBackend(0)
	s := openStore(t, Options{Namespace: "drill", Version: 3}, mem)

	require.NoError(t, s.Save(ctx, "k", "v", SaveOptions{Immediate: true}))

	raw, err := mem.Get(ctx, "drill-k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":"v","timestamp":0,"version":3}`, string(replaceTimestamp(t, raw)))
}

func replaceTimestamp(t *testing.T, raw []byte) []byte {
	t.Helper()
	env := Envelope{}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.NotZero(t, env.Timestamp)
	env.Timestamp = 0
	out, err := json.Marshal(env)
	require.NoError(t, err)
	return out
}

func TestStore_QueueDedupesByKey(t *testing.T) {
	ctx := context.Background()
	b := newCounting("mem", KindEphemeral)
	s := openStore(t, Options{MaxBatch: 10}, b)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Save(ctx, "state", i, SaveOptions{}))
	}
	assert.Equal(t, 1, s.Pending())
	assert.Equal(t, 3, LoadAs(ctx, s, "state", 0, LoadOptions{}), "queued value is readable")

	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, int32(1), b.sets.Load())
	assert.Equal(t, 3, LoadAs(ctx, s, "state", 0, LoadOptions{}))
}

func TestStore_FlushOnMaxBatch(t *testing.T) {
	ctx := context.Background()
	b := newCounting("mem", KindEphemeral)
	s := openStore(t, Options{MaxBatch: 2}, b)

	require.NoError(t, s.Save(ctx, "a", 1, SaveOptions{}))
	assert.Equal(t, 1, s.Pending())
	require.NoError(t, s.Save(ctx, "b", 2, SaveOptions{}))
	assert.Zero(t, s.Pending())
	assert.Equal(t, int32(2), b.sets.Load())
}

func TestStore_MalformedLegacyData(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryBackend(0)
	s := openStore(t, Options{Namespace: "ns"}, mem)

	require.NoError(t, mem.Set(ctx, "ns-raw", []byte("not json at all")))
	require.NoError(t, mem.Set(ctx, "ns-bare", []byte(`{"index":4}`)))

	assert.Equal(t, "not json at all", LoadAs(ctx, s, "raw", "", LoadOptions{}))
	assert.Equal(t, 4, LoadAs(ctx, s, "bare", snapshot{}, LoadOptions{}).Index)

	// the wrong shape falls back to the default instead of failing
	assert.Equal(t, 7, LoadAs(ctx, s, "raw", 7, LoadOptions{}))
}

func TestStore_LoadDefault(t *testing.T) {
	s := openStore(t, Options{}, NewMemoryBackend(0))
	assert.Equal(t, []int{1}, LoadAs(context.Background(), s, "missing", []int{1}, LoadOptions{}))
}

func TestStore_UnavailableBackendDisabled(t *testing.T) {
	ctx := context.Background()
	broken := newCounting("broken", KindPersistent)
	broken.probeErr = errors.New("permission denied")
	s := openStore(t, Options{}, broken, NewMemoryBackend(0))

	assert.Equal(t, []string{"memory"}, s.Backends())
	assert.Equal(t, []string{"broken"}, s.Disabled())

	// a persistent write falls back to what is available
	require.NoError(t, s.Save(ctx, "k", "v", SaveOptions{Persistent: true, Immediate: true}))
	assert.Equal(t, "v", LoadAs(ctx, s, "k", "", LoadOptions{Persistent: true}))
	assert.Zero(t, broken.sets.Load())
}

func TestStore_LoadPriorityOrder(t *testing.T) {
	ctx := context.Background()
	bulk := newCounting("bulk", KindBulk)
	eph := newCounting("eph", KindEphemeral)
	pers := newCounting("pers", KindPersistent)
	s := openStore(t, Options{Namespace: "p"}, bulk, pers, eph)

	assert.Equal(t, []string{"eph", "pers", "bulk"}, s.Backends())

	require.NoError(t, pers.Set(ctx, "p-k", []byte(`{"data":"persistent","timestamp":1,"version":1}`)))
	require.NoError(t, bulk.Set(ctx, "p-k", []byte(`{"data":"bulk","timestamp":1,"version":1}`)))
	assert.Equal(t, "persistent", LoadAs(ctx, s, "k", "", LoadOptions{}))
	assert.Equal(t, "bulk", LoadAs(ctx, s, "k", "", LoadOptions{Large: true}))
}

func TestStore_SaveSelectsBackends(t *testing.T) {
	ctx := context.Background()
	eph := newCounting("eph", KindEphemeral)
	pers := newCounting("pers", KindPersistent)
	bulk := newCounting("bulk", KindBulk)
	s := openStore(t, Options{}, eph, pers, bulk)

	require.NoError(t, s.Save(ctx, "t", 1, SaveOptions{Temporary: true, Immediate: true}))
	require.NoError(t, s.Save(ctx, "l", 1, SaveOptions{Large: true, Persistent: true, Immediate: true}))
	require.NoError(t, s.Save(ctx, "all", 1, SaveOptions{Immediate: true}))

	assert.Equal(t, int32(2), eph.sets.Load())
	assert.Equal(t, int32(2), pers.sets.Load())
	assert.Equal(t, int32(2), bulk.sets.Load())
}

func TestStore_WriteFailuresAreReported(t *testing.T) {
	ctx := context.Background()
	bad := newCounting("bad", KindPersistent)
	bad.setErr = errors.New("disk full")
	s := openStore(t, Options{}, bad)

	err := s.Save(ctx, "k", 1, SaveOptions{Immediate: true})
	assert.ErrorIs(t, err, ErrNoBackend)

	mem := NewMemoryBackend(10)
	s2 := openStore(t, Options{}, mem)
	err = s2.Save(ctx, "k", "a value well past the quota", SaveOptions{Immediate: true})
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestStore_CloseFlushesAndStopsLoop(t *testing.T) {
	ctx := context.Background()
	b := newCounting("mem", KindEphemeral)
	s := Open(ctx, Options{FlushInterval: time.Hour}, zerolog.Nop(), b)
	s.Start()

	require.NoError(t, s.Save(ctx, "k", "queued", SaveOptions{}))
	require.NoError(t, s.Close(ctx))
	assert.Zero(t, s.Pending())
	assert.Equal(t, int32(1), b.sets.Load())

	assert.ErrorIs(t, s.Save(ctx, "k2", "late", SaveOptions{}), ErrClosed)
	assert.ErrorIs(t, s.Save(ctx, "k2", "late", SaveOptions{Immediate: true}), ErrClosed)
	assert.Zero(t, s.Pending())
	assert.Equal(t, int32(1), b.sets.Load())
	assert.NoError(t, s.Close(ctx))
}

func TestStore_PeriodicFlush(t *testing.T) {
	ctx := context.Background()
	b := newCounting("mem", KindEphemeral)
	s := openStore(t, Options{FlushInterval: 10 * time.Millisecond}, b)
	s.Start()

	require.NoError(t, s.Save(ctx, "k", 1, SaveOptions{}))
	require.Eventually(t, func() bool { return b.sets.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryBackend(0)
	s := openStore(t, Options{}, mem)

	require.NoError(t, s.Save(ctx, "k", 1, SaveOptions{Immediate: true}))
	require.NoError(t, s.Save(ctx, "k", 2, SaveOptions{}))
	s.Remove(ctx, "k")

	assert.Zero(t, s.Pending())
	found, err := s.Load(ctx, "k", new(int), LoadOptions{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAutoSaver_SuspendResumeStop(t *testing.T) {
	b := newCounting("mem", KindPersistent)
	s := openStore(t, Options{MaxBatch: 1}, b)

	var rounds, saved atomic.Int32
	a := NewAutoSaver(s, 5*time.Millisecond, func() (string, any, bool) {
		n := rounds.Add(1)
		return "snap", n, true
	}, func(string, time.Time) { saved.Add(1) }, zerolog.Nop())

	a.Start()
	require.Eventually(t, func() bool { return saved.Load() >= 2 }, time.Second, time.Millisecond)

	a.Suspend()
	assert.True(t, a.Suspended())
	// let any in-flight round finish
	time.Sleep(20 * time.Millisecond)
	before := rounds.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, rounds.Load())

	a.Resume()
	require.Eventually(t, func() bool { return rounds.Load() > before }, time.Second, time.Millisecond)

	a.Stop()
	after := rounds.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, rounds.Load())
	a.Stop()

	assert.Greater(t, b.sets.Load(), int32(0))
}

// gatedBackend blocks the first Set of a chosen value until released.
type gatedBackend struct {
	*MemoryBackend
	match   []byte
	started chan struct{}
	release chan struct{}
	once    atomic.Bool
}

func (g *gatedBackend) Set(ctx context.Context, key string, v []byte) error {
	if bytes.Contains(v, g.match) && g.once.CompareAndSwap(false, true) {
		close(g.started)
		<-g.release
	}
	return g.MemoryBackend.Set(ctx, key, v)
}

func TestStore_ImmediateSaveDuringFlushWins(t *testing.T) {
	ctx := context.Background()
	g := &gatedBackend{
		MemoryBackend: NewMemoryBackend(0),
		match:         []byte(`"old"`),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	s := openStore(t, Options{MaxBatch: 10}, g)

	require.NoError(t, s.Save(ctx, "k", "old", SaveOptions{}))
	flushed := make(chan error, 1)
	go func() { flushed <- s.Flush(ctx) }()
	<-g.started

	saved := make(chan error, 1)
	go func() { saved <- s.Save(ctx, "k", "new", SaveOptions{Immediate: true}) }()
	// the immediate save has to wait for the slow flush
	select {
	case err := <-saved:
		t.Fatalf("immediate save returned during flush: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(g.release)
	require.NoError(t, <-flushed)
	require.NoError(t, <-saved)
	assert.Equal(t, "new", LoadAs(ctx, s, "k", "", LoadOptions{}))
}

func TestStore_LoadFallsBackOnBadQueuedValue(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryBackend(0)
	s := openStore(t, Options{Namespace: "ns", MaxBatch: 10}, mem)

	require.NoError(t, mem.Set(ctx, "ns-k", []byte(`{"data":{"index":1},"timestamp":1,"version":1}`)))
	// index decodes, flags has the wrong type
	bad := struct {
		Index int    `json:"index"`
		Flags string `json:"flags"`
	}{Index: 9, Flags: "nope"}
	require.NoError(t, s.Save(ctx, "k", bad, SaveOptions{}))

	var out snapshot
	found, err := s.Load(ctx, "k", &out, LoadOptions{})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snapshot{Index: 1}, out)
}
