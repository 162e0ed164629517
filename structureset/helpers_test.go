package structureset

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jathurchan/proknow/clock"
	"github.com/jathurchan/proknow/types"
)

// mockClock is a manually advanced clock. Every timer arm is signalled on
// armed so tests can advance only once the code under test is waiting.
type mockClock struct {
	mu          sync.Mutex
	currentTime time.Time
	timers      []*mockTimer
	armed       chan time.Duration
}

func newMockClock() *mockClock {
	return &mockClock{
		currentTime: time.Now(),
		armed:       make(chan time.Duration, 100),
	}
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

func (m *mockClock) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

func (m *mockClock) NewTimer(d time.Duration) clock.Timer {
	timer := &mockTimer{C: make(chan time.Time, 1), clock: m}
	timer.Reset(d)
	return timer
}

func (m *mockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentTime = m.currentTime.Add(d)
	m.fireLocked()
}

// fireLocked fires every active timer that is due. m.mu must be held.
func (m *mockClock) fireLocked() {
	var active []*mockTimer
	for _, timer := range m.timers {
		if !timer.active {
			continue
		}
		if timer.expires.After(m.currentTime) {
			active = append(active, timer)
			continue
		}
		timer.active = false
		select {
		case timer.C <- timer.expires:
		default:
		}
	}
	m.timers = active
}

type mockTimer struct {
	C       chan time.Time
	clock   *mockClock
	expires time.Time
	active  bool
}

func (mt *mockTimer) Chan() <-chan time.Time { return mt.C }

func (mt *mockTimer) Stop() bool {
	mt.clock.mu.Lock()
	defer mt.clock.mu.Unlock()
	wasActive := mt.active
	mt.active = false
	return wasActive
}

func (mt *mockTimer) Reset(d time.Duration) bool {
	m := mt.clock
	m.mu.Lock()
	wasActive := mt.active
	mt.expires = m.currentTime.Add(d)
	mt.active = true
	if !wasActive {
		m.timers = append(m.timers, mt)
	}
	m.fireLocked()
	m.mu.Unlock()

	select {
	case m.armed <- d:
	default:
	}
	return wasActive
}

// fakeRenewable is an in-memory Renewable.
type fakeRenewable struct {
	mu      sync.Mutex
	lock    *types.Lock
	err     error
	calls   atomic.Int64
	renewed chan string // receives each new lock id
	block   chan struct{}
}

func newFakeRenewable(ttl time.Duration) *fakeRenewable {
	return &fakeRenewable{
		lock:    &types.Lock{ID: "lock-0", TTLMilliseconds: ttl.Milliseconds()},
		renewed: make(chan string, 100),
	}
}

func (f *fakeRenewable) Current() *types.Lock {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lock == nil {
		return nil
	}
	c := *f.lock
	return &c
}

func (f *fakeRenewable) Renew(ctx context.Context) (*types.Lock, error) {
	n := f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	next := *f.lock
	next.ID = "lock-" + strconv.FormatInt(n, 10)
	f.lock = &next

	select {
	case f.renewed <- next.ID:
	default:
	}
	c := next
	return &c, nil
}

func (f *fakeRenewable) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeRenewable) setTTL(ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lock.TTLMilliseconds = ttl.Milliseconds()
}
