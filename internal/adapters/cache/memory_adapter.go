// Package cache provides the in-memory TTL cache and in-flight request
// registry behind the slot and booking services. The cache is an explicit
// instance with its own sweep timers and Shutdown; nothing here is a
// package-level singleton.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/digihotshot/oah-booking/internal/domain/providers"
	"github.com/digihotshot/oah-booking/pkg/config"
	"github.com/digihotshot/oah-booking/pkg/weeks"
)

type entry struct {
	key       providers.CacheKey
	data      any
	timestamp time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.timestamp) > e.ttl
}

// MemoryAdapter implements providers.SlotCache with a process-local map and a
// singleflight group for request deduplication
type MemoryAdapter struct {
	cfg    config.CacheConfig
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]entry

	flight   singleflight.Group
	flightMu sync.Mutex
	flights  map[string]time.Time

	done     chan struct{}
	shutdown sync.Once
}

// Option customizes a MemoryAdapter
type Option func(*MemoryAdapter)

// WithClock replaces the wall clock, letting tests control expiry
func WithClock(now func() time.Time) Option {
	return func(a *MemoryAdapter) {
		a.now = now
	}
}

// NewMemoryAdapter creates the cache and starts its background sweeps. Callers
// own the instance and must call Shutdown when done with it.
func NewMemoryAdapter(cfg config.CacheConfig, opts ...Option) *MemoryAdapter {
	a := &MemoryAdapter{
		cfg:     cfg,
		logger:  log.With().Str("component", "slot_cache").Logger(),
		now:     time.Now,
		entries: make(map[string]entry),
		flights: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.SweepInterval > 0 {
		go a.sweepLoop(cfg.SweepInterval, a.ClearExpired)
	}
	if cfg.PastWeekInterval > 0 {
		go a.sweepLoop(cfg.PastWeekInterval, a.ClearPastWeeks)
	}
	return a
}

func (a *MemoryAdapter) sweepLoop(interval time.Duration, sweep func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// Get returns the unexpired value for key. Expired entries are deleted on
// read, so a value is never served past its TTL.
func (a *MemoryAdapter) Get(key providers.CacheKey) (any, bool) {
	ks := key.String()

	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[ks]
	if !ok {
		return nil, false
	}
	if e.expired(a.now()) {
		delete(a.entries, ks)
		return nil, false
	}
	return e.data, true
}

// Set stores value under key with an explicit TTL
func (a *MemoryAdapter) Set(key providers.CacheKey, value any, ttl time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[key.String()] = entry{
		key:       key,
		data:      value,
		timestamp: a.now(),
		ttl:       ttl,
	}
}

// SetSlotData stores value with the slot-data TTL
func (a *MemoryAdapter) SetSlotData(key providers.CacheKey, value any) {
	a.Set(key, value, a.cfg.SlotTTL)
}

// SetBookingData stores value with the booking-data TTL
func (a *MemoryAdapter) SetBookingData(key providers.CacheKey, value any) {
	a.Set(key, value, a.cfg.BookingTTL)
}

// SetUnifiedData stores value with the unified-response TTL
func (a *MemoryAdapter) SetUnifiedData(key providers.CacheKey, value any) {
	a.Set(key, value, a.cfg.UnifiedTTL)
}

// Do runs fn under the in-flight registry. Concurrent callers for the same
// key share one execution and observe the same value or the same error. The
// in-flight marker is cleared when fn settles, success or failure, so later
// callers never wait on a finished flight. A marker older than the configured
// staleness window is forgotten by ClearExpired as a safety valve against a
// fn that never returns.
//
// fn typically closes over the first caller's context; callers joining an
// existing flight receive its result even if their own context differs.
func (a *MemoryAdapter) Do(ctx context.Context, key providers.CacheKey, fn func() (any, error)) (any, error, bool) {
	ks := key.String()

	a.flightMu.Lock()
	if _, inFlight := a.flights[ks]; !inFlight {
		a.flights[ks] = a.now()
	}
	a.flightMu.Unlock()

	v, err, shared := a.flight.Do(ks, func() (any, error) {
		defer a.clearFlight(ks)
		return fn()
	})
	return v, err, shared
}

func (a *MemoryAdapter) clearFlight(ks string) {
	a.flightMu.Lock()
	delete(a.flights, ks)
	a.flightMu.Unlock()
}

// ClearSlots drops slot and unified entries touching any of the given centers
// or services. With both selectors empty every slot and unified entry goes.
func (a *MemoryAdapter) ClearSlots(centers, services []string) {
	removed := a.removeMatching(func(k providers.CacheKey) bool {
		if k.Kind != providers.KindSlots && k.Kind != providers.KindUnified {
			return false
		}
		if len(centers) == 0 && len(services) == 0 {
			return true
		}
		for _, c := range centers {
			if k.HasCenter(c) {
				return true
			}
		}
		for _, s := range services {
			if k.HasService(s) {
				return true
			}
		}
		return false
	})
	if removed > 0 {
		a.logger.Debug().Int("removed", removed).Strs("centers", centers).Strs("services", services).Msg("cleared slot cache entries")
	}
}

// ClearBooking drops booking entries touching centerID or serviceID. Empty
// arguments drop all booking entries.
func (a *MemoryAdapter) ClearBooking(centerID, serviceID string) {
	a.removeMatching(func(k providers.CacheKey) bool {
		if k.Kind != providers.KindBooking {
			return false
		}
		if centerID == "" && serviceID == "" {
			return true
		}
		return (centerID != "" && k.HasCenter(centerID)) || (serviceID != "" && k.HasService(serviceID))
	})
}

// InvalidateDateRange drops dated entries whose covered calendar range
// overlaps [start, end]
func (a *MemoryAdapter) InvalidateDateRange(start, end time.Time) {
	a.removeMatching(func(k providers.CacheKey) bool {
		ks, ke, ok := k.DateRange()
		if !ok {
			return false
		}
		return !ke.Before(start) && !ks.After(end)
	})
}

// ClearPastWeeks drops dated entries that ended before the current week
func (a *MemoryAdapter) ClearPastWeeks() {
	currentWeekStart := weeks.StartOfWeek(a.now())
	removed := a.removeMatching(func(k providers.CacheKey) bool {
		_, ke, ok := k.DateRange()
		if !ok {
			return false
		}
		return ke.Before(currentWeekStart)
	})
	if removed > 0 {
		a.logger.Debug().Int("removed", removed).Msg("cleared past-week cache entries")
	}
}

// ClearExpired sweeps expired entries and forgets stale in-flight markers
func (a *MemoryAdapter) ClearExpired() {
	now := a.now()

	a.mu.Lock()
	for ks, e := range a.entries {
		if e.expired(now) {
			delete(a.entries, ks)
		}
	}
	a.mu.Unlock()

	staleness := a.cfg.PendingStaleness
	if staleness <= 0 {
		return
	}
	a.flightMu.Lock()
	for ks, started := range a.flights {
		if now.Sub(started) > staleness {
			a.flight.Forget(ks)
			delete(a.flights, ks)
			a.logger.Warn().Str("key", ks).Msg("forgot stale in-flight request")
		}
	}
	a.flightMu.Unlock()
}

// Clear drops every cached entry
func (a *MemoryAdapter) Clear() {
	a.mu.Lock()
	a.entries = make(map[string]entry)
	a.mu.Unlock()
}

// Len reports the number of live entries, counting expired ones that have not
// been swept yet
func (a *MemoryAdapter) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Shutdown stops the background sweep timers. The cache remains usable, only
// the periodic sweeps stop.
func (a *MemoryAdapter) Shutdown() {
	a.shutdown.Do(func() {
		close(a.done)
	})
}

func (a *MemoryAdapter) removeMatching(match func(providers.CacheKey) bool) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := 0
	for ks, e := range a.entries {
		if match(e.key) {
			delete(a.entries, ks)
			removed++
		}
	}
	return removed
}
