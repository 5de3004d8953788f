package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/digihotshot/oah-booking/internal/domain/entities"
)

// SelectedService is one wizard selection: a service and the centers eligible
// to perform it
type SelectedService struct {
	ServiceID string
	CenterIDs []string
}

// FeedState is a snapshot of the availability feed for the presentation
// layer. Err and empty AvailableSlots are distinct conditions: an error
// always comes with emptied data so stale slots are never shown next to an
// error banner.
type FeedState struct {
	Loading        bool
	Err            string
	AvailableSlots []entities.AvailableSlots
	BookingMap     []entities.BookingMapEntry
	Metadata       *entities.SlotsMetadata
	LastFetched    time.Time
}

// AvailabilityFeed bridges the slots service into presentation state. It
// recomputes the center/service union from the current selection, fetches on
// changes when auto-fetch is on, and publishes state snapshots to
// subscribers. The fetch itself stays single-flight in the cache layer; the
// feed only adds an in-progress guard against re-entrant triggers.
type AvailabilityFeed struct {
	slots  *SlotsService
	logger zerolog.Logger

	mu        sync.Mutex
	selection []SelectedService
	centers   []string
	services  []string
	weekCount int
	disabled  bool
	autoFetch bool
	fetching  bool
	state     FeedState
	subs      []chan FeedState
	closed    bool
}

// FeedOption customizes an AvailabilityFeed
type FeedOption func(*AvailabilityFeed)

// WithAutoFetch controls whether selection changes trigger fetches (on by
// default)
func WithAutoFetch(auto bool) FeedOption {
	return func(f *AvailabilityFeed) {
		f.autoFetch = auto
	}
}

// WithFeedDisabled starts the feed disabled
func WithFeedDisabled() FeedOption {
	return func(f *AvailabilityFeed) {
		f.disabled = true
	}
}

// NewAvailabilityFeed creates a feed over the slots service
func NewAvailabilityFeed(slots *SlotsService, weekCount int, opts ...FeedOption) *AvailabilityFeed {
	f := &AvailabilityFeed{
		slots:     slots,
		logger:    log.With().Str("component", "availability_feed").Logger(),
		weekCount: weekCount,
		autoFetch: true,
		state:     emptyState(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetSelection replaces the wizard's service selection. An empty derived
// center or service set resets the feed to idle without touching the network;
// otherwise a changed selection triggers a fetch when auto-fetch is on.
func (f *AvailabilityFeed) SetSelection(ctx context.Context, selection []SelectedService) error {
	f.mu.Lock()
	f.selection = selection
	centers, services := deriveUnion(selection)
	changed := !equalStrings(centers, f.centers) || !equalStrings(services, f.services)
	f.centers = centers
	f.services = services

	if len(centers) == 0 || len(services) == 0 || f.disabled {
		f.resetLocked()
		f.mu.Unlock()
		return nil
	}
	auto := f.autoFetch
	f.mu.Unlock()

	if changed && auto {
		return f.fetch(ctx)
	}
	return nil
}

// SetWeeks changes the week window and refetches when it changed
func (f *AvailabilityFeed) SetWeeks(ctx context.Context, weekCount int) error {
	f.mu.Lock()
	if weekCount == f.weekCount {
		f.mu.Unlock()
		return nil
	}
	f.weekCount = weekCount
	fetchable := len(f.centers) > 0 && len(f.services) > 0 && !f.disabled && f.autoFetch
	f.mu.Unlock()

	if fetchable {
		return f.fetch(ctx)
	}
	return nil
}

// SetDisabled toggles the feed. Disabling resets all output state.
func (f *AvailabilityFeed) SetDisabled(disabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled = disabled
	if disabled {
		f.resetLocked()
	}
}

// Refetch re-runs the fetch for the current selection, for explicit user
// actions like confirming a service selection
func (f *AvailabilityFeed) Refetch(ctx context.Context) error {
	f.mu.Lock()
	if f.disabled || len(f.centers) == 0 || len(f.services) == 0 {
		f.resetLocked()
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()
	return f.fetch(ctx)
}

// ClearCache clears the service-level slot cache, then the feed's own state
func (f *AvailabilityFeed) ClearCache() {
	f.slots.ClearCache()
	f.mu.Lock()
	f.resetLocked()
	f.mu.Unlock()
}

// State returns the current snapshot
func (f *AvailabilityFeed) State() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Subscribe returns a channel receiving state snapshots. Slow consumers miss
// intermediate snapshots instead of blocking the feed.
func (f *AvailabilityFeed) Subscribe() <-chan FeedState {
	ch := make(chan FeedState, 1)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch
}

// Close tears down subscriber channels
func (f *AvailabilityFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}

func (f *AvailabilityFeed) fetch(ctx context.Context) error {
	f.mu.Lock()
	if f.fetching {
		f.mu.Unlock()
		return nil
	}
	f.fetching = true
	centers := f.centers
	services := f.services
	weekCount := f.weekCount
	f.state.Loading = true
	f.state.Err = ""
	f.publishLocked()
	f.mu.Unlock()

	result, err := f.slots.FetchSlots(ctx, centers, services, weekCount, time.Time{})

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetching = false
	f.state.Loading = false

	if err != nil {
		// never show stale data next to an error banner
		f.state = emptyState()
		f.state.Err = err.Error()
		f.publishLocked()
		f.logger.Error().Err(err).Msg("slot fetch failed")
		return err
	}

	if result == nil {
		f.state = emptyState()
		f.state.LastFetched = time.Now()
		f.publishLocked()
		return nil
	}

	f.state = FeedState{
		AvailableSlots: result.AvailableSlots,
		BookingMap:     result.BookingMap,
		Metadata:       &result.Metadata,
		LastFetched:    time.Now(),
	}
	f.publishLocked()
	return nil
}

func (f *AvailabilityFeed) resetLocked() {
	f.state = emptyState()
	f.publishLocked()
}

func (f *AvailabilityFeed) publishLocked() {
	for _, ch := range f.subs {
		select {
		case ch <- f.state:
		default:
			// drop the stale snapshot and replace it with the current one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- f.state:
			default:
			}
		}
	}
}

func emptyState() FeedState {
	return FeedState{
		AvailableSlots: []entities.AvailableSlots{},
		BookingMap:     []entities.BookingMapEntry{},
	}
}

func deriveUnion(selection []SelectedService) (centers, services []string) {
	centerSet := make(map[string]struct{})
	serviceSet := make(map[string]struct{})
	for _, s := range selection {
		if s.ServiceID != "" {
			serviceSet[s.ServiceID] = struct{}{}
		}
		for _, c := range s.CenterIDs {
			if c != "" {
				centerSet[c] = struct{}{}
			}
		}
	}
	centers = make([]string, 0, len(centerSet))
	for c := range centerSet {
		centers = append(centers, c)
	}
	services = make([]string, 0, len(serviceSet))
	for s := range serviceSet {
		services = append(services, s)
	}
	sort.Strings(centers)
	sort.Strings(services)
	return centers, services
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
