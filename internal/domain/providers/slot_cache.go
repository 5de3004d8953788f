package providers

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cache entry kinds. The kind is part of the structured key so invalidation
// can target slot data without touching booking lookups and vice versa.
const (
	KindSlots   = "slots"
	KindUnified = "unified"
	KindBooking = "booking"
)

// CacheKey is the structured identity of a cached value. Centers and services
// are kept sorted so two selections with the same members produce the same
// key, and invalidation matches on the fields themselves rather than on a
// delimited string.
type CacheKey struct {
	Kind     string
	Centers  []string
	Services []string
	Weeks    int
	Anchor   time.Time
}

// NewSlotsKey builds the key for a transformed slot-availability result
func NewSlotsKey(centers, services []string, weeks int, anchor time.Time) CacheKey {
	return CacheKey{
		Kind:     KindSlots,
		Centers:  sortedCopy(centers),
		Services: sortedCopy(services),
		Weeks:    weeks,
		Anchor:   anchor,
	}
}

// NewUnifiedKey builds the key for a raw unified middleware response
func NewUnifiedKey(centers, services []string, weeks int, anchor time.Time) CacheKey {
	k := NewSlotsKey(centers, services, weeks, anchor)
	k.Kind = KindUnified
	return k
}

// NewBookingKey builds the key for a booking-support lookup (providers by
// zip, categories by centers, and similar short-lived data)
func NewBookingKey(centers, services []string) CacheKey {
	return CacheKey{
		Kind:     KindBooking,
		Centers:  sortedCopy(centers),
		Services: sortedCopy(services),
	}
}

// String returns the canonical map-lookup form of the key. It is never parsed
// back; all matching is done on the struct fields.
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(k.Kind)
	b.WriteString("|c=")
	b.WriteString(strings.Join(k.Centers, ","))
	b.WriteString("|s=")
	b.WriteString(strings.Join(k.Services, ","))
	if k.Weeks > 0 {
		b.WriteString("|w=")
		b.WriteString(strconv.Itoa(k.Weeks))
	}
	if !k.Anchor.IsZero() {
		b.WriteString("|a=")
		b.WriteString(k.Anchor.Format("2006-01-02"))
	}
	return b.String()
}

// HasCenter reports whether the key's center set contains id
func (k CacheKey) HasCenter(id string) bool {
	return contains(k.Centers, id)
}

// HasService reports whether the key's service set contains id
func (k CacheKey) HasService(id string) bool {
	return contains(k.Services, id)
}

// DateRange returns the calendar range the keyed value covers. ok is false
// for keys with no anchor (booking lookups).
func (k CacheKey) DateRange() (start, end time.Time, ok bool) {
	if k.Anchor.IsZero() || k.Weeks <= 0 {
		return time.Time{}, time.Time{}, false
	}
	return k.Anchor, k.Anchor.AddDate(0, 0, k.Weeks*7-1), true
}

// SlotCache is the TTL cache plus in-flight request registry the application
// services depend on. None of the cache operations can fail; absence is
// reported through the bool return.
type SlotCache interface {
	// Get returns the unexpired value for key, if any. Expired entries are
	// dropped on read and never returned.
	Get(key CacheKey) (any, bool)

	// Set stores value under key with an explicit TTL
	Set(key CacheKey, value any, ttl time.Duration)

	// SetSlotData stores value with the slot-data TTL (10 minutes)
	SetSlotData(key CacheKey, value any)

	// SetBookingData stores value with the booking-data TTL (2 minutes)
	SetBookingData(key CacheKey, value any)

	// SetUnifiedData stores value with the unified-response TTL (15 minutes)
	SetUnifiedData(key CacheKey, value any)

	// Do runs fn under the in-flight registry: at most one execution per key
	// is outstanding, concurrent callers share the same result or the same
	// error. shared reports whether the result was produced by another caller.
	Do(ctx context.Context, key CacheKey, fn func() (any, error)) (v any, err error, shared bool)

	// ClearSlots drops slot and unified entries whose key touches any of the
	// given centers or services; with both empty it drops all of them.
	ClearSlots(centers, services []string)

	// ClearBooking drops booking entries touching centerID or serviceID;
	// empty arguments drop all booking entries.
	ClearBooking(centerID, serviceID string)

	// InvalidateDateRange drops dated entries whose covered range overlaps
	// [start, end]
	InvalidateDateRange(start, end time.Time)

	// ClearPastWeeks drops dated entries that lie entirely before the current week
	ClearPastWeeks()

	// ClearExpired drops expired entries and stale in-flight markers
	ClearExpired()

	// Clear drops everything
	Clear()

	// Shutdown stops the background sweep timers
	Shutdown()
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
