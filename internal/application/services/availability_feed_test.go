package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digihotshot/oah-booking/internal/application/services"
	"github.com/digihotshot/oah-booking/internal/infrastructure/clients/bookingapi"
)

func newFeedFixture(t *testing.T, handler http.HandlerFunc) (*services.AvailabilityFeed, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	slots := services.NewSlotsService(
		bookingapi.NewClient(server.URL, time.Second),
		newSlotCache(t),
		services.BreakerSettings{},
		services.WithRetryConfig(fastRetry()),
	)
	feed := services.NewAvailabilityFeed(slots, 2)
	t.Cleanup(feed.Close)
	return feed, &calls
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(availabilityResponse())
}

func selection() []services.SelectedService {
	return []services.SelectedService{
		{ServiceID: "svc1", CenterIDs: []string{"centerA"}},
	}
}

func TestFeed_FetchesOnSelectionChange(t *testing.T) {
	feed, calls := newFeedFixture(t, okHandler)

	require.NoError(t, feed.SetSelection(context.Background(), selection()))

	state := feed.State()
	assert.False(t, state.Loading)
	assert.Empty(t, state.Err)
	require.Len(t, state.AvailableSlots, 1)
	require.Len(t, state.BookingMap, 1)
	require.NotNil(t, state.Metadata)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	// same selection again: derived sets unchanged, no second fetch
	require.NoError(t, feed.SetSelection(context.Background(), selection()))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestFeed_EmptySelectionResetsWithoutNetwork(t *testing.T) {
	feed, calls := newFeedFixture(t, okHandler)

	require.NoError(t, feed.SetSelection(context.Background(), nil))
	state := feed.State()
	assert.Empty(t, state.AvailableSlots)
	assert.Empty(t, state.Err)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))

	// services without centers are just as empty a selection
	require.NoError(t, feed.SetSelection(context.Background(), []services.SelectedService{{ServiceID: "svc1"}}))
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestFeed_DisabledNeverFetches(t *testing.T) {
	feed, calls := newFeedFixture(t, okHandler)
	feed.SetDisabled(true)

	require.NoError(t, feed.SetSelection(context.Background(), selection()))
	require.NoError(t, feed.Refetch(context.Background()))

	state := feed.State()
	assert.Empty(t, state.AvailableSlots)
	assert.Empty(t, state.BookingMap)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestFeed_DisablingResetsState(t *testing.T) {
	feed, _ := newFeedFixture(t, okHandler)

	require.NoError(t, feed.SetSelection(context.Background(), selection()))
	require.NotEmpty(t, feed.State().AvailableSlots)

	feed.SetDisabled(true)
	state := feed.State()
	assert.Empty(t, state.AvailableSlots)
	assert.Nil(t, state.Metadata)
}

func TestFeed_AutoFetchOffRequiresRefetch(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		okHandler(w, r)
	}))
	t.Cleanup(server.Close)

	slots := services.NewSlotsService(
		bookingapi.NewClient(server.URL, time.Second),
		newSlotCache(t),
		services.BreakerSettings{},
		services.WithRetryConfig(fastRetry()),
	)
	feed := services.NewAvailabilityFeed(slots, 2, services.WithAutoFetch(false))
	t.Cleanup(feed.Close)

	require.NoError(t, feed.SetSelection(context.Background(), selection()))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	require.NoError(t, feed.Refetch(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.NotEmpty(t, feed.State().AvailableSlots)
}

func TestFeed_WeekChangeTriggersFetch(t *testing.T) {
	feed, calls := newFeedFixture(t, okHandler)

	require.NoError(t, feed.SetSelection(context.Background(), selection()))
	require.Equal(t, int32(1), atomic.LoadInt32(calls))

	require.NoError(t, feed.SetWeeks(context.Background(), 3))
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))

	// unchanged week count is a no-op
	require.NoError(t, feed.SetWeeks(context.Background(), 3))
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestFeed_ErrorStateResetsData(t *testing.T) {
	var fail atomic.Bool
	feed, _ := newFeedFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		okHandler(w, r)
	})

	require.NoError(t, feed.SetSelection(context.Background(), selection()))
	require.NotEmpty(t, feed.State().AvailableSlots)

	fail.Store(true)
	err := feed.Refetch(context.Background())
	require.Error(t, err)

	state := feed.State()
	assert.NotEmpty(t, state.Err)
	assert.Empty(t, state.AvailableSlots, "error state must not show stale slots")
	assert.Empty(t, state.BookingMap)
	assert.Nil(t, state.Metadata)
	assert.False(t, state.Loading)
}

func TestFeed_ErrorDistinctFromEmptyAvailability(t *testing.T) {
	feed, _ := newFeedFixture(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "no availability"})
	})

	require.NoError(t, feed.SetSelection(context.Background(), selection()))

	state := feed.State()
	assert.Empty(t, state.AvailableSlots)
	assert.Empty(t, state.Err, "empty availability is not an error state")
	assert.False(t, state.LastFetched.IsZero())
}

func TestFeed_ClearCacheForcesNetworkOnNextFetch(t *testing.T) {
	feed, calls := newFeedFixture(t, okHandler)

	require.NoError(t, feed.SetSelection(context.Background(), selection()))
	require.Equal(t, int32(1), atomic.LoadInt32(calls))

	feed.ClearCache()
	assert.Empty(t, feed.State().AvailableSlots)

	require.NoError(t, feed.Refetch(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(calls), "cleared cache means a fresh network call")
}

func TestFeed_SubscribersReceiveSnapshots(t *testing.T) {
	feed, _ := newFeedFixture(t, okHandler)
	ch := feed.Subscribe()

	require.NoError(t, feed.SetSelection(context.Background(), selection()))

	// the channel holds the most recent snapshot
	var last services.FeedState
	for {
		select {
		case s := <-ch:
			last = s
			if len(s.AvailableSlots) > 0 {
				assert.False(t, s.Loading)
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("no terminal snapshot received, last: %+v", last)
		}
	}
}
