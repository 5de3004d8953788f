package bookingapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digihotshot/oah-booking/internal/domain/entities"
	"github.com/digihotshot/oah-booking/internal/infrastructure/clients/bookingapi"
)

func TestFetchUnifiedSlots_PostsRequestBody(t *testing.T) {
	var gotPath string
	var gotBody bookingapi.UnifiedSlotsRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(entities.UnifiedSlotsResponse{
			Success: true,
			Data: &entities.UnifiedSlotsData{
				DateAvailability: map[string]entities.DateAvailability{},
				Centers:          []string{"centerA"},
			},
		})
	}))
	defer server.Close()

	client := bookingapi.NewClient(server.URL, time.Second)
	resp, err := client.FetchUnifiedSlots(context.Background(), bookingapi.UnifiedSlotsRequest{
		Centers:   []string{"centerA"},
		Services:  []string{"svc1"},
		Weeks:     4,
		StartDate: "2024-01-08",
	})

	require.NoError(t, err)
	assert.Equal(t, "/slots/unified", gotPath)
	assert.Equal(t, []string{"centerA"}, gotBody.Centers)
	assert.Equal(t, 4, gotBody.Weeks)
	assert.Equal(t, "2024-01-08", gotBody.StartDate)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"centerA"}, resp.Data.Centers)
}

func TestFetchUnifiedSlots_SuccessFalsePassedThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(entities.UnifiedSlotsResponse{Success: false, Message: "no availability"})
	}))
	defer server.Close()

	client := bookingapi.NewClient(server.URL, time.Second)
	resp, err := client.FetchUnifiedSlots(context.Background(), bookingapi.UnifiedSlotsRequest{Weeks: 1})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	assert.Equal(t, "no availability", resp.Message)
}

func TestDoJSON_NonSuccessStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := bookingapi.NewClient(server.URL, time.Second)
	_, err := client.FetchUnifiedSlots(context.Background(), bookingapi.UnifiedSlotsRequest{Weeks: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestProvidersByZip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/providers", r.URL.Path)
		assert.Equal(t, "94110", r.URL.Query().Get("zip_code"))
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []entities.Provider{
				{ID: "centerA", Name: "Mission District", Priority: 1},
			},
		})
	}))
	defer server.Close()

	client := bookingapi.NewClient(server.URL, time.Second)
	providers, err := client.ProvidersByZip(context.Background(), "94110")

	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "centerA", providers[0].ID)
}

func TestProvidersByZip_RequiresZip(t *testing.T) {
	client := bookingapi.NewClient("http://unused", time.Second)
	_, err := client.ProvidersByZip(context.Background(), "  ")
	assert.Error(t, err)
}

func TestCategoriesByCenters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "centerA,centerB", r.URL.Query().Get("centers"))
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []entities.ServiceCategory{
				{ID: "cat1", Name: "Facials", Services: []entities.Service{{ID: "svc1", CenterIDs: []string{"centerA"}}}},
			},
		})
	}))
	defer server.Close()

	client := bookingapi.NewClient(server.URL, time.Second)
	categories, err := client.CategoriesByCenters(context.Background(), []string{"centerA", "centerB"})

	require.NoError(t, err)
	require.Len(t, categories, 1)
	require.Len(t, categories[0].Services, 1)
	assert.Equal(t, "svc1", categories[0].Services[0].ID)
}

func TestSearchGuest_NotFoundIsNilNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "guest not found"})
	}))
	defer server.Close()

	client := bookingapi.NewClient(server.URL, time.Second)
	guest, err := client.SearchGuest(context.Background(), "centerA", "ada@example.com", "")

	require.NoError(t, err)
	assert.Nil(t, guest)
}

func TestCreateGuest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got entities.Guest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		got.ID = "guest-1"
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": got})
	}))
	defer server.Close()

	client := bookingapi.NewClient(server.URL, time.Second)
	created, err := client.CreateGuest(context.Background(), entities.Guest{
		FirstName: "Ada",
		Email:     "ada@example.com",
		CenterID:  "centerA",
	})

	require.NoError(t, err)
	assert.Equal(t, "guest-1", created.ID)
	assert.Equal(t, "Ada", created.FirstName)
}

func TestReserveSlot_FailureSurfacesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "slot already taken"})
	}))
	defer server.Close()

	client := bookingapi.NewClient(server.URL, time.Second)
	_, err := client.ReserveSlot(context.Background(), bookingapi.ReserveSlotRequest{BookingID: "b1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "slot already taken")
}

func TestConfirmBooking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bookings/b1/confirm", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": entities.BookingConfirmation{
				BookingID:          "b1",
				ConfirmationNumber: "CONF-42",
				Status:             "confirmed",
			},
		})
	}))
	defer server.Close()

	client := bookingapi.NewClient(server.URL, time.Second)
	confirmation, err := client.ConfirmBooking(context.Background(), "b1", "guest-1")

	require.NoError(t, err)
	assert.Equal(t, "CONF-42", confirmation.ConfirmationNumber)
}

func TestContextCancellationAbortsRequest(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := bookingapi.NewClient(server.URL, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.FetchUnifiedSlots(ctx, bookingapi.UnifiedSlotsRequest{Weeks: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
