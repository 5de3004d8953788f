// Package bookingapi is the HTTP client for the booking middleware. It covers
// the unified slot-availability endpoint plus the wizard collaborator
// endpoints (provider lookup, categories, guests, reservation, confirmation).
// Resiliency (retry, circuit breaking, caching) lives in the application
// services, not here.
package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/digihotshot/oah-booking/internal/domain/entities"
)

type Client interface {
	FetchUnifiedSlots(ctx context.Context, req UnifiedSlotsRequest) (*entities.UnifiedSlotsResponse, error)
	ProvidersByZip(ctx context.Context, zipCode string) ([]entities.Provider, error)
	CategoriesByCenters(ctx context.Context, centerIDs []string) ([]entities.ServiceCategory, error)
	SearchGuest(ctx context.Context, centerID, email, phone string) (*entities.Guest, error)
	CreateGuest(ctx context.Context, guest entities.Guest) (*entities.Guest, error)
	SelectProvider(ctx context.Context, req ProviderSelectionRequest) error
	ReserveSlot(ctx context.Context, req ReserveSlotRequest) (*entities.Reservation, error)
	ConfirmBooking(ctx context.Context, bookingID string, guestID string) (*entities.BookingConfirmation, error)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// UnifiedSlotsRequest is the body for the unified slots endpoint. StartDate is
// optional and formatted as YYYY-MM-DD when set.
type UnifiedSlotsRequest struct {
	Centers   []string `json:"centers"`
	Services  []string `json:"services"`
	Weeks     int      `json:"weeks"`
	StartDate string   `json:"start_date,omitempty"`
}

// ProviderSelectionRequest assigns the chosen center to a pending booking
type ProviderSelectionRequest struct {
	BookingID string `json:"booking_id"`
	CenterID  string `json:"center_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

// ReserveSlotRequest holds a date+time for a guest before confirmation
type ReserveSlotRequest struct {
	BookingID  string   `json:"booking_id"`
	CenterID   string   `json:"center_id"`
	ServiceIDs []string `json:"service_ids"`
	Date       string   `json:"date"`
	Time       string   `json:"time"`
	GuestID    string   `json:"guest_id"`
}

// envelope is the common {success, data, message} wrapper every middleware
// endpoint responds with
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

func NewClient(baseURL string, timeout time.Duration) *HTTPClient {
	trimmed := strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: trimmed,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) FetchUnifiedSlots(ctx context.Context, req UnifiedSlotsRequest) (*entities.UnifiedSlotsResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	// the full envelope is returned as-is: success=false is "no data", which
	// the transformer turns into nil rather than an error
	out := &entities.UnifiedSlotsResponse{}
	endpoint := fmt.Sprintf("%s/slots/unified", c.baseURL)
	if err := c.doJSON(ctx, http.MethodPost, endpoint, bytes.NewReader(body), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ProvidersByZip(ctx context.Context, zipCode string) ([]entities.Provider, error) {
	if strings.TrimSpace(zipCode) == "" {
		return nil, fmt.Errorf("zip code is required")
	}
	endpoint := fmt.Sprintf("%s/providers?zip_code=%s", c.baseURL, url.QueryEscape(zipCode))

	env, err := c.doEnvelope(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("provider lookup failed: %s", env.Message)
	}

	var providers []entities.Provider
	if err := json.Unmarshal(env.Data, &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

func (c *HTTPClient) CategoriesByCenters(ctx context.Context, centerIDs []string) ([]entities.ServiceCategory, error) {
	if len(centerIDs) == 0 {
		return nil, fmt.Errorf("at least one center id is required")
	}
	parsed, err := url.Parse(fmt.Sprintf("%s/categories", c.baseURL))
	if err != nil {
		return nil, err
	}
	query := parsed.Query()
	query.Set("centers", strings.Join(centerIDs, ","))
	parsed.RawQuery = query.Encode()

	env, err := c.doEnvelope(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("category lookup failed: %s", env.Message)
	}

	var categories []entities.ServiceCategory
	if err := json.Unmarshal(env.Data, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// SearchGuest looks up an existing guest at a center by email or phone. A
// success=false response means "no such guest" and returns (nil, nil).
func (c *HTTPClient) SearchGuest(ctx context.Context, centerID, email, phone string) (*entities.Guest, error) {
	parsed, err := url.Parse(fmt.Sprintf("%s/guests/search", c.baseURL))
	if err != nil {
		return nil, err
	}
	query := parsed.Query()
	query.Set("center_id", centerID)
	if email != "" {
		query.Set("email", email)
	}
	if phone != "" {
		query.Set("phone", phone)
	}
	parsed.RawQuery = query.Encode()

	env, err := c.doEnvelope(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, err
	}
	if !env.Success || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}

	guest := &entities.Guest{}
	if err := json.Unmarshal(env.Data, guest); err != nil {
		return nil, err
	}
	return guest, nil
}

func (c *HTTPClient) CreateGuest(ctx context.Context, guest entities.Guest) (*entities.Guest, error) {
	body, err := json.Marshal(guest)
	if err != nil {
		return nil, err
	}

	env, err := c.doEnvelope(ctx, http.MethodPost, fmt.Sprintf("%s/guests", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("guest creation failed: %s", env.Message)
	}

	created := &entities.Guest{}
	if err := json.Unmarshal(env.Data, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *HTTPClient) SelectProvider(ctx context.Context, req ProviderSelectionRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	env, err := c.doEnvelope(ctx, http.MethodPost, fmt.Sprintf("%s/providers/select", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("provider selection failed: %s", env.Message)
	}
	return nil
}

func (c *HTTPClient) ReserveSlot(ctx context.Context, req ReserveSlotRequest) (*entities.Reservation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	env, err := c.doEnvelope(ctx, http.MethodPost, fmt.Sprintf("%s/slots/reserve", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("slot reservation failed: %s", env.Message)
	}

	reservation := &entities.Reservation{}
	if err := json.Unmarshal(env.Data, reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

func (c *HTTPClient) ConfirmBooking(ctx context.Context, bookingID string, guestID string) (*entities.BookingConfirmation, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, fmt.Errorf("booking id is required")
	}
	payload := map[string]string{"guest_id": guestID}
	body, _ := json.Marshal(payload)

	endpoint := fmt.Sprintf("%s/bookings/%s/confirm", c.baseURL, url.PathEscape(bookingID))
	env, err := c.doEnvelope(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("booking confirmation failed: %s", env.Message)
	}

	confirmation := &entities.BookingConfirmation{}
	if err := json.Unmarshal(env.Data, confirmation); err != nil {
		return nil, err
	}
	return confirmation, nil
}

func (c *HTTPClient) doEnvelope(ctx context.Context, method, endpoint string, body io.Reader) (*envelope, error) {
	out := &envelope{}
	if err := c.doJSON(ctx, method, endpoint, body, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, body io.Reader, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("booking api returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}

	return nil
}
