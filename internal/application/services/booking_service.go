package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/digihotshot/oah-booking/internal/domain/entities"
	"github.com/digihotshot/oah-booking/internal/domain/providers"
	"github.com/digihotshot/oah-booking/internal/infrastructure/clients/bookingapi"
	apperrors "github.com/digihotshot/oah-booking/pkg/errors"
	"github.com/digihotshot/oah-booking/pkg/retry"
)

// BookingService drives the wizard's collaborator calls against the booking
// middleware: provider lookup by zip, category listing, guest resolution,
// provider selection, slot reservation and final confirmation. Each call site
// retries on the same fixed-backoff schedule as the slot fetches; lookups are
// cached with the short booking TTL.
type BookingService struct {
	client   bookingapi.Client
	cache    providers.SlotCache
	retryCfg retry.Config
	logger   zerolog.Logger
}

// NewBookingService creates a booking service
func NewBookingService(client bookingapi.Client, cache providers.SlotCache, retryCfg retry.Config) *BookingService {
	return &BookingService{
		client:   client,
		cache:    cache,
		retryCfg: retryCfg,
		logger:   log.With().Str("component", "booking_service").Logger(),
	}
}

// ProvidersByZip returns the centers able to serve a zip code, cached for the
// booking TTL
func (s *BookingService) ProvidersByZip(ctx context.Context, zipCode string) ([]entities.Provider, error) {
	zipCode = strings.TrimSpace(zipCode)
	if zipCode == "" {
		return nil, apperrors.NewValidationError("zip code is required")
	}

	key := providers.NewBookingKey(nil, []string{"zip:" + zipCode})
	if v, ok := s.cache.Get(key); ok {
		return v.([]entities.Provider), nil
	}

	var result []entities.Provider
	err := retry.Do(ctx, s.retryCfg, func() error {
		fetched, fetchErr := s.client.ProvidersByZip(ctx, zipCode)
		if fetchErr != nil {
			return fetchErr
		}
		result = fetched
		return nil
	})
	if err != nil {
		return nil, apperrors.NewExternalError("provider lookup failed", err)
	}

	s.cache.SetBookingData(key, result)
	return result, nil
}

// CategoriesByCenters returns the service categories offered by the given
// centers, cached for the booking TTL
func (s *BookingService) CategoriesByCenters(ctx context.Context, centerIDs []string) ([]entities.ServiceCategory, error) {
	if len(centerIDs) == 0 {
		return nil, apperrors.NewValidationError("at least one center id is required")
	}

	key := providers.NewBookingKey(centerIDs, nil)
	if v, ok := s.cache.Get(key); ok {
		return v.([]entities.ServiceCategory), nil
	}

	var result []entities.ServiceCategory
	err := retry.Do(ctx, s.retryCfg, func() error {
		fetched, fetchErr := s.client.CategoriesByCenters(ctx, centerIDs)
		if fetchErr != nil {
			return fetchErr
		}
		result = fetched
		return nil
	})
	if err != nil {
		return nil, apperrors.NewExternalError("category lookup failed", err)
	}

	s.cache.SetBookingData(key, result)
	return result, nil
}

// FindOrCreateGuest resolves a guest by email/phone at a center, creating one
// when no match exists. New guests get a client-generated reference id.
func (s *BookingService) FindOrCreateGuest(ctx context.Context, guest entities.Guest) (*entities.Guest, error) {
	if guest.CenterID == "" {
		return nil, apperrors.NewValidationError("guest center id is required")
	}
	if guest.Email == "" && guest.Phone == "" {
		return nil, apperrors.NewValidationError("guest email or phone is required")
	}

	var found *entities.Guest
	err := retry.Do(ctx, s.retryCfg, func() error {
		g, searchErr := s.client.SearchGuest(ctx, guest.CenterID, guest.Email, guest.Phone)
		if searchErr != nil {
			return searchErr
		}
		found = g
		return nil
	})
	if err != nil {
		return nil, apperrors.NewExternalError("guest search failed", err)
	}
	if found != nil {
		return found, nil
	}

	guest.ReferenceID = uuid.New().String()
	var created *entities.Guest
	err = retry.Do(ctx, s.retryCfg, func() error {
		g, createErr := s.client.CreateGuest(ctx, guest)
		if createErr != nil {
			return createErr
		}
		created = g
		return nil
	})
	if err != nil {
		return nil, apperrors.NewExternalError("guest creation failed", err)
	}

	s.logger.Info().Str("guest_id", created.ID).Str("center_id", guest.CenterID).Msg("created guest")
	return created, nil
}

// ResolveBooking picks the booking-map entry for a chosen date, preferring
// the center with the lowest priority value. A nil return means no center can
// serve that date.
func (s *BookingService) ResolveBooking(result *entities.SlotsResult, date string) *entities.BookingMapEntry {
	if result == nil {
		return nil
	}

	var candidates []entities.BookingMapEntry
	for _, e := range result.BookingMap {
		if e.Date == date {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})
	return &candidates[0]
}

// SelectProvider assigns the chosen center to the pending booking and drops
// cached lookups for that center
func (s *BookingService) SelectProvider(ctx context.Context, req bookingapi.ProviderSelectionRequest) error {
	if req.BookingID == "" || req.CenterID == "" {
		return apperrors.NewValidationError("booking id and center id are required")
	}

	err := retry.Do(ctx, s.retryCfg, func() error {
		return s.client.SelectProvider(ctx, req)
	})
	if err != nil {
		return apperrors.NewExternalError("provider selection failed", err)
	}

	s.cache.ClearBooking(req.CenterID, "")
	return nil
}

// ReserveSlot holds the chosen date+time for the guest. The reservation
// invalidates cached slot data for the center since its availability changed.
func (s *BookingService) ReserveSlot(ctx context.Context, req bookingapi.ReserveSlotRequest) (*entities.Reservation, error) {
	if req.BookingID == "" || req.Date == "" || req.Time == "" {
		return nil, apperrors.NewValidationError("booking id, date and time are required")
	}

	var reservation *entities.Reservation
	err := retry.Do(ctx, s.retryCfg, func() error {
		r, reserveErr := s.client.ReserveSlot(ctx, req)
		if reserveErr != nil {
			return reserveErr
		}
		reservation = r
		return nil
	})
	if err != nil {
		return nil, apperrors.NewExternalError("slot reservation failed", err)
	}

	s.cache.ClearSlots([]string{req.CenterID}, nil)
	s.logger.Info().
		Str("booking_id", req.BookingID).
		Str("center_id", req.CenterID).
		Str("date", req.Date).
		Str("time", req.Time).
		Msg("reserved slot")
	return reservation, nil
}

// ConfirmBooking finalizes the wizard
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID, guestID string) (*entities.BookingConfirmation, error) {
	if bookingID == "" {
		return nil, apperrors.NewValidationError("booking id is required")
	}

	var confirmation *entities.BookingConfirmation
	err := retry.Do(ctx, s.retryCfg, func() error {
		c, confirmErr := s.client.ConfirmBooking(ctx, bookingID, guestID)
		if confirmErr != nil {
			return confirmErr
		}
		confirmation = c
		return nil
	})
	if err != nil {
		return nil, apperrors.NewExternalError("booking confirmation failed", err)
	}

	s.logger.Info().
		Str("booking_id", confirmation.BookingID).
		Str("confirmation_number", confirmation.ConfirmationNumber).
		Time("confirmed_at", confirmation.ConfirmedAt).
		Msg("booking confirmed")
	return confirmation, nil
}

// ReservationExpired reports whether a held slot has lapsed
func ReservationExpired(r *entities.Reservation, now time.Time) bool {
	return r != nil && r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}
