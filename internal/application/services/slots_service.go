package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/digihotshot/oah-booking/internal/application/transform"
	"github.com/digihotshot/oah-booking/internal/domain/entities"
	"github.com/digihotshot/oah-booking/internal/domain/providers"
	"github.com/digihotshot/oah-booking/internal/infrastructure/clients/bookingapi"
	"github.com/digihotshot/oah-booking/internal/infrastructure/observability"
	apperrors "github.com/digihotshot/oah-booking/pkg/errors"
	"github.com/digihotshot/oah-booking/pkg/retry"
	"github.com/digihotshot/oah-booking/pkg/weeks"
)

// SlotsService is the single source of truth for fetching consolidated slot
// availability from the booking middleware. Results are cached, concurrent
// fetches for the same selection share one network call, failed calls are
// retried on a fixed schedule, and sustained failure opens a circuit breaker.
type SlotsService struct {
	client   bookingapi.Client
	cache    providers.SlotCache
	retryCfg retry.Config
	breaker  *gobreaker.CircuitBreaker
	logger   zerolog.Logger
	now      func() time.Time
}

// SlotsOption customizes a SlotsService
type SlotsOption func(*SlotsService)

// WithSlotsClock replaces the wall clock used for week anchoring and metadata
func WithSlotsClock(now func() time.Time) SlotsOption {
	return func(s *SlotsService) {
		s.now = now
	}
}

// WithRetryConfig replaces the retry schedule
func WithRetryConfig(cfg retry.Config) SlotsOption {
	return func(s *SlotsService) {
		s.retryCfg = cfg
	}
}

// BreakerSettings configures the slot-fetch circuit breaker
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failed fetches that opens
	// the circuit
	FailureThreshold int
	// OpenWindow is how long the circuit stays open before a probe is allowed
	OpenWindow time.Duration
}

// NewSlotsService creates a slots service around the middleware client and
// cache
func NewSlotsService(client bookingapi.Client, cache providers.SlotCache, breakerCfg BreakerSettings, opts ...SlotsOption) *SlotsService {
	logger := log.With().Str("component", "slots_service").Logger()

	threshold := uint32(breakerCfg.FailureThreshold)
	if threshold == 0 {
		threshold = 5
	}
	window := breakerCfg.OpenWindow
	if window <= 0 {
		window = 30 * time.Second
	}

	s := &SlotsService{
		client:   client,
		cache:    cache,
		retryCfg: retry.SlotFetchConfig(),
		logger:   logger,
		now:      time.Now,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "unified-slots",
		MaxRequests: 1,
		Timeout:     window,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchSlots returns transformed slot availability for the given selection.
// startDate is optional: the zero value anchors at the current week. A nil
// result with a nil error means the middleware reported no availability.
func (s *SlotsService) FetchSlots(ctx context.Context, centers, services []string, weekCount int, startDate time.Time) (*entities.SlotsResult, error) {
	if len(centers) == 0 || len(services) == 0 {
		return nil, apperrors.NewValidationError("centers and services must not be empty")
	}

	weekCount = weeks.ValidateWeekConfig(weekCount)
	anchorFrom := startDate
	if anchorFrom.IsZero() {
		anchorFrom = s.now()
	}
	anchor := weeks.StartOfWeek(anchorFrom)

	logger := observability.LoggerFromContext(ctx)

	key := providers.NewSlotsKey(centers, services, weekCount, anchor)
	if v, ok := s.cache.Get(key); ok {
		logger.Debug().Str("key", key.String()).Msg("slot cache hit")
		return v.(*entities.SlotsResult), nil
	}

	v, err, shared := s.cache.Do(ctx, key, func() (any, error) {
		return s.fetchAndTransform(ctx, key, centers, services, weekCount, anchor)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug().Str("key", key.String()).Msg("joined in-flight slot fetch")
	}

	result, _ := v.(*entities.SlotsResult)
	return result, nil
}

// FetchSlotsForRange fetches enough whole weeks to cover [start, end]
func (s *SlotsService) FetchSlotsForRange(ctx context.Context, centers, services []string, start, end time.Time) (*entities.SlotsResult, error) {
	return s.FetchSlots(ctx, centers, services, weeks.WeeksForRange(start, end), start)
}

// ClearCache drops all cached slot data
func (s *SlotsService) ClearCache() {
	s.cache.ClearSlots(nil, nil)
}

// InvalidateCenters drops cached slot data touching any of the given centers
func (s *SlotsService) InvalidateCenters(centers []string) {
	s.cache.ClearSlots(centers, nil)
}

// BreakerState exposes the circuit breaker state
func (s *SlotsService) BreakerState() gobreaker.State {
	return s.breaker.State()
}

func (s *SlotsService) fetchAndTransform(ctx context.Context, key providers.CacheKey, centers, services []string, weekCount int, anchor time.Time) (any, error) {
	unifiedKey := providers.NewUnifiedKey(centers, services, weekCount, anchor)

	// a raw unified response may outlive the transformed entry (15m vs 10m TTL);
	// re-transforming it avoids a network round trip
	var resp *entities.UnifiedSlotsResponse
	if v, ok := s.cache.Get(unifiedKey); ok {
		resp = v.(*entities.UnifiedSlotsResponse)
	} else {
		fetched, err := s.fetchUnified(ctx, centers, services, weekCount, anchor)
		if err != nil {
			return nil, err
		}
		resp = fetched
		// only successful envelopes are worth keeping for 15m; an empty
		// response must not mask openings that appear a moment later
		if resp.Success && resp.Data != nil {
			s.cache.SetUnifiedData(unifiedKey, resp)
		}
	}

	result := transform.UnifiedSlots(resp, transform.Options{Now: s.now()})
	if result == nil {
		// "no availability" is data, not an error; it is not cached as slot
		// data so a later fetch can pick up fresh openings sooner
		s.logger.Info().Str("key", key.String()).Str("message", resp.Message).Msg("middleware reported no slot data")
		return (*entities.SlotsResult)(nil), nil
	}

	s.cache.SetSlotData(key, result)
	return result, nil
}

func (s *SlotsService) fetchUnified(ctx context.Context, centers, services []string, weekCount int, anchor time.Time) (*entities.UnifiedSlotsResponse, error) {
	req := bookingapi.UnifiedSlotsRequest{
		Centers:   centers,
		Services:  services,
		Weeks:     weekCount,
		StartDate: anchor.Format(weeks.DateFormat),
	}

	// the breaker wraps the whole retried call: one exhausted retry budget is
	// one consecutive failure
	v, err := s.breaker.Execute(func() (interface{}, error) {
		var resp *entities.UnifiedSlotsResponse
		retryErr := retry.DoWithLog(ctx, s.retryCfg, "unified-slots", func() error {
			fetched, fetchErr := s.client.FetchUnifiedSlots(ctx, req)
			if fetchErr != nil {
				return fetchErr
			}
			resp = fetched
			return nil
		}, func(attempt int, attemptErr error, nextDelay time.Duration) {
			s.logger.Warn().
				Int("attempt", attempt).
				Dur("next_delay", nextDelay).
				Err(attemptErr).
				Msg("slot fetch attempt failed, retrying")
		})
		if retryErr != nil {
			return nil, retryErr
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.NewCircuitOpenError("circuit breaker open: slot fetches suspended")
		}
		return nil, apperrors.NewExternalError("unified slot fetch failed", err)
	}
	return v.(*entities.UnifiedSlotsResponse), nil
}
