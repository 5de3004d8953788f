package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/digihotshot/oah-booking/internal/adapters/cache"
	"github.com/digihotshot/oah-booking/internal/application/services"
	"github.com/digihotshot/oah-booking/internal/infrastructure/clients/bookingapi"
	"github.com/digihotshot/oah-booking/internal/infrastructure/observability"
	"github.com/digihotshot/oah-booking/pkg/config"
	"github.com/digihotshot/oah-booking/pkg/retry"
)

func main() {
	var (
		centersFlag  = flag.String("centers", "", "comma-separated center ids")
		servicesFlag = flag.String("services", "", "comma-separated service ids")
		weeksFlag    = flag.Int("weeks", 0, "number of weeks to fetch (defaults from config)")
		watchFlag    = flag.Bool("watch", false, "keep running and print updates on refetch")
		zipFlag      = flag.String("zip", "", "look up providers for a zip code instead of fetching slots")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.App.ServiceName, cfg.App.Environment)
	logger := observability.GetLogger()

	client := bookingapi.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	slotCache := cache.NewMemoryAdapter(cfg.Cache)
	defer slotCache.Shutdown()

	retryCfg := retry.Config{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		InitialDelay:  cfg.Retry.InitialDelay,
		MaxDelay:      cfg.Retry.MaxDelay,
		BackoffFactor: 2.0,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *zipFlag != "" {
		booking := services.NewBookingService(client, slotCache, retryCfg)
		providers, err := booking.ProvidersByZip(ctx, *zipFlag)
		if err != nil {
			logger.Fatal().Err(err).Msg("provider lookup failed")
		}
		for _, p := range providers {
			fmt.Printf("%s\t%s\t(priority %d)\n", p.ID, p.Name, p.Priority)
		}
		return
	}

	centers := splitList(*centersFlag)
	serviceIDs := splitList(*servicesFlag)
	if len(centers) == 0 || len(serviceIDs) == 0 {
		fmt.Fprintln(os.Stderr, "both -centers and -services are required (or use -zip)")
		os.Exit(2)
	}

	weekCount := *weeksFlag
	if weekCount <= 0 {
		weekCount = cfg.Weeks.Default
	}

	slots := services.NewSlotsService(
		client,
		slotCache,
		services.BreakerSettings{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			OpenWindow:       cfg.Breaker.OpenWindow,
		},
		services.WithRetryConfig(retryCfg),
	)

	feed := services.NewAvailabilityFeed(slots, weekCount)
	defer feed.Close()

	selection := make([]services.SelectedService, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		selection = append(selection, services.SelectedService{ServiceID: id, CenterIDs: centers})
	}

	if err := feed.SetSelection(ctx, selection); err != nil {
		logger.Fatal().Err(err).Msg("slot fetch failed")
	}
	printState(feed.State())

	if !*watchFlag {
		return
	}

	updates := feed.Subscribe()
	ticker := time.NewTicker(cfg.Cache.SlotTTL)
	defer ticker.Stop()

	logger.Info().Dur("interval", cfg.Cache.SlotTTL).Msg("watching for availability changes")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := feed.Refetch(ctx); err != nil {
				logger.Warn().Err(err).Msg("refetch failed")
			}
		case state, ok := <-updates:
			if !ok {
				return
			}
			if !state.Loading {
				printState(state)
			}
		}
	}
}

func printState(state services.FeedState) {
	if state.Err != "" {
		fmt.Printf("error: %s\n", state.Err)
		return
	}
	if len(state.AvailableSlots) == 0 {
		fmt.Println("no availability")
		return
	}
	for _, day := range state.AvailableSlots {
		fmt.Printf("%s\t%d slots across %d centers\n", day.Date, day.SlotsCount, len(day.Centers))
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
