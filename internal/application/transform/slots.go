// Package transform reshapes the middleware's unified availability response
// into the flat, calendar-friendly form the booking wizard consumes. All
// functions are pure.
package transform

import (
	"sort"
	"time"

	"github.com/digihotshot/oah-booking/internal/domain/entities"
)

// Options adjusts the transformation output
type Options struct {
	// Now stamps Metadata.FetchedAt; the zero value means time.Now()
	Now time.Time

	// IncludeEmptyDates keeps dates that resolve to zero calendar slots
	IncludeEmptyDates bool
}

// UnifiedSlots flattens a unified availability response into per-date calendar
// rows and a (date, center) booking map. A response with Success=false or no
// Data block signals "nothing to show" and yields nil, not an error.
func UnifiedSlots(resp *entities.UnifiedSlotsResponse, opts Options) *entities.SlotsResult {
	if resp == nil || !resp.Success || resp.Data == nil {
		return nil
	}

	fetchedAt := opts.Now
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	data := resp.Data

	// map iteration order is random; date keys are sorted so output is stable
	dates := make([]string, 0, len(data.DateAvailability))
	for date := range data.DateAvailability {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	available := make([]entities.AvailableSlots, 0, len(dates))
	bookingMap := make([]entities.BookingMapEntry, 0, len(dates))

	for _, date := range dates {
		day := data.DateAvailability[date]
		slots := flattenDay(day)

		for _, center := range day.Centers {
			bookingMap = append(bookingMap, entities.BookingMapEntry{
				Date:       date,
				CenterID:   center.ID,
				BookingID:  center.BookingID,
				Priority:   center.Priority,
				TotalSlots: centerSlotTotal(center),
			})
		}

		if len(slots) == 0 && !opts.IncludeEmptyDates {
			continue
		}
		available = append(available, entities.AvailableSlots{
			Date:                date,
			HasSlots:            len(slots) > 0,
			SlotsCount:          len(slots),
			TotalAvailableSlots: day.TotalAvailableSlots,
			Slots:               slots,
			Centers:             day.Centers,
		})
	}

	sort.SliceStable(bookingMap, func(i, j int) bool {
		if bookingMap[i].Date != bookingMap[j].Date {
			return bookingMap[i].Date < bookingMap[j].Date
		}
		return bookingMap[i].Priority < bookingMap[j].Priority
	})

	return &entities.SlotsResult{
		AvailableSlots: available,
		BookingMap:     bookingMap,
		Metadata: entities.SlotsMetadata{
			Centers:          data.Centers,
			Services:         data.Services,
			AvailableDates:   data.AvailableDates,
			ProcessingTimeMS: data.ProcessingTimeMS,
			Mode:             data.Mode,
			WeekInfo:         data.WeekInfo,
			FetchedAt:        fetchedAt,
		},
	}
}

// flattenDay concatenates every center's openings into one calendar sequence.
// Per-slot entries come first, hourly aggregates after, so slot-level
// granularity wins when both are present.
func flattenDay(day entities.DateAvailability) []entities.CalendarSlot {
	slots := make([]entities.CalendarSlot, 0, len(day.Centers))

	for _, center := range day.Centers {
		for _, s := range center.Slots {
			slots = append(slots, entities.CalendarSlot{
				Time:      s.Time,
				CenterID:  center.ID,
				BookingID: center.BookingID,
				Priority:  center.Priority,
				SlotCount: 1,
			})
		}
	}
	for _, center := range day.Centers {
		for _, h := range center.HourlySlots {
			slots = append(slots, entities.CalendarSlot{
				Time:      h.Time,
				CenterID:  center.ID,
				BookingID: center.BookingID,
				Priority:  center.Priority,
				SlotCount: h.SlotCount,
			})
		}
	}
	return slots
}

func centerSlotTotal(center entities.CenterAvailability) int {
	total := len(center.Slots)
	for _, h := range center.HourlySlots {
		total += h.SlotCount
	}
	return total
}
