package entities

import "time"

// UnifiedSlotsResponse is the envelope returned by the middleware's unified
// slots endpoint. Success=false or a missing Data block means "nothing to
// show", not a transport failure.
type UnifiedSlotsResponse struct {
	Success bool              `json:"success"`
	Data    *UnifiedSlotsData `json:"data"`
	Message string            `json:"message,omitempty"`
}

// UnifiedSlotsData is the availability payload, keyed by calendar date
type UnifiedSlotsData struct {
	DateAvailability map[string]DateAvailability `json:"date_availability"`
	AvailableDates   []string                    `json:"available_dates"`
	Centers          []string                    `json:"centers"`
	Services         []string                    `json:"services"`
	ProcessingTimeMS int                         `json:"processing_time_ms"`
	FutureDaysCount  *int                        `json:"future_days_count,omitempty"`
	WeekInfo         *WeekWindow                 `json:"week_info,omitempty"`
	Mode             string                      `json:"mode,omitempty"`
}

// WeekWindow reports which week range the middleware actually covered
type WeekWindow struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Weeks     int    `json:"weeks"`
}

// DateAvailability is the per-date record as delivered by the middleware
type DateAvailability struct {
	HasSlots                bool                 `json:"has_slots"`
	CentersWithAvailability int                  `json:"centers_with_availability"`
	TotalAvailableSlots     int                  `json:"total_available_slots"`
	CenterIDs               []string             `json:"center_ids"`
	Centers                 []CenterAvailability `json:"centers"`
}

// CenterAvailability describes one center's openings on a date. Priority is a
// total order over centers, lower is preferred when several can serve a slot.
type CenterAvailability struct {
	ID           string       `json:"id"`
	BookingCount int          `json:"booking_count"`
	HourlySlots  []HourlySlot `json:"hourly_slots"`
	Slots        []RawSlot    `json:"slots"`
	BookingID    string       `json:"booking_id"`
	Priority     int          `json:"priority"`
}

// HourlySlot is an hour-level aggregate of openings
type HourlySlot struct {
	Time      string `json:"time"`
	SlotCount int    `json:"slot_count"`
}

// RawSlot is a single bookable time as delivered by the middleware
type RawSlot struct {
	Time string `json:"time"`
}

// CalendarSlot is one calendar-displayable opening after transformation.
// SlotCount is 1 for per-slot entries and the aggregate count for entries
// derived from hourly data.
type CalendarSlot struct {
	Time      string `json:"time"`
	CenterID  string `json:"center_id"`
	BookingID string `json:"booking_id"`
	Priority  int    `json:"priority"`
	SlotCount int    `json:"slot_count"`
}

// AvailableSlots is the transformed, calendar-friendly record for one date
type AvailableSlots struct {
	Date                string               `json:"date"`
	HasSlots            bool                 `json:"has_slots"`
	SlotsCount          int                  `json:"slots_count"`
	TotalAvailableSlots int                  `json:"total_available_slots"`
	Slots               []CalendarSlot       `json:"slots"`
	Centers             []CenterAvailability `json:"centers"`
}

// BookingMapEntry is the flattened (date, center) join used to resolve which
// center and booking a date+time selection maps to
type BookingMapEntry struct {
	Date       string `json:"date"`
	CenterID   string `json:"center_id"`
	BookingID  string `json:"booking_id"`
	Priority   int    `json:"priority"`
	TotalSlots int    `json:"total_slots"`
}

// SlotsMetadata carries response metadata alongside the transformed slots
type SlotsMetadata struct {
	Centers          []string    `json:"centers"`
	Services         []string    `json:"services"`
	AvailableDates   []string    `json:"available_dates"`
	ProcessingTimeMS int         `json:"processing_time_ms"`
	Mode             string      `json:"mode,omitempty"`
	WeekInfo         *WeekWindow `json:"week_info,omitempty"`
	FetchedAt        time.Time   `json:"fetched_at"`
}

// SlotsResult is the transformed output consumed by the calendar layer
type SlotsResult struct {
	AvailableSlots []AvailableSlots  `json:"available_slots"`
	BookingMap     []BookingMapEntry `json:"booking_map"`
	Metadata       SlotsMetadata     `json:"metadata"`
}
