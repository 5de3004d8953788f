package entities

import "time"

// Provider is a center that can serve an at-home appointment for a zip code
type Provider struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ZipCode  string `json:"zip_code,omitempty"`
	Address  string `json:"address,omitempty"`
	Priority int    `json:"priority"`
}

// ServiceCategory groups bookable services as listed by the middleware
type ServiceCategory struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Services []Service `json:"services"`
}

// Service is a bookable treatment. CenterIDs are the centers eligible to
// perform it; the union across selected services drives slot fetching.
type Service struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	CategoryID      string   `json:"category_id"`
	DurationMinutes int      `json:"duration_minutes"`
	Price           float64  `json:"price"`
	Currency        string   `json:"currency"`
	CenterIDs       []string `json:"center_ids"`
}

// Guest identifies the person the booking is for
type Guest struct {
	ID          string `json:"id,omitempty"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CenterID    string `json:"center_id"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// Reservation holds a slot for a guest while contact details are completed
type Reservation struct {
	ReservationID string     `json:"reservation_id"`
	BookingID     string     `json:"booking_id"`
	CenterID      string     `json:"center_id"`
	ServiceIDs    []string   `json:"service_ids"`
	Date          string     `json:"date"`
	Time          string     `json:"time"`
	GuestID       string     `json:"guest_id"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// BookingConfirmation is the terminal result of the wizard
type BookingConfirmation struct {
	BookingID          string    `json:"booking_id"`
	ConfirmationNumber string    `json:"confirmation_number"`
	Status             string    `json:"status"`
	ConfirmedAt        time.Time `json:"confirmed_at"`
}
