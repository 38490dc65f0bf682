package models

import "time"

// Reservation statuses. A reservation enters the system as pending and
// is moderated into confirmed or cancelled by an admin.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

type Reservation struct {
	ID        int64     `json:"id" db:"id"`
	Date      time.Time `json:"date" db:"date"`
	StartTime time.Time `json:"start_time" db:"start_time"`
	EndTime   time.Time `json:"end_time" db:"end_time"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	Guests    int       `json:"guests" db:"guests"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Requester is the user identity joined onto a reservation for the
// admin moderation view.
type Requester struct {
	Name  *string `json:"name"`
	Email string  `json:"email"`
}

// AdminReservation is a reservation with its requester attached when a
// users row matches the reservation's contact email. Requester is nil
// when no user matches.
type AdminReservation struct {
	Reservation
	Requester *Requester `json:"user"`
}
