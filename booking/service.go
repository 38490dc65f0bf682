package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/jcondina/sum-reservations/models"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ReservationStore is the persistence surface the lifecycle logic
// needs. Implemented by datastore.ReservationRepository.
type ReservationStore interface {
	Create(ctx context.Context, res *models.Reservation) error
	GetByID(ctx context.Context, id int64) (*models.Reservation, error)
	Update(ctx context.Context, res *models.Reservation) error
	Delete(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]models.Reservation, error)
	ListAllWithRequester(ctx context.Context) ([]models.AdminReservation, error)
	CountOverlapping(ctx context.Context, date, start, end time.Time, excludeID int64) (int, error)
}

// CreateInput is a reservation submission as it arrives on the wire.
type CreateInput struct {
	Date      string `json:"date"`      // "2006-01-02"
	StartTime string `json:"startTime"` // "15:04"
	EndTime   string `json:"endTime"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Guests    int    `json:"guests"`
}

// UpdateInput carries the fields an update provides. Nil means "leave
// unchanged". The merged record is re-validated in full.
type UpdateInput struct {
	Date      *string `json:"date"`
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Guests    *int    `json:"guests"`
	Status    *string `json:"status"`
}

// Service owns reservation validation, availability checking and
// status transitions.
type Service struct {
	store ReservationStore
	now   func() time.Time
}

func NewService(store ReservationStore) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the submission, then persists it with status
// pending. The store enforces the overlap rule atomically with the
// insert; an overlap surfaces as ErrSlotTaken.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Reservation, error) {
	if input.Date == "" || input.StartTime == "" || input.EndTime == "" ||
		input.Name == "" || input.Email == "" || input.Phone == "" || input.Guests == 0 {
		return nil, invalid("all fields are required")
	}

	date, start, end, err := parseSlot(input.Date, input.StartTime, input.EndTime)
	if err != nil {
		return nil, err
	}

	if input.Guests < 1 {
		return nil, invalid("guests must be at least 1")
	}

	now := s.now()
	res := &models.Reservation{
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Name:      input.Name,
		Email:     input.Email,
		Phone:     input.Phone,
		Guests:    input.Guests,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.store.GetByID(ctx, id)
}

// Update merges the provided fields onto the stored record,
// re-validates the full result, and re-checks availability (excluding
// the record itself) whenever the slot or status changed. updated_at
// is always refreshed.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*models.Reservation, error) {
	res, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	slotChanged, err := merge(res, input)
	if err != nil {
		return nil, err
	}

	if res.Guests < 1 {
		return nil, invalid("guests must be at least 1")
	}
	if !res.EndTime.After(res.StartTime) {
		return nil, invalid("end time must be after start time")
	}

	if slotChanged && res.Status != models.StatusCancelled {
		conflicts, err := s.store.CountOverlapping(ctx, res.Date, res.StartTime, res.EndTime, res.ID)
		if err != nil {
			return nil, err
		}
		if conflicts > 0 {
			return nil, ErrSlotTaken
		}
	}

	res.UpdatedAt = s.now()
	if err := s.store.Update(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Delete removes the reservation. A missing id is not an error.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

// ListAll returns every reservation ascending by (date, start time).
func (s *Service) ListAll(ctx context.Context) ([]models.Reservation, error) {
	return s.store.ListAll(ctx)
}

// ListAllWithRequester returns every reservation descending by
// (date, start time) with the requesting user attached when one
// matches the contact email.
func (s *Service) ListAllWithRequester(ctx context.Context) ([]models.AdminReservation, error) {
	return s.store.ListAllWithRequester(ctx)
}

// IsAvailable reports whether the proposed slot is free of
// non-cancelled reservations. Advisory only: Create re-checks inside
// its transaction.
func (s *Service) IsAvailable(ctx context.Context, date, start, end time.Time) (bool, error) {
	conflicts, err := s.store.CountOverlapping(ctx, date, start, end, 0)
	if err != nil {
		return false, err
	}
	return conflicts == 0, nil
}

// Overlaps reports whether two half-open intervals [s1,e1) and [s2,e2)
// share at least one instant.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// parseSlot validates and assembles the date and HH:MM times into
// timestamps on that calendar day. Order matters: date first, then
// times, then the ordering rule.
func parseSlot(dateStr, startStr, endStr string) (date, start, end time.Time, err error) {
	date, err = time.Parse(dateLayout, dateStr)
	if err != nil {
		return date, start, end, invalid("invalid date format, expected YYYY-MM-DD")
	}

	start, err = onDate(date, startStr)
	if err != nil {
		return date, start, end, invalid("invalid start time format, expected HH:MM")
	}
	end, err = onDate(date, endStr)
	if err != nil {
		return date, start, end, invalid("invalid end time format, expected HH:MM")
	}

	if !end.After(start) {
		return date, start, end, invalid("end time must be after start time")
	}
	return date, start, end, nil
}

// onDate parses an HH:MM clock reading and pins it to the given day,
// so both ends of the slot land on the reservation's calendar date.
func onDate(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse(timeLayout, clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

// merge applies the provided fields to the stored record and reports
// whether the slot or status changed in a way that needs an
// availability re-check.
func merge(res *models.Reservation, input UpdateInput) (slotChanged bool, err error) {
	date := res.Date
	if input.Date != nil {
		date, err = time.Parse(dateLayout, *input.Date)
		if err != nil {
			return false, invalid("invalid date format, expected YYYY-MM-DD")
		}
	}

	startStr := res.StartTime.Format(timeLayout)
	if input.StartTime != nil {
		startStr = *input.StartTime
	}
	endStr := res.EndTime.Format(timeLayout)
	if input.EndTime != nil {
		endStr = *input.EndTime
	}

	start, err := onDate(date, startStr)
	if err != nil {
		return false, invalid("invalid start time format, expected HH:MM")
	}
	end, err := onDate(date, endStr)
	if err != nil {
		return false, invalid("invalid end time format, expected HH:MM")
	}

	if input.Status != nil {
		switch *input.Status {
		case models.StatusPending, models.StatusConfirmed, models.StatusCancelled:
		default:
			return false, invalid(fmt.Sprintf("unknown status %q", *input.Status))
		}
	}

	slotChanged = !date.Equal(res.Date) || !start.Equal(res.StartTime) || !end.Equal(res.EndTime)
	if input.Status != nil && *input.Status != res.Status {
		// Un-cancelling puts the slot back in contention.
		if res.Status == models.StatusCancelled {
			slotChanged = true
		}
		res.Status = *input.Status
	}

	res.Date = date
	res.StartTime = start
	res.EndTime = end
	if input.Name != nil {
		res.Name = *input.Name
	}
	if input.Email != nil {
		res.Email = *input.Email
	}
	if input.Phone != nil {
		res.Phone = *input.Phone
	}
	if input.Guests != nil {
		res.Guests = *input.Guests
	}
	return slotChanged, nil
}
