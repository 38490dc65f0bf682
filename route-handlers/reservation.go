package routehandlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jcondina/sum-reservations/auth"
	"github.com/jcondina/sum-reservations/booking"
	"github.com/jcondina/sum-reservations/models"
	"github.com/jcondina/sum-reservations/webutil"
)

// RoleChecker answers whether an email belongs to an admin, for the
// owner-or-admin rule on single-reservation routes.
type RoleChecker interface {
	IsAdmin(ctx context.Context, email string) (bool, error)
}

type ReservationHandler struct {
	Svc   *booking.Service
	Roles RoleChecker
}

func NewReservationHandler(svc *booking.Service, roles RoleChecker) *ReservationHandler {
	return &ReservationHandler{Svc: svc, Roles: roles}
}

func (h *ReservationHandler) HandleCreateReservation(w http.ResponseWriter, r *http.Request) error {
	var input booking.CreateInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&input); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	reservation, err := h.Svc.Create(r.Context(), input)
	if err != nil {
		return mapBookingError(err)
	}

	webutil.RespondWithJSON(w, http.StatusCreated, reservation)
	return nil
}

func (h *ReservationHandler) HandleListReservations(w http.ResponseWriter, r *http.Request) error {
	reservations, err := h.Svc.ListAll(r.Context())
	if err != nil {
		return err
	}
	if reservations == nil {
		reservations = []models.Reservation{}
	}
	webutil.RespondWithJSON(w, http.StatusOK, reservations)
	return nil
}

func (h *ReservationHandler) HandleGetReservation(w http.ResponseWriter, r *http.Request) error {
	id, err := reservationID(r)
	if err != nil {
		return err
	}

	reservation, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		return err
	}

	if err := h.requireOwnerOrAdmin(r, reservation); err != nil {
		return err
	}

	webutil.RespondWithJSON(w, http.StatusOK, reservation)
	return nil
}

func (h *ReservationHandler) HandleUpdateReservation(w http.ResponseWriter, r *http.Request) error {
	id, err := reservationID(r)
	if err != nil {
		return err
	}

	existing, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		return err
	}
	if err := h.requireOwnerOrAdmin(r, existing); err != nil {
		return err
	}

	var input booking.UpdateInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&input); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	reservation, err := h.Svc.Update(r.Context(), id, input)
	if err != nil {
		return mapBookingError(err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, reservation)
	return nil
}

func (h *ReservationHandler) HandleDeleteReservation(w http.ResponseWriter, r *http.Request) error {
	id, err := reservationID(r)
	if err != nil {
		return err
	}

	if err := h.Svc.Delete(r.Context(), id); err != nil {
		return err
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Reservation deleted successfully"})
	return nil
}

// requireOwnerOrAdmin lets the requester through when the session
// email matches the reservation's contact email, or when the session
// user is an admin.
func (h *ReservationHandler) requireOwnerOrAdmin(r *http.Request, res *models.Reservation) error {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		return webutil.ErrUnauthorized("")
	}
	if identity.Email == res.Email {
		return nil
	}

	isAdmin, err := h.Roles.IsAdmin(r.Context(), identity.Email)
	if err != nil {
		return err
	}
	if !isAdmin {
		return webutil.ErrForbidden("")
	}
	return nil
}

func reservationID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, webutil.ErrBadRequest("Invalid reservation ID")
	}
	return id, nil
}

// mapBookingError converts booking domain errors into HTTP errors.
// Anything unrecognized propagates for MakeHandler's fallback mapping.
func mapBookingError(err error) error {
	var validationErr *booking.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return webutil.ErrBadRequest(validationErr.Reason)
	case errors.Is(err, booking.ErrSlotTaken):
		return webutil.ErrConflictWrap("Requested time slot is not available", err)
	default:
		return err
	}
}
