package routehandlers

import (
	"encoding/json"
	"net/http"

	"github.com/jcondina/sum-reservations/booking"
	"github.com/jcondina/sum-reservations/models"
	"github.com/jcondina/sum-reservations/webutil"
)

// AdminHandler serves the moderation surface. Admin-ness is enforced
// by middleware before these run.
type AdminHandler struct {
	Svc *booking.Service
}

func NewAdminHandler(svc *booking.Service) *AdminHandler {
	return &AdminHandler{Svc: svc}
}

// HandleListReservations returns every reservation, newest slot first,
// with the requesting user attached where one matches.
func (h *AdminHandler) HandleListReservations(w http.ResponseWriter, r *http.Request) error {
	reservations, err := h.Svc.ListAllWithRequester(r.Context())
	if err != nil {
		return err
	}
	if reservations == nil {
		reservations = []models.AdminReservation{}
	}
	webutil.RespondWithJSON(w, http.StatusOK, reservations)
	return nil
}

// HandleModerateReservation applies a partial update (typically a
// status transition) to the reservation named in the body.
func (h *AdminHandler) HandleModerateReservation(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		ID int64 `json:"id"`
		booking.UpdateInput
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&requestData); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	if requestData.ID == 0 {
		return webutil.ErrBadRequest("Reservation ID is required")
	}

	reservation, err := h.Svc.Update(r.Context(), requestData.ID, requestData.UpdateInput)
	if err != nil {
		return mapBookingError(err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, reservation)
	return nil
}
