package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	rh "github.com/jcondina/sum-reservations/route-handlers"
	"github.com/jcondina/sum-reservations/webutil"
)

const (
	apiBasePath          = "/api"
	reservationsBasePath = "/reservations"
	adminBasePath        = "/admin"
	authBasePath         = "/auth"
)

const paramID = "id"

func SetupRoutes(
	reservationHandler *rh.ReservationHandler,
	adminHandler *rh.AdminHandler,
	authHandler *rh.AuthHandler,
	verifier TokenVerifier,
	roles RoleChecker,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route(apiBasePath, func(r chi.Router) {
		configureReservationRoutes(r, reservationHandler, verifier, roles)
		configureAdminRoutes(r, adminHandler, verifier, roles)
		configureAuthRoutes(r, authHandler, verifier)
	})

	r.Get("/healthz", handleHealthCheck)

	return r
}

func configureReservationRoutes(r chi.Router, handler *rh.ReservationHandler, verifier TokenVerifier, roles RoleChecker) {
	r.Route(reservationsBasePath, func(r chi.Router) {
		// The booking form and the plain list are public.
		r.Post("/", webutil.MakeHandler(handler.HandleCreateReservation))
		r.Get("/", webutil.MakeHandler(handler.HandleListReservations))

		r.Route("/{"+paramID+"}", func(r chi.Router) {
			r.Use(RequireSession(verifier))
			// Reads and edits are owner-or-admin, checked in the
			// handler once the record's contact email is known.
			r.Get("/", webutil.MakeHandler(handler.HandleGetReservation))
			r.Put("/", webutil.MakeHandler(handler.HandleUpdateReservation))
			r.With(RequireAdmin(roles)).Delete("/", webutil.MakeHandler(handler.HandleDeleteReservation))
		})
	})
}

func configureAdminRoutes(r chi.Router, handler *rh.AdminHandler, verifier TokenVerifier, roles RoleChecker) {
	r.Route(adminBasePath+reservationsBasePath, func(r chi.Router) {
		r.Use(RequireSession(verifier))
		r.Use(RequireAdmin(roles))
		r.Get("/", webutil.MakeHandler(handler.HandleListReservations))
		r.Patch("/", webutil.MakeHandler(handler.HandleModerateReservation))
	})
}

func configureAuthRoutes(r chi.Router, handler *rh.AuthHandler, verifier TokenVerifier) {
	r.Route(authBasePath, func(r chi.Router) {
		r.Post("/login", webutil.MakeHandler(handler.HandleLogin))
		r.With(RequireSession(verifier)).Get("/session", webutil.MakeHandler(handler.HandleSession))
	})
}

func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(webutil.HeaderContentType, webutil.ContentTypeTextPlainUTF8)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
