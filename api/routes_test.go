package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcondina/sum-reservations/api"
	"github.com/jcondina/sum-reservations/auth"
	"github.com/jcondina/sum-reservations/booking"
	"github.com/jcondina/sum-reservations/models"
	rh "github.com/jcondina/sum-reservations/route-handlers"
)

// fakeReservationStore mirrors the SQL store's semantics in memory so
// the full HTTP stack can be exercised without postgres.
type fakeReservationStore struct {
	nextID       int64
	reservations map[int64]models.Reservation
	users        *fakeUserStore
}

func newFakeReservationStore(users *fakeUserStore) *fakeReservationStore {
	return &fakeReservationStore{
		nextID:       1,
		reservations: make(map[int64]models.Reservation),
		users:        users,
	}
}

func (f *fakeReservationStore) Create(ctx context.Context, res *models.Reservation) error {
	count, _ := f.CountOverlapping(ctx, res.Date, res.StartTime, res.EndTime, 0)
	if count > 0 {
		return booking.ErrSlotTaken
	}
	res.ID = f.nextID
	f.nextID++
	f.reservations[res.ID] = *res
	return nil
}

func (f *fakeReservationStore) GetByID(_ context.Context, id int64) (*models.Reservation, error) {
	res, ok := f.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %d not found: %w", id, sql.ErrNoRows)
	}
	return &res, nil
}

func (f *fakeReservationStore) Update(_ context.Context, res *models.Reservation) error {
	if _, ok := f.reservations[res.ID]; !ok {
		return fmt.Errorf("reservation %d not found: %w", res.ID, sql.ErrNoRows)
	}
	f.reservations[res.ID] = *res
	return nil
}

func (f *fakeReservationStore) Delete(_ context.Context, id int64) error {
	delete(f.reservations, id)
	return nil
}

func (f *fakeReservationStore) ListAll(_ context.Context) ([]models.Reservation, error) {
	out := make([]models.Reservation, 0, len(f.reservations))
	for _, res := range f.reservations {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (f *fakeReservationStore) ListAllWithRequester(ctx context.Context) ([]models.AdminReservation, error) {
	plain, err := f.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.AdminReservation, 0, len(plain))
	for i := len(plain) - 1; i >= 0; i-- {
		entry := models.AdminReservation{Reservation: plain[i]}
		if user, ok := f.users.users[plain[i].Email]; ok {
			entry.Requester = &models.Requester{Name: user.Name, Email: user.Email}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (f *fakeReservationStore) CountOverlapping(_ context.Context, date, start, end time.Time, excludeID int64) (int, error) {
	count := 0
	for id, res := range f.reservations {
		if id == excludeID || res.Status == models.StatusCancelled || !res.Date.Equal(date) {
			continue
		}
		if booking.Overlaps(res.StartTime, res.EndTime, start, end) {
			count++
		}
	}
	return count, nil
}

type fakeUserStore struct {
	users map[string]*models.User
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", sql.ErrNoRows)
	}
	return user, nil
}

func (f *fakeUserStore) IsAdmin(_ context.Context, email string) (bool, error) {
	user, ok := f.users[email]
	if !ok {
		return false, nil
	}
	return user.IsAdmin, nil
}

type testEnv struct {
	server *httptest.Server
	users  *fakeUserStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	adminHash, err := auth.HashPassword("admin-password")
	require.NoError(t, err)
	userHash, err := auth.HashPassword("user-password")
	require.NoError(t, err)

	adminName := "Site Admin"
	adaName := "Ada Lovelace"
	users := &fakeUserStore{users: map[string]*models.User{
		"admin@example.com": {ID: 1, Email: "admin@example.com", Name: &adminName, PasswordHash: &adminHash, IsAdmin: true},
		"ada@example.com":   {ID: 2, Email: "ada@example.com", Name: &adaName, PasswordHash: &userHash},
	}}

	store := newFakeReservationStore(users)
	bookingService := booking.NewService(store)
	authenticator := auth.NewAuthenticator(users)
	tokens := auth.NewTokenIssuer([]byte("test-secret"), time.Hour)

	router := api.SetupRoutes(
		rh.NewReservationHandler(bookingService, users),
		rh.NewAdminHandler(bookingService),
		rh.NewAuthHandler(authenticator, tokens),
		tokens,
		users,
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, users: users}
}

func (env *testEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, env.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (env *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := env.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	require.NotEmpty(t, body["token"])
	return body["token"]
}

func reservationPayload() map[string]any {
	return map[string]any{
		"date":      "2024-06-01",
		"startTime": "10:00",
		"endTime":   "11:00",
		"name":      "Ada Lovelace",
		"email":     "ada@example.com",
		"phone":     "555-0100",
		"guests":    2,
	}
}

func TestReservationModerationFlow(t *testing.T) {
	env := newTestEnv(t)

	// Public booking form submission.
	resp := env.request(t, http.MethodPost, "/api/reservations", "", reservationPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[models.Reservation](t, resp)
	assert.Equal(t, models.StatusPending, created.Status)

	// The requester reads their own reservation.
	userToken := env.login(t, "ada@example.com", "user-password")
	resp = env.request(t, http.MethodGet, fmt.Sprintf("/api/reservations/%d", created.ID), userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decodeBody[models.Reservation](t, resp)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, models.StatusPending, fetched.Status)

	// Admin confirms it through the moderation endpoint.
	adminToken := env.login(t, "admin@example.com", "admin-password")
	resp = env.request(t, http.MethodPatch, "/api/admin/reservations", adminToken, map[string]any{
		"id":     created.ID,
		"status": models.StatusConfirmed,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	confirmed := decodeBody[models.Reservation](t, resp)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.True(t, confirmed.UpdatedAt.After(created.UpdatedAt))

	// The moderation list shows it with the requester attached.
	resp = env.request(t, http.MethodGet, "/api/admin/reservations", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decodeBody[[]models.AdminReservation](t, resp)
	require.Len(t, listed, 1)
	assert.Equal(t, models.StatusConfirmed, listed[0].Status)
	require.NotNil(t, listed[0].Requester)
	assert.Equal(t, "ada@example.com", listed[0].Requester.Email)
}

func TestCreateReservationValidationAndConflict(t *testing.T) {
	env := newTestEnv(t)

	bad := reservationPayload()
	bad["endTime"] = "09:00"
	resp := env.request(t, http.MethodPost, "/api/reservations", "", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "end time must be after start time", body["error"])

	resp = env.request(t, http.MethodPost, "/api/reservations", "", reservationPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	overlapping := reservationPayload()
	overlapping["startTime"] = "10:30"
	overlapping["endTime"] = "11:30"
	resp = env.request(t, http.MethodPost, "/api/reservations", "", overlapping)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestAuthGates(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/reservations", "", reservationPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[models.Reservation](t, resp)

	// No session at all.
	resp = env.request(t, http.MethodGet, fmt.Sprintf("/api/reservations/%d", created.ID), "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/api/admin/reservations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// A garbage token is indistinguishable from no token.
	resp = env.request(t, http.MethodGet, "/api/admin/reservations", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Session present, but not an admin.
	userToken := env.login(t, "ada@example.com", "user-password")
	resp = env.request(t, http.MethodGet, "/api/admin/reservations", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/reservations/%d", created.ID), userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Wrong password never yields a session.
	resp = env.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "admin@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestOwnerOrAdminOnSingleReservation(t *testing.T) {
	env := newTestEnv(t)

	payload := reservationPayload()
	payload["email"] = "someone-else@example.com"
	resp := env.request(t, http.MethodPost, "/api/reservations", "", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[models.Reservation](t, resp)

	// Ada is neither the requester nor an admin.
	userToken := env.login(t, "ada@example.com", "user-password")
	resp = env.request(t, http.MethodGet, fmt.Sprintf("/api/reservations/%d", created.ID), userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// An admin can read anyone's reservation.
	adminToken := env.login(t, "admin@example.com", "admin-password")
	resp = env.request(t, http.MethodGet, fmt.Sprintf("/api/reservations/%d", created.ID), adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestDeleteReservation(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.login(t, "admin@example.com", "admin-password")

	resp := env.request(t, http.MethodPost, "/api/reservations", "", reservationPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[models.Reservation](t, resp)

	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/reservations/%d", created.ID), adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Gone now, and deleting again is still a clean 200.
	resp = env.request(t, http.MethodGet, fmt.Sprintf("/api/reservations/%d", created.ID), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/reservations/%d", created.ID), adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestSessionEndpoint(t *testing.T) {
	env := newTestEnv(t)

	token := env.login(t, "admin@example.com", "admin-password")
	resp := env.request(t, http.MethodGet, "/api/auth/session", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	identity := decodeBody[models.Identity](t, resp)
	assert.Equal(t, "admin@example.com", identity.Email)
	assert.True(t, identity.IsAdmin)

	resp = env.request(t, http.MethodGet, "/api/auth/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestPublicListStaysOrdered(t *testing.T) {
	env := newTestEnv(t)

	slots := []struct{ date, start, end string }{
		{"2024-06-02", "09:00", "10:00"},
		{"2024-06-01", "14:00", "15:00"},
		{"2024-06-01", "10:00", "11:00"},
	}
	for _, slot := range slots {
		payload := reservationPayload()
		payload["date"] = slot.date
		payload["startTime"] = slot.start
		payload["endTime"] = slot.end
		resp := env.request(t, http.MethodPost, "/api/reservations", "", payload)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := env.request(t, http.MethodGet, "/api/reservations", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decodeBody[[]models.Reservation](t, resp)
	require.Len(t, listed, 3)
	assert.Equal(t, "2024-06-01", listed[0].Date.Format("2006-01-02"))
	assert.Equal(t, 10, listed[0].StartTime.Hour())
	assert.Equal(t, 14, listed[1].StartTime.Hour())
	assert.Equal(t, "2024-06-02", listed[2].Date.Format("2006-01-02"))
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
