package webutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeHandlerPassesThroughSuccess(t *testing.T) {
	handler := MakeHandler(func(w http.ResponseWriter, r *http.Request) error {
		RespondWithJSON(w, http.StatusOK, map[string]string{"ok": "true"})
		return nil
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":"true"}`, rec.Body.String())
}

func TestMakeHandlerMapsHTTPError(t *testing.T) {
	handler := MakeHandler(func(w http.ResponseWriter, r *http.Request) error {
		return ErrConflict("Requested time slot is not available")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"Requested time slot is not available"}`, rec.Body.String())
}

func TestMakeHandlerMapsNoRowsTo404(t *testing.T) {
	handler := MakeHandler(func(w http.ResponseWriter, r *http.Request) error {
		return fmt.Errorf("reservation 42 not found: %w", sql.ErrNoRows)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Resource not found"}`, rec.Body.String())
}

func TestMakeHandlerHidesInternalDetail(t *testing.T) {
	handler := MakeHandler(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("pq: connection refused on host db-internal:5432")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "db-internal")
}
