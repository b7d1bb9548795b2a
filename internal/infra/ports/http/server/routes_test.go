package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/qrave1/StudyRoom/internal/application/config"
	"github.com/qrave1/StudyRoom/internal/infra/ports/http/handlers"
)

func newTestServer() *echo.Echo {
	cfg := &config.Config{Domain: "http://localhost:3000", JWTSecret: "secret"}

	return New(cfg, Handlers{
		Room:     &handlers.RoomHandler{},
		Access:   &handlers.AccessHandler{},
		Message:  &handlers.MessageHandler{},
		Timer:    &handlers.TimerHandler{},
		Presence: &handlers.PresenceHandler{},
		WS:       &handlers.WebSocketHandler{},
	})
}

func TestRoutes_OnlyAPI(t *testing.T) {
	for _, r := range newTestServer().Routes() {
		assert.True(t, strings.HasPrefix(r.Path, "/api/v1"), "unexpected route %s %s", r.Method, r.Path)
	}
}

func TestRoutes_RootIsNotServed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_APIRequiresToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
