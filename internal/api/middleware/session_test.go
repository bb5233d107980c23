package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/garagedesk/staff-auth/internal/api/handler"
	"github.com/garagedesk/staff-auth/internal/core/domain"
)

type stubSessions struct {
	snap domain.SessionSnapshot
	err  error
}

func (s stubSessions) Session(ctx context.Context, terminalID string) (domain.SessionSnapshot, error) {
	return s.snap, s.err
}

func runGate(t *testing.T, sessions SessionReader) (int, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/me/capabilities", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(handler.CtxUserID, "u1")
	c.Set(handler.CtxTerminalID, "bay-1")

	called := false
	h := RequireActiveSession(sessions)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec.Code, called
}

func TestRequireActiveSession(t *testing.T) {
	dana := &domain.UserProfile{ID: "u1", Role: domain.RoleFrontDesk}
	sam := &domain.UserProfile{ID: "u2", Role: domain.RoleTechnician}

	tests := []struct {
		name     string
		sessions stubSessions
		want     int
		next     bool
	}{
		{
			name:     "signed in as token user",
			sessions: stubSessions{snap: domain.SessionSnapshot{State: domain.StateAuthenticated, CurrentUser: dana}},
			want:     http.StatusOK,
			next:     true,
		},
		{
			name:     "locked",
			sessions: stubSessions{snap: domain.SessionSnapshot{State: domain.StateLocked, CurrentUser: dana, IsLocked: true}},
			want:     http.StatusLocked,
		},
		{
			name:     "logged out",
			sessions: stubSessions{snap: domain.SessionSnapshot{State: domain.StateUnauthenticated}},
			want:     http.StatusUnauthorized,
		},
		{
			name:     "another user signed in",
			sessions: stubSessions{snap: domain.SessionSnapshot{State: domain.StateAuthenticated, CurrentUser: sam}},
			want:     http.StatusUnauthorized,
		},
		{
			name:     "unknown terminal",
			sessions: stubSessions{err: domain.ErrTerminalNotFound},
			want:     http.StatusUnauthorized,
		},
		{
			name:     "store failure",
			sessions: stubSessions{err: errors.New("redis down")},
			want:     http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, called := runGate(t, tt.sessions)
			if code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, code)
			}
			if called != tt.next {
				t.Fatalf("next called = %v, want %v", called, tt.next)
			}
		})
	}
}
