package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/garagedesk/staff-auth/internal/core/domain"
	"github.com/garagedesk/staff-auth/internal/core/ports"
)

// stubTerminals implements ports.TerminalService; unset funcs fail the test.
type stubTerminals struct {
	t *testing.T

	sessionFn     func(ctx context.Context, id string) (domain.SessionSnapshot, error)
	loginFn       func(ctx context.Context, id, email, password string) (*ports.AuthResult, error)
	selectFn      func(ctx context.Context, id, profileID string) (domain.SessionSnapshot, error)
	pinFn         func(ctx context.Context, id, pin string) (*ports.AuthResult, error)
	managerFn     func(ctx context.Context, id, password string) (*ports.AuthResult, error)
	lockFn        func(ctx context.Context, id string) (domain.SessionSnapshot, error)
	unlockPinFn   func(ctx context.Context, id, pin string) (*ports.AuthResult, error)
	unlockPassFn  func(ctx context.Context, id, password string) (*ports.AuthResult, error)
	logoutFn      func(ctx context.Context, id string) (domain.SessionSnapshot, error)
	resetFn       func(ctx context.Context, email string) error
	confirmFn     func(ctx context.Context, token, password string) error
	profilesFn    func(ctx context.Context) ([]domain.RoleGroup, error)
	surfacesFn    func(ctx context.Context, id string) ([]domain.SurfaceView, error)
	setSurfaceFn  func(ctx context.Context, id string, kind domain.SurfaceKind, open bool) (domain.SurfaceView, error)
	newTerminalFn func(ctx context.Context) (domain.SessionSnapshot, error)
}

func (s *stubTerminals) unexpected(name string) {
	s.t.Helper()
	s.t.Fatalf("unexpected call to %s", name)
}

func (s *stubTerminals) NewTerminal(ctx context.Context) (domain.SessionSnapshot, error) {
	if s.newTerminalFn == nil {
		s.unexpected("NewTerminal")
	}
	return s.newTerminalFn(ctx)
}

func (s *stubTerminals) Session(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	if s.sessionFn == nil {
		s.unexpected("Session")
	}
	return s.sessionFn(ctx, id)
}

func (s *stubTerminals) Login(ctx context.Context, id, email, password string) (*ports.AuthResult, error) {
	if s.loginFn == nil {
		s.unexpected("Login")
	}
	return s.loginFn(ctx, id, email, password)
}

func (s *stubTerminals) SelectUser(ctx context.Context, id, profileID string) (domain.SessionSnapshot, error) {
	if s.selectFn == nil {
		s.unexpected("SelectUser")
	}
	return s.selectFn(ctx, id, profileID)
}

func (s *stubTerminals) SubmitPin(ctx context.Context, id, pin string) (*ports.AuthResult, error) {
	if s.pinFn == nil {
		s.unexpected("SubmitPin")
	}
	return s.pinFn(ctx, id, pin)
}

func (s *stubTerminals) SubmitManagerPassword(ctx context.Context, id, password string) (*ports.AuthResult, error) {
	if s.managerFn == nil {
		s.unexpected("SubmitManagerPassword")
	}
	return s.managerFn(ctx, id, password)
}

func (s *stubTerminals) LockScreen(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	if s.lockFn == nil {
		s.unexpected("LockScreen")
	}
	return s.lockFn(ctx, id)
}

func (s *stubTerminals) UnlockWithPin(ctx context.Context, id, pin string) (*ports.AuthResult, error) {
	if s.unlockPinFn == nil {
		s.unexpected("UnlockWithPin")
	}
	return s.unlockPinFn(ctx, id, pin)
}

func (s *stubTerminals) UnlockWithPassword(ctx context.Context, id, password string) (*ports.AuthResult, error) {
	if s.unlockPassFn == nil {
		s.unexpected("UnlockWithPassword")
	}
	return s.unlockPassFn(ctx, id, password)
}

func (s *stubTerminals) Logout(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	if s.logoutFn == nil {
		s.unexpected("Logout")
	}
	return s.logoutFn(ctx, id)
}

func (s *stubTerminals) RequestPasswordReset(ctx context.Context, email string) error {
	if s.resetFn == nil {
		s.unexpected("RequestPasswordReset")
	}
	return s.resetFn(ctx, email)
}

func (s *stubTerminals) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	if s.confirmFn == nil {
		s.unexpected("ConfirmPasswordReset")
	}
	return s.confirmFn(ctx, token, password)
}

func (s *stubTerminals) QuickAccessProfiles(ctx context.Context) ([]domain.RoleGroup, error) {
	if s.profilesFn == nil {
		s.unexpected("QuickAccessProfiles")
	}
	return s.profilesFn(ctx)
}

func (s *stubTerminals) Surfaces(ctx context.Context, id string) ([]domain.SurfaceView, error) {
	if s.surfacesFn == nil {
		s.unexpected("Surfaces")
	}
	return s.surfacesFn(ctx, id)
}

func (s *stubTerminals) SetSurfaceOpen(ctx context.Context, id string, kind domain.SurfaceKind, open bool) (domain.SurfaceView, error) {
	if s.setSurfaceFn == nil {
		s.unexpected("SetSurfaceOpen")
	}
	return s.setSurfaceFn(ctx, id, kind, open)
}

var dana = domain.UserProfile{ID: "u1", FullName: "Dana Reyes", Role: domain.RoleFrontDesk}

// serve runs h against a request carrying body, with terminal_id bound to
// "bay-1" and any extra path params. Returned errors are passed through
// echo's default error handler like the router would.
func serve(t *testing.T, h echo.HandlerFunc, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodPost, "/", nil)
	} else {
		req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	names := []string{"terminal_id"}
	values := []string{"bay-1"}
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)

	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestTerminalHandler_Login_Success(t *testing.T) {
	stub := &stubTerminals{t: t}
	stub.loginFn = func(ctx context.Context, id, email, password string) (*ports.AuthResult, error) {
		if id != "bay-1" || email != "dana@garage.test" || password != "frontpass" {
			t.Fatalf("unexpected args: %s %s %s", id, email, password)
		}
		return &ports.AuthResult{
			Session: domain.SessionSnapshot{TerminalID: id, State: domain.StateAuthenticated, CurrentUser: &dana},
			Token:   "token123",
		}, nil
	}

	rec := serve(t, NewTerminalHandler(stub).Login, `{"email":"dana@garage.test","password":"frontpass"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := decode(t, rec)
	if resp["success"] != true || resp["token"] != "token123" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	session, ok := resp["session"].(map[string]any)
	if !ok || session["state"] != "authenticated" {
		t.Fatalf("expected authenticated session, got %+v", resp["session"])
	}
	if _, ok := resp["error"]; ok {
		t.Fatalf("error must be omitted on success")
	}
}

func TestTerminalHandler_Login_InvalidCredentials(t *testing.T) {
	stub := &stubTerminals{t: t}
	stub.loginFn = func(ctx context.Context, id, email, password string) (*ports.AuthResult, error) {
		return &ports.AuthResult{Session: domain.SessionSnapshot{State: domain.StateUnauthenticated}},
			domain.NewAuthError(domain.ErrorInvalidCredentials, domain.MsgInvalidEmail)
	}

	rec := serve(t, NewTerminalHandler(stub).Login, `{"email":"nope","password":"x"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	resp := decode(t, rec)
	if resp["success"] != false {
		t.Fatalf("expected success=false")
	}
	e, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error body, got %+v", resp)
	}
	if e["type"] != "INVALID_CREDENTIALS" || e["message"] != domain.MsgInvalidEmail || e["tone"] != domain.ToneDestructive {
		t.Fatalf("unexpected error body: %+v", e)
	}
	if resp["session"] == nil {
		t.Fatalf("failed result should still carry the session")
	}
}

func TestTerminalHandler_Login_InvalidPayload(t *testing.T) {
	stub := &stubTerminals{t: t}

	rec := serve(t, NewTerminalHandler(stub).Login, "not-json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTerminalHandler_AuthErrorStatuses(t *testing.T) {
	tests := []struct {
		errType domain.ErrorType
		want    int
		tone    string
	}{
		{domain.ErrorInvalidPin, http.StatusUnauthorized, domain.ToneDestructive},
		{domain.ErrorPinNotFound, http.StatusNotFound, domain.ToneWarning},
		{domain.ErrorUserNotFound, http.StatusNotFound, domain.ToneWarning},
		{domain.ErrorNetwork, http.StatusServiceUnavailable, domain.ToneInfo},
		{domain.ErrorUnknown, http.StatusInternalServerError, domain.ToneDestructive},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			stub := &stubTerminals{t: t}
			stub.pinFn = func(ctx context.Context, id, pin string) (*ports.AuthResult, error) {
				return nil, domain.NewAuthError(tt.errType, "boom")
			}

			rec := serve(t, NewTerminalHandler(stub).SubmitPin, `{"pin":"0000"}`)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			e := decode(t, rec)["error"].(map[string]any)
			if e["tone"] != tt.tone {
				t.Fatalf("expected tone %s, got %v", tt.tone, e["tone"])
			}
		})
	}
}

func TestTerminalHandler_SubmitPin_AttemptSuffixPassesThrough(t *testing.T) {
	stub := &stubTerminals{t: t}
	stub.pinFn = func(ctx context.Context, id, pin string) (*ports.AuthResult, error) {
		if pin != "0000" {
			t.Fatalf("unexpected pin %q", pin)
		}
		return &ports.AuthResult{Session: domain.SessionSnapshot{Step: domain.StepPinEntry, SelectedUser: &dana, PinAttempts: 1}},
			domain.NewAuthError(domain.ErrorInvalidPin, "Invalid PIN (Attempt 1/3)")
	}

	rec := serve(t, NewTerminalHandler(stub).SubmitPin, `{"pin":"0000"}`)
	resp := decode(t, rec)
	e := resp["error"].(map[string]any)
	if e["message"] != "Invalid PIN (Attempt 1/3)" {
		t.Fatalf("unexpected message %v", e["message"])
	}
	session := resp["session"].(map[string]any)
	if session["pin_attempts"] != float64(1) {
		t.Fatalf("expected pin_attempts=1, got %v", session["pin_attempts"])
	}
}

func TestTerminalHandler_SubmitPin_RequiresPin(t *testing.T) {
	stub := &stubTerminals{t: t}

	rec := serve(t, NewTerminalHandler(stub).SubmitPin, `{}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestTerminalHandler_SelectUser(t *testing.T) {
	stub := &stubTerminals{t: t}
	stub.selectFn = func(ctx context.Context, id, profileID string) (domain.SessionSnapshot, error) {
		if profileID != "u1" {
			t.Fatalf("unexpected profile %q", profileID)
		}
		return domain.SessionSnapshot{Step: domain.StepPinEntry, SelectedUser: &dana}, nil
	}

	rec := serve(t, NewTerminalHandler(stub).SelectUser, `{"profile_id":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	session := decode(t, rec)["session"].(map[string]any)
	if session["step"] != "pin_entry" {
		t.Fatalf("expected pin_entry step, got %v", session["step"])
	}
}

func TestTerminalHandler_Lock_NoSession(t *testing.T) {
	stub := &stubTerminals{t: t}
	stub.lockFn = func(ctx context.Context, id string) (domain.SessionSnapshot, error) {
		return domain.SessionSnapshot{}, domain.ErrNoActiveSession
	}

	rec := serve(t, NewTerminalHandler(stub).Lock, "")
	// default echo handler: sentinel errors become 500 here; the api package
	// maps them to 409
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected error to reach the error handler, got %d", rec.Code)
	}
}

func TestTerminalHandler_SetSurfaceOpen(t *testing.T) {
	stub := &stubTerminals{t: t}
	stub.setSurfaceFn = func(ctx context.Context, id string, kind domain.SurfaceKind, open bool) (domain.SurfaceView, error) {
		if kind != domain.SurfaceSwitchDialog || open {
			t.Fatalf("unexpected args: %s %v", kind, open)
		}
		return domain.SurfaceView{Kind: kind, Visible: true, Open: true}, nil
	}

	rec := serve(t, NewTerminalHandler(stub).SetSurfaceOpen, `{"open":false}`, "kind", "switch_dialog")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["open"] != true || resp["dismissible"] != false {
		t.Fatalf("locked dialog must stay open: %+v", resp)
	}
}

func TestTerminalHandler_SetSurfaceOpen_RequiresOpenField(t *testing.T) {
	stub := &stubTerminals{t: t}

	rec := serve(t, NewTerminalHandler(stub).SetSurfaceOpen, `{}`, "kind", "full_page")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestTerminalHandler_QuickAccessProfiles(t *testing.T) {
	stub := &stubTerminals{t: t}
	stub.profilesFn = func(ctx context.Context) ([]domain.RoleGroup, error) {
		return domain.GroupProfiles([]domain.UserProfile{dana, {ID: "m1", Role: domain.RoleManager}}), nil
	}

	rec := serve(t, NewTerminalHandler(stub).QuickAccessProfiles, "")
	groups := decode(t, rec)["groups"].([]any)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].(map[string]any)["label"] != "Managers" {
		t.Fatalf("managers must come first: %+v", groups)
	}
}

func TestTerminalHandler_Create(t *testing.T) {
	stub := &stubTerminals{t: t}
	stub.newTerminalFn = func(ctx context.Context) (domain.SessionSnapshot, error) {
		return domain.SessionSnapshot{TerminalID: "t-1", State: domain.StateUnauthenticated, Step: domain.StepSelectUser}, nil
	}

	rec := serve(t, NewTerminalHandler(stub).Create, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if decode(t, rec)["session"].(map[string]any)["terminal_id"] != "t-1" {
		t.Fatalf("missing terminal id")
	}
}

func TestTerminalHandler_PayloadsOmitContactDetails(t *testing.T) {
	full := dana
	full.Email, full.Phone, full.Address = "dana@garage.test", "555-0101", "12 Bay Road"

	stub := &stubTerminals{t: t}
	stub.sessionFn = func(ctx context.Context, id string) (domain.SessionSnapshot, error) {
		return domain.SessionSnapshot{TerminalID: id, State: domain.StateLocked, IsLocked: true, CurrentUser: &full, SelectedUser: &full}, nil
	}
	stub.profilesFn = func(ctx context.Context) ([]domain.RoleGroup, error) {
		return []domain.RoleGroup{{Role: domain.RoleFrontDesk, Label: "Front Desk", Profiles: []domain.UserProfile{full}}}, nil
	}
	h := NewTerminalHandler(stub)

	for name, fn := range map[string]echo.HandlerFunc{"session": h.Session, "roster": h.QuickAccessProfiles} {
		rec := serve(t, fn, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", name, rec.Code)
		}
		body := rec.Body.String()
		for _, secret := range []string{full.Email, full.Phone, full.Address} {
			if strings.Contains(body, secret) {
				t.Fatalf("%s payload leaks %q: %s", name, secret, body)
			}
		}
		if !strings.Contains(body, full.FullName) {
			t.Fatalf("%s payload must keep the display name: %s", name, body)
		}
	}
}
