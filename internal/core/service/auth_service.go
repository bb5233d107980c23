package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/garagedesk/staff-auth/internal/core/domain"
	"github.com/garagedesk/staff-auth/internal/core/ports"
	"github.com/garagedesk/staff-auth/internal/core/surface"
	"github.com/garagedesk/staff-auth/internal/pkg/metrics"
)

// TerminalServiceDeps are the collaborators of a TerminalService.
type TerminalServiceDeps struct {
	Credentials ports.CredentialStore
	Profiles    ports.ProfileDirectory
	Sessions    ports.SessionStore
	Scheduler   ports.Scheduler
	Audit       ports.AuditSink // optional
	JWTSecret   string
	TokenTTL    time.Duration
	// IdleTTL is how long a terminal stays in memory without a transition.
	// It should match the session store TTL.
	IdleTTL time.Duration
	Logger  zerolog.Logger
	Now     func() time.Time // optional
}

// terminal bundles a machine with the login surfaces bound to it.
type terminal struct {
	machine  *SessionMachine
	surfaces *surface.Set
}

// TerminalService keeps one SessionMachine per terminal and issues session
// tokens when a terminal authenticates.
type TerminalService struct {
	creds     ports.CredentialStore
	profiles  ports.ProfileDirectory
	sessions  ports.SessionStore
	scheduler ports.Scheduler
	audit     ports.AuditSink
	jwtSecret string
	tokenTTL  time.Duration
	idleTTL   time.Duration
	log       zerolog.Logger
	newID     func() string
	now       func() time.Time

	mu        sync.Mutex
	terminals map[string]*terminal
}

var _ ports.TerminalService = (*TerminalService)(nil)

func NewTerminalService(deps TerminalServiceDeps) *TerminalService {
	ttl := deps.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	idle := deps.IdleTTL
	if idle <= 0 {
		idle = 12 * time.Hour
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TerminalService{
		creds:     deps.Credentials,
		profiles:  deps.Profiles,
		sessions:  deps.Sessions,
		scheduler: deps.Scheduler,
		audit:     deps.Audit,
		jwtSecret: deps.JWTSecret,
		tokenTTL:  ttl,
		idleTTL:   idle,
		log:       deps.Logger,
		newID:     uuid.NewString,
		now:       now,
		terminals: make(map[string]*terminal),
	}
}

// NewTerminal registers a terminal with an unauthenticated session.
func (s *TerminalService) NewTerminal(ctx context.Context) (domain.SessionSnapshot, error) {
	id := s.newID()
	t := s.register(id, nil)
	if err := s.sessions.Save(ctx, t.machine.Persisted()); err != nil {
		return domain.SessionSnapshot{}, err
	}
	s.log.Info().Str("terminal_id", id).Msg("terminal registered")
	return t.machine.Snapshot(), nil
}

func (s *TerminalService) Session(ctx context.Context, terminalID string) (domain.SessionSnapshot, error) {
	t, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return t.machine.Snapshot(), nil
}

func (s *TerminalService) Login(ctx context.Context, terminalID, email, password string) (*ports.AuthResult, error) {
	t, err := s.terminal(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	user, err := t.machine.Login(ctx, email, password)
	return s.authResult(ctx, t.machine, user, err)
}

func (s *TerminalService) SelectUser(ctx context.Context, terminalID, profileID string) (domain.SessionSnapshot, error) {
	t, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	profile, err := s.profile(ctx, profileID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return t.machine.SelectUser(*profile), nil
}

// SubmitPin checks a PIN for the profile currently selected on the terminal.
func (s *TerminalService) SubmitPin(ctx context.Context, terminalID, pin string) (*ports.AuthResult, error) {
	t, err := s.terminal(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	selected := t.machine.Snapshot().SelectedUser
	if selected == nil {
		return nil, domain.NewAuthError(domain.ErrorUserNotFound, "Select a profile before entering a PIN.")
	}
	user, err := t.machine.SubmitPin(ctx, *selected, pin)
	return s.authResult(ctx, t.machine, user, err)
}

// SubmitManagerPassword checks the password of the manager currently selected
// on the terminal.
func (s *TerminalService) SubmitManagerPassword(ctx context.Context, terminalID, password string) (*ports.AuthResult, error) {
	t, err := s.terminal(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	selected := t.machine.Snapshot().SelectedUser
	if selected == nil {
		return nil, domain.NewAuthError(domain.ErrorUserNotFound, "Select a profile before entering a password.")
	}
	user, err := t.machine.SubmitManagerPassword(ctx, *selected, password)
	return s.authResult(ctx, t.machine, user, err)
}

func (s *TerminalService) LockScreen(ctx context.Context, terminalID string) (domain.SessionSnapshot, error) {
	t, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	snap, err := t.machine.LockScreen()
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	s.persist(ctx, t.machine)
	return snap, nil
}

func (s *TerminalService) UnlockWithPin(ctx context.Context, terminalID, pin string) (*ports.AuthResult, error) {
	t, err := s.terminal(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	user, err := t.machine.UnlockWithPin(ctx, pin)
	return s.authResult(ctx, t.machine, user, err)
}

func (s *TerminalService) UnlockWithPassword(ctx context.Context, terminalID, password string) (*ports.AuthResult, error) {
	t, err := s.terminal(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	user, err := t.machine.UnlockWithPassword(ctx, password)
	return s.authResult(ctx, t.machine, user, err)
}

func (s *TerminalService) Logout(ctx context.Context, terminalID string) (domain.SessionSnapshot, error) {
	t, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	snap, err := t.machine.Logout()
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	s.persist(ctx, t.machine)
	return snap, nil
}

// RequestPasswordReset validates the address shape locally and delegates to
// the credential store, which stays silent about unknown addresses.
func (s *TerminalService) RequestPasswordReset(ctx context.Context, email string) error {
	if !domain.ValidEmail(email) {
		return domain.NewAuthError(domain.ErrorInvalidCredentials, domain.MsgInvalidEmail)
	}
	err := s.creds.RequestPasswordReset(ctx, email)
	s.recordReset(email, err)
	if err != nil {
		return s.authFailure(err)
	}
	return nil
}

func (s *TerminalService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return domain.ErrInvalidResetToken
	}
	if len(newPassword) < domain.MinPasswordLength {
		return domain.NewAuthError(domain.ErrorInvalidCredentials, domain.MsgPasswordTooShort)
	}
	if err := s.creds.ConfirmPasswordReset(ctx, token, newPassword); err != nil {
		if errors.Is(err, domain.ErrInvalidResetToken) {
			return err
		}
		return s.authFailure(err)
	}
	return nil
}

// QuickAccessProfiles returns the staff roster grouped for the quick-access grid.
func (s *TerminalService) QuickAccessProfiles(ctx context.Context) ([]domain.RoleGroup, error) {
	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return domain.GroupProfiles(profiles), nil
}

// Surfaces returns the login surfaces of a terminal.
func (s *TerminalService) Surfaces(ctx context.Context, terminalID string) ([]domain.SurfaceView, error) {
	t, err := s.terminal(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	return t.surfaces.Views(), nil
}

// SetSurfaceOpen forwards an open/close request from a login surface.
func (s *TerminalService) SetSurfaceOpen(ctx context.Context, terminalID string, kind domain.SurfaceKind, open bool) (domain.SurfaceView, error) {
	t, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.SurfaceView{}, err
	}
	sf, ok := t.surfaces.Get(kind)
	if !ok {
		return domain.SurfaceView{}, domain.ErrInvalidInput
	}
	sf.OnOpenChange(open)
	return sf.View(), nil
}

// Close stops pending timers of every terminal.
func (s *TerminalService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.terminals {
		t.surfaces.Close()
		t.machine.Close()
	}
}

// PruneIdle drops terminals whose last transition is older than the idle
// TTL. A pruned terminal is restored from the session store on next use if
// its snapshot is still there.
func (s *TerminalService) PruneIdle() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	var idle []*terminal
	for id, t := range s.terminals {
		if t.machine.Snapshot().UpdatedAt.Before(cutoff) {
			idle = append(idle, t)
			delete(s.terminals, id)
		}
	}
	metrics.ActiveTerminals.Set(float64(len(s.terminals)))
	s.mu.Unlock()

	for _, t := range idle {
		t.surfaces.Close()
		t.machine.Close()
	}
	if len(idle) > 0 {
		s.log.Debug().Int("count", len(idle)).Msg("idle terminals pruned")
	}
	return len(idle)
}

// StartPruning runs PruneIdle every interval until ctx is done.
func (s *TerminalService) StartPruning(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.PruneIdle()
			}
		}
	}()
}

// register returns the terminal for id, creating it from persisted (which may
// be nil) when it is not held yet.
func (s *TerminalService) register(id string, persisted *domain.PersistedSession) *terminal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.terminals[id]; ok {
		return t
	}

	m := NewSessionMachine(id, MachineDeps{
		Credentials: s.creds,
		Scheduler:   s.scheduler,
		Audit:       s.audit,
		Logger:      s.log,
		Now:         s.now,
	})
	if persisted != nil {
		m.Restore(*persisted)
	}
	t := &terminal{machine: m, surfaces: surface.NewSet(m)}
	s.terminals[id] = t

	metrics.ActiveTerminals.Set(float64(len(s.terminals)))
	return t
}

func (s *TerminalService) evict(id string, t *terminal) {
	s.mu.Lock()
	if cur, ok := s.terminals[id]; ok && cur == t {
		delete(s.terminals, id)
	}
	metrics.ActiveTerminals.Set(float64(len(s.terminals)))
	s.mu.Unlock()

	t.surfaces.Close()
	t.machine.Close()
}

// terminal returns the terminal for id, brought up to date with the session
// store. Another instance may have created, locked or signed out the terminal
// since this one last touched it.
func (s *TerminalService) terminal(ctx context.Context, id string) (*terminal, error) {
	s.mu.Lock()
	t, ok := s.terminals[id]
	s.mu.Unlock()

	persisted, err := s.sessions.Load(ctx, id)
	switch {
	case errors.Is(err, domain.ErrTerminalNotFound):
		if ok {
			s.log.Debug().Str("terminal_id", id).Msg("terminal expired from session store")
			s.evict(id, t)
		}
		return nil, err
	case err != nil && ok:
		s.log.Warn().Err(err).Str("terminal_id", id).Msg("session store unavailable, using local state")
		return t, nil
	case err != nil:
		return nil, err
	}

	if !ok {
		s.log.Debug().Str("terminal_id", id).Bool("locked", persisted.IsLocked).Msg("terminal restored")
		return s.register(id, persisted), nil
	}
	if t.machine.RestoreIfNewer(*persisted) {
		s.log.Debug().Str("terminal_id", id).Bool("locked", persisted.IsLocked).Msg("terminal refreshed from session store")
	}
	return t, nil
}

func (s *TerminalService) profile(ctx context.Context, id string) (*domain.UserProfile, error) {
	p, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.NewAuthError(domain.ErrorUserNotFound, "Profile not found.")
		}
		return nil, s.authFailure(err)
	}
	return p, nil
}

// authResult persists the session and, on success, attaches a session token.
// On failure the result still carries the session snapshot.
func (s *TerminalService) authResult(ctx context.Context, m *SessionMachine, user *domain.UserProfile, authErr error) (*ports.AuthResult, error) {
	if authErr != nil {
		if errors.Is(authErr, domain.ErrNoActiveSession) {
			return nil, authErr
		}
		return &ports.AuthResult{Session: m.Snapshot()}, authErr
	}

	s.persist(ctx, m)
	token, err := s.generateToken(m.TerminalID(), user)
	if err != nil {
		return nil, err
	}
	return &ports.AuthResult{Session: m.Snapshot(), Token: token}, nil
}

func (s *TerminalService) persist(ctx context.Context, m *SessionMachine) {
	if err := s.sessions.Save(ctx, m.Persisted()); err != nil {
		s.log.Warn().Err(err).Str("terminal_id", m.TerminalID()).Msg("failed to persist session")
	}
}

func (s *TerminalService) authFailure(err error) error {
	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		s.log.Error().Err(err).Msg("credential store failure")
	}
	return domain.AsAuthError(err)
}

func (s *TerminalService) recordReset(email string, err error) {
	if s.audit == nil {
		return
	}
	ev := domain.AuthEvent{
		Method:    domain.MethodPasswordReset,
		Email:     email,
		Success:   err == nil,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		ev.ErrorType = domain.AsAuthError(err).Type
	}
	s.audit.Record(ev)
}

func (s *TerminalService) generateToken(terminalID string, user *domain.UserProfile) (string, error) {
	claims := jwt.MapClaims{
		"sub":         user.ID,
		"name":        user.FullName,
		"role":        string(user.Role),
		"terminal_id": terminalID,
		"exp":         time.Now().Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
