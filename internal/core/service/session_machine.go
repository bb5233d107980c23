package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/garagedesk/staff-auth/internal/core/domain"
	"github.com/garagedesk/staff-auth/internal/core/ports"
	"github.com/garagedesk/staff-auth/internal/pkg/metrics"
)

// MachineDeps are the collaborators of a SessionMachine.
type MachineDeps struct {
	Credentials ports.CredentialStore
	Scheduler   ports.Scheduler
	Audit       ports.AuditSink // optional
	Logger      zerolog.Logger
	Now         func() time.Time // optional
}

// SessionMachine is the authentication state machine of a single terminal:
// Unauthenticated → Authenticated(user) → Locked(user) → Authenticated(...).
//
// Credential checks are serialised by opMu. mu guards the session fields and
// is never held across a store call, so snapshots stay readable while a
// verification is in flight.
type SessionMachine struct {
	terminalID string
	creds      ports.CredentialStore
	scheduler  ports.Scheduler
	audit      ports.AuditSink
	log        zerolog.Logger
	now        func() time.Time

	opMu sync.Mutex
	mu   sync.Mutex

	currentUser *domain.UserProfile
	locked      bool
	step        domain.QuickAccessStep
	selected    *domain.UserProfile
	pinAttempts int
	lastErr     *domain.AuthError
	updatedAt   time.Time

	// flow changes whenever the quick-access flow restarts; a credential check
	// started under an older flow is discarded.
	flow      uint64
	resetGen  uint64
	stopReset func() bool

	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func(domain.SessionSnapshot)
}

// check describes one credential verification for auditing.
type check struct {
	method  domain.AuthMethod
	profile *domain.UserProfile
	email   string
	attempt int
}

// NewSessionMachine returns an unauthenticated machine for terminalID.
func NewSessionMachine(terminalID string, deps MachineDeps) *SessionMachine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &SessionMachine{
		terminalID: terminalID,
		creds:      deps.Credentials,
		scheduler:  deps.Scheduler,
		audit:      deps.Audit,
		log:        deps.Logger.With().Str("terminal_id", terminalID).Logger(),
		now:        now,
		step:       domain.StepSelectUser,
		updatedAt:  now().UTC(),
	}
}

// TerminalID returns the terminal this machine belongs to.
func (m *SessionMachine) TerminalID() string {
	return m.terminalID
}

// Restore applies a persisted session, typically written by another instance.
// The machine takes over the persisted UpdatedAt.
func (m *SessionMachine) Restore(p domain.PersistedSession) {
	m.mu.Lock()
	m.restoreLocked(p)
}

// RestoreIfNewer applies p only when it was written after the machine's last
// transition, and reports whether it did.
func (m *SessionMachine) RestoreIfNewer(p domain.PersistedSession) bool {
	m.mu.Lock()
	if !p.UpdatedAt.After(m.updatedAt) {
		m.mu.Unlock()
		return false
	}
	m.restoreLocked(p)
	return true
}

// restoreLocked is called with mu held and releases it.
func (m *SessionMachine) restoreLocked(p domain.PersistedSession) {
	if p.CurrentUser != nil {
		u := *p.CurrentUser
		m.currentUser = &u
		m.locked = p.IsLocked
	} else {
		m.currentUser = nil
		m.locked = false
	}
	m.resetFlowLocked()

	at := p.UpdatedAt.UTC()
	if p.UpdatedAt.IsZero() {
		at = m.now().UTC()
	}
	m.updatedAt = at
	m.publishLocked()
}

// Snapshot returns a copy of the current session.
func (m *SessionMachine) Snapshot() domain.SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Persisted returns the durable part of the session.
func (m *SessionMachine) Persisted() domain.PersistedSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.PersistedSession{
		TerminalID:  m.terminalID,
		CurrentUser: cloneProfile(m.currentUser),
		IsLocked:    m.locked,
		UpdatedAt:   m.updatedAt,
	}
}

// OnChange registers fn to receive a snapshot after every transition. fn runs
// synchronously on the goroutine that made the change, after the machine's
// lock is released. The returned function removes the listener.
func (m *SessionMachine) OnChange(fn func(domain.SessionSnapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listener{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Close cancels any pending lockout reset.
func (m *SessionMachine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelResetLocked()
}

// Login authenticates with email and password. Malformed input is rejected
// locally without contacting the credential store.
func (m *SessionMachine) Login(ctx context.Context, email, password string) (*domain.UserProfile, error) {
	c := check{method: domain.MethodPassword, email: email}
	if ae := validateLogin(email, password); ae != nil {
		m.fail(c, ae)
		return nil, ae
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	flow := m.currentFlow()
	user, err := m.verify(c.method, func() (*domain.UserProfile, error) {
		return m.creds.VerifyEmailPassword(ctx, email, password)
	})
	if err == nil && user == nil {
		err = errors.New("credential store returned no user")
	}
	return m.conclude(ctx, flow, c, user, err, nil)
}

// SelectUser starts the quick-access flow for profile: managers are routed to
// password entry, everyone else to PIN entry. Attempts and errors reset.
func (m *SessionMachine) SelectUser(profile domain.UserProfile) domain.SessionSnapshot {
	m.mu.Lock()
	m.selectLocked(profile)
	m.log.Debug().Str("profile_id", profile.ID).Str("step", string(m.step)).Msg("quick access profile selected")
	return m.commitLocked()
}

// SubmitPin verifies profile's PIN. The attempt counter is incremented first;
// once it reaches MaxPinAttempts the submission is rejected without a store
// call and the selection is reset after PinLockoutResetDelay.
func (m *SessionMachine) SubmitPin(ctx context.Context, profile domain.UserProfile, pin string) (*domain.UserProfile, error) {
	if profile.IsManager() {
		p := profile
		ae := domain.NewAuthError(domain.ErrorInvalidCredentials, domain.MsgManagerUsesPass)
		m.fail(check{method: domain.MethodPin, profile: &p}, ae)
		return nil, ae
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.selected == nil || m.selected.ID != profile.ID {
		m.selectLocked(profile)
	}
	m.pinAttempts++
	attempt := m.pinAttempts
	flow := m.flow
	c := check{method: domain.MethodPin, profile: cloneProfile(&profile), attempt: attempt}

	if attempt >= domain.MaxPinAttempts {
		ae := domain.NewAuthError(domain.ErrorInvalidPin, domain.MsgPinLockout)
		m.lastErr = ae
		if m.stopReset == nil {
			m.scheduleResetLocked()
		}
		m.commitLocked()

		metrics.PinLockoutsTotal.Inc()
		m.log.Warn().Str("profile_id", profile.ID).Int("attempt", attempt).Msg("pin attempts exhausted")
		m.record(c, ae)
		return nil, ae
	}
	m.commitLocked()

	user, err := m.verify(c.method, func() (*domain.UserProfile, error) {
		return m.creds.VerifyPin(ctx, profile.ID, pin)
	})
	if err == nil && user == nil {
		user = cloneProfile(&profile)
	}
	return m.conclude(ctx, flow, c, user, err, func(ae *domain.AuthError) *domain.AuthError {
		msg := fmt.Sprintf("%s (Attempt %d/%d)", ae.Message, attempt, domain.MaxPinAttempts)
		return domain.NewAuthError(ae.Type, msg)
	})
}

// SubmitManagerPassword verifies a manager's password. There is no attempt
// limit on this path.
func (m *SessionMachine) SubmitManagerPassword(ctx context.Context, profile domain.UserProfile, password string) (*domain.UserProfile, error) {
	c := check{method: domain.MethodManagerPassword, profile: cloneProfile(&profile)}
	if !profile.IsManager() {
		ae := domain.NewAuthError(domain.ErrorInvalidCredentials, domain.MsgNotManager)
		m.fail(c, ae)
		return nil, ae
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.selected == nil || m.selected.ID != profile.ID {
		m.selectLocked(profile)
	}
	flow := m.flow
	m.mu.Unlock()

	user, err := m.verify(c.method, func() (*domain.UserProfile, error) {
		return m.creds.VerifyManagerPassword(ctx, profile.ID, password)
	})
	if err == nil && user == nil {
		user = cloneProfile(&profile)
	}
	return m.conclude(ctx, flow, c, user, err, nil)
}

// LockScreen locks the terminal for the current user. Locking an already
// locked terminal is a no-op.
func (m *SessionMachine) LockScreen() (domain.SessionSnapshot, error) {
	m.mu.Lock()
	if m.currentUser == nil {
		m.mu.Unlock()
		return domain.SessionSnapshot{}, domain.ErrNoActiveSession
	}
	if m.locked {
		defer m.mu.Unlock()
		return m.snapshotLocked(), nil
	}
	m.locked = true
	m.resetFlowLocked()
	user := *m.currentUser
	snap := m.commitLocked()

	metrics.ScreenLocksTotal.Inc()
	m.log.Info().Str("user_id", user.ID).Msg("terminal locked")
	m.record(check{method: domain.MethodLock, profile: &user}, nil)
	return snap, nil
}

// UnlockWithPin is SubmitPin bound to the current user.
func (m *SessionMachine) UnlockWithPin(ctx context.Context, pin string) (*domain.UserProfile, error) {
	user, err := m.current()
	if err != nil {
		return nil, err
	}
	return m.SubmitPin(ctx, user, pin)
}

// UnlockWithPassword is SubmitManagerPassword bound to the current user.
func (m *SessionMachine) UnlockWithPassword(ctx context.Context, password string) (*domain.UserProfile, error) {
	user, err := m.current()
	if err != nil {
		return nil, err
	}
	return m.SubmitManagerPassword(ctx, user, password)
}

// Logout ends the current session. A locked terminal must be unlocked first.
func (m *SessionMachine) Logout() (domain.SessionSnapshot, error) {
	m.mu.Lock()
	if m.locked {
		m.mu.Unlock()
		return domain.SessionSnapshot{}, domain.ErrSessionLocked
	}
	if m.currentUser == nil {
		m.mu.Unlock()
		return domain.SessionSnapshot{}, domain.ErrNoActiveSession
	}
	user := *m.currentUser
	m.currentUser = nil
	m.resetFlowLocked()
	snap := m.commitLocked()

	m.log.Info().Str("user_id", user.ID).Msg("terminal signed out")
	m.record(check{method: domain.MethodLogout, profile: &user}, nil)
	return snap, nil
}

func (m *SessionMachine) current() (domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentUser == nil {
		return domain.UserProfile{}, domain.ErrNoActiveSession
	}
	return *m.currentUser, nil
}

func (m *SessionMachine) currentFlow() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flow
}

func (m *SessionMachine) verify(method domain.AuthMethod, call func() (*domain.UserProfile, error)) (*domain.UserProfile, error) {
	start := time.Now()
	user, err := call()
	metrics.CredentialCheckDuration.WithLabelValues(string(method)).Observe(time.Since(start).Seconds())
	return user, err
}

// conclude applies the outcome of a credential check unless the request was
// cancelled or the flow it belonged to has been restarted meanwhile.
func (m *SessionMachine) conclude(
	ctx context.Context,
	flow uint64,
	c check,
	user *domain.UserProfile,
	err error,
	decorate func(*domain.AuthError) *domain.AuthError,
) (*domain.UserProfile, error) {
	if ctx.Err() != nil {
		ae := domain.NewAuthError(domain.ErrorNetwork, domain.MsgRequestCancelled)
		m.record(c, ae)
		return nil, ae
	}

	if err != nil {
		var known *domain.AuthError
		if !errors.As(err, &known) {
			m.log.Error().Err(err).Str("method", string(c.method)).Msg("credential store failure")
		}
	}

	m.mu.Lock()
	if m.flow != flow {
		m.mu.Unlock()
		ae := domain.NewAuthError(domain.ErrorUnknown, domain.MsgSuperseded)
		m.record(c, ae)
		return nil, ae
	}

	if err != nil {
		ae := domain.AsAuthError(err)
		if decorate != nil {
			ae = decorate(ae)
		}
		m.lastErr = ae
		m.commitLocked()
		m.record(c, ae)
		return nil, ae
	}

	m.authenticateLocked(*user)
	m.commitLocked()

	m.log.Info().Str("user_id", user.ID).Str("method", string(c.method)).Msg("terminal authenticated")
	if c.profile == nil {
		c.profile = cloneProfile(user)
	}
	m.record(c, nil)
	return cloneProfile(user), nil
}

// fail publishes a locally produced error.
func (m *SessionMachine) fail(c check, ae *domain.AuthError) {
	m.mu.Lock()
	m.lastErr = ae
	m.commitLocked()
	m.record(c, ae)
}

func (m *SessionMachine) selectLocked(p domain.UserProfile) {
	m.cancelResetLocked()
	m.flow++
	m.selected = cloneProfile(&p)
	m.step = domain.StepFor(p)
	m.pinAttempts = 0
	m.lastErr = nil
}

func (m *SessionMachine) authenticateLocked(user domain.UserProfile) {
	m.currentUser = cloneProfile(&user)
	m.locked = false
	m.resetFlowLocked()
}

// resetFlowLocked returns the quick-access flow to profile selection.
func (m *SessionMachine) resetFlowLocked() {
	m.cancelResetLocked()
	m.flow++
	m.selected = nil
	m.step = domain.StepSelectUser
	m.pinAttempts = 0
	m.lastErr = nil
}

func (m *SessionMachine) scheduleResetLocked() {
	m.resetGen++
	gen := m.resetGen
	m.stopReset = m.scheduler.AfterFunc(domain.PinLockoutResetDelay, func() {
		m.expireLockout(gen)
	})
}

func (m *SessionMachine) cancelResetLocked() {
	if m.stopReset != nil {
		m.stopReset()
		m.stopReset = nil
	}
	m.resetGen++
}

// expireLockout runs when the lockout delay elapses. A superseded timer
// finds a different generation and does nothing.
func (m *SessionMachine) expireLockout(gen uint64) {
	m.mu.Lock()
	if gen != m.resetGen || m.stopReset == nil {
		m.mu.Unlock()
		return
	}
	m.stopReset = nil
	m.resetFlowLocked()
	m.log.Debug().Msg("pin lockout expired, back to profile selection")
	m.commitLocked()
}

// commitLocked stamps the session, releases mu and notifies listeners.
// It must be called with mu held.
func (m *SessionMachine) commitLocked() domain.SessionSnapshot {
	m.updatedAt = m.now().UTC()
	return m.publishLocked()
}

// publishLocked releases mu and hands the snapshot to the listeners.
func (m *SessionMachine) publishLocked() domain.SessionSnapshot {
	snap := m.snapshotLocked()
	fns := make([]func(domain.SessionSnapshot), 0, len(m.listeners))
	for _, l := range m.listeners {
		fns = append(fns, l.fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
	return snap
}

func (m *SessionMachine) snapshotLocked() domain.SessionSnapshot {
	state := domain.StateUnauthenticated
	switch {
	case m.locked:
		state = domain.StateLocked
	case m.currentUser != nil:
		state = domain.StateAuthenticated
	}

	var lastErr *domain.AuthError
	if m.lastErr != nil {
		e := *m.lastErr
		lastErr = &e
	}

	return domain.SessionSnapshot{
		TerminalID:   m.terminalID,
		State:        state,
		CurrentUser:  cloneProfile(m.currentUser),
		IsLocked:     m.locked,
		Step:         m.step,
		SelectedUser: cloneProfile(m.selected),
		PinAttempts:  m.pinAttempts,
		Error:        lastErr,
		UpdatedAt:    m.updatedAt,
	}
}

func (m *SessionMachine) record(c check, ae *domain.AuthError) {
	result := "success"
	if ae != nil {
		result = strings.ToLower(string(ae.Type))
	}
	switch c.method {
	case domain.MethodPassword, domain.MethodPin, domain.MethodManagerPassword:
		metrics.AuthAttemptsTotal.WithLabelValues(string(c.method), result).Inc()
	}

	if m.audit == nil {
		return
	}
	ev := domain.AuthEvent{
		TerminalID: m.terminalID,
		Method:     c.method,
		Email:      c.email,
		Success:    ae == nil,
		Attempt:    c.attempt,
		Timestamp:  m.now().UTC(),
	}
	if c.profile != nil {
		ev.ProfileID = c.profile.ID
	}
	if ae != nil {
		ev.ErrorType = ae.Type
	}
	m.audit.Record(ev)
}

func validateLogin(email, password string) *domain.AuthError {
	if !domain.ValidEmail(email) {
		return domain.NewAuthError(domain.ErrorInvalidCredentials, domain.MsgInvalidEmail)
	}
	if len(password) < domain.MinPasswordLength {
		return domain.NewAuthError(domain.ErrorInvalidCredentials, domain.MsgPasswordTooShort)
	}
	return nil
}

func cloneProfile(p *domain.UserProfile) *domain.UserProfile {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
