// Package surface binds the terminal login entry points (full-page login,
// switch-user dialog and floating quick-switch widget) to a single session
// machine. Surfaces own no authentication logic: they only decide whether they
// are visible, open and dismissible for the current session snapshot.
package surface

import (
	"sync"

	"github.com/garagedesk/staff-auth/internal/core/domain"
)

// Source is the session a surface set observes.
type Source interface {
	Snapshot() domain.SessionSnapshot
	OnChange(fn func(domain.SessionSnapshot)) (unsubscribe func())
}

// Kinds lists the surfaces of a terminal in render order.
var Kinds = []domain.SurfaceKind{
	domain.SurfaceFullPage,
	domain.SurfaceSwitchDialog,
	domain.SurfaceFloatingWidget,
}

// Surface is one login entry point.
type Surface struct {
	kind domain.SurfaceKind

	mu   sync.Mutex
	open bool
	last domain.SessionSnapshot
}

func newSurface(kind domain.SurfaceKind, snap domain.SessionSnapshot) *Surface {
	s := &Surface{kind: kind, last: snap}
	s.open = visible(kind, snap) && (kind == domain.SurfaceFullPage || snap.IsLocked)
	return s
}

// OnOpenChange handles an open/close request coming from the UI. Close
// requests are ignored while the terminal is locked; open requests are ignored
// while the surface is hidden.
func (s *Surface) OnOpenChange(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !open && s.last.IsLocked {
		return
	}
	if open && !visible(s.kind, s.last) {
		return
	}
	s.open = open
}

// View returns what the surface should render.
func (s *Surface) View() domain.SurfaceView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SurfaceView{
		Kind:        s.kind,
		Visible:     visible(s.kind, s.last),
		Open:        s.open,
		Dismissible: !s.last.IsLocked,
	}
}

func (s *Surface) apply(snap domain.SessionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.UpdatedAt.Before(s.last.UpdatedAt) {
		return
	}
	prev := s.last
	s.last = snap

	switch {
	case !visible(s.kind, snap):
		s.open = false
	case snap.IsLocked && !prev.IsLocked:
		s.open = true
	case snap.State == domain.StateAuthenticated && signedIn(prev, snap):
		s.open = false
	case snap.State == domain.StateUnauthenticated && s.kind == domain.SurfaceFullPage:
		s.open = true
	}
}

// signedIn reports whether snap is the result of a successful authentication
// relative to prev.
func signedIn(prev, snap domain.SessionSnapshot) bool {
	if prev.State != domain.StateAuthenticated {
		return true
	}
	return prev.CurrentUser == nil || snap.CurrentUser == nil || prev.CurrentUser.ID != snap.CurrentUser.ID
}

// visible applies the per-surface visibility rule.
func visible(kind domain.SurfaceKind, snap domain.SessionSnapshot) bool {
	switch kind {
	case domain.SurfaceFullPage:
		return snap.State == domain.StateUnauthenticated || snap.State == domain.StateLocked
	case domain.SurfaceSwitchDialog:
		return snap.CurrentUser != nil && snap.CurrentUser.Role != domain.RoleManager
	case domain.SurfaceFloatingWidget:
		if snap.CurrentUser == nil {
			return false
		}
		return snap.CurrentUser.Role == domain.RoleFrontDesk || snap.CurrentUser.Role == domain.RoleTechnician
	}
	return false
}

// Set is the group of surfaces bound to one terminal.
type Set struct {
	surfaces    map[domain.SurfaceKind]*Surface
	unsubscribe func()
}

// NewSet creates every surface kind and subscribes them to src.
func NewSet(src Source) *Set {
	snap := src.Snapshot()
	set := &Set{surfaces: make(map[domain.SurfaceKind]*Surface, len(Kinds))}
	for _, k := range Kinds {
		set.surfaces[k] = newSurface(k, snap)
	}
	set.unsubscribe = src.OnChange(func(snap domain.SessionSnapshot) {
		for _, k := range Kinds {
			set.surfaces[k].apply(snap)
		}
	})
	return set
}

// Get returns the surface of the given kind.
func (s *Set) Get(kind domain.SurfaceKind) (*Surface, bool) {
	sf, ok := s.surfaces[kind]
	return sf, ok
}

// Views returns the view of every surface in Kinds order.
func (s *Set) Views() []domain.SurfaceView {
	views := make([]domain.SurfaceView, 0, len(Kinds))
	for _, k := range Kinds {
		views = append(views, s.surfaces[k].View())
	}
	return views
}

// Close detaches the set from its source.
func (s *Set) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
