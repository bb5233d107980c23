package domain

import (
	"fmt"
	"time"
)

// Role is one of the fixed staff roles of the garage.
type Role string

const (
	RoleManager    Role = "Manager"
	RoleTechnician Role = "Technician"
	RoleFrontDesk  Role = "Front Desk"
)

// Roles lists every role in quick-access display order.
var Roles = []Role{RoleManager, RoleTechnician, RoleFrontDesk}

// ParseRole validates a role string coming from storage or a request.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleManager, RoleTechnician, RoleFrontDesk:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// UserProfile is a staff member as seen by the terminal.
type UserProfile struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
}

// Public returns the profile without contact details. Terminal-facing
// payloads are readable by anyone holding the terminal id.
func (p UserProfile) Public() UserProfile {
	p.Email, p.Phone, p.Address = "", "", ""
	return p
}

// IsManager reports whether the profile signs in with a manager password
// instead of a PIN.
func (p UserProfile) IsManager() bool {
	return p.Role == RoleManager
}

// StaffAccount is the stored credential record behind a profile.
type StaffAccount struct {
	Profile      UserProfile
	PasswordHash string
	PinHash      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Capabilities are the role-derived UI gates exposed to the CRUD screens.
// They are advisory; mutating endpoints enforce roles on the server.
type Capabilities struct {
	Role           Role `json:"role"`
	CanRead        bool `json:"can_read"`
	CanWrite       bool `json:"can_write"`
	CanDisable     bool `json:"can_disable"`
	CanManageStaff bool `json:"can_manage_staff"`
}

// CapabilitiesFor derives the UI gates for a role.
func CapabilitiesFor(role Role) Capabilities {
	office := role == RoleManager || role == RoleFrontDesk
	return Capabilities{
		Role:           role,
		CanRead:        office || role == RoleTechnician,
		CanWrite:       office,
		CanDisable:     role == RoleManager,
		CanManageStaff: role == RoleManager,
	}
}

// RoleGroup is one section of the quick-access profile grid.
type RoleGroup struct {
	Role     Role          `json:"role"`
	Label    string        `json:"label"`
	Profiles []UserProfile `json:"profiles"`
}

var groupLabels = map[Role]string{
	RoleManager:    "Managers",
	RoleTechnician: "Technicians",
	RoleFrontDesk:  "Front Desk",
}

// GroupProfiles buckets profiles by role in Roles order, preserving the input
// order inside each bucket. Empty buckets are omitted.
func GroupProfiles(profiles []UserProfile) []RoleGroup {
	buckets := make(map[Role][]UserProfile, len(Roles))
	for _, p := range profiles {
		buckets[p.Role] = append(buckets[p.Role], p)
	}
	groups := make([]RoleGroup, 0, len(Roles))
	for _, r := range Roles {
		if len(buckets[r]) == 0 {
			continue
		}
		groups = append(groups, RoleGroup{Role: r, Label: groupLabels[r], Profiles: buckets[r]})
	}
	return groups
}
