package domain

import "time"

const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleParent  = "parent"
)

// roleHierarchy lists, per actor role, the roles it may create or delete.
var roleHierarchy = map[string][]string{
	RoleOwner:   {RoleAdmin, RoleTeacher, RoleStudent, RoleParent},
	RoleAdmin:   {RoleTeacher, RoleStudent, RoleParent},
	RoleTeacher: {},
	RoleStudent: {},
	RoleParent:  {},
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	_, ok := roleHierarchy[role]
	return ok
}

// CanManageRole reports whether an actor with role actor may create or
// delete a user with role target.
func CanManageRole(actor, target string) bool {
	for _, r := range roleHierarchy[actor] {
		if r == target {
			return true
		}
	}
	return false
}

// ManageableRoles returns the roles actor may create or delete.
func ManageableRoles(actor string) []string {
	out := make([]string, len(roleHierarchy[actor]))
	copy(out, roleHierarchy[actor])
	return out
}

// User models an authenticated actor together with its gamification state.
type User struct {
	ID           string     `json:"id"`
	SchoolID     string     `json:"school_id,omitempty"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	XP           int64      `json:"xp"`
	Level        int        `json:"level"`
	Streak       int        `json:"streak"`
	LastActiveOn *time.Time `json:"last_active_on,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Actor is the authenticated caller of an administrative operation.
type Actor struct {
	UserID   string
	Role     string
	SchoolID string
}

// CanAccessSchool reports whether the actor may act on schoolID. Owners are
// platform-wide; everyone else is scoped to their own school.
func (a Actor) CanAccessSchool(schoolID string) bool {
	if a.Role == RoleOwner {
		return true
	}
	return a.SchoolID != "" && a.SchoolID == schoolID
}

// IsStaff reports whether role may act on other users' gamification state.
func IsStaff(role string) bool {
	return role == RoleOwner || role == RoleAdmin || role == RoleTeacher
}

// CanActOnUser reports whether the actor may read or record progress for the
// user userID belonging to schoolID. Users may always act on themselves.
func (a Actor) CanActOnUser(userID, schoolID string) bool {
	if a.UserID != "" && a.UserID == userID {
		return true
	}
	return IsStaff(a.Role) && a.CanAccessSchool(schoolID)
}

// CanAwardXP reports whether the actor may grant XP to userID in schoolID.
// Staff never award XP to themselves.
func (a Actor) CanAwardXP(userID, schoolID string) bool {
	if a.UserID == "" || a.UserID == userID {
		return false
	}
	return IsStaff(a.Role) && a.CanAccessSchool(schoolID)
}
