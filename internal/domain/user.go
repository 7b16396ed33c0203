package domain

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	// RoleSystem is used by background jobs and trusted payment signals.
	RoleSystem Role = "system"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleCustomer, RoleAdmin, RoleSystem:
		return Role(s), true
	}
	return "", false
}

// Actor is the identity attached to every mutating call. It is issued by the
// authentication collaborator and only used for role gates here.
type Actor struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

func SystemActor() Actor {
	return Actor{UserID: "system", Role: RoleSystem}
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// CanActOn reports whether the actor may touch a reservation owned by ownerID.
func (a Actor) CanActOn(ownerID string) bool {
	return a.IsStaff() || (a.Role == RoleCustomer && a.UserID == ownerID)
}

// UserContact is the read-only slice of a user record needed for notifications.
type UserContact struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (u UserContact) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
