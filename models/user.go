package models

import "time"

type UserRole string

const (
	RoleStaff  UserRole = "staff"
	RoleMember UserRole = "member"
)

// User is a registered voter. Tokens are only issued to users whose password
// matches PasswordHash.
type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"password_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor is the authenticated caller of a command.
type Actor struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Role        UserRole `json:"role"`
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff
}

// Credentials is the login payload. A correct StaffKey adds the staff role.
type Credentials struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
	StaffKey string `json:"staff_key,omitempty"`
}

type RegisterInput struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}
