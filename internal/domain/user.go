package domain

import "time"

// Roles a user can hold
const (
	RoleUser  = "user"  // Regular customer
	RoleAdmin = "admin" // Administrator
)

// User Model
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                  // Primary key
	Username  string    `gorm:"unique;not null;size:150" json:"username"` // Unique username
	Password  string    `gorm:"not null" json:"-"`                      // Hashed password
	Role      string    `gorm:"default:user" json:"role"`               // Role: user or admin
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"` // Deactivated users cannot authenticate
	CreatedAt time.Time `json:"created_at"`                             // Registration time
}

// IsAdmin reports whether the user holds the admin role
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Principal returns the authenticated identity used by the core services
func (u User) Principal() Principal {
	return Principal{UserID: u.ID, Admin: u.IsAdmin()}
}

// Principal is the caller identity every registry and ledger call is scoped to.
type Principal struct {
	UserID uint // Owning user
	Admin  bool // Role flag
}
