package domain

import "time"

// User mirrors the customer record returned by the backend auth API.
type User struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Role      string     `json:"role,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// AuthSession is a point-in-time view of a browser's authentication state.
// Token and User are either both set or both empty.
type AuthSession struct {
	Token       string `json:"-"`
	User        *User  `json:"user"`
	IsAdmin     bool   `json:"is_admin"`
	HasHydrated bool   `json:"has_hydrated"`
}

// IsAuthenticated reports whether the session carries a logged-in user.
func (s AuthSession) IsAuthenticated() bool {
	return s.HasHydrated && s.Token != "" && s.User != nil
}
