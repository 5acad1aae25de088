package auth

import (
	"strings"
	"time"
)

// Identity is one registered user. The secret fields never leave the
// process: they are tagged out of JSON and stripped by Sanitized.
type Identity struct {
	ID                  string    `json:"id"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	FullName            string    `json:"fullName"`
	PasswordHash        string    `json:"-"`
	CurrentRefreshToken string    `json:"-"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// PublicIdentity is the client-facing shape of an Identity.
type PublicIdentity struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Sanitized returns a copy without the password hash and refresh slot.
func (i Identity) Sanitized() Identity {
	i.PasswordHash = ""
	i.CurrentRefreshToken = ""
	return i
}

func (i Identity) Public() PublicIdentity {
	return PublicIdentity{
		ID:        i.ID,
		Username:  i.Username,
		Email:     i.Email,
		FullName:  i.FullName,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// NormalizeHandle lower-cases and trims a username or email for storage and
// lookup.
func NormalizeHandle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
