package model

import (
	"time"

	"adxchange/internal/types"
)

type User struct {
	ID          string
	TelegramID  int64
	Username    string
	DisplayName string
	Locale      string
	Role        types.Role
	Roles       []types.Role
	IsActive    bool
	IsBanned    bool
	LastLoginAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (u *User) HasRole(r types.Role) bool {
	if u.Role == r {
		return true
	}
	for _, existing := range u.Roles {
		if existing == r {
			return true
		}
	}
	return false
}

// LoginSession is the one-shot Telegram login handshake: a token carries
// four candidate codes, one of which is correct, shown to the user in the
// bot chat for confirmation.
type LoginSession struct {
	Token       string
	CorrectCode string
	Codes       []string
	IPAddress   string
	UserAgent   string
	TelegramID  int64
	Authorized  bool
	ExpiresAt   time.Time
}
