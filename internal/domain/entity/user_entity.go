package entity

import (
	"time"
)

// User is the aggregate root for the account domain.
// Passwords are stored as bcrypt hashes in PasswordHash and never leave the service.
type User struct {
	ID               string
	Email            string
	Username         string
	PasswordHash     string
	Name             string
	Bio              string
	DOB              string
	ProfileImgURL    string
	BannerImgURL     string
	Followers        int
	Following        int
	IsVerified       bool
	IsContentCreator bool
	IsDating         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
