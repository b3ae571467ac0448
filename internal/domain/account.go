package domain

import (
	"strings"
	"time"
)

// Synthetic test identities occupy this platform id range. They are created
// by the admin seed and never receive chat messages.
const (
	SyntheticPlatformIDMin int64 = 999999000
	SyntheticPlatformIDMax int64 = 999999999
)

// IsSyntheticPlatformID reports whether id belongs to seeded test data.
func IsSyntheticPlatformID(id int64) bool {
	return id >= SyntheticPlatformIDMin && id <= SyntheticPlatformIDMax
}

// PlatformIdentity is the caller identity extracted from verified init data.
type PlatformIdentity struct {
	ID           int64  `json:"id" validate:"gt=0"`
	FirstName    string `json:"first_name" validate:"notblank"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// Account is one community member. PlatformID is never serialized on public
// listings; Profile exposes it to the account's owner only.
type Account struct {
	ID         string    `json:"id"`
	PlatformID int64     `json:"-"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName,omitempty"`
	PhotoURL   string    `json:"photoUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DisplayName joins the first and last name.
func (a *Account) DisplayName() string {
	return DisplayName(a.FirstName, a.LastName)
}

// DisplayName joins a first name and an optional last name.
func DisplayName(first, last string) string {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if last == "" {
		return first
	}
	return first + " " + last
}

// AccountFromIdentity builds the upsert input for a verified identity.
func AccountFromIdentity(id *PlatformIdentity, photoURL string) *Account {
	return &Account{
		PlatformID: id.ID,
		Username:   strings.TrimSpace(id.Username),
		FirstName:  strings.TrimSpace(id.FirstName),
		LastName:   strings.TrimSpace(id.LastName),
		PhotoURL:   photoURL,
	}
}

// Profile is the caller's own account with the reviews they received.
type Profile struct {
	Account
	PlatformID  int64        `json:"platformId"`
	DisplayName string       `json:"displayName"`
	Reviews     []ReviewView `json:"reviews"`
}

// NewProfile assembles a Profile; reviews is never nil in the result.
func NewProfile(a *Account, reviews []ReviewView) *Profile {
	if reviews == nil {
		reviews = []ReviewView{}
	}
	return &Profile{
		Account:     *a,
		PlatformID:  a.PlatformID,
		DisplayName: a.DisplayName(),
		Reviews:     reviews,
	}
}
