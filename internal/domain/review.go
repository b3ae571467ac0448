package domain

import (
	"time"
)

// MaxAnswerLength bounds each review answer, counted in runes.
const MaxAnswerLength = 2000

// FeedLimit is the number of entries the feed returns.
const FeedLimit = 50

// Review is a stored endorsement. Author identity stays inside the service;
// every outward view drops it.
type Review struct {
	ID            string
	AuthorID      string
	TargetID      string
	TalentsAnswer string
	ClientAnswer  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReviewView is the anonymous form of a review returned to readers.
type ReviewView struct {
	ID            string    `json:"id"`
	TalentsAnswer string    `json:"talentsAnswer"`
	ClientAnswer  string    `json:"clientAnswer"`
	CreatedAt     time.Time `json:"createdAt"`
}

// FeedTarget is the public view of the account a feed entry is about.
type FeedTarget struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// FeedItem is one entry of the global feed.
type FeedItem struct {
	ID            string     `json:"id"`
	TalentsAnswer string     `json:"talentsAnswer"`
	ClientAnswer  string     `json:"clientAnswer"`
	CreatedAt     time.Time  `json:"createdAt"`
	Target        FeedTarget `json:"target"`
}

// SubmitResult reports the outcome of a review write. Updated is set when a
// legacy pair constraint turned the insert into an update.
type SubmitResult struct {
	ReviewID string `json:"entryId"`
	Updated  bool   `json:"updated"`
}
