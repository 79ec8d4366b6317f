package model

import "time"

// Team is the group behind a single chat. Its ID is the chat identifier
// assigned by the messaging platform.
type Team struct {
	ID                 int64     `json:"id" db:"id"`
	SuggestionsEnabled bool      `json:"suggestions_enabled" db:"suggestions_enabled"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// User is a chat participant observed by the bot.
type User struct {
	ID        int64     `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	Username  string    `json:"username,omitempty" db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DisplayName returns "@username" when the user has one, otherwise the
// first name.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}
