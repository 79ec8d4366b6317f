// Package keylock provides mutual exclusion per string key.
package keylock

import (
	"fmt"
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Map hands out one mutex per key and forgets keys nobody holds.
type Map struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty Map.
func New() *Map {
	return &Map{entries: make(map[string]*entry)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (m *Map) Lock(key string) (unlock func()) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.entries, key)
		}
		m.mu.Unlock()
	}
}

// Len returns the number of keys currently held or waited on.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// ReminderKey is the key guarding the notifications of one meeting in one chat.
func ReminderKey(meetingID string, chatID int64) string {
	return fmt.Sprintf("reminder:%s:%d", meetingID, chatID)
}

// SessionKey is the key guarding one conversation session.
func SessionKey(chatID, userID int64) string {
	return fmt.Sprintf("session:%d:%d", chatID, userID)
}

// TeamKey is the key serialising meeting creation within one team.
func TeamKey(teamID int64) string {
	return fmt.Sprintf("team:%d", teamID)
}
