// Package session keeps per-conversation routing state: the profile collected
// so far and the position in the intake script.
package session

import (
	"context"
	"errors"

	"swasthya/backend/internal/profile"
)

var ErrMissingID = errors.New("session: conversation id is required")

type State struct {
	UserContext      profile.Context `json:"userContext"`
	ProfileSetupStep int             `json:"profileSetupStep"`
	ProfileComplete  bool            `json:"profileComplete"`
}

// Store maps a conversation id to its State. Writes are last-write-wins.
type Store interface {
	Get(ctx context.Context, id string) (State, bool, error)
	// CreateIfAbsent returns the stored state, creating a fresh one first
	// when the id is unknown.
	CreateIfAbsent(ctx context.Context, id string) (State, error)
	Update(ctx context.Context, id string, state State) error
}

func (s State) Clone() State {
	s.UserContext = s.UserContext.Clone()
	return s
}
