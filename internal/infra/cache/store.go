package cache

import (
	"context"
	"errors"
	"strconv"
	"time"
)

var ErrCacheMiss = errors.New("cache: miss")

// Key identifies a membership decision. It is comparable and used directly
// as a map key; String gives an unambiguous encoding for string-keyed
// backends.
type Key struct {
	TeamID string
	UserID string
}

func NewKey(teamID, userID string) Key {
	return Key{TeamID: teamID, UserID: userID}
}

// String length-prefixes the team id so that no two distinct pairs encode
// to the same string, whatever characters the ids contain.
func (k Key) String() string {
	return strconv.Itoa(len(k.TeamID)) + ":" + k.TeamID + ":" + k.UserID
}

type Entry struct {
	IsMember  bool      `json:"is_member"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Live reports whether the entry is still valid at now.
func (e *Entry) Live(now time.Time) bool {
	return e != nil && now.Before(e.ExpiresAt)
}

// Store holds membership entries. Get returns ErrCacheMiss when nothing is
// stored for the key. Set overwrites any previous entry for the key.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	Set(ctx context.Context, key Key, entry *Entry) error
}
