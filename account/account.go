// Package account stores user records and the single login session in the
// shared key-value store.
package account

import (
	"context"
	"time"

	"draftdesk/keyval"
)

// User is a registered account. Records are append-only: there is no update
// or delete operation for users.
type User struct {
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is the singleton login record. At most one session exists at a
// time. It holds only a username string; no referential check against the
// user collection is made when it is read.
type Session struct {
	Username string    `json:"username"`
	LoggedAt time.Time `json:"loggedAt"`
}

// Store provides registration, credential checks, and session state.
type Store struct {
	codec *keyval.Codec
	now   func() time.Time
}

// New creates an account store over the shared codec.
func New(codec *keyval.Codec) *Store {
	return &Store{
		codec: codec,
		now:   time.Now,
	}
}

// ListUsers returns the user collection in insertion order.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	return keyval.Read(ctx, s.codec, keyval.KeyUsers, []User{})
}

// UserExists reports whether a user with the given username is registered.
// Usernames are case-sensitive.
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

// AddUser registers a new user. It returns false without mutating anything
// when the username is already taken. The existence check and the write are
// two separate store operations, so two instances registering the same new
// username at once can both pass the check; the last writer wins.
func (s *Store) AddUser(ctx context.Context, username, password string) (bool, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u.Username == username {
			return false, nil
		}
	}
	users = append(users, User{
		Username:  username,
		Password:  password,
		CreatedAt: s.now(),
	})
	if err := keyval.Write(ctx, s.codec, keyval.KeyUsers, users); err != nil {
		return false, err
	}
	return true, nil
}

// ValidateUser reports whether the exact username/password pair is
// registered. Unknown user and wrong password are deliberately
// indistinguishable.
func (s *Store) ValidateUser(ctx context.Context, username, password string) (bool, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u.Username == username && u.Password == password {
			return true, nil
		}
	}
	return false, nil
}

// SetSession replaces the singleton session.
func (s *Store) SetSession(ctx context.Context, username string) error {
	return keyval.Write(ctx, s.codec, keyval.KeySession, Session{
		Username: username,
		LoggedAt: s.now(),
	})
}

// GetSession returns the current session; ok is false when nobody is
// logged in or the stored record is unreadable.
func (s *Store) GetSession(ctx context.Context) (Session, bool, error) {
	session, err := keyval.Read(ctx, s.codec, keyval.KeySession, Session{})
	if err != nil {
		return Session{}, false, err
	}
	if session.Username == "" {
		return Session{}, false, nil
	}
	return session, true, nil
}

// ClearSession removes the session record.
func (s *Store) ClearSession(ctx context.Context) error {
	return s.codec.Remove(ctx, keyval.KeySession)
}
