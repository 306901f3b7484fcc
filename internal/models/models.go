package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// NotesLimit caps the unpaginated notes query.
	NotesLimit = 100
	// FeedPageSize is the number of notes returned per noteFeed page.
	FeedPageSize = 10
)

var (
	ErrNotFound        = errors.New("models: not found")
	ErrConflict        = errors.New("models: already exists")
	ErrInvalidArgument = errors.New("models: invalid argument")
)

// User is an account. PasswordHash is a bcrypt hash and never leaves this
// process.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Avatar       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Note struct {
	ID            string
	Content       string
	AuthorID      string
	FavoriteCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Avatar       string
}

// Store is the data access contract used by resolvers.
//
// IDs are UUIDv7 strings, so ordering by ID is ordering by creation time.
// List methods return newest first.
type Store interface {
	CreateUser(ctx context.Context, u NewUser) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	CreateNote(ctx context.Context, authorID, content string) (Note, error)
	NoteByID(ctx context.Context, id string) (Note, error)
	ListNotes(ctx context.Context, limit int) ([]Note, error)
	NotesByAuthor(ctx context.Context, authorID string) ([]Note, error)
	// NoteFeed returns up to limit notes older than cursor. An empty cursor
	// starts from the newest note.
	NoteFeed(ctx context.Context, cursor string, limit int) ([]Note, error)
	UpdateNote(ctx context.Context, id, content string) (Note, error)
	DeleteNote(ctx context.Context, id string) error

	// ToggleFavorite adds userID to the note's favorites, or removes it if
	// already present, and returns the updated note.
	ToggleFavorite(ctx context.Context, noteID, userID string) (Note, error)
	FavoritedBy(ctx context.Context, noteID string) ([]User, error)
	FavoritesOf(ctx context.Context, userID string) ([]Note, error)
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
