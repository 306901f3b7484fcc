package models

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"
	"time"

	"notes-api/pkg/utils"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schemaSQL string

// Postgres SQLSTATE codes mapped to Store errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRepr     = "22P02"
)

// PostgresStore implements Store on database/sql with the pgx driver.
// Tables are created by Migrate; see schema.sql.
type PostgresStore struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

// Migrate applies schema.sql. Every statement is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// mapError translates driver errors into Store errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrConflict
		case pgForeignKeyViolation, pgInvalidTextRepr:
			// Malformed or dangling ids cannot match a row.
			return ErrNotFound
		}
	}
	return err
}

const userColumns = `id, username, email, password_hash, avatar, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Avatar,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return User{}, mapError(err)
	}
	return u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u NewUser) (User, error) {
	if u.Username == "" || u.Email == "" || u.PasswordHash == "" {
		return User{}, ErrInvalidArgument
	}
	const q = `
INSERT INTO users (id, username, email, password_hash, avatar, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
RETURNING ` + userColumns

	now := s.clock().UTC()
	return scanUser(s.db.QueryRowContext(ctx, q, newID(), u.Username, u.Email, u.PasswordHash, u.Avatar, now))
}

func (s *PostgresStore) UserByID(ctx context.Context, id string) (User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(s.db.QueryRowContext(ctx, q, username))
}

func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(s.db.QueryRowContext(ctx, q, email))
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	const q = `SELECT ` + userColumns + ` FROM users ORDER BY id`
	return s.queryUsers(ctx, q)
}

func (s *PostgresStore) FavoritedBy(ctx context.Context, noteID string) ([]User, error) {
	const q = `
SELECT u.id, u.username, u.email, u.password_hash, u.avatar, u.created_at, u.updated_at
FROM note_favorites f
JOIN users u ON u.id = f.user_id
WHERE f.note_id = $1
ORDER BY f.created_at
`
	return s.queryUsers(ctx, q, noteID)
}

func (s *PostgresStore) queryUsers(ctx context.Context, q string, args ...any) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, mapError(rows.Err())
}

// noteSelect projects the favorite count so every read returns a complete Note.
const noteSelect = `
SELECT n.id, n.content, n.author_id, n.created_at, n.updated_at,
       (SELECT COUNT(*) FROM note_favorites f WHERE f.note_id = n.id) AS favorite_count
FROM notes n
`

func scanNote(row rowScanner) (Note, error) {
	var n Note
	if err := row.Scan(
		&n.ID,
		&n.Content,
		&n.AuthorID,
		&n.CreatedAt,
		&n.UpdatedAt,
		&n.FavoriteCount,
	); err != nil {
		return Note{}, mapError(err)
	}
	return n, nil
}

func (s *PostgresStore) CreateNote(ctx context.Context, authorID, content string) (Note, error) {
	const q = `
INSERT INTO notes (id, content, author_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
RETURNING id, content, author_id, created_at, updated_at, 0
`
	now := s.clock().UTC()
	return scanNote(s.db.QueryRowContext(ctx, q, newID(), content, authorID, now))
}

func (s *PostgresStore) NoteByID(ctx context.Context, id string) (Note, error) {
	return scanNote(s.db.QueryRowContext(ctx, noteSelect+`WHERE n.id = $1`, id))
}

func (s *PostgresStore) ListNotes(ctx context.Context, limit int) ([]Note, error) {
	return s.queryNotes(ctx, noteSelect+`ORDER BY n.id DESC LIMIT $1`, limit)
}

func (s *PostgresStore) NotesByAuthor(ctx context.Context, authorID string) ([]Note, error) {
	return s.queryNotes(ctx, noteSelect+`WHERE n.author_id = $1 ORDER BY n.id DESC`, authorID)
}

func (s *PostgresStore) NoteFeed(ctx context.Context, cursor string, limit int) ([]Note, error) {
	if cursor == "" {
		return s.queryNotes(ctx, noteSelect+`ORDER BY n.id DESC LIMIT $1`, limit)
	}
	return s.queryNotes(ctx, noteSelect+`WHERE n.id < $1 ORDER BY n.id DESC LIMIT $2`, cursor, limit)
}

func (s *PostgresStore) FavoritesOf(ctx context.Context, userID string) ([]Note, error) {
	const where = `WHERE n.id IN (SELECT note_id FROM note_favorites WHERE user_id = $1) ORDER BY n.id DESC`
	return s.queryNotes(ctx, noteSelect+where, userID)
}

func (s *PostgresStore) queryNotes(ctx context.Context, q string, args ...any) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, mapError(rows.Err())
}

func (s *PostgresStore) UpdateNote(ctx context.Context, id, content string) (Note, error) {
	const q = `UPDATE notes SET content = $2, updated_at = $3 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id, content, s.clock().UTC())
	if err != nil {
		return Note{}, mapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Note{}, ErrNotFound
	}
	return s.NoteByID(ctx, id)
}

func (s *PostgresStore) DeleteNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ToggleFavorite(ctx context.Context, noteID, userID string) (Note, error) {
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		// Lock the note row so concurrent toggles on one note serialize.
		var id string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM notes WHERE id = $1 FOR UPDATE`, noteID).Scan(&id); err != nil {
			return mapError(err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM note_favorites WHERE note_id = $1 AND user_id = $2`, noteID, userID)
		if err != nil {
			return mapError(err)
		}
		if n, err := res.RowsAffected(); err != nil || n > 0 {
			return err
		}

		const ins = `INSERT INTO note_favorites (note_id, user_id, created_at) VALUES ($1, $2, $3)`
		_, err = tx.ExecContext(ctx, ins, noteID, userID, s.clock().UTC())
		return mapError(err)
	})
	if err != nil {
		return Note{}, err
	}
	return s.NoteByID(ctx, noteID)
}

var _ Store = (*PostgresStore)(nil)
