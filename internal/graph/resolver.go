package graph

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"notes-api/internal/auth"
	"notes-api/internal/models"
	"notes-api/internal/rbac"

	"github.com/graph-gophers/graphql-go"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

var (
	errSignUp = newError(CodeBadUserInput, "error creating account")
	errSignIn = newError(CodeUnauthenticated, "error signing in")
)

// Resolver is the root resolver for both Query and Mutation.
type Resolver struct {
	auth     *auth.Manager
	clock    func() time.Time
	hashCost int
}

// NewResolver uses m to issue tokens from signUp and signIn.
func NewResolver(m *auth.Manager) *Resolver {
	return &Resolver{auth: m, clock: time.Now, hashCost: bcrypt.DefaultCost}
}

func requestContext(ctx context.Context) (*Context, error) {
	rc, ok := FromContext(ctx)
	if !ok || rc.Models == nil {
		return nil, errors.New("graph: request context missing")
	}
	return rc, nil
}

// Query

func (r *Resolver) Notes(ctx context.Context) ([]*noteResolver, error) {
	rc, err := requestContext(ctx)
	if err != nil {
		return nil, resolverError(ctx, "notes", err)
	}
	notes, err := rc.Models.ListNotes(ctx, models.NotesLimit)
	if err != nil {
		return nil, resolverError(ctx, "notes", err)
	}
	return wrapNotes(notes, rc.Models), nil
}

func (r *Resolver) Note(ctx context.Context, args struct{ ID graphql.ID }) (*noteResolver, error) {
	rc, err := requestContext(ctx)
	if err != nil {
		return nil, resolverError(ctx, "note", err)
	}
	n, err := rc.Models.NoteByID(ctx, string(args.ID))
	if err != nil {
		return nil, resolverError(ctx, "note", err)
	}
	return &noteResolver{note: n, store: rc.Models}, nil
}

// User returns null for an unknown username.
func (r *Resolver) User(ctx context.Context, args struct{ Username string }) (*userResolver, error) {
	rc, err := requestContext(ctx)
	if err != nil {
		return nil, resolverError(ctx, "user", err)
	}
	u, err := rc.Models.UserByUsername(ctx, args.Username)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, resolverError(ctx, "user", err)
	}
	return &userResolver{user: u, store: rc.Models}, nil
}

func (r *Resolver) Users(ctx context.Context) ([]*userResolver, error) {
	rc, err := requestContext(ctx)
	if err != nil {
		return nil, resolverError(ctx, "users", err)
	}
	users, err := rc.Models.ListUsers(ctx)
	if err != nil {
		return nil, resolverError(ctx, "users", err)
	}
	return wrapUsers(users, rc.Models), nil
}

func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	rc, err := requestContext(ctx)
	if err != nil {
		return nil, resolverError(ctx, "me", err)
	}
	uid, err := rbac.RequireUser(rc.Claims)
	if err != nil {
		return nil, resolverError(ctx, "me", err)
	}
	u, err := rc.Models.UserByID(ctx, uid)
	if errors.Is(err, models.ErrNotFound) {
		// Valid token for an account that no longer exists.
		return nil, resolverError(ctx, "me", rbac.ErrUnauthenticated)
	}
	if err != nil {
		return nil, resolverError(ctx, "me", err)
	}
	return &userResolver{user: u, store: rc.Models}, nil
}

func (r *Resolver) NoteFeed(ctx context.Context, args struct{ Cursor *string }) (*feedResolver, error) {
	rc, err := requestContext(ctx)
	if err != nil {
		return nil, resolverError(ctx, "noteFeed", err)
	}
	var cursor string
	if args.Cursor != nil {
		cursor = *args.Cursor
	}

	notes, err := rc.Models.NoteFeed(ctx, cursor, models.FeedPageSize+1)
	if err != nil {
		return nil, resolverError(ctx, "noteFeed", err)
	}
	feed := &feedResolver{}
	if len(notes) > models.FeedPageSize {
		feed.hasNext = true
		notes = notes[:models.FeedPageSize]
	}
	if len(notes) > 0 {
		feed.cursor = notes[len(notes)-1].ID
	}
	feed.notes = wrapNotes(notes, rc.Models)
	return feed, nil
}

// Mutation

func (r *Resolver) NewNote(ctx context.Context, args struct{ Content string }) (*noteResolver, error) {
	rc, err := requestContext(ctx)
	if err != nil {
		return nil, resolverError(ctx, "newNote", err)
	}
	uid, err := rbac.RequireUser(rc.Claims)
	if err != nil {
		return nil, resolverError(ctx, "newNote", err)
	}
	n, err := rc.Models.CreateNote(ctx, uid, args.Content)
	if err != nil {
		return nil, resolverError(ctx, "newNote", err)
	}
	return &noteResolver{note: n, store: rc.Models}, nil
}

// authoredNote loads the note and checks the caller wrote it.
func (r *Resolver) authoredNote(ctx context.Context, rc *Context, id graphql.ID) (models.Note, error) {
	if _, err := rbac.RequireUser(rc.Claims); err != nil {
		return models.Note{}, err
	}
	n, err := rc.Models.NoteByID(ctx, string(id))
	if err != nil {
		return models.Note{}, err
	}
	if _, err := rbac.RequireAuthor(rc.Claims, n.AuthorID); err != nil {
		return models.Note{}, err
	}
	return n, nil
}

func (r *Resolver) UpdateNote(ctx context.Context, args struct {
	ID      graphql.ID
	Content string
}) (*noteResolver, error) {
	rc, err := requestContext(ctx)
	if err != nil {
		return nil, resolverError(ctx, "updateNote", err)
	}
	if _, err := r.authoredNote(ctx, rc, args.ID); err != nil {
		return nil, resolverError(ctx, "updateNote", err)
	}
	n, err := rc.Models.UpdateNote(ctx, string(args.ID), args.Content)
	if err != nil {
		return nil, resolverError(ctx, "updateNote", err)
	}
	return &noteResolver{note: n, store: rc.Models}, nil
}

func (r *Resolver) DeleteNote(ctx context.Context, args struct{ ID graphql.ID }) (bool, error) {
	rc, err := requestContext(ctx)
	if err != nil {
		return false, resolverError(ctx, "deleteNote", err)
	}
	if _, err := r.authoredNote(ctx, rc, args.ID); err != nil {
		return false, resolverError(ctx, "deleteNote", err)
	}
	if err := rc.Models.DeleteNote(ctx, string(args.ID)); err != nil {
		return false, resolverError(ctx, "deleteNote", err)
	}
	return true, nil
}

func (r *Resolver) ToggleFavorite(ctx context.Context, args struct{ ID graphql.ID }) (*noteResolver, error) {
	rc, err := requestContext(ctx)
	if err != nil {
		return nil, resolverError(ctx, "toggleFavorite", err)
	}
	uid, err := rbac.RequireUser(rc.Claims)
	if err != nil {
		return nil, resolverError(ctx, "toggleFavorite", err)
	}
	n, err := rc.Models.ToggleFavorite(ctx, string(args.ID), uid)
	if err != nil {
		return nil, resolverError(ctx, "toggleFavorite", err)
	}
	return &noteResolver{note: n, store: rc.Models}, nil
}

func (r *Resolver) SignUp(ctx context.Context, args struct {
	Username string
	Email    string
	Password string
}) (string, error) {
	rc, err := requestContext(ctx)
	if err != nil {
		return "", resolverError(ctx, "signUp", err)
	}
	username := strings.TrimSpace(args.Username)
	email := normalizeEmail(args.Email)
	if username == "" || email == "" || args.Password == "" || len(args.Password) > maxPasswordBytes {
		return "", errSignUp
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(args.Password), r.hashCost)
	if err != nil {
		return "", resolverError(ctx, "signUp", err)
	}
	u, err := rc.Models.CreateUser(ctx, models.NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Avatar:       gravatar(email),
	})
	if errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrInvalidArgument) {
		return "", errSignUp
	}
	if err != nil {
		return "", resolverError(ctx, "signUp", err)
	}
	return r.issue(ctx, "signUp", u.ID)
}

func (r *Resolver) SignIn(ctx context.Context, args struct {
	Username *string
	Email    *string
	Password string
}) (string, error) {
	rc, err := requestContext(ctx)
	if err != nil {
		return "", resolverError(ctx, "signIn", err)
	}

	var u models.User
	switch {
	case args.Email != nil && strings.TrimSpace(*args.Email) != "":
		u, err = rc.Models.UserByEmail(ctx, normalizeEmail(*args.Email))
	case args.Username != nil && strings.TrimSpace(*args.Username) != "":
		u, err = rc.Models.UserByUsername(ctx, strings.TrimSpace(*args.Username))
	default:
		return "", errSignIn
	}
	if errors.Is(err, models.ErrNotFound) {
		return "", errSignIn
	}
	if err != nil {
		return "", resolverError(ctx, "signIn", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(args.Password)) != nil {
		return "", errSignIn
	}
	return r.issue(ctx, "signIn", u.ID)
}

func (r *Resolver) issue(ctx context.Context, op, userID string) (string, error) {
	tok, err := r.auth.Issue(r.clock(), userID)
	if err != nil {
		return "", resolverError(ctx, op, err)
	}
	return tok, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func gravatar(email string) string {
	sum := md5.Sum([]byte(email))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + ".jpg?d=identicon"
}
