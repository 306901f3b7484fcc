package graph

import (
	"context"

	"notes-api/internal/models"

	"github.com/graph-gophers/graphql-go"
)

type noteResolver struct {
	note  models.Note
	store models.Store
}

func wrapNotes(notes []models.Note, store models.Store) []*noteResolver {
	out := make([]*noteResolver, 0, len(notes))
	for _, n := range notes {
		out = append(out, &noteResolver{note: n, store: store})
	}
	return out
}

func (n *noteResolver) ID() graphql.ID       { return graphql.ID(n.note.ID) }
func (n *noteResolver) Content() string      { return n.note.Content }
func (n *noteResolver) FavoriteCount() int32 { return int32(n.note.FavoriteCount) }

func (n *noteResolver) CreatedAt() graphql.Time { return graphql.Time{Time: n.note.CreatedAt} }
func (n *noteResolver) UpdatedAt() graphql.Time { return graphql.Time{Time: n.note.UpdatedAt} }

func (n *noteResolver) Author(ctx context.Context) (*userResolver, error) {
	u, err := n.store.UserByID(ctx, n.note.AuthorID)
	if err != nil {
		return nil, resolverError(ctx, "note.author", err)
	}
	return &userResolver{user: u, store: n.store}, nil
}

func (n *noteResolver) FavoritedBy(ctx context.Context) ([]*userResolver, error) {
	users, err := n.store.FavoritedBy(ctx, n.note.ID)
	if err != nil {
		return nil, resolverError(ctx, "note.favoritedBy", err)
	}
	return wrapUsers(users, n.store), nil
}

type userResolver struct {
	user  models.User
	store models.Store
}

func wrapUsers(users []models.User, store models.Store) []*userResolver {
	out := make([]*userResolver, 0, len(users))
	for _, u := range users {
		out = append(out, &userResolver{user: u, store: store})
	}
	return out
}

func (u *userResolver) ID() graphql.ID   { return graphql.ID(u.user.ID) }
func (u *userResolver) Username() string { return u.user.Username }
func (u *userResolver) Email() string    { return u.user.Email }

func (u *userResolver) Avatar() *string {
	if u.user.Avatar == "" {
		return nil
	}
	a := u.user.Avatar
	return &a
}

func (u *userResolver) Notes(ctx context.Context) ([]*noteResolver, error) {
	notes, err := u.store.NotesByAuthor(ctx, u.user.ID)
	if err != nil {
		return nil, resolverError(ctx, "user.notes", err)
	}
	return wrapNotes(notes, u.store), nil
}

func (u *userResolver) Favorites(ctx context.Context) ([]*noteResolver, error) {
	notes, err := u.store.FavoritesOf(ctx, u.user.ID)
	if err != nil {
		return nil, resolverError(ctx, "user.favorites", err)
	}
	return wrapNotes(notes, u.store), nil
}

type feedResolver struct {
	notes   []*noteResolver
	cursor  string
	hasNext bool
}

func (f *feedResolver) Notes() []*noteResolver { return f.notes }
func (f *feedResolver) Cursor() string         { return f.cursor }
func (f *feedResolver) HasNextPage() bool      { return f.hasNext }
