package models

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store useful for tests and local runs.
// It is not intended for production use.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]User
	notes     map[string]Note
	favorites map[string][]string // note id -> user ids, in favoriting order
	clock     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]User),
		notes:     make(map[string]Note),
		favorites: make(map[string][]string),
		clock:     time.Now,
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, u NewUser) (User, error) {
	if u.Username == "" || u.Email == "" || u.PasswordHash == "" {
		return User{}, ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return User{}, ErrConflict
		}
	}

	now := s.clock().UTC()
	user := User{
		ID:           newID(),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Avatar:       u.Avatar,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *MemoryStore) UserByID(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) UserByUsername(ctx context.Context, username string) (User, error) {
	return s.findUser(func(u User) bool { return u.Username == username })
}

func (s *MemoryStore) UserByEmail(ctx context.Context, email string) (User, error) {
	return s.findUser(func(u User) bool { return u.Email == email })
}

func (s *MemoryStore) findUser(match func(User) bool) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b User) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) CreateNote(ctx context.Context, authorID, content string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[authorID]; !ok {
		return Note{}, ErrNotFound
	}

	now := s.clock().UTC()
	n := Note{
		ID:        newID(),
		Content:   content,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.notes[n.ID] = n
	return n, nil
}

func (s *MemoryStore) NoteByID(ctx context.Context, id string) (Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.noteLocked(id)
}

func (s *MemoryStore) noteLocked(id string) (Note, error) {
	n, ok := s.notes[id]
	if !ok {
		return Note{}, ErrNotFound
	}
	n.FavoriteCount = len(s.favorites[id])
	return n, nil
}

func (s *MemoryStore) ListNotes(ctx context.Context, limit int) ([]Note, error) {
	return s.selectNotes(limit, func(Note) bool { return true }), nil
}

func (s *MemoryStore) NotesByAuthor(ctx context.Context, authorID string) ([]Note, error) {
	return s.selectNotes(0, func(n Note) bool { return n.AuthorID == authorID }), nil
}

func (s *MemoryStore) NoteFeed(ctx context.Context, cursor string, limit int) ([]Note, error) {
	return s.selectNotes(limit, func(n Note) bool {
		return cursor == "" || n.ID < cursor
	}), nil
}

// selectNotes returns matching notes newest first. limit <= 0 means no limit.
func (s *MemoryStore) selectNotes(limit int, match func(Note) bool) []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Note, 0)
	for id, n := range s.notes {
		if !match(n) {
			continue
		}
		n.FavoriteCount = len(s.favorites[id])
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b Note) int { return strings.Compare(b.ID, a.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) UpdateNote(ctx context.Context, id, content string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return Note{}, ErrNotFound
	}
	n.Content = content
	n.UpdatedAt = s.clock().UTC()
	s.notes[id] = n
	return s.noteLocked(id)
}

func (s *MemoryStore) DeleteNote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return ErrNotFound
	}
	delete(s.notes, id)
	delete(s.favorites, id)
	return nil
}

func (s *MemoryStore) ToggleFavorite(ctx context.Context, noteID, userID string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[noteID]; !ok {
		return Note{}, ErrNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return Note{}, ErrNotFound
	}

	favs := s.favorites[noteID]
	if i := slices.Index(favs, userID); i >= 0 {
		s.favorites[noteID] = slices.Delete(favs, i, i+1)
	} else {
		s.favorites[noteID] = append(favs, userID)
	}
	return s.noteLocked(noteID)
}

func (s *MemoryStore) FavoritedBy(ctx context.Context, noteID string) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.favorites[noteID]
	out := make([]User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *MemoryStore) FavoritesOf(ctx context.Context, userID string) ([]Note, error) {
	s.mu.RLock()
	favored := make(map[string]struct{})
	for noteID, ids := range s.favorites {
		if slices.Contains(ids, userID) {
			favored[noteID] = struct{}{}
		}
	}
	s.mu.RUnlock()

	return s.selectNotes(0, func(n Note) bool {
		_, ok := favored[n.ID]
		return ok
	}), nil
}

var _ Store = (*MemoryStore)(nil)
