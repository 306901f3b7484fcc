package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"notes-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// countingStore records how often the notes list was read, to prove a
// request never reached a resolver.
type countingStore struct {
	*models.MemoryStore
	listNotes atomic.Int32
}

func (s *countingStore) ListNotes(ctx context.Context, limit int) ([]models.Note, error) {
	s.listNotes.Add(1)
	return s.MemoryStore.ListNotes(ctx, limit)
}

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message    string                 `json:"message"`
		Extensions map[string]interface{} `json:"extensions"`
	} `json:"errors"`
}

type testServer struct {
	router *gin.Engine
	store  *countingStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := testManager("s1")
	store := &countingStore{MemoryStore: models.NewMemoryStore()}

	res := NewResolver(m)
	res.hashCost = bcrypt.MinCost
	schema, err := NewSchema(res, DefaultRules)
	require.NoError(t, err)
	gate, err := NewGate(schema, DefaultRules)
	require.NoError(t, err)

	r := gin.New()
	NewHandler(schema, gate, NewBuilder(m, store)).Mount(r, "/api")
	return &testServer{router: r, store: store}
}

func (s *testServer) post(t *testing.T, token, query string, vars map[string]interface{}) (int, gqlResponse, string) {
	t.Helper()
	body, err := json.Marshal(Request{Query: query, Variables: vars})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	return s.do(t, req)
}

func (s *testServer) do(t *testing.T, req *http.Request) (int, gqlResponse, string) {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp, w.Body.String()
}

func (s *testServer) signUp(t *testing.T, username string) string {
	t.Helper()
	code, resp, raw := s.post(t, "",
		`mutation($u: String!, $e: String!) { signUp(username: $u, email: $e, password: "hunter2") }`,
		map[string]interface{}{"u": username, "e": username + "@Example.com"})
	require.Equal(t, http.StatusOK, code, raw)
	require.Empty(t, resp.Errors, raw)

	var tok string
	require.NoError(t, json.Unmarshal(resp.Data["signUp"], &tok))
	require.NotEmpty(t, tok)
	return tok
}

func TestServeAnonymousQuery(t *testing.T) {
	s := newTestServer(t)

	code, resp, raw := s.post(t, "", "{ notes { id } }", nil)
	require.Equal(t, http.StatusOK, code, raw)
	assert.Empty(t, resp.Errors)
	assert.JSONEq(t, `[]`, string(resp.Data["notes"]))
	assert.EqualValues(t, 1, s.store.listNotes.Load())
}

func TestServeNoteLifecycle(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp(t, "alice")
	bob := s.signUp(t, "bob")

	code, resp, raw := s.post(t, "Bearer "+alice,
		`mutation { newNote(content: "hello") { id content favoriteCount author { username avatar } } }`, nil)
	require.Equal(t, http.StatusOK, code, raw)
	require.Empty(t, resp.Errors, raw)

	var note struct {
		ID            string
		Content       string
		FavoriteCount int
		Author        struct {
			Username string
			Avatar   string
		}
	}
	require.NoError(t, json.Unmarshal(resp.Data["newNote"], &note))
	assert.Equal(t, "hello", note.Content)
	assert.Equal(t, "alice", note.Author.Username)
	assert.True(t, strings.HasPrefix(note.Author.Avatar, "https://www.gravatar.com/avatar/"))

	id := map[string]interface{}{"id": note.ID}

	_, resp, raw = s.post(t, bob, `mutation($id: ID!) { updateNote(id: $id, content: "mine") { id } }`, id)
	require.Len(t, resp.Errors, 1, raw)
	assert.Equal(t, CodeForbidden, resp.Errors[0].Extensions["code"])

	_, resp, raw = s.post(t, bob, `mutation($id: ID!) { toggleFavorite(id: $id) { favoriteCount favoritedBy { username } } }`, id)
	require.Empty(t, resp.Errors, raw)
	assert.JSONEq(t, `{"favoriteCount":1,"favoritedBy":[{"username":"bob"}]}`, string(resp.Data["toggleFavorite"]))

	_, resp, raw = s.post(t, alice, `mutation($id: ID!) { updateNote(id: $id, content: "edited") { content } }`, id)
	require.Empty(t, resp.Errors, raw)
	assert.JSONEq(t, `{"content":"edited"}`, string(resp.Data["updateNote"]))

	_, resp, raw = s.post(t, alice, `{ me { username email notes { content } } }`, nil)
	require.Empty(t, resp.Errors, raw)
	assert.JSONEq(t, `{"username":"alice","email":"alice@example.com","notes":[{"content":"edited"}]}`, string(resp.Data["me"]))

	_, resp, raw = s.post(t, alice, `mutation($id: ID!) { deleteNote(id: $id) }`, id)
	require.Empty(t, resp.Errors, raw)
	assert.JSONEq(t, `true`, string(resp.Data["deleteNote"]))

	_, resp, raw = s.post(t, "", `query($id: ID!) { note(id: $id) { id } }`, id)
	require.Len(t, resp.Errors, 1, raw)
	assert.Equal(t, CodeNotFound, resp.Errors[0].Extensions["code"])
}

func TestServeSignIn(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "carol")

	_, resp, raw := s.post(t, "", `mutation { signIn(email: "CAROL@example.com", password: "hunter2") }`, nil)
	require.Empty(t, resp.Errors, raw)

	_, resp, raw = s.post(t, "", `mutation { signIn(username: "carol", password: "wrong") }`, nil)
	require.Len(t, resp.Errors, 1, raw)
	assert.Equal(t, "error signing in", resp.Errors[0].Message)
	assert.Equal(t, CodeUnauthenticated, resp.Errors[0].Extensions["code"])

	_, resp, raw = s.post(t, "",
		`mutation { signUp(username: "carol", email: "other@example.com", password: "x") }`, nil)
	require.Len(t, resp.Errors, 1, raw)
	assert.Equal(t, "error creating account", resp.Errors[0].Message)
	assert.Equal(t, CodeBadUserInput, resp.Errors[0].Extensions["code"])
}

func TestServeMutationRequiresSignIn(t *testing.T) {
	s := newTestServer(t)

	code, resp, raw := s.post(t, "", `mutation { newNote(content: "x") { id } }`, nil)
	require.Equal(t, http.StatusOK, code, raw)
	require.Len(t, resp.Errors, 1, raw)
	assert.Equal(t, CodeUnauthenticated, resp.Errors[0].Extensions["code"])
}

func TestServeInvalidSessionIsRejectedBeforeExecution(t *testing.T) {
	s := newTestServer(t)
	other, err := testManager("s2").Issue(time.Now(), "u1")
	require.NoError(t, err)

	for name, token := range map[string]string{
		"other_secret": other,
		"garbage":      "Bearer not.a.token",
		"bare_scheme":  "Bearer",
	} {
		t.Run(name, func(t *testing.T) {
			code, resp, raw := s.post(t, token, "{ notes { id } }", nil)
			assert.Equal(t, http.StatusUnauthorized, code)
			require.Len(t, resp.Errors, 1, raw)
			assert.Equal(t, "session invalid", resp.Errors[0].Message)
			assert.Equal(t, CodeUnauthenticated, resp.Errors[0].Extensions["code"])
			assert.Nil(t, resp.Data)
			assert.NotContains(t, raw, other)
		})
	}
	assert.EqualValues(t, 0, s.store.listNotes.Load())
}

func TestServeDepthRejectedBeforeExecution(t *testing.T) {
	s := newTestServer(t)

	code, resp, raw := s.post(t, "", nestedQuery(6), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotEmpty(t, resp.Errors, raw)
	assert.Equal(t, CodeValidationFailed, resp.Errors[0].Extensions["code"])
	assert.Nil(t, resp.Data)
	assert.EqualValues(t, 0, s.store.listNotes.Load())
}

func TestServeGET(t *testing.T) {
	s := newTestServer(t)

	q := url.Values{"query": {"{ users { username } }"}}
	code, resp, raw := s.do(t, httptest.NewRequest(http.MethodGet, "/api?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, code, raw)
	assert.JSONEq(t, `[]`, string(resp.Data["users"]))

	q = url.Values{"query": {`mutation { newNote(content: "x") { id } }`}}
	code, resp, raw = s.do(t, httptest.NewRequest(http.MethodGet, "/api?"+q.Encode(), nil))
	assert.Equal(t, http.StatusBadRequest, code, raw)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, CodeValidationFailed, resp.Errors[0].Extensions["code"])
}

func TestServeMalformedRequests(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(`{ notes { id } }`))
	req.Header.Set("Content-Type", "text/plain")
	code, resp, _ := s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeBadRequest, resp.Errors[0].Extensions["code"])

	req = httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(`{"query":`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	code, resp, _ = s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeBadRequest, resp.Errors[0].Extensions["code"])
}

func TestNoteFeedPages(t *testing.T) {
	s := newTestServer(t)
	tok := s.signUp(t, "dave")
	for i := 0; i < models.FeedPageSize+2; i++ {
		_, resp, raw := s.post(t, tok, `mutation { newNote(content: "n") { id } }`, nil)
		require.Empty(t, resp.Errors, raw)
	}

	type page struct {
		Notes       []struct{ ID string }
		Cursor      string
		HasNextPage bool
	}
	read := func(cursor *string) page {
		_, resp, raw := s.post(t, "", `query($c: String) { noteFeed(cursor: $c) { notes { id } cursor hasNextPage } }`,
			map[string]interface{}{"c": cursor})
		require.Empty(t, resp.Errors, raw)
		var p page
		require.NoError(t, json.Unmarshal(resp.Data["noteFeed"], &p))
		return p
	}

	first := read(nil)
	assert.Len(t, first.Notes, models.FeedPageSize)
	assert.True(t, first.HasNextPage)
	assert.Equal(t, first.Notes[len(first.Notes)-1].ID, first.Cursor)

	second := read(&first.Cursor)
	assert.Len(t, second.Notes, 2)
	assert.False(t, second.HasNextPage)
}
