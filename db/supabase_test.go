package db

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePostgREST is a tiny in-memory stand-in for /rest/v1/users.
type fakePostgREST struct {
	mu      sync.Mutex
	rows    []map[string]any
	nextID  int
	inserts int
	lastReq *http.Request
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = r

	if r.Header.Get("apikey") != "test-key" || r.Header.Get("Authorization") != "Bearer test-key" {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "Invalid API key"})
		return
	}
	if r.URL.Path != "/rest/v1/users" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodPost:
		f.inserts++
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		for _, row := range f.rows {
			if row["email"] == in["email"] {
				w.WriteHeader(http.StatusConflict)
				json.NewEncoder(w).Encode(map[string]string{
					"code":    "23505",
					"message": `duplicate key value violates unique constraint "users_email_key"`,
					"details": "Key (email)=(" + in["email"] + ") already exists.",
				})
				return
			}
		}
		f.nextID++
		row := map[string]any{"id": f.nextID, "email": in["email"], "password_hash": in["password_hash"], "created_at": "2024-05-01T10:00:00.123456"}
		f.rows = append(f.rows, row)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]map[string]any{row})
	case http.MethodGet:
		want := r.URL.Query().Get("email")
		out := []map[string]any{}
		for _, row := range f.rows {
			if "eq."+row["email"].(string) == want {
				out = append(out, row)
			}
		}
		json.NewEncoder(w).Encode(out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakePostgREST) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func (f *fakePostgREST) counts() (inserts, rows int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts, len(f.rows)
}

func newSupabaseStore(t *testing.T, h http.Handler) *SupabaseStore {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s, err := NewSupabaseStore(srv.URL+"/", "test-key", "users", srv.Client())
	require.NoError(t, err)
	return s
}

func TestSupabaseInsertAndFind(t *testing.T) {
	fake := &fakePostgREST{}
	s := newSupabaseStore(t, fake)
	ctx := context.Background()

	acc, err := s.InsertUser(ctx, "a@x.com", "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "1", acc.ID)
	assert.Equal(t, "a@x.com", acc.Email)
	assert.Equal(t, "return=representation", fake.last().Header.Get("Prefer"))

	found, err := s.FindUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "1", found.ID)
	assert.Equal(t, "hash-1", found.PasswordHash)
	assert.Equal(t, "1", fake.last().URL.Query().Get("limit"))
}

func TestSupabaseDuplicateEmail(t *testing.T) {
	fake := &fakePostgREST{}
	s := newSupabaseStore(t, fake)
	ctx := context.Background()

	_, err := s.InsertUser(ctx, "dup@x.com", "hash-1")
	require.NoError(t, err)

	_, err = s.InsertUser(ctx, "dup@x.com", "hash-2")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	inserts, rows := fake.counts()
	assert.Equal(t, 2, inserts, "exactly one request per insert, no retry")
	assert.Equal(t, 1, rows)
}

func TestSupabaseFindMissing(t *testing.T) {
	s := newSupabaseStore(t, &fakePostgREST{})

	_, err := s.FindUserByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupabaseUUIDIdentifiers(t *testing.T) {
	s := newSupabaseStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":"0b9f7c3e-2f4e-4d55-8a1b-3c2d1e0f9a87","email":"u@x.com"}]`))
	}))

	acc, err := s.InsertUser(context.Background(), "u@x.com", "hash")
	require.NoError(t, err)
	assert.Equal(t, "0b9f7c3e-2f4e-4d55-8a1b-3c2d1e0f9a87", acc.ID)
	assert.Equal(t, "hash", acc.PasswordHash)
}

func TestSupabaseServerErrors(t *testing.T) {
	s := newSupabaseStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	}))
	ctx := context.Background()

	_, err := s.InsertUser(ctx, "a@x.com", "hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateEmail)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "upstream exploded", apiErr.Message)

	_, err = s.FindUserByEmail(ctx, "a@x.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSupabaseBadKey(t *testing.T) {
	srv := httptest.NewServer(&fakePostgREST{})
	defer srv.Close()

	s, err := NewSupabaseStore(srv.URL, "wrong-key", "users", srv.Client())
	require.NoError(t, err)

	_, err = s.FindUserByEmail(context.Background(), "a@x.com")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid API key", apiErr.Message)
}

func TestNewSupabaseStoreValidation(t *testing.T) {
	_, err := NewSupabaseStore("not a url", "key", "users", nil)
	assert.Error(t, err)

	_, err = NewSupabaseStore("https://x.supabase.co", "", "users", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	s, err := NewSupabaseStore("https://x.supabase.co", "key", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://x.supabase.co/rest/v1/users", s.endpoint)
}
