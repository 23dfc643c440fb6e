package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gatehouse/models"
)

// maxResponseBody caps how much of a PostgREST response is read.
const maxResponseBody = 1 << 20

// APIError is a non-success answer from PostgREST.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("postgrest: status %d code %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("postgrest: status %d: %s", e.Status, e.Message)
}

// SupabaseStore reaches the users table through the Supabase REST API
// (PostgREST under /rest/v1).
type SupabaseStore struct {
	endpoint string
	key      string
	client   *http.Client
}

// NewSupabaseStore validates baseURL and returns a store for table.
func NewSupabaseStore(baseURL, key, table string, client *http.Client) (*SupabaseStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid SUPABASE_URL %q", baseURL)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: empty SUPABASE_KEY", ErrNotConfigured)
	}
	if table == "" {
		table = "users"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &SupabaseStore{
		endpoint: strings.TrimRight(baseURL, "/") + "/rest/v1/" + url.PathEscape(table),
		key:      key,
		client:   client,
	}, nil
}

// supabaseRow mirrors the columns the store reads back.
type supabaseRow struct {
	ID           flexibleID `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
}

func (r supabaseRow) account() *models.Account {
	return &models.Account{
		ID:           string(r.ID),
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
	}
}

// flexibleID accepts both integer and string primary keys.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("unsupported id %s", b)
	}
	*id = flexibleID(n.String())
	return nil
}

func (s *SupabaseStore) InsertUser(ctx context.Context, email, passwordHash string) (*models.Account, error) {
	body, err := json.Marshal(map[string]string{
		"email":         email,
		"password_hash": passwordHash,
	})
	if err != nil {
		return nil, err
	}

	req, err := s.newRequest(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	var rows []supabaseRow
	if err := s.do(req, &rows); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Code == "23505" || apiErr.Status == http.StatusConflict) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	if len(rows) == 0 || rows[0].ID == "" {
		return nil, errors.New("failed to insert user: empty representation")
	}

	acc := rows[0].account()
	if acc.PasswordHash == "" {
		acc.PasswordHash = passwordHash
	}
	return acc, nil
}

func (s *SupabaseStore) FindUserByEmail(ctx context.Context, email string) (*models.Account, error) {
	q := url.Values{}
	q.Set("select", "id,email,password_hash")
	q.Set("email", "eq."+email)
	q.Set("limit", "1")

	req, err := s.newRequest(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var rows []supabaseRow
	if err := s.do(req, &rows); err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].account(), nil
}

func (s *SupabaseStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *SupabaseStore) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. Anything else becomes
// an *APIError.
func (s *SupabaseStore) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
