package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"exchange_api/internal/domain"
	"exchange_api/internal/service"
	"exchange_api/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// inMemStore mimics the MySQL store: auto-increment ids, a unique email
// index and cascading transaction deletes.
type inMemStore struct {
	mu           sync.Mutex
	users        map[uint]domain.User
	transactions map[uint]domain.Transaction
	nextID       uint
}

func newInMemStore() *inMemStore {
	return &inMemStore{
		users:        make(map[uint]domain.User),
		transactions: make(map[uint]domain.Transaction),
		nextID:       1,
	}
}

func (s *inMemStore) ListUsers(context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *inMemStore) GetUser(_ context.Context, id uint) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *inMemStore) FirstUser(ctx context.Context) (*domain.User, error) {
	users, _ := s.ListUsers(ctx)
	if len(users) == 0 {
		return nil, store.ErrNotFound
	}
	return &users[0], nil
}

func (s *inMemStore) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *inMemStore) emailTaken(email string, except uint) bool {
	for _, u := range s.users {
		if u.Email == email && u.ID != except {
			return true
		}
	}
	return false
}

func (s *inMemStore) InsertUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(user.Email, 0) {
		return store.ErrConstraintViolation
	}
	user.ID = s.nextID
	s.nextID++
	s.users[user.ID] = *user
	return nil
}

func (s *inMemStore) UpdateUser(_ context.Context, id uint, f store.UserFields) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.emailTaken(f.Email, id) {
		return nil, store.ErrConstraintViolation
	}
	u.Name, u.Email, u.Phone, u.Address, u.MemberSince = f.Name, f.Email, f.Phone, f.Address, f.MemberSince
	s.users[id] = u
	return &u, nil
}

func (s *inMemStore) DeleteUser(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	for tid, tx := range s.transactions {
		if tx.UserID == id {
			delete(s.transactions, tid)
		}
	}
	return nil
}

func (s *inMemStore) addTransaction(tx domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = uint(len(s.transactions) + 1)
	s.transactions[tx.ID] = tx
}

func (s *inMemStore) transactionsOf(userID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			n++
		}
	}
	return n
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

var testNow = time.Date(2026, 2, 16, 10, 30, 0, 0, time.UTC)

func newTestRouter(t *testing.T, st *inMemStore, rps float64) *gin.Engine {
	t.Helper()
	svc := service.NewUserService(st, service.WithClock(func() time.Time { return testNow }))
	r, err := NewRouter(RouterConfig{Users: svc, DB: pinger{}, RateLimitRPS: rps, RateLimitBurst: 100})
	require.NoError(t, err)
	return r
}

func doRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeUser(t *testing.T, w *httptest.ResponseRecorder) domain.User {
	t.Helper()
	var u domain.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	return u
}

func createUser(t *testing.T, r http.Handler, body map[string]any) domain.User {
	t.Helper()
	w := doRequest(r, http.MethodPost, "/api/users", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeUser(t, w)
}

func TestCreateUser_Defaults(t *testing.T) {
	r := newTestRouter(t, newInMemStore(), 0)

	w := doRequest(r, http.MethodPost, "/api/users", map[string]any{"name": "Ana", "email": "ana@x.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/users/1", w.Header().Get("Location"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "Ana", body["name"])
	assert.Equal(t, "ana@x.com", body["email"])
	assert.Equal(t, "", body["phone"])
	assert.Equal(t, "", body["address"])
	assert.Equal(t, "February 2026", body["memberSince"])
}

func TestCreateUser_PaddedDuplicateEmail(t *testing.T) {
	st := newInMemStore()
	r := newTestRouter(t, st, 0)
	createUser(t, r, map[string]any{"name": "A", "email": "a@x.com"})

	w := doRequest(r, http.MethodPost, "/api/users", map[string]any{"name": "B", "email": " a@x.com "})
	assert.Equal(t, http.StatusConflict, w.Code)

	users, _ := st.ListUsers(context.Background())
	assert.Len(t, users, 1)
}

func TestCreateUser_EmailsDifferingInCaseDoNotConflict(t *testing.T) {
	st := newInMemStore()
	r := newTestRouter(t, st, 0)
	createUser(t, r, map[string]any{"name": "A", "email": "ana@x.com"})

	w := doRequest(r, http.MethodPost, "/api/users", map[string]any{"name": "B", "email": "Ana@x.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Ana@x.com", decodeUser(t, w).Email)

	w = doRequest(r, http.MethodPut, "/api/users/1", map[string]any{"name": "A", "email": "ANA@x.com"})
	require.Equal(t, http.StatusOK, w.Code)

	users, _ := st.ListUsers(context.Background())
	assert.Len(t, users, 2)
}

func TestCreateUser_StoredEmailIsTrimmed(t *testing.T) {
	r := newTestRouter(t, newInMemStore(), 0)

	u := createUser(t, r, map[string]any{"name": " Bo ", "email": "  bo@x.com  ", "phone": " 0788 "})
	assert.Equal(t, "bo@x.com", u.Email)
	assert.Equal(t, "Bo", u.Name)
	assert.Equal(t, "0788", u.Phone)
}

func TestCreateUser_BadRequests(t *testing.T) {
	r := newTestRouter(t, newInMemStore(), 0)

	tests := []struct {
		name string
		body any
	}{
		{name: "malformed json", body: `{"name":`},
		{name: "blank name", body: map[string]any{"name": "  ", "email": "a@x.com"}},
		{name: "missing email", body: map[string]any{"name": "A"}},
		{name: "invalid email", body: map[string]any{"name": "A", "email": "nope"}},
		{name: "name too long", body: map[string]any{"name": string(bytes.Repeat([]byte("a"), 101)), "email": "a@x.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/api/users", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestListUsers_OrderedByID(t *testing.T) {
	r := newTestRouter(t, newInMemStore(), 0)

	w := doRequest(r, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	for _, email := range []string{"c@x.com", "a@x.com", "b@x.com"} {
		createUser(t, r, map[string]any{"name": "N", "email": email})
	}

	w = doRequest(r, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []domain.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 3)
	for i, u := range users {
		assert.Equal(t, uint(i+1), u.ID)
	}
}

func TestGetUser(t *testing.T) {
	r := newTestRouter(t, newInMemStore(), 0)
	created := createUser(t, r, map[string]any{"name": "Ana", "email": "ana@x.com"})

	w := doRequest(r, http.MethodGet, "/api/users/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decodeUser(t, w))

	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodGet, "/api/users/2", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/api/users/abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/api/users/0", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodGet, "/api/users/4294967296", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/api/users/18446744073709551616", nil).Code)
}

func TestUpdateUser(t *testing.T) {
	st := newInMemStore()
	r := newTestRouter(t, st, 0)
	createUser(t, r, map[string]any{"name": "Ana", "email": "ana@x.com", "phone": "1", "memberSince": "January 2026"})
	createUser(t, r, map[string]any{"name": "Bo", "email": "bo@x.com"})

	t.Run("own email", func(t *testing.T) {
		w := doRequest(r, http.MethodPut, "/api/users/1", map[string]any{"name": "Ana Maria", "email": " ana@x.com"})
		require.Equal(t, http.StatusOK, w.Code)
		u := decodeUser(t, w)
		assert.Equal(t, "Ana Maria", u.Name)
		assert.Equal(t, "", u.Phone)
		assert.Equal(t, "January 2026", u.MemberSince)
	})

	t.Run("email of another user", func(t *testing.T) {
		w := doRequest(r, http.MethodPut, "/api/users/2", map[string]any{"name": "Bo", "email": "ana@x.com"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("blank name leaves storage unchanged", func(t *testing.T) {
		w := doRequest(r, http.MethodPut, "/api/users/1", map[string]any{"name": "", "email": "ana@x.com"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		u, err := st.GetUser(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Ana Maria", u.Name)
	})

	t.Run("missing user", func(t *testing.T) {
		w := doRequest(r, http.MethodPut, "/api/users/99", map[string]any{"name": "X", "email": "x@x.com"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDeleteUser_CascadesTransactions(t *testing.T) {
	st := newInMemStore()
	r := newTestRouter(t, st, 0)
	createUser(t, r, map[string]any{"name": "Ana", "email": "ana@x.com"})
	createUser(t, r, map[string]any{"name": "Bo", "email": "bo@x.com"})
	st.addTransaction(domain.Transaction{UserID: 1, FromCurrency: "MAD", ToCurrency: "RWF"})
	st.addTransaction(domain.Transaction{UserID: 1, FromCurrency: "RWF", ToCurrency: "MAD"})
	st.addTransaction(domain.Transaction{UserID: 2, FromCurrency: "MAD", ToCurrency: "RWF"})

	w := doRequest(r, http.MethodDelete, "/api/users/1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	assert.Equal(t, 0, st.transactionsOf(1))
	assert.Equal(t, 1, st.transactionsOf(2))
	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodGet, "/api/users/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodDelete, "/api/users/1", nil).Code)
}

func TestProfile(t *testing.T) {
	st := newInMemStore()
	r := newTestRouter(t, st, 0)

	w := doRequest(r, http.MethodGet, "/api/users/profile", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"No user profile found."}`, w.Body.String())

	w = doRequest(r, http.MethodPut, "/api/users/profile", map[string]any{"name": "X", "email": "x@x.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	createUser(t, r, map[string]any{"name": "Ana", "email": "ana@x.com"})
	createUser(t, r, map[string]any{"name": "Bo", "email": "bo@x.com"})

	w = doRequest(r, http.MethodGet, "/api/users/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(1), decodeUser(t, w).ID)

	w = doRequest(r, http.MethodPut, "/api/users/profile", map[string]any{
		"name":    "Ana B",
		"email":   "ana@x.com",
		"phone":   "+212 600",
		"address": "Casablanca",
	})
	require.Equal(t, http.StatusOK, w.Code)
	u := decodeUser(t, w)
	assert.Equal(t, uint(1), u.ID)
	assert.Equal(t, "Casablanca", u.Address)
	assert.Equal(t, "February 2026", u.MemberSince)

	w = doRequest(r, http.MethodPut, "/api/users/profile", map[string]any{"name": "Ana", "email": "bo@x.com"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// The next lowest id takes over once user 1 is gone
	require.Equal(t, http.StatusNoContent, doRequest(r, http.MethodDelete, "/api/users/1", nil).Code)
	w = doRequest(r, http.MethodGet, "/api/users/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(2), decodeUser(t, w).ID)
}

func TestRateLimitOnWrites(t *testing.T) {
	st := newInMemStore()
	svc := service.NewUserService(st)
	r, err := NewRouter(RouterConfig{Users: svc, DB: pinger{}, RateLimitRPS: 0.001, RateLimitBurst: 1})
	require.NoError(t, err)

	createUser(t, r, map[string]any{"name": "Ana", "email": "ana@x.com"})
	w := doRequest(r, http.MethodPost, "/api/users", map[string]any{"name": "Bo", "email": "bo@x.com"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Reads are not limited
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/api/users", nil).Code)
	}
}

func TestHealth(t *testing.T) {
	svc := service.NewUserService(newInMemStore())

	ok, err := NewRouter(RouterConfig{Users: svc, DB: pinger{}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, doRequest(ok, http.MethodGet, "/health", nil).Code)

	down, err := NewRouter(RouterConfig{Users: svc, DB: pinger{err: errors.New("dial tcp: refused")}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(down, http.MethodGet, "/health", nil).Code)
}
