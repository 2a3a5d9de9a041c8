package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/datapulse/backend/internal/models"
	"github.com/ayush/datapulse/backend/internal/store"
	"github.com/ayush/datapulse/backend/internal/token"
)

// memUsers is an in-memory UserStore with a unique username constraint.
type memUsers struct {
	mu      sync.Mutex
	byName  map[string]*models.User
	nextID  int64
	lookErr error
}

func newMemUsers() *memUsers { return &memUsers{byName: map[string]*models.User{}} }

func (m *memUsers) CreateUser(_ context.Context, username, hash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[username]; ok {
		return nil, errors.New(`duplicate key value violates unique constraint "users_username_key"`)
	}
	m.nextID++
	u := &models.User{ID: m.nextID, Username: username, PasswordHash: hash}
	m.byName[username] = u
	return &models.User{ID: u.ID, Username: u.Username}, nil
}

func (m *memUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookErr != nil {
		return nil, m.lookErr
	}
	u, ok := m.byName[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byName)
}

type fixture struct {
	h      *Handler
	users  *memUsers
	signer *token.Signer
	hook   *logtest.Hook
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	users := newMemUsers()
	signer := token.NewSigner("test-secret", time.Hour)
	return &fixture{
		h:      NewHandler(users, signer, logger, opts),
		users:  users,
		signer: signer,
		hook:   hook,
	}
}

func jsonReq(method, path, body string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func (f *fixture) register(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	body, _ := json.Marshal(models.Credentials{Username: username, Password: password})
	f.h.Register(rec, jsonReq(http.MethodPost, "/register", string(body)))
	return rec
}

func (f *fixture) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	body, _ := json.Marshal(models.Credentials{Username: username, Password: password})
	f.h.Login(rec, jsonReq(http.MethodPost, "/login", string(body)))
	return rec
}

func (f *fixture) verify(t *testing.T, header string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/verify", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	f.h.Verify(rec, r)
	return rec
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.register(t, "alice", "pw")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"User registered successfully"}`, rec.Body.String())

	u, err := f.users.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "pw", u.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("pw")))
}

func TestRegister_DuplicateFailsWithoutSecondRecord(t *testing.T) {
	f := newFixture(t, Options{})

	require.Equal(t, http.StatusCreated, f.register(t, "alice", "pw").Code)
	rec := f.register(t, "alice", "other")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Error registering user"}`, rec.Body.String())
	assert.Equal(t, 1, f.users.count())
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t, Options{})

	for _, body := range []string{`{"username":"","password":"x"}`, `{"username":"a"}`, `{}`} {
		rec := httptest.NewRecorder()
		f.h.Register(rec, jsonReq(http.MethodPost, "/register", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := httptest.NewRecorder()
	f.h.Register(rec, jsonReq(http.MethodPost, "/register", `{not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.register(t, "alice", strings.Repeat("p", 80))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"password is too long"}`, rec.Body.String())
	assert.Equal(t, 0, f.users.count())

	require.Equal(t, http.StatusCreated, f.register(t, "bob", strings.Repeat("p", 72)).Code)
}

func TestRegister_Form(t *testing.T) {
	f := newFixture(t, Options{})

	form := url.Values{"username": {"dave"}, "password": {"pw"}}
	r := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.h.Register(rec, r)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, f.users.count())
}

func TestLogin_TokenAcceptedByVerify(t *testing.T) {
	f := newFixture(t, Options{})
	require.Equal(t, http.StatusCreated, f.register(t, "alice", "pw").Code)

	rec := f.login(t, "alice", "pw")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	vrec := f.verify(t, "Bearer "+resp.Token)
	require.Equal(t, http.StatusOK, vrec.Code)

	var out struct {
		Valid bool          `json:"valid"`
		User  *token.Claims `json:"user"`
	}
	require.NoError(t, json.Unmarshal(vrec.Body.Bytes(), &out))
	assert.True(t, out.Valid)
	assert.Equal(t, int64(1), out.User.UserID)
	assert.Equal(t, "alice", out.User.Username)
	require.NotNil(t, out.User.ExpiresAt)
}

func TestLogin_EnumerationResistance(t *testing.T) {
	f := newFixture(t, Options{})
	require.Equal(t, http.StatusCreated, f.register(t, "alice", "pw").Code)

	wrongPw := f.login(t, "alice", "nope")
	noUser := f.login(t, "mallory", "pw")

	assert.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	assert.Equal(t, wrongPw.Code, noUser.Code)
	assert.Equal(t, wrongPw.Body.String(), noUser.Body.String())
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, noUser.Body.String())
}

func TestLogin_StoreError(t *testing.T) {
	f := newFixture(t, Options{})
	f.users.lookErr = errors.New("connection refused")

	rec := f.login(t, "alice", "pw")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Error logging in"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "connection refused")

	require.NotNil(t, f.hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, f.hook.LastEntry().Level)
}

func TestLogin_BrowserRedirect(t *testing.T) {
	f := newFixture(t, Options{RedirectURL: "http://localhost:8000/data"})
	require.Equal(t, http.StatusCreated, f.register(t, "alice", "pw").Code)

	form := url.Values{"username": {"alice"}, "password": {"pw"}}
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()
	f.h.Login(rec, r)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:8000", loc.Host)
	assert.Equal(t, "/data", loc.Path)

	claims, err := f.signer.Verify(context.Background(), loc.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestVerify_MissingToken(t *testing.T) {
	f := newFixture(t, Options{})

	for _, h := range []string{"", "Bearer", "Basic abc"} {
		rec := f.verify(t, h)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, h)
		assert.JSONEq(t, `{"error":"No token provided"}`, rec.Body.String(), h)
	}
}

func TestVerify_InvalidTokens(t *testing.T) {
	f := newFixture(t, Options{})

	forged, err := token.NewSigner("other-secret", time.Hour).Issue(1, "alice")
	require.NoError(t, err)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, token.Claims{
		UserID:   1,
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{"forged": forged, "expired": expired, "garbage": "abc.def.ghi"} {
		rec := f.verify(t, "Bearer "+tok)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.JSONEq(t, `{"valid":false,"error":"Invalid token"}`, rec.Body.String(), name)
	}
}

func TestLogin_Throttled(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	f := newFixture(t, Options{Throttle: NewLoginThrottle(rdb, 2, time.Minute)})
	require.Equal(t, http.StatusCreated, f.register(t, "alice", "pw").Code)

	assert.Equal(t, http.StatusUnauthorized, f.login(t, "alice", "bad").Code)
	assert.Equal(t, http.StatusUnauthorized, f.login(t, "alice", "bad").Code)

	rec := f.login(t, "alice", "pw")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Too many login attempts"}`, rec.Body.String())

	// unknown usernames are throttled the same way
	assert.Equal(t, http.StatusUnauthorized, f.login(t, "ghost", "x").Code)
	assert.Equal(t, http.StatusUnauthorized, f.login(t, "ghost", "x").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.login(t, "ghost", "x").Code)
}

func TestLogin_SuccessResetsThrottle(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	f := newFixture(t, Options{Throttle: NewLoginThrottle(rdb, 2, time.Minute)})
	require.Equal(t, http.StatusCreated, f.register(t, "alice", "pw").Code)

	require.Equal(t, http.StatusUnauthorized, f.login(t, "alice", "bad").Code)
	require.Equal(t, http.StatusOK, f.login(t, "alice", "pw").Code)
	assert.False(t, mr.Exists("login_failures:alice"))
}

func TestLogin_ThrottleDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	f := newFixture(t, Options{Throttle: NewLoginThrottle(rdb, 1, time.Minute)})
	require.Equal(t, http.StatusCreated, f.register(t, "alice", "pw").Code)
	mr.Close()

	assert.Equal(t, http.StatusOK, f.login(t, "alice", "pw").Code)
}
