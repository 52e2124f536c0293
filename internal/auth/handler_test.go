package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/pkg/apperr"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{users: map[string]*models.User{}} }

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.ErrUserNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[strings.ToLower(email)]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Create(_ context.Context, email, hash, name string, role models.Role) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := f.users[key]; ok {
		return nil, apperr.ErrEmailTaken
	}
	u := &models.User{ID: uuid.New(), Email: email, Password: hash, FullName: name, Role: role, CreatedAt: time.Now()}
	f.users[key] = u
	cp := *u
	return &cp, nil
}

func newTestRouter(store UserStore) (*gin.Engine, *JWTService) {
	gin.SetMode(gin.TestMode)
	jwtSvc := NewJWTService("test-secret", 1)
	h := NewHandler(store, jwtSvc, func(email string) bool { return strings.EqualFold(email, "chair@outing.org") }, nil)
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	return r, jwtSvc
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterThenLogin(t *testing.T) {
	r, jwtSvc := newTestRouter(newFakeUsers())

	w := post(r, "/auth/register", RegisterRequest{Email: "golfer@x.com", Password: "longenough", FullName: "Pat Golfer"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = post(r, "/auth/login", LoginRequest{Email: "golfer@x.com", Password: "longenough"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	claims, err := jwtSvc.Validate(body.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, "golfer", claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	r, _ := newTestRouter(newFakeUsers())
	req := RegisterRequest{Email: "dup@x.com", Password: "longenough", FullName: "Dup"}
	require.Equal(t, http.StatusCreated, post(r, "/auth/register", req).Code)
	assert.Equal(t, http.StatusConflict, post(r, "/auth/register", req).Code)
}

func TestLoginWrongPassword(t *testing.T) {
	r, _ := newTestRouter(newFakeUsers())
	post(r, "/auth/register", RegisterRequest{Email: "a@x.com", Password: "longenough", FullName: "A"})
	assert.Equal(t, http.StatusUnauthorized, post(r, "/auth/login", LoginRequest{Email: "a@x.com", Password: "nope-nope"}).Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, "/auth/login", LoginRequest{Email: "missing@x.com", Password: "whatever"}).Code)
}

func TestAdminEmailGetsAdminRole(t *testing.T) {
	r, jwtSvc := newTestRouter(newFakeUsers())
	w := post(r, "/auth/register", RegisterRequest{Email: "Chair@Outing.org", Password: "longenough", FullName: "Chair"})
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	claims, err := jwtSvc.Validate(body.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
}

func TestRegisterValidation(t *testing.T) {
	r, _ := newTestRouter(newFakeUsers())
	w := post(r, "/auth/register", map[string]string{"email": "not-an-email", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
