package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/vibely/account-service/internal/application"
	"github.com/vibely/account-service/internal/domain/entity"
	repo "github.com/vibely/account-service/internal/domain/repository"
	"github.com/vibely/account-service/internal/interface/middleware"
	"github.com/vibely/account-service/pkg/helpers"
	"github.com/vibely/account-service/pkg/validation"
)

var setupOnce sync.Once

func setup() {
	setupOnce.Do(func() {
		gin.SetMode(gin.TestMode)
		validation.Init()
	})
}

// stubRepo is a map-backed store for exercising the HTTP layer end to end.
type stubRepo struct {
	users map[string]*entity.User
}

func newStubRepo() *stubRepo { return &stubRepo{users: make(map[string]*entity.User)} }

func (r *stubRepo) Create(_ context.Context, u *entity.User) error {
	for _, ex := range r.users {
		if ex.Email == u.Email || ex.Username == u.Username {
			return repo.ErrDuplicate
		}
	}
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *stubRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r *stubRepo) GetByEmailOrUsername(_ context.Context, email, username string) (*entity.User, error) {
	for _, u := range r.users {
		if u.Email == email || u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r *stubRepo) Update(_ context.Context, u *entity.User) error {
	stored, ok := r.users[u.ID]
	if !ok {
		return repo.ErrNotFound
	}
	cp := *u
	cp.Followers = stored.Followers
	cp.Following = stored.Following
	cp.UpdatedAt = time.Now().UTC()
	r.users[u.ID] = &cp
	return nil
}

func (r *stubRepo) UpdatePassword(_ context.Context, id, hash string) error {
	u, ok := r.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *stubRepo) AddFollowCounts(_ context.Context, id string, followers, following int) (*entity.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	u.Followers += followers
	if u.Followers < 0 {
		u.Followers = 0
	}
	u.Following += following
	if u.Following < 0 {
		u.Following = 0
	}
	cp := *u
	return &cp, nil
}

func (r *stubRepo) Search(_ context.Context, q string, limit, offset int) ([]*entity.User, int, error) {
	matched := make([]*entity.User, 0)
	for _, u := range r.users {
		if q == "" || strings.Contains(u.Username, q) || strings.Contains(u.Name, q) || strings.Contains(u.Email, q) {
			cp := *u
			matched = append(matched, &cp)
		}
	}
	total := len(matched)
	if offset >= total {
		return []*entity.User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// noopCache satisfies the cache port without a Redis instance.
type noopCache struct{}

func (noopCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (noopCache) Set(context.Context, string, any) error         { return nil }
func (noopCache) Delete(context.Context, string) error           { return nil }

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func newTestRouter() (*gin.Engine, *app.Service) {
	setup()
	jwt := helpers.NewJWTManager("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
	svc := app.NewService(newStubRepo(), noopCache{}, jwt, nil, nil)
	h := NewAccountHandler(svc, nil, "", false)

	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.GET("/user/:id", h.GetUserByID)
	r.GET("/search/users", h.SearchUsers)

	auth := r.Group("/", middleware.Identity(jwt))
	auth.GET("/user", h.GetMe)
	auth.PUT("/user", h.UpdateProfile)
	auth.POST("/change-password", h.ChangePassword)
	auth.PUT("/user/flags", h.UpdateFlags)
	return r, svc
}

func doJSON(r *gin.Engine, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func registerUser(t *testing.T, r *gin.Engine, email, username string) (userID, accessToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"username":%q,"password":"password123","name":"Test"}`, email, username)
	w, env := doJSON(r, http.MethodPost, "/register", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		AccessToken string `json:"access_token"`
		User        struct {
			UserID string `json:"user_id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.User.UserID)
	require.NotEmpty(t, data.AccessToken)
	return data.User.UserID, data.AccessToken
}

func TestRegisterEndpoint_Validation(t *testing.T) {
	r, _ := newTestRouter()

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"bad email", `{"email":"nope","username":"alice1","password":"password123"}`, "email"},
		{"short password", `{"email":"a@b.co","username":"alice1","password":"short"}`, "password"},
		{"short username", `{"email":"a@b.co","username":"ab","password":"password123"}`, "username"},
		{"missing fields", `{}`, "email"},
		{"broken json", `{"email":`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := doJSON(r, http.MethodPost, "/register", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, env.Success)
			if tc.field != "" {
				assert.Contains(t, string(env.Error), tc.field)
			}
		})
	}
}

func TestRegisterEndpoint_SuccessSetsRefreshCookie(t *testing.T) {
	r, _ := newTestRouter()

	body := `{"email":"alice@example.com","username":"alice1","password":"password123"}`
	w, env := doJSON(r, http.MethodPost, "/register", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Success)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "refresh_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "refresh_token cookie expected")
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)
}

func TestRegisterEndpoint_Duplicate(t *testing.T) {
	r, _ := newTestRouter()
	registerUser(t, r, "alice@example.com", "alice1")

	body := `{"email":"alice@example.com","username":"other1","password":"password123"}`
	w, env := doJSON(r, http.MethodPost, "/register", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email or username already exists", env.Message)
}

func TestLoginEndpoint_BadCredentialsIndistinguishable(t *testing.T) {
	r, _ := newTestRouter()
	registerUser(t, r, "alice@example.com", "alice1")

	w1, env1 := doJSON(r, http.MethodPost, "/login", `{"email":"alice@example.com","password":"wrongpassword"}`, nil)
	w2, env2 := doJSON(r, http.MethodPost, "/login", `{"email":"ghost@example.com","password":"password123"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, w1.Code)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
	assert.Equal(t, env1.Message, env2.Message)
}

func TestLoginEndpoint_Success(t *testing.T) {
	r, _ := newTestRouter()
	userID, _ := registerUser(t, r, "alice@example.com", "alice1")

	w, env := doJSON(r, http.MethodPost, "/login", `{"email":"alice@example.com","password":"password123"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		User struct {
			UserID string `json:"user_id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, userID, data.User.UserID)
}

func TestProtectedRoutes_RequireIdentity(t *testing.T) {
	r, _ := newTestRouter()

	for _, rt := range []struct{ method, path string }{
		{http.MethodGet, "/user"},
		{http.MethodPut, "/user"},
		{http.MethodPost, "/change-password"},
		{http.MethodPut, "/user/flags"},
	} {
		w, env := doJSON(r, rt.method, rt.path, `{}`, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", rt.method, rt.path)
		assert.Equal(t, "user identity required", env.Message)
	}
}

func TestGetMe_GatewayHeaderAndBearerFallback(t *testing.T) {
	r, _ := newTestRouter()
	userID, token := registerUser(t, r, "alice@example.com", "alice1")

	// gateway-injected identity
	w, env := doJSON(r, http.MethodGet, "/user", "", map[string]string{middleware.IdentityHeader: userID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), userID)

	// direct caller with a bearer token
	w, env = doJSON(r, http.MethodGet, "/user", "", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), userID)

	// garbage token is rejected
	w, _ = doJSON(r, http.MethodGet, "/user", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetUserByID(t *testing.T) {
	r, _ := newTestRouter()
	userID, _ := registerUser(t, r, "alice@example.com", "alice1")

	w, env := doJSON(r, http.MethodGet, "/user/"+userID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"alice1"`)
	assert.NotContains(t, w.Body.String(), "password")

	w, env = doJSON(r, http.MethodGet, "/user/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "user not found", env.Message)
}

func TestUpdateProfileEndpoint(t *testing.T) {
	r, _ := newTestRouter()
	userID, _ := registerUser(t, r, "alice@example.com", "alice1")
	hdr := map[string]string{middleware.IdentityHeader: userID}

	// no updatable fields
	w, _ := doJSON(r, http.MethodPut, "/user", `{}`, hdr)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// scalar update
	w, env := doJSON(r, http.MethodPut, "/user", `{"name":"Alice L.","bio":"hello"}`, hdr)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"Alice L."`)

	// follower deltas accumulate across requests
	w, env = doJSON(r, http.MethodPut, "/user", `{"followers":1}`, hdr)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"followers":1`)

	w, env = doJSON(r, http.MethodPut, "/user", `{"followers":1,"following":3}`, hdr)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"followers":2`)
	assert.Contains(t, string(env.Data), `"following":3`)
}

func TestUpdateProfileEndpoint_UploadWithoutStorage(t *testing.T) {
	// no uploader is configured in this router, so a valid image payload has
	// to surface as an upload failure, not a silent drop
	r, _ := newTestRouter()
	userID, _ := registerUser(t, r, "alice@example.com", "alice1")

	body := `{"profile_img_data":{"blob":"aGVsbG8=","name":"a.png","type":"image/png"}}`
	w, env := doJSON(r, http.MethodPut, "/user", body, map[string]string{middleware.IdentityHeader: userID})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "image upload failed", env.Message)
}

func TestChangePasswordEndpoint(t *testing.T) {
	r, _ := newTestRouter()
	userID, _ := registerUser(t, r, "alice@example.com", "alice1")
	hdr := map[string]string{middleware.IdentityHeader: userID}

	w, _ := doJSON(r, http.MethodPost, "/change-password", `{"current_password":"password123","new_password":"short"}`, hdr)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := doJSON(r, http.MethodPost, "/change-password", `{"current_password":"wrongwrong","new_password":"newpassword1"}`, hdr)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid credentials", env.Message)

	w, _ = doJSON(r, http.MethodPost, "/change-password", `{"current_password":"password123","new_password":"newpassword1"}`, hdr)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = doJSON(r, http.MethodPost, "/login", `{"email":"alice@example.com","password":"newpassword1"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(r, http.MethodPost, "/login", `{"email":"alice@example.com","password":"password123"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateFlagsEndpoint(t *testing.T) {
	r, _ := newTestRouter()
	userID, _ := registerUser(t, r, "alice@example.com", "alice1")
	hdr := map[string]string{middleware.IdentityHeader: userID}

	w, _ := doJSON(r, http.MethodPut, "/user/flags", `{}`, hdr)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := doJSON(r, http.MethodPut, "/user/flags", `{"dating":true}`, hdr)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"is_dating":true`)
	assert.Contains(t, string(env.Data), `"is_content_creator":false`)

	w, env = doJSON(r, http.MethodPut, "/user/flags", `{"content_creator":true}`, hdr)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"is_dating":true`)
	assert.Contains(t, string(env.Data), `"is_content_creator":true`)
}

func TestSearchEndpoint(t *testing.T) {
	r, _ := newTestRouter()
	registerUser(t, r, "ann@example.com", "annie1")
	registerUser(t, r, "bob@example.com", "bobby1")

	// q is mandatory
	w, env := doJSON(r, http.MethodGet, "/search/users", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid payload", env.Message)

	// the ~ sentinel lists everyone
	w, env = doJSON(r, http.MethodGet, "/search/users?q=~&page=1&limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Total      int `json:"total"`
		TotalPages int `json:"totalPages"`
		Page       int `json:"page"`
		Limit      int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 1, res.Limit)

	// substring match
	w, env = doJSON(r, http.MethodGet, "/search/users?q=bobby", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"bobby1"`)
	assert.NotContains(t, string(env.Data), `"annie1"`)

	// junk paging params fall back to defaults
	w, env = doJSON(r, http.MethodGet, "/search/users?q=~&page=zero&limit=-4", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.Limit)
}
