package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"smarttrack/internal/app/service"
	"smarttrack/internal/common"
	"smarttrack/internal/common/security"
	"smarttrack/internal/domain/model"
	"smarttrack/internal/domain/repository"
	"smarttrack/internal/platform/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	config.AppConfig = &config.Config{
		Env:             "test",
		JWTKey:          []byte("test-secret"),
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
	security.InitJWT()
	m.Run()
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return fmt.Errorf("duplicate email: %w", common.ErrConflict)
		}
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, common.ErrNotFound
}

func (r *memUserRepo) FindByRefreshToken(ctx context.Context, refreshToken string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.RefreshToken != "" && u.RefreshToken == refreshToken {
			clone := *u
			return &clone, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memUserRepo) Update(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return common.ErrNotFound
	}
	stored.Name = user.Name
	stored.Email = user.Email
	stored.Skills = user.Skills
	return nil
}

func (r *memUserRepo) UpdateRefreshToken(ctx context.Context, userID, refreshToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	stored.RefreshToken = refreshToken
	return nil
}

func (r *memUserRepo) UpdatePassword(ctx context.Context, userID, hashedPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	stored.HashedPassword = hashedPassword
	return nil
}

type memApplicationRepo struct {
	mu   sync.Mutex
	apps map[string]*model.Application
}

func (r *memApplicationRepo) Create(ctx context.Context, app *model.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *app
	r.apps[app.ID] = &clone
	return nil
}

func (r *memApplicationRepo) FindByID(ctx context.Context, id string) (*model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if app, ok := r.apps[id]; ok {
		clone := *app
		return &clone, nil
	}
	return nil, common.ErrNotFound
}

func (r *memApplicationRepo) ListByStudent(ctx context.Context, studentID string, limit, offset int, filter repository.ListFilter) ([]model.Application, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []model.Application{}
	for _, app := range r.apps {
		if app.StudentID == studentID {
			matched = append(matched, *app)
		}
	}
	total := len(matched)
	if offset >= total {
		return []model.Application{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *memApplicationRepo) ListAll(ctx context.Context, limit, offset int, status model.ApplicationStatus) ([]model.Application, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []model.Application{}
	for _, app := range r.apps {
		matched = append(matched, *app)
	}
	total := len(matched)
	if offset >= total {
		return []model.Application{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *memApplicationRepo) Update(ctx context.Context, app *model.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[app.ID]; !ok {
		return common.ErrNotFound
	}
	clone := *app
	r.apps[app.ID] = &clone
	return nil
}

func (r *memApplicationRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.apps, id)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) EnqueueWelcome(ctx context.Context, email, name string) error { return nil }

func newTestServer() (http.Handler, *memUserRepo, *memApplicationRepo) {
	userRepo := &memUserRepo{users: make(map[string]*model.User)}
	appRepo := &memApplicationRepo{apps: make(map[string]*model.Application)}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	authService := service.NewAuthService(userRepo, noopNotifier{}, log)
	userService := service.NewUserService(userRepo, log)
	appService := service.NewApplicationService(appRepo, log)

	return NewRouter(authService, userService, appService), userRepo, appRepo
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func withBearer(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func withCookie(cookie *http.Cookie) func(*http.Request) {
	return func(req *http.Request) {
		req.AddCookie(cookie)
	}
}

func registerUser(t *testing.T, router http.Handler, name, email, password string) (bodyOut map[string]interface{}, refreshCookie *http.Cookie) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/users", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bodyOut))
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" {
			refreshCookie = c
		}
	}
	require.NotNil(t, refreshCookie, "register must set the refresh cookie")
	return bodyOut, refreshCookie
}

func TestRegisterEndpoint(t *testing.T) {
	router, _, _ := newTestServer()

	body, cookie := registerUser(t, router, "Ada", "ada@example.com", "secret1")

	assert.Equal(t, "Ada", body["name"])
	assert.Equal(t, "ada@example.com", body["email"])
	assert.Equal(t, "student", body["role"])
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["id"])
	_, hasRefresh := body["refreshToken"]
	assert.False(t, hasRefresh, "refresh token must not leak into the body")

	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "/api/users", cookie.Path)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	// Duplicate email
	rec := doJSON(t, router, http.MethodPost, "/api/users", map[string]string{
		"name": "Eve", "email": "ada@example.com", "password": "other-secret",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	router, _, _ := newTestServer()
	registerUser(t, router, "Ada", "ada@example.com", "secret1")

	t.Run("bad credentials use one fixed message", func(t *testing.T) {
		for _, creds := range []map[string]string{
			{"email": "ada@example.com", "password": "wrong-pass"},
			{"email": "ghost@example.com", "password": "secret1"},
		} {
			rec := doJSON(t, router, http.MethodPost, "/api/users/login", creds)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "Invalid email or password", body["message"])
		}
	})

	t.Run("success returns profile and token", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/users/login", map[string]string{
			"email": "ada@example.com", "password": "secret1",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body["token"])
		assert.Equal(t, "ada@example.com", body["email"])
	})
}

func TestRefreshAndLogoutEndpoints(t *testing.T) {
	router, _, _ := newTestServer()
	_, cookie := registerUser(t, router, "Ada", "ada@example.com", "secret1")

	t.Run("missing cookie is unauthorized", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/users/refresh", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("cookie redeems a new access token", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/users/refresh", nil, withCookie(cookie))
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body["token"])
	})

	t.Run("logout revokes the cookie for good", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/users/logout", nil, withCookie(cookie))
		assert.Equal(t, http.StatusNoContent, rec.Code)

		// The cleared token can never mint another access token
		rec = doJSON(t, router, http.MethodPost, "/api/users/refresh", nil, withCookie(cookie))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		// Logout again is still a quiet success
		rec = doJSON(t, router, http.MethodPost, "/api/users/logout", nil, withCookie(cookie))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestProfileEndpoints(t *testing.T) {
	router, _, _ := newTestServer()
	body, _ := registerUser(t, router, "Ada", "ada@example.com", "secret1")
	token := body["token"].(string)

	t.Run("me requires a bearer token", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/users/me", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("me returns the profile with empty skills", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/users/me", nil, withBearer(token))
		require.Equal(t, http.StatusOK, rec.Code)
		var profile map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
		assert.Equal(t, "ada@example.com", profile["email"])
		assert.Equal(t, []interface{}{}, profile["skills"])
	})

	t.Run("partial profile update touches only provided fields", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/api/users/me", map[string]interface{}{
			"skills": []string{"Go", "SQL"},
		}, withBearer(token))
		require.Equal(t, http.StatusOK, rec.Code)
		var profile map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
		assert.Equal(t, "Ada", profile["name"])
		assert.Equal(t, []interface{}{"Go", "SQL"}, profile["skills"])
	})

	t.Run("change password round trip", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/api/users/change-password", map[string]string{
			"currentPassword": "nope123", "newPassword": "brand-new",
		}, withBearer(token))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = doJSON(t, router, http.MethodPut, "/api/users/change-password", map[string]string{
			"currentPassword": "secret1", "newPassword": "brand-new",
		}, withBearer(token))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestApplicationEndpoints(t *testing.T) {
	router, _, _ := newTestServer()
	ada, _ := registerUser(t, router, "Ada", "ada@example.com", "secret1")
	eve, _ := registerUser(t, router, "Eve", "eve@example.com", "secret2")
	adaToken := ada["token"].(string)
	eveToken := eve["token"].(string)

	rec := doJSON(t, router, http.MethodPost, "/api/applications", map[string]string{
		"companyName": "Google", "role": "SWE",
	}, withBearer(adaToken))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	appID := created["id"].(string)
	assert.Equal(t, "applied", created["status"])

	t.Run("listing is scoped and shaped for paging", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/applications?page=1&limit=10", nil, withBearer(adaToken))
		require.Equal(t, http.StatusOK, rec.Code)
		var page map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		assert.Equal(t, float64(1), page["totalApplications"])
		assert.Equal(t, float64(1), page["totalPages"])
		assert.Equal(t, float64(1), page["currentPage"])
		assert.Len(t, page["applications"], 1)

		rec = doJSON(t, router, http.MethodGet, "/api/applications", nil, withBearer(eveToken))
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		assert.Equal(t, float64(0), page["totalApplications"])
	})

	t.Run("non-owner update is forbidden, unknown id is not found", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/api/applications/"+appID, map[string]string{
			"notes": "mine now",
		}, withBearer(eveToken))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = doJSON(t, router, http.MethodPut, "/api/applications/00000000-0000-0000-0000-000000000000", map[string]string{
			"notes": "ghost",
		}, withBearer(adaToken))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("stage append drives the derived status", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/api/applications/"+appID+"/stage", map[string]string{
			"stageName": "Offer", "status": "pending",
		}, withBearer(adaToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var app map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
		assert.Equal(t, "offer", app["status"])
	})

	t.Run("delete removes the application", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, "/api/applications/"+appID, nil, withBearer(adaToken))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, router, http.MethodDelete, "/api/applications/"+appID, nil, withBearer(adaToken))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAdminEndpoint(t *testing.T) {
	router, userRepo, _ := newTestServer()
	body, _ := registerUser(t, router, "Ada", "ada@example.com", "secret1")
	studentToken := body["token"].(string)

	t.Run("students are rejected", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/admin/applications", nil, withBearer(studentToken))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admins see the cross-user listing", func(t *testing.T) {
		// Promote and mint an admin token directly
		userID := body["id"].(string)
		userRepo.mu.Lock()
		userRepo.users[userID].Role = model.RoleAdmin
		userRepo.mu.Unlock()
		adminToken, err := security.GenerateAccessToken(userID, model.RoleAdmin)
		require.NoError(t, err)

		rec := doJSON(t, router, http.MethodGet, "/api/admin/applications", nil, withBearer(adminToken))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := newTestServer()
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
