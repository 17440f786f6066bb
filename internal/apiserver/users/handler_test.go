package users

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"users-admin/internal/apiserver/auth"
	"users-admin/internal/shared/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRouter 组装带认证中间件的完整路由
func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc := newTestService(t)

	cfg := auth.DefaultConfig()
	cfg.BcryptCost = 4

	mux := http.NewServeMux()
	NewHandler(svc, cfg).RegisterRoutes(mux)
	return auth.Middleware(cfg)(mux), svc
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// registerUser 通过 HTTP 接口注册用户并返回其 ID 和令牌
func registerUser(t *testing.T, router http.Handler, name, email, password string) (int64, string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	return int64(user["id"].(float64)), body["token"].(string)
}

// registerAdmin 直接通过 Service 创建管理员（注册接口本身不暴露提权路径的测试入口）
func registerAdmin(t *testing.T, svc *Service, router http.Handler, email, password string) (int64, string) {
	t.Helper()
	require.NoError(t, EnsureAdminUser(svc, email, password))
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	return int64(user["id"].(float64)), body["token"].(string)
}

// ============================================================================
// 注册 / 登录
// ============================================================================

func TestHandlerRegister(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "supersecret",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.NotEmpty(t, body["token"])

	user := body["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	// 响应不得泄露密码哈希
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestHandlerRegisterValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "", "email": "not-an-email", "password": "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Validation failed", body["error"])
	assert.Len(t, body["details"], 3)
}

func TestHandlerRegisterDuplicate(t *testing.T) {
	router, _ := newTestRouter(t)
	registerUser(t, router, "Alice", "alice@example.com", "supersecret")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Imposter", "email": "alice@example.com", "password": "othersecret",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "user with this email already exists", decodeBody(t, rec)["error"])
}

func TestHandlerLogin(t *testing.T) {
	router, _ := newTestRouter(t)
	registerUser(t, router, "Alice", "alice@example.com", "supersecret")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "supersecret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Login successful", body["message"])
	assert.NotEmpty(t, body["token"])
}

func TestHandlerLoginFailuresIndistinguishable(t *testing.T) {
	router, _ := newTestRouter(t)
	registerUser(t, router, "Alice", "alice@example.com", "supersecret")

	wrongPassword := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrongpassword",
	})
	unknownEmail := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "supersecret",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	// 两种失败的响应体完全一致，防止账户枚举
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestHandlerMe(t *testing.T) {
	router, _ := newTestRouter(t)
	id, token := registerUser(t, router, "Alice", "alice@example.com", "supersecret")

	rec := doJSON(t, router, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, float64(id), user["id"])

	// 无令牌
	rec = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ============================================================================
// 用户 CRUD
// ============================================================================

func TestHandlerListUsers(t *testing.T) {
	router, _ := newTestRouter(t)
	_, token := registerUser(t, router, "Alice", "alice@example.com", "supersecret")
	registerUser(t, router, "Bob", "bob@example.com", "supersecret")

	// 未认证
	rec := doJSON(t, router, http.MethodGet, "/api/v1/users", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["count"])
	assert.Len(t, body["users"], 2)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestHandlerGetUser(t *testing.T) {
	router, _ := newTestRouter(t)
	id, token := registerUser(t, router, "Alice", "alice@example.com", "supersecret")

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", id), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])

	// 非法 ID
	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 不存在
	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/999", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerUpdateSelf(t *testing.T) {
	router, _ := newTestRouter(t)
	id, token := registerUser(t, router, "Alice", "alice@example.com", "supersecret")

	rec := doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", id), token,
		map[string]string{"name": "Alice Renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, "Alice Renamed", user["name"])
}

func TestHandlerUpdateSelfRoleDenied(t *testing.T) {
	router, _ := newTestRouter(t)
	id, token := registerUser(t, router, "Alice", "alice@example.com", "supersecret")

	// 普通用户即使对自己的记录也不能改角色
	rec := doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", id), token,
		map[string]string{"role": "admin"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Only administrators can update user roles", decodeBody(t, rec)["error"])

	// 确认角色未变
	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", id), token, nil)
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, "user", user["role"])
}

func TestHandlerUpdateOtherDenied(t *testing.T) {
	router, _ := newTestRouter(t)
	_, aliceToken := registerUser(t, router, "Alice", "alice@example.com", "supersecret")
	bobID, _ := registerUser(t, router, "Bob", "bob@example.com", "supersecret")

	rec := doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", bobID), aliceToken,
		map[string]string{"name": "Hacked"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You do not have permission to update this user", decodeBody(t, rec)["error"])
}

func TestHandlerAdminUpdatesRole(t *testing.T) {
	router, svc := newTestRouter(t)
	bobID, _ := registerUser(t, router, "Bob", "bob@example.com", "supersecret")
	_, adminToken := registerAdmin(t, svc, router, "admin@example.com", "adminsecret")

	rec := doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", bobID), adminToken,
		map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, "admin", user["role"])
}

func TestHandlerUpdateValidation(t *testing.T) {
	router, _ := newTestRouter(t)
	id, token := registerUser(t, router, "Alice", "alice@example.com", "supersecret")

	// 空载荷：校验失败先于授权检查
	rec := doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", id), token,
		map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation failed", decodeBody(t, rec)["error"])
}

func TestHandlerDelete(t *testing.T) {
	router, svc := newTestRouter(t)
	bobID, bobToken := registerUser(t, router, "Bob", "bob@example.com", "supersecret")
	_, adminToken := registerAdmin(t, svc, router, "admin@example.com", "adminsecret")

	// 普通用户（即使是本人）不能删除
	rec := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", bobID), bobToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// 管理员删除，响应携带被删记录
	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", bobID), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "User deleted successfully", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "bob@example.com", user["email"])

	// 已删除
	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", bobID), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnsureAdminUser(t *testing.T) {
	svc := newTestService(t)

	// 未配置时为空操作
	require.NoError(t, EnsureAdminUser(svc, "", ""))

	require.NoError(t, EnsureAdminUser(svc, "admin@example.com", "adminsecret"))
	user, err := svc.Authenticate(context.Background(), "admin@example.com", "adminsecret")
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleAdmin, user.Role)

	// 幂等：已存在时不报错
	require.NoError(t, EnsureAdminUser(svc, "admin@example.com", "adminsecret"))
}
