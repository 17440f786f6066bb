package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"users-admin/internal/apiserver/auth"
	"users-admin/internal/shared/model"
)

// Handler 用户账户 HTTP 处理器
type Handler struct {
	svc *Service
	cfg auth.Config
}

// NewHandler 创建用户处理器
func NewHandler(svc *Service, cfg auth.Config) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

// RegisterRoutes 注册用户相关路由
// 除注册和登录外，所有路由都经过认证中间件；删除额外要求管理员角色
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("GET /api/v1/auth/me", h.Me)

	mux.HandleFunc("GET /api/v1/users", h.ListUsers)
	mux.HandleFunc("GET /api/v1/users/{id}", h.GetUser)
	mux.HandleFunc("PUT /api/v1/users/{id}", h.UpdateUser)
	mux.HandleFunc("DELETE /api/v1/users/{id}", auth.AdminOnly(h.DeleteUser))
}

// ============================================================================
// 认证接口
// ============================================================================

// Register 用户注册
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if details := req.validate(); len(details) > 0 {
		writeValidationError(w, details)
		return
	}

	user, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password, model.UserRole(req.Role))
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeError(w, http.StatusConflict, ErrEmailTaken.Error())
			return
		}
		log.Printf("[users.register] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := auth.GenerateToken(h.cfg, user)
	if err != nil {
		log.Printf("[users.register] GenerateToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[users] User registered: %s (id=%d)", user.Email, user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    user,
		"token":   token,
	})
}

// Login 用户登录
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			// 统一失败信息，不泄露邮箱是否存在
			writeError(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
			return
		}
		log.Printf("[users.login] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := auth.GenerateToken(h.cfg, user)
	if err != nil {
		log.Printf("[users.login] GenerateToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[users] User logged in: %s", user.Email)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    user,
		"token":   token,
	})
}

// Me 获取当前用户信息
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	requester := auth.GetAuthUser(r.Context())
	if requester == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.svc.GetByID(r.Context(), requester.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("[users.me] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Successfully retrieved user",
		"user":    user,
	})
}

// ============================================================================
// 用户 CRUD 接口
// ============================================================================

// ListUsers 列出所有用户
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		log.Printf("[users.list] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Successfully retrieved users",
		"users":   users,
		"count":   len(users),
	})
}

// GetUser 按 ID 获取用户
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, details := parseUserID(r.PathValue("id"))
	if details != nil {
		writeValidationError(w, details)
		return
	}

	user, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("[users.get] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Successfully retrieved user",
		"user":    user,
	})
}

// UpdateUser 更新用户
// 校验 → 认证 → 授权（含字段级角色限制）→ 变更，严格按此顺序执行
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, details := parseUserID(r.PathValue("id"))
	if details != nil {
		writeValidationError(w, details)
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	patch, details := req.validate()
	if details != nil {
		writeValidationError(w, details)
		return
	}

	requester := auth.GetAuthUser(r.Context())
	if decision := auth.Decide(requester, id, patch.RoleChange()); !decision.Allowed {
		writeDenied(w, decision, "update")
		return
	}

	user, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("[users.update] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[users] User updated: id=%d by=%d", id, requester.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    user,
	})
}

// DeleteUser 删除用户
// 路由层已限制为管理员；此处仍执行策略检查作为纵深防御
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, details := parseUserID(r.PathValue("id"))
	if details != nil {
		writeValidationError(w, details)
		return
	}

	requester := auth.GetAuthUser(r.Context())
	if decision := auth.Decide(requester, id, false); !decision.Allowed {
		writeDenied(w, decision, "delete")
		return
	}

	user, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("[users.delete] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[users] User deleted: id=%d by=%d", id, requester.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User deleted successfully",
		"user":    user,
	})
}

// ============================================================================
// Admin Bootstrap
// ============================================================================

// EnsureAdminUser 确保管理员用户存在（启动时调用）
// 如果配置了 adminEmail 且该邮箱尚未注册，则自动创建管理员账户
func EnsureAdminUser(svc *Service, adminEmail, adminPassword string) error {
	if adminEmail == "" || adminPassword == "" {
		return nil
	}

	ctx := context.Background()
	user, err := svc.Register(ctx, "Admin", adminEmail, adminPassword, model.UserRoleAdmin)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			log.Printf("[users] Admin user already exists: %s", adminEmail)
			return nil
		}
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Printf("[users] Created admin user: %s (id=%d)", adminEmail, user.ID)
	return nil
}

// ============================================================================
// 工具函数
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeValidationError(w http.ResponseWriter, details []FieldError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":   "Validation failed",
		"details": details,
	})
}

// writeDenied 将访问决策的拒绝原因映射为 HTTP 响应
func writeDenied(w http.ResponseWriter, decision auth.Decision, action string) {
	switch decision.Reason {
	case auth.DenyUnauthenticated:
		writeError(w, http.StatusUnauthorized, "Authentication required")
	case auth.DenyRoleChangeNeedsAdmin:
		writeError(w, http.StatusForbidden, "Only administrators can update user roles")
	default:
		writeError(w, http.StatusForbidden,
			fmt.Sprintf("You do not have permission to %s this user", action))
	}
}
