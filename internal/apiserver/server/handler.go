// Package server 路由配置与核心基础设施
//
// 本文件定义 HTTP API 路由，将请求分发到各领域独立包。
// 仍保留在本包的模块：
//   - metrics.go: Prometheus 指标
package server

import (
	"net/http"
	"time"

	"users-admin/internal/apiserver/auth"
	"users-admin/internal/apiserver/users"
	"users-admin/pkg/logging"
)

// Handler API 处理器，负责路由请求到对应的领域处理器
type Handler struct {
	userSvc *users.Service
	authCfg auth.Config
	metrics *Metrics
	logger  *logging.Logger
}

// NewHandler 创建 Handler 实例
func NewHandler(userSvc *users.Service, authCfg auth.Config) *Handler {
	return &Handler{
		userSvc: userSvc,
		authCfg: authCfg,
		metrics: NewMetrics("users_admin"),
		logger:  logging.Default("api-server"),
	}
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//   - GET /metrics - Prometheus 指标
//
// 认证 (Auth):
//   - POST /api/v1/auth/register - 注册（公开）
//   - POST /api/v1/auth/login    - 登录（公开）
//   - GET  /api/v1/auth/me       - 当前用户
//
// 用户管理 (User):
//   - GET    /api/v1/users      - 列出用户
//   - GET    /api/v1/users/{id} - 获取用户详情
//   - PUT    /api/v1/users/{id} - 更新用户（本人或管理员；角色仅管理员）
//   - DELETE /api/v1/users/{id} - 删除用户（仅管理员）
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	// 用户与认证接口
	userHandler := users.NewHandler(h.userSvc, h.authCfg)
	userHandler.RegisterRoutes(mux)

	// 应用指标中间件
	apiHandler := h.metrics.MetricsMiddleware(mux)

	// 应用请求日志中间件
	loggedHandler := h.requestLogMiddleware(apiHandler)

	// 应用认证中间件
	authedHandler := auth.Middleware(h.authCfg)(loggedHandler)

	// 应用 CORS 中间件
	return corsMiddleware(authedHandler)
}

// Health 健康检查接口
//
// 路由: GET /health
//
// 用于负载均衡器和监控系统检查服务状态。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// requestLogMiddleware 结构化记录每个 HTTP 请求
func (h *Handler) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		h.logger.HTTPRequestLog(r.Method, r.URL.Path, wrapped.statusCode,
			time.Since(start), r.RemoteAddr)
	})
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
