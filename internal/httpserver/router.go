package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"emailai/internal/handler"
	"emailai/pkg/otel"
	"emailai/pkg/rbac"
)

// ReadyCheck /readyz 依赖检查，返回 error 表示未就绪
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handlers 路由用到的 handler，AdminHandler 为 nil 时不注册 /admin
type Handlers struct {
	Auth   *handler.AuthHandler
	Email  *handler.EmailHandler
	Stats  *handler.StatsHandler
	Admin  *handler.AdminHandler
	Checks []ReadyCheck
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, jwtSecret string) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), MetricsMiddleware())

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", readyHandler(h.Checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", h.Auth.Register)
	r.POST("/login", h.Auth.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/emails", RequirePermission(rbac.PermissionReadEmail), h.Email.ListEmails)
		auth.GET("/emails/:id", RequirePermission(rbac.PermissionReadEmail), h.Email.GetEmail)
		auth.PATCH("/emails/:id", RequirePermission(rbac.PermissionUpdateEmail), h.Email.UpdateEmail)
		auth.POST("/emails/:id/draft", RequirePermission(rbac.PermissionDraftEmail), h.Email.SuggestDraft)
		auth.GET("/stats", RequirePermission(rbac.PermissionReadStats), h.Stats.GetStats)
	}

	if h.Admin != nil {
		admin := r.Group("/admin")
		admin.Use(AuthMiddleware(jwtSecret), RequirePermission(rbac.PermissionReplayOutbox))
		{
			admin.POST("/outbox/replay", h.Admin.ReplayOutboxEvent)
			admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)
		}
	}

	return &Router{Engine: r}
}

func readyHandler(checks []ReadyCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for _, chk := range checks {
			if err := chk.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": chk.Name + "_not_ready",
					"error":  err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// Server 包装 http.Server 以便优雅关闭
func (r *Router) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
