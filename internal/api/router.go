// Package api wires the gin engine: global middleware, rate limit tiers,
// role checks and the routes of every handler.
package api

import (
	"civicdesk/backend/internal/api/handler"
	"civicdesk/backend/internal/api/middleware"
	"civicdesk/backend/internal/auth"
	"civicdesk/backend/internal/models"
	"civicdesk/backend/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Limiters are the HTTP rate limit tiers. Nil tiers admit everything.
type Limiters struct {
	IP       ratelimit.Limiter
	Auth     ratelimit.Limiter
	AI       ratelimit.Limiter
	Identity ratelimit.Limiter
}

func (l Limiters) orUnlimited() Limiters {
	for _, p := range []*ratelimit.Limiter{&l.IP, &l.Auth, &l.AI, &l.Identity} {
		if *p == nil {
			*p = ratelimit.Unlimited
		}
	}
	return l
}

// RouterConfig holds what NewRouter needs besides the handler.
type RouterConfig struct {
	Tokens    *auth.TokenIssuer
	Limiters  Limiters
	UploadDir string
	Log       *zap.Logger
}

// NewRouter builds the engine with every route registered.
func NewRouter(h *handler.Handler, cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	lim := cfg.Limiters.orUnlimited()

	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logger(log))
	r.Use(middleware.RateLimit("ip", lim.IP, middleware.ByIP, log))

	authTier := middleware.RateLimit("auth", lim.Auth, middleware.ByIP, log)
	aiTier := middleware.RateLimit("ai", lim.AI, middleware.ByIP, log)
	identityTier := middleware.RateLimit("identity", lim.Identity, middleware.ByIdentity, log)

	admin := middleware.RequireRole(log, models.RoleAdmin)
	citizen := middleware.RequireRole(log, models.RoleCitizen)
	worker := middleware.RequireRole(log, models.RoleWorker)
	adminOrWorker := middleware.RequireRole(log, models.RoleAdmin, models.RoleWorker)

	r.GET("/", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.UploadDir != "" {
		r.Static("/uploads", cfg.UploadDir)
	}

	// --- публічні маршрути ---
	r.POST("/login", authTier, h.Login)
	r.POST("/register-citizen", authTier, h.RegisterCitizen)
	r.POST("/auth/send-email-otp", authTier, h.SendOTP)
	r.POST("/auth/verify-email-otp", authTier, h.VerifyOTP)

	// --- маршрути з JWT ---
	api := r.Group("/", middleware.Auth(cfg.Tokens, log))
	{
		api.GET("/ws", h.ServeWebSocket)

		api.GET("/profile", h.Profile)
		api.PUT("/profile/update", h.UpdateProfile)
		api.GET("/notifications", h.Notifications)
		api.GET("/announcements", h.Announcements)
		api.GET("/chat-history/:room", h.ChatHistory)
		api.GET("/complaints-map", h.ComplaintsMap)

		api.POST("/ai/suggest-title", citizen, aiTier, h.SuggestTitle)
		api.POST("/complaint", citizen, identityTier, h.SubmitComplaint)
		api.GET("/complaints-by-user/:id", h.ListCitizenComplaints)
		api.GET("/citizen/stats/:citizenId", h.CitizenStats)
		api.GET("/citizen/activity/:id", h.CitizenActivity)

		api.GET("/worker/:name", adminOrWorker, h.ListWorkerComplaints)
		api.PUT("/complaint/:id", worker, identityTier, h.UpdateStatus)

		api.GET("/complaints", admin, h.ListComplaints)
		api.GET("/workers", admin, h.ListWorkers)
		api.POST("/assign", admin, identityTier, h.Assign)
	}

	adminGroup := api.Group("/admin", admin)
	{
		adminGroup.POST("/add-worker", h.AddWorker)
		adminGroup.PUT("/remove-worker/:id", h.RemoveWorker)
		adminGroup.GET("/worker-activity/:workerName", h.WorkerActivity)
		adminGroup.GET("/active-chats", h.ActiveChats)
		adminGroup.POST("/announcement", h.PostAnnouncement)
		adminGroup.GET("/complaints/export", h.ExportComplaints)
	}

	return r
}
