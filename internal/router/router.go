package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	authhandler "github.com/jwalitptl/lifeflow-api/internal/handler/auth"
	certificatehandler "github.com/jwalitptl/lifeflow-api/internal/handler/certificate"
	donorhandler "github.com/jwalitptl/lifeflow-api/internal/handler/donor"
	healthhandler "github.com/jwalitptl/lifeflow-api/internal/handler/health"
	notificationhandler "github.com/jwalitptl/lifeflow-api/internal/handler/notification"
	requesthandler "github.com/jwalitptl/lifeflow-api/internal/handler/request"
	"github.com/jwalitptl/lifeflow-api/internal/middleware"
	"github.com/jwalitptl/lifeflow-api/internal/model"
)

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
}

type Router struct {
	engine        *gin.Engine
	auth          *middleware.AuthMiddleware
	authH         *authhandler.Handler
	requestH      *requesthandler.Handler
	donorH        *donorhandler.Handler
	certificateH  *certificatehandler.Handler
	notificationH *notificationhandler.Handler
	healthH       *healthhandler.Handler
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	authH *authhandler.Handler,
	requestH *requesthandler.Handler,
	donorH *donorhandler.Handler,
	certificateH *certificatehandler.Handler,
	notificationH *notificationhandler.Handler,
	healthH *healthhandler.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	RegisterValidations()
	engine := gin.New()

	engine.Use(
		gin.Recovery(),
		middleware.Logger(),
		middleware.Metrics(),
	)
	engine.Use(middleware.CORS(config.CORSConfig))

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return &Router{
		engine:        engine,
		auth:          auth,
		authH:         authH,
		requestH:      requestH,
		donorH:        donorH,
		certificateH:  certificateH,
		notificationH: notificationH,
		healthH:       healthH,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	r.healthH.RegisterRoutes(api)

	// Public
	api.POST("/auth/register", r.authH.Register)
	api.POST("/auth/login", r.authH.Login)

	authed := api.Group("")
	authed.Use(r.auth.Authenticate())

	admin := authed.Group("")
	admin.Use(r.auth.RequireRole(model.UserRoleAdmin))

	donor := authed.Group("")
	donor.Use(r.auth.RequireRole(model.UserRoleDonor))

	// Blood requests
	authed.POST("/requests", r.requestH.Create)
	authed.GET("/requests/:id", r.requestH.Get)
	authed.GET("/requests/:id/photo", r.requestH.Photo)
	admin.GET("/requests", r.requestH.List)
	admin.POST("/requests/:id/approve", r.requestH.Approve)
	admin.POST("/requests/:id/reject", r.requestH.Reject)
	admin.DELETE("/requests/:id", r.requestH.Delete)
	admin.GET("/requests/:id/candidates", r.requestH.Candidates)
	admin.POST("/requests/:id/assign", r.requestH.Assign)
	admin.POST("/requests/:id/reassign", r.requestH.Reassign)
	admin.POST("/requests/:id/donated", r.requestH.MarkDonated)
	donor.GET("/requests/open", r.requestH.ListOpen)
	donor.POST("/requests/:id/opt-in", r.requestH.OptIn)

	// Donor profile
	donor.GET("/donors/me", r.donorH.Me)
	donor.PATCH("/donors/me", r.donorH.Update)
	donor.GET("/donors/me/eligibility", r.donorH.Eligibility)
	donor.GET("/donors/me/history", r.donorH.History)

	// Certificates
	donor.GET("/certificates/mine", r.certificateH.ListMine)
	authed.GET("/certificates/:id", r.certificateH.Get)
	admin.GET("/certificates/pending", r.certificateH.ListPending)
	admin.POST("/certificates/:id/approve", r.certificateH.Approve)
	admin.POST("/certificates/:id/generate", r.certificateH.Generate)
	admin.POST("/certificates/:id/approve-and-generate", r.certificateH.ApproveAndGenerate)

	// Notifications
	authed.GET("/notifications", r.notificationH.List)
	authed.GET("/notifications/unread-count", r.notificationH.UnreadCount)
	authed.POST("/notifications/:id/read", r.notificationH.MarkRead)
	authed.POST("/notifications/read-all", r.notificationH.MarkAllRead)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
