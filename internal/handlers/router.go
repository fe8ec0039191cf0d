package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/job-tracker/internal/auth"
	"github.com/justsurfingit/job-tracker/internal/metrics"
	"github.com/justsurfingit/job-tracker/internal/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Jobs        *services.JobService
	Accounts    *services.AccountService
	LLM         *services.LLMService
	Tokens      *auth.TokenManager
	Logger      *zap.Logger
	CORSOrigins []string
}

// NewRouter wires middleware and routes.
func NewRouter(d RouterDeps) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(Recovery(d.Logger), RequestLogger(d.Logger), metrics.Middleware())
	r.Use(cors.New(corsConfig(d.CORSOrigins)))

	jobHandler := NewJobHandler(d.Jobs, d.LLM, d.Logger)
	authHandler := NewAuthHandler(d.Accounts, d.Tokens, d.Logger)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/ping", HealthCheck)

		authRoutes := api.Group("/auth")
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/token", authHandler.ObtainToken)
		authRoutes.POST("/token/refresh", authHandler.RefreshToken)
		authRoutes.POST("/token/verify", authHandler.VerifyToken)

		// Job Routes
		jobs := api.Group("/jobs", auth.RequireAuth(d.Tokens, d.Accounts, d.Logger))
		jobs.GET("", jobHandler.ListJobs)
		jobs.POST("", jobHandler.CreateJob)
		jobs.POST("/extract", jobHandler.ExtractJob)
		jobs.GET("/:id", jobHandler.GetJob)
		jobs.PUT("/:id", jobHandler.ReplaceJob)
		jobs.PATCH("/:id", jobHandler.PatchJob)
		jobs.DELETE("/:id", jobHandler.DeleteJob)
		jobs.POST("/:id/transition", jobHandler.TransitionJob)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return config
}
