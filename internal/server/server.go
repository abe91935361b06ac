package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/config"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/database"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/handlers"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/logger"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/middleware"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/observability"
)

type Server struct {
	cfg     *config.Config
	db      database.Service
	handler *handlers.Handler
	metrics *observability.Metrics
	log     *logger.Logger
}

type Deps struct {
	Config  *config.Config
	DB      database.Service
	Votes   handlers.VoteCaster
	Metrics *observability.Metrics
	Log     *logger.Logger
}

// NewServer creates and configures a new HTTP server
func NewServer(deps Deps) *http.Server {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics()
	}

	newServer := &Server{
		cfg:     deps.Config,
		db:      deps.DB,
		handler: handlers.NewHandler(deps.DB.GetDB(), deps.Votes, deps.Log),
		metrics: deps.Metrics,
		log:     deps.Log,
	}

	if deps.Config.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	return &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%s", deps.Config.Port),
		Handler:      newServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), s.accessLog(), s.metrics.GinMiddleware())

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	{
		// Post routes (public reads)
		api.GET("/posts", s.handler.Post.GetPosts)
		api.GET("/posts/:id", s.handler.Post.GetPost)

		// Comment routes (public reads)
		api.GET("/posts/:id/comments", s.handler.Comment.GetComments)

		// User routes (public reads)
		api.GET("/users/:id", s.handler.User.GetUserProfile)
		api.GET("/users/:id/posts", s.handler.Post.GetUserPosts)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(s.cfg.JWTSecret))
		{
			protected.GET("/me", s.handler.User.GetMe)
			protected.PUT("/users/:id", s.handler.User.UpdateUserProfile)

			protected.POST("/posts", s.handler.Post.CreatePost)
			protected.PUT("/posts/:id", s.handler.Post.UpdatePost)
			protected.DELETE("/posts/:id", s.handler.Post.DeletePost)

			protected.POST("/posts/:id/comments", s.handler.Comment.CreateComment)
			protected.DELETE("/comments/:commentId", s.handler.Comment.DeleteComment)

			// Votes
			protected.GET("/votes", s.handler.Vote.GetVoteStates)
			protected.POST("/votes", s.handler.Vote.CastVote)
			protected.POST("/posts/:id/vote", s.handler.Vote.VotePost)
			protected.POST("/comments/:commentId/upvote", s.handler.Vote.UpvoteComment)
			protected.POST("/comments/:commentId/downvote", s.handler.Vote.DownvoteComment)
		}
	}

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	stats := s.db.Health()
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
