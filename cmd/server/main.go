package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/wekraft/gitpilot/internal/adapters"
	"github.com/wekraft/gitpilot/internal/cache"
	"github.com/wekraft/gitpilot/internal/database"
	apperrors "github.com/wekraft/gitpilot/internal/errors"
	"github.com/wekraft/gitpilot/internal/leaderboard"
	"github.com/wekraft/gitpilot/internal/middleware"
	"github.com/wekraft/gitpilot/internal/monitoring"
	"github.com/wekraft/gitpilot/internal/ratelimit"
	"github.com/wekraft/gitpilot/internal/scoring"
	"github.com/wekraft/gitpilot/internal/security"
	"github.com/wekraft/gitpilot/internal/types"
)

// config holds the environment-driven runtime settings
type config struct {
	Port           string
	DataDir        string
	GitHubToken    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	AllowedOrigins []string
	RateLimit      ratelimit.Config
}

func loadConfig() config {
	cfg := config{
		Port:          getEnvOrDefault("PORT", "8080"),
		DataDir:       getEnvOrDefault("DATA_DIR", "./data"),
		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RateLimit:     ratelimit.DefaultConfig(),
	}

	if db, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0")); err == nil {
		cfg.RedisDB = db
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	} else {
		cfg.AllowedOrigins = security.DefaultSecurityConfig().AllowedOrigins
	}

	return cfg
}

// server bundles the handler dependencies so tests can assemble one
// against an in-memory database and a stubbed GitHub API
type server struct {
	cfg         config
	db          *database.DB
	repo        *database.Repository
	projects    *database.ProjectService
	leaderboard *leaderboard.Service
	github      *adapters.GitHubAdapter
	redis       *ratelimit.RedisClient
	limiter     *ratelimit.RateLimiter
	cache       *cache.Cache
	compression *middleware.CompressionMiddleware
	security    *security.SecurityMiddleware
	metrics     *monitoring.Metrics
	logger      *monitoring.Logger
}

func newServer(cfg config, db *database.DB, github *adapters.GitHubAdapter, redis *ratelimit.RedisClient) *server {
	metrics := monitoring.NewMetrics()
	repo := database.NewRepository(db)

	return &server{
		cfg:         cfg,
		db:          db,
		repo:        repo,
		projects:    database.NewProjectService(repo),
		leaderboard: leaderboard.NewService(repo),
		github:      github,
		redis:       redis,
		limiter:     ratelimit.NewRateLimiter(redis, cfg.RateLimit, metrics),
		cache:       cache.NewCache(15 * time.Minute),
		compression: middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
		security:    security.NewSecurityMiddleware(security.DefaultSecurityConfig()),
		metrics:     metrics,
		logger:      monitoring.NewLogger(),
	}
}

func (s *server) router() *gin.Engine {
	r := gin.New()

	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())
	r.Use(security.SecurityHeadersMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))
	r.Use(s.compression.Handler())
	r.Use(s.security.RequestTimeout)
	r.Use(s.security.ValidateContentType)
	r.Use(s.limiter.IPRateLimitMiddleware())
	r.Use(s.cache.Middleware(s.metrics))

	r.GET("/health", s.handleHealthz)
	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.metrics.GetStats())
	})
	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.cache.Stats())
	})
	r.GET("/ratelimit/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.limiter.GetStats())
	})
	r.GET("/pools/github", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pool": "github", "stats": s.github.GetPoolStats()})
	})
	r.GET("/pools/database", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pool": "database", "stats": s.db.GetPoolStats()})
	})
	r.GET("/pools/compression", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pool": "compression", "stats": s.compression.GetStats()})
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if os.Getenv("ENABLE_PROFILING") == "true" {
		r.GET("/debug/pprof/*filepath", gin.WrapF(pprof.Index))
		r.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
		r.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
		r.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
		r.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	}

	api := r.Group("/api/v1")

	scoreLimit := s.cfg.RateLimit.ScoreLimitPerMin
	api.POST("/impact", s.limiter.EndpointRateLimitMiddleware("impact", scoreLimit), s.handleImpact)
	api.GET("/impact/:username", s.limiter.EndpointRateLimitMiddleware("impact", scoreLimit), s.handleImpactForUser)

	api.GET("/leaderboard", s.handleLeaderboard)
	api.GET("/leaderboard/rank/:username", s.handleDeveloperRank)

	projects := api.Group("/projects")
	projects.POST("", s.handleRegisterProject)
	projects.GET("", s.handleListProjects)
	projects.GET("/:id", s.handleGetProject)
	projects.DELETE("/:id", s.handleDeleteProject)
	projects.PUT("/:id/upvotes", s.handleSetUpvotes)
	projects.POST("/:id/health", s.limiter.EndpointRateLimitMiddleware("health", scoreLimit), s.handleProjectHealth)
	projects.GET("/:id/health", s.handleGetProjectHealth)

	return r
}

func (s *server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
		"metrics":   s.metrics.GetStats(),
	})
}

// handleImpact scores a developer from activity counters supplied inline
func (s *server) handleImpact(c *gin.Context) {
	start := time.Now()

	var req types.ImpactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError("invalid request body", map[string]string{"body": err.Error()}))
		return
	}

	req.Username = s.security.SanitizeInput(req.Username)
	if err := s.security.ValidateUsername(req.Username); err != nil {
		s.respondError(c, apperrors.NewValidationError(err.Error(), map[string]string{"username": err.Error()}))
		return
	}

	counters := scoring.ActivityCounters{
		TotalCommits:      req.TotalCommits,
		TotalPRs:          req.TotalPRs,
		TotalIssuesClosed: req.TotalIssues,
		TotalReviews:      req.TotalReviews,
		AccountAgeYears:   req.AccountAgeYears,
	}
	if err := counters.Validate(); err != nil {
		s.respondError(c, apperrors.ToAppError(err))
		return
	}

	s.finishImpact(c, req.Username, counters, start)
}

// handleImpactForUser gathers the counters from GitHub before scoring
func (s *server) handleImpactForUser(c *gin.Context) {
	start := time.Now()

	username := c.Param("username")
	if err := s.security.ValidateUsername(username); err != nil {
		s.respondError(c, apperrors.NewValidationError(err.Error(), map[string]string{"username": err.Error()}))
		return
	}

	counters, err := s.github.FetchActivityCounters(c.Request.Context(), username)
	if err != nil {
		s.respondError(c, apperrors.ToAppError(err))
		return
	}
	if err := counters.Validate(); err != nil {
		s.respondError(c, apperrors.ToAppError(err))
		return
	}

	s.finishImpact(c, username, counters, start)
}

// finishImpact runs the calculation, snapshots the result for the
// leaderboard, and writes the response
func (s *server) finishImpact(c *gin.Context, username string, counters scoring.ActivityCounters, start time.Time) {
	result := scoring.CalculateImpactScore(counters)
	s.metrics.IncrementImpactCalculations()
	s.logger.ImpactScoreLogger(username, result.Score, result.DisplayScore, string(result.Tier), len(result.Penalties), time.Since(start))

	isPublic := c.Query("public") == "true"
	if err := s.leaderboard.SaveScore(username, result, isPublic); err != nil {
		slog.Error("Failed to save impact score", "error", err, "username", username)
	}

	c.JSON(http.StatusOK, gin.H{
		"username": username,
		"counters": counters,
		"impact":   result,
	})
}

func (s *server) handleDeveloperRank(c *gin.Context) {
	username := c.Param("username")
	if err := s.security.ValidateUsername(username); err != nil {
		s.respondError(c, apperrors.NewValidationError(err.Error(), map[string]string{"username": err.Error()}))
		return
	}

	rank, err := s.leaderboard.GetDeveloperRank(username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(c, apperrors.NewNotFoundError("impact score", username))
			return
		}
		s.respondError(c, apperrors.ToAppError(err))
		return
	}

	c.JSON(http.StatusOK, rank)
}

func (s *server) handleLeaderboard(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	response, err := s.leaderboard.GetLeaderboard(limit)
	if err != nil {
		s.respondError(c, apperrors.ToAppError(err))
		return
	}

	c.JSON(http.StatusOK, response)
}

// handleRegisterProject registers a repository for health tracking.
// Registering the same repository twice returns the existing project.
func (s *server) handleRegisterProject(c *gin.Context) {
	var req types.ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError("invalid request body", map[string]string{"body": err.Error()}))
		return
	}

	owner, name, err := s.security.ValidateRepoPath(normalizeRepoURL(req.RepoURL))
	if err != nil {
		s.respondError(c, apperrors.NewValidationError(err.Error(), map[string]string{"repo_url": err.Error()}))
		return
	}

	project, err := s.projects.Register(owner, name, s.security.SanitizeInput(req.Name))
	if err != nil {
		s.respondError(c, apperrors.ToAppError(err))
		return
	}

	c.JSON(http.StatusCreated, project)
}

// handleProjectHealth recalculates a project's health score when the
// stored one has gone stale or ?force=true is set. A fresh stored score
// is returned as-is.
func (s *server) handleProjectHealth(c *gin.Context) {
	start := time.Now()
	id := c.Param("id")
	force := c.Query("force") == "true"

	project, err := s.projects.Get(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(c, apperrors.NewNotFoundError("project", id))
			return
		}
		s.respondError(c, apperrors.ToAppError(err))
		return
	}

	now := time.Now()
	if !force && !s.projects.NeedsRecalculation(project, now) {
		c.JSON(http.StatusOK, gin.H{
			"project":      project,
			"recalculated": false,
		})
		return
	}

	signals, err := s.github.FetchRepoSignals(c.Request.Context(), project.Owner, project.Repo)
	if err != nil {
		s.respondError(c, apperrors.ToAppError(err))
		return
	}
	signals.Upvotes = project.UpvoteCount

	score, err := s.projects.RecordHealth(project.ID, signals, now)
	if err != nil {
		s.respondError(c, apperrors.ToAppError(err))
		return
	}
	project.HealthScore = score

	s.metrics.IncrementHealthCalculations()
	s.logger.HealthScoreLogger(project.ID, score.TotalScore, time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"project":      project,
		"recalculated": true,
	})
}

// handleGetProjectHealth returns the persisted health score
func (s *server) handleGetProjectHealth(c *gin.Context) {
	id := c.Param("id")

	project, err := s.projects.Get(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(c, apperrors.NewNotFoundError("project", id))
			return
		}
		s.respondError(c, apperrors.ToAppError(err))
		return
	}

	if project.HealthScore == nil {
		s.respondError(c, apperrors.NewNotFoundError("health score", id))
		return
	}

	c.JSON(http.StatusOK, project.HealthScore)
}

func (s *server) handleListProjects(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	projects, err := s.projects.List(limit)
	if err != nil {
		s.respondError(c, apperrors.ToAppError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
		"total":    len(projects),
	})
}

func (s *server) handleGetProject(c *gin.Context) {
	id := c.Param("id")

	project, err := s.projects.Get(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(c, apperrors.NewNotFoundError("project", id))
			return
		}
		s.respondError(c, apperrors.ToAppError(err))
		return
	}

	c.JSON(http.StatusOK, project)
}

func (s *server) handleDeleteProject(c *gin.Context) {
	id := c.Param("id")

	if err := s.projects.Delete(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(c, apperrors.NewNotFoundError("project", id))
			return
		}
		s.respondError(c, apperrors.ToAppError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "project deleted", "id": id})
}

func (s *server) handleSetUpvotes(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		Count int `json:"count" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError("invalid request body", map[string]string{"body": err.Error()}))
		return
	}

	if err := s.repo.SetUpvotes(id, req.Count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(c, apperrors.NewNotFoundError("project", id))
			return
		}
		s.respondError(c, apperrors.ToAppError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "upvote_count": req.Count})
}

func (s *server) respondError(c *gin.Context, err *apperrors.AppError) {
	apperrors.LogError(c, err)
	c.JSON(err.HTTPStatus, err)
}

// normalizeRepoURL reduces a repository reference to owner/repo form.
// Accepts bare paths and full github.com URLs.
func normalizeRepoURL(repoURL string) string {
	path := strings.TrimSpace(repoURL)
	path = strings.TrimPrefix(path, "https://")
	path = strings.TrimPrefix(path, "http://")
	path = strings.TrimPrefix(path, "github.com/")
	path = strings.TrimSuffix(path, ".git")
	return strings.Trim(path, "/")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("Redis unavailable, rate limiting falls back to in-memory", "error", err)
	}

	githubAdapter := adapters.NewGitHubAdapter(cfg.GitHubToken)

	srv := newServer(cfg, db, githubAdapter, redisClient)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.router(),
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	githubAdapter.Close()
	if redisClient != nil {
		redisClient.Close()
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}
