// Package api is the thin HTTP presentation layer; all retrieval logic
// lives in the engine.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shapedtime/subvault/internal/engine"
)

// Server represents the REST API server
type Server struct {
	router *gin.Engine
	engine *engine.Engine
}

// NewServer creates a new API server over the retrieval engine
func NewServer(eng *engine.Engine) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		engine: eng,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logging middleware
	s.router.Use(func(c *gin.Context) {
		c.Next()
		slog.Info("API request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	})

	// CORS for development
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	// Subtitles
	api.GET("/subtitles/search", s.searchSubtitles)
	api.GET("/subtitles/languages", s.getLanguages)
	api.POST("/subtitles/download", s.downloadSubtitle)
	api.GET("/subtitles/:movie/recommendations", s.getRecommendations)
	api.GET("/subtitles/:movie/merge", s.mergeSubtitles)
	api.GET("/subtitles/:movie/:lang", s.getSubtitleInfo)
	api.GET("/subtitles/:movie/:lang/preview", s.previewSubtitle)
	api.GET("/subtitles/:movie/:lang/convert", s.convertSubtitle)
	api.GET("/subtitles/:movie/:lang/info", s.getContentInfo)
	api.POST("/subtitles/:movie/:lang/shift", s.shiftSubtitle)

	// Movies and languages
	api.GET("/movies/search", s.searchMovies)
	api.GET("/languages/popular", s.getPopularLanguages)

	// Status
	api.GET("/stats", s.getStats)
	api.GET("/health", s.getHealth)

	// Admin
	api.POST("/admin/cleanup", s.runCleanup)
	api.POST("/admin/invalidate/:movie", s.invalidateMovie)
	api.POST("/admin/bulk-import", s.bulkImport)
	api.POST("/admin/verify/:movie/:lang", s.verifyIntegrity)
	api.GET("/admin/providers", s.getProviderHealth)
	api.GET("/admin/usage", s.getUsageStats)
	api.GET("/admin/usage.csv", s.exportUsageCSV)
	api.GET("/admin/backup", s.createBackup)
	api.POST("/admin/restore", s.restoreBackup)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Error response helper
func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
