package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shapedtime/subvault/internal/store"
)

// Admin request/response types

type BulkImportRequest struct {
	Records []store.Record `json:"records" binding:"required"`
}

// Admin handlers

func (s *Server) runCleanup(c *gin.Context) {
	result, err := s.engine.Cleanup(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) invalidateMovie(c *gin.Context) {
	movieID := c.Param("movie")

	cacheEntries, records, err := s.engine.InvalidateMovie(c.Request.Context(), movieID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"movie_id":        movieID,
		"cache_entries":   cacheEntries,
		"records_removed": records,
	})
}

func (s *Server) bulkImport(c *gin.Context) {
	var req BulkImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := s.engine.BulkImport(c.Request.Context(), req.Records)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submitted": len(req.Records),
		"stored":    stored,
	})
}

func (s *Server) verifyIntegrity(c *gin.Context) {
	movieID := c.Param("movie")
	language := c.Param("lang")

	result, err := s.engine.VerifyIntegrity(c.Request.Context(), movieID, language)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) getProviderHealth(c *gin.Context) {
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))

	health, err := s.engine.ProviderHealth(c.Request.Context(), hours)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"providers": health})
}

func (s *Server) getUsageStats(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	stats, err := s.engine.UsageStats(c.Request.Context(), days)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) exportUsageCSV(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	csv, err := s.engine.ExportUsageCSV(c.Request.Context(), days)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.Header("Content-Disposition", "attachment; filename=usage.csv")
	c.Data(http.StatusOK, "text/csv", []byte(csv))
}

func (s *Server) createBackup(c *gin.Context) {
	backup, err := s.engine.Backup(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.Header("Content-Disposition", "attachment; filename=subvault-backup.json")
	c.JSON(http.StatusOK, backup)
}

func (s *Server) restoreBackup(c *gin.Context) {
	var backup store.Backup
	if err := c.ShouldBindJSON(&backup); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.engine.Restore(c.Request.Context(), &backup); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"restored_subtitles": len(backup.Subtitles),
		"restored_movies":    len(backup.Movies),
	})
}
