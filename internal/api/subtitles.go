package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shapedtime/subvault/internal/provider"
	"github.com/shapedtime/subvault/internal/subtitle"
)

// Subtitle request/response types

type SearchResponse struct {
	Query   string               `json:"query"`
	Results []provider.RawResult `json:"results"`
}

type LanguagesResponse struct {
	MovieID   string         `json:"movie_id"`
	Languages []LanguageInfo `json:"languages"`
}

type LanguageInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type DownloadRequest struct {
	MovieID    string `json:"movie_id" binding:"required"`
	Language   string `json:"language" binding:"required"`
	Provider   string `json:"provider" binding:"required"`
	SubtitleID string `json:"subtitle_id"`
	URL        string `json:"url"`
	Filename   string `json:"filename"`
	Format     string `json:"format"`
}

type ShiftRequest struct {
	OffsetSeconds float64 `json:"offset_seconds" binding:"required"`
}

type DownloadResponse struct {
	MovieID  string `json:"movie_id"`
	Language string `json:"language"`
	Size     int    `json:"size"`
	Content  string `json:"content"`
}

// Subtitle handlers

func (s *Server) searchSubtitles(c *gin.Context) {
	title := c.Query("title")
	catalogID := c.Query("catalog_id")
	if title == "" && catalogID == "" {
		errorResponse(c, http.StatusBadRequest, "title or catalog_id is required")
		return
	}

	language := subtitle.NormalizeLanguage(c.DefaultQuery("language", "en"))
	if !subtitle.IsSupportedLanguage(language) {
		errorResponse(c, http.StatusBadRequest, "unsupported language: "+language)
		return
	}

	// Callers with a local media file can pass its path instead of a
	// precomputed lookup hash.
	fileHash := c.Query("file_hash")
	if fileHash == "" {
		if path := c.Query("file"); path != "" {
			h, err := provider.FileHash(path)
			if err != nil {
				errorResponse(c, http.StatusBadRequest, "failed to hash file: "+err.Error())
				return
			}
			fileHash = h
		}
	}

	results, err := s.engine.SearchAndCache(c.Request.Context(), title, catalogID, language, fileHash)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "subtitle search failed: "+err.Error())
		return
	}

	query := catalogID
	if query == "" {
		query = title
	}
	c.JSON(http.StatusOK, SearchResponse{Query: query, Results: results})
}

func (s *Server) getLanguages(c *gin.Context) {
	movieID := c.Query("movie_id")
	if movieID == "" {
		errorResponse(c, http.StatusBadRequest, "movie_id is required")
		return
	}

	langs, err := s.engine.AvailableLanguages(c.Request.Context(), movieID, c.Query("title"))
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "language lookup failed: "+err.Error())
		return
	}

	infos := make([]LanguageInfo, 0, len(langs))
	for _, code := range langs {
		infos = append(infos, LanguageInfo{Code: code, Name: subtitle.LanguageName(code)})
	}
	c.JSON(http.StatusOK, LanguagesResponse{MovieID: movieID, Languages: infos})
}

func (s *Server) downloadSubtitle(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result := provider.RawResult{
		Provider:   req.Provider,
		SubtitleID: req.SubtitleID,
		Language:   req.Language,
		Filename:   req.Filename,
		Format:     req.Format,
		URL:        req.URL,
	}

	text, err := s.engine.DownloadAndProcess(c.Request.Context(), req.MovieID, req.Language, result)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "subtitle download failed: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, DownloadResponse{
		MovieID:  req.MovieID,
		Language: req.Language,
		Size:     len(text),
		Content:  text,
	})
}

func (s *Server) getSubtitleInfo(c *gin.Context) {
	movieID := c.Param("movie")
	language := c.Param("lang")

	meta, err := s.engine.GetSubtitleInfo(c.Request.Context(), movieID, language)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	if meta == nil {
		errorResponse(c, http.StatusNotFound, "subtitle not found")
		return
	}

	c.JSON(http.StatusOK, meta)
}

func (s *Server) previewSubtitle(c *gin.Context) {
	movieID := c.Param("movie")
	language := c.Param("lang")

	lines, _ := strconv.Atoi(c.DefaultQuery("lines", "5"))

	preview, err := s.engine.Preview(c.Request.Context(), movieID, language, lines)
	if err != nil {
		if strings.Contains(err.Error(), "no cached content") {
			errorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"movie_id": movieID,
		"language": language,
		"preview":  preview,
	})
}

func (s *Server) convertSubtitle(c *gin.Context) {
	movieID := c.Param("movie")
	language := c.Param("lang")

	format := c.Query("format")
	if format == "" {
		errorResponse(c, http.StatusBadRequest, "format is required")
		return
	}

	text, err := s.engine.Convert(c.Request.Context(), movieID, language, format)
	if err != nil {
		if strings.Contains(err.Error(), "no cached content") {
			errorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+movieID+"."+language+"."+format)
	c.String(http.StatusOK, text)
}

func (s *Server) getContentInfo(c *gin.Context) {
	movieID := c.Param("movie")
	language := c.Param("lang")

	info, err := s.engine.ContentInfo(c.Request.Context(), movieID, language)
	if err != nil {
		if strings.Contains(err.Error(), "no cached content") {
			errorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"movie_id": movieID,
		"language": language,
		"info":     info,
	})
}

func (s *Server) shiftSubtitle(c *gin.Context) {
	movieID := c.Param("movie")
	language := c.Param("lang")

	var req ShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	text, err := s.engine.AdjustTiming(c.Request.Context(), movieID, language, req.OffsetSeconds)
	if err != nil {
		if strings.Contains(err.Error(), "no cached content") {
			errorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"movie_id":       movieID,
		"language":       language,
		"offset_seconds": req.OffsetSeconds,
		"size":           len(text),
	})
}

func (s *Server) mergeSubtitles(c *gin.Context) {
	movieID := c.Param("movie")

	raw := c.Query("languages")
	if raw == "" {
		errorResponse(c, http.StatusBadRequest, "languages is required")
		return
	}
	var languages []string
	for _, lang := range strings.Split(raw, ",") {
		languages = append(languages, subtitle.NormalizeLanguage(lang))
	}

	merged, err := s.engine.MergeTracks(c.Request.Context(), movieID, languages)
	if err != nil {
		if strings.Contains(err.Error(), "no cached content") {
			errorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		if strings.Contains(err.Error(), "at least two languages") {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+movieID+".merged.srt")
	c.String(http.StatusOK, merged)
}

func (s *Server) getRecommendations(c *gin.Context) {
	movieID := c.Param("movie")

	var prefs []string
	if raw := c.Query("languages"); raw != "" {
		for _, lang := range strings.Split(raw, ",") {
			prefs = append(prefs, subtitle.NormalizeLanguage(lang))
		}
	}

	recs, err := s.engine.Recommendations(c.Request.Context(), movieID, prefs)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"movie_id":        movieID,
		"recommendations": recs,
	})
}

func (s *Server) searchMovies(c *gin.Context) {
	title := c.Query("title")
	if title == "" {
		errorResponse(c, http.StatusBadRequest, "title is required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	movies, err := s.engine.SearchMovies(c.Request.Context(), title, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"movies": movies})
}

func (s *Server) getPopularLanguages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	langs, err := s.engine.PopularLanguages(c.Request.Context(), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"languages": langs})
}

func (s *Server) getStats(c *gin.Context) {
	status, err := s.engine.Stats(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) getHealth(c *gin.Context) {
	h := s.engine.Health(c.Request.Context())

	status := http.StatusOK
	if h.Status == "down" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, h)
}
