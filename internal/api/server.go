// Package api exposes a read-only HTTP view over the harvested corpora.
// It never mutates the corpus; sync and analysis stay CLI-driven.
package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"chanwatch/internal/cache"
	"chanwatch/internal/config"
	"chanwatch/internal/corpus"
	"chanwatch/internal/keywords"
	"chanwatch/internal/models"
	"chanwatch/internal/security"
	"chanwatch/internal/stats"
)

type Server struct {
	router   *gin.Engine
	dataDir  string
	cache    *cache.Manager
	detector *keywords.Detector
	port     int
}

func NewServer(cfg *config.Config) *Server {
	router := gin.Default()

	securityConfig := &security.Config{
		EnableRateLimit:       cfg.Security.EnableRateLimit,
		RateLimitPerSecond:    cfg.Security.RateLimitPerSecond,
		RateLimitBurst:        cfg.Security.RateLimitBurst,
		EnableCORS:            cfg.Security.EnableCORS,
		AllowedOrigins:        cfg.Security.AllowedOrigins,
		EnableSecurityHeaders: cfg.Security.EnableSecurityHeaders,
		MaxRequestSize:        cfg.Security.MaxRequestSize,
		EnableRequestID:       cfg.Security.EnableRequestID,
	}
	security.Setup(router, securityConfig)

	server := &Server{
		router:   router,
		dataDir:  cfg.DataDir,
		cache:    cache.NewManager(cfg.CacheTTL),
		detector: keywords.NewDefault(),
		port:     cfg.Port,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api/v1")
	{
		api.GET("/channels", s.listChannels)
		api.GET("/channels/:source/:channel", s.getChannelInfo)
		api.GET("/channels/:source/:channel/stats", s.getStatistics)
		api.GET("/channels/:source/:channel/comments", s.getComments)
		api.GET("/channels/:source/:channel/keywords", s.getKeywords)
		api.GET("/channels/:source/:channel/classification", s.getClassification)
		api.POST("/channels/:source/:channel/refresh", s.refreshChannel)
	}
}

func (s *Server) Start() error {
	return s.router.Run(":" + strconv.Itoa(s.port))
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "chanwatch",
	})
}

type channelRef struct {
	Source  models.Source `json:"source"`
	Channel string        `json:"channel"`
}

func (s *Server) listChannels(c *gin.Context) {
	var channels []channelRef
	for _, source := range []models.Source{models.SourceTelegram, models.SourceYouTube} {
		entries, err := os.ReadDir(filepath.Join(s.dataDir, string(source)))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				channels = append(channels, channelRef{Source: source, Channel: entry.Name()})
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"channels": channels,
		"count":    len(channels),
	})
}

// openStore resolves the corpus for the request path, rejecting channels
// that were never synced.
func (s *Server) openStore(c *gin.Context) (corpus.Store, bool) {
	source := models.Source(c.Param("source"))
	channel := c.Param("channel")

	if info, err := os.Stat(filepath.Join(s.dataDir, string(source), channel)); err != nil || !info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return nil, false
	}

	store, err := corpus.Open(s.dataDir, source, channel)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return store, true
}

func (s *Server) getChannelInfo(c *gin.Context) {
	store, ok := s.openStore(c)
	if !ok {
		return
	}

	info := store.LoadChannelInfo()
	if info == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel has no sync state"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) getStatistics(c *gin.Context) {
	store, ok := s.openStore(c)
	if !ok {
		return
	}

	key := cache.Key(store.Source(), store.Channel(), "stats")
	if cached, found := s.cache.Get(key); found {
		c.JSON(http.StatusOK, cached)
		return
	}

	report := stats.Analyze(store.Channel(), store.Source(), store.LoadAllComments(), 10)
	s.cache.Set(key, report, 0)
	c.JSON(http.StatusOK, report)
}

func (s *Server) getComments(c *gin.Context) {
	store, ok := s.openStore(c)
	if !ok {
		return
	}

	minLikes, _ := strconv.Atoi(c.DefaultQuery("min_likes", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	typeFilter := models.CommentType(c.Query("type"))

	var filtered []models.Comment
	for _, comment := range store.LoadAllComments() {
		if comment.Likes < minLikes {
			continue
		}
		if typeFilter != "" && comment.Type != typeFilter {
			continue
		}
		filtered = append(filtered, comment)
	}

	total := len(filtered)
	if skip > total {
		skip = total
	}
	filtered = filtered[skip:]
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"total":    total,
		"returned": len(filtered),
		"comments": filtered,
	})
}

func (s *Server) getKeywords(c *gin.Context) {
	store, ok := s.openStore(c)
	if !ok {
		return
	}

	key := cache.Key(store.Source(), store.Channel(), "keywords")
	if cached, found := s.cache.Get(key); found {
		c.JSON(http.StatusOK, cached)
		return
	}

	report := s.detector.AnalyzeCorpus(store.Channel(), store.Source(), store.LoadAllComments())
	s.cache.Set(key, report, 0)
	c.JSON(http.StatusOK, report)
}

func (s *Server) getClassification(c *gin.Context) {
	store, ok := s.openStore(c)
	if !ok {
		return
	}

	data, err := os.ReadFile(filepath.Join(store.AnalysisDir(), "latest_analysis.json"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel has not been analyzed yet"})
		return
	}

	var payload json.RawMessage = data
	c.JSON(http.StatusOK, payload)
}

// refreshChannel drops the cached payloads of one channel so the next read
// reflects a sync that ran outside the server.
func (s *Server) refreshChannel(c *gin.Context) {
	store, ok := s.openStore(c)
	if !ok {
		return
	}

	s.cache.InvalidateChannel(store.Source(), store.Channel())
	c.JSON(http.StatusOK, gin.H{
		"message": "Channel cache invalidated",
		"channel": store.Channel(),
	})
}
