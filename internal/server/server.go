// Package server exposes the dictation service over HTTP: JSON control
// routes for pollers, a websocket push of finalized lines, and the
// prometheus metrics endpoint.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.aimuz.me/hark/audiocapture"
	"go.aimuz.me/hark/dictation"
	"go.aimuz.me/hark/history"
	"go.aimuz.me/hark/internal/app"
	"go.aimuz.me/hark/internal/types"
)

// Service is the application surface the routes expose.
type Service interface {
	Start(device int) error
	Stop()
	Status() types.Status
	Lines() []dictation.TranscriptLine
	LinesSince(seq int) []dictation.TranscriptLine
	Clear()
	Devices() ([]audiocapture.Device, error)
	Engines() []types.EngineInfo
	SelectEngine(name string) error
	Calibrate(d time.Duration) (int32, error)
	History(n int) ([]history.Entry, error)
	Refine(ctx context.Context, text string) (types.RefineResult, error)
	DetectLanguage(text string) types.DetectResult
	SaveConfig() error
	Subscribe(sink app.Sink) int
	Unsubscribe(id int)
	Registry() *prometheus.Registry
}

var _ Service = (*app.Service)(nil)

const (
	defaultCalibrateSeconds = 2.0
	maxCalibrateSeconds     = 30.0
	defaultHistoryLimit     = 50
)

// Server serves the HTTP shell for one dictation service.
type Server struct {
	svc      Service
	upgrader websocket.Upgrader
}

// New creates a server for the given service.
func New(svc Service) *Server {
	return &Server{
		svc: svc,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.GET("/transcript", s.handleTranscript)
	r.POST("/start", s.handleStart)
	r.POST("/stop", s.handleStop)
	r.POST("/clear", s.handleClear)
	r.GET("/devices", s.handleDevices)
	r.GET("/engines", s.handleEngines)
	r.POST("/engine", s.handleSelectEngine)
	r.POST("/calibrate", s.handleCalibrate)
	r.GET("/history", s.handleHistory)
	r.POST("/refine", s.handleRefine)
	r.GET("/detect", s.handleDetect)
	r.GET("/ws", s.handleWS)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.svc.Registry(), promhttp.HandlerOpts{})))

	return r
}

// Run serves the router on addr until the context is canceled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Status())
}

// handleTranscript returns the lines appended after ?since= (default
// 0, meaning all), in closure order. Pollers pass the last sequence
// number they saw and receive each line exactly once.
func (s *Server) handleTranscript(c *gin.Context) {
	since := 0
	if raw := c.Query("since"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since parameter"})
			return
		}
		since = n
	}

	lines := s.svc.LinesSince(since)
	if lines == nil {
		lines = []dictation.TranscriptLine{}
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

func (s *Server) handleStart(c *gin.Context) {
	var req struct {
		Device *int `json:"device"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
			return
		}
	}

	device := audiocapture.DefaultDevice
	if req.Device != nil {
		device = *req.Device
	}

	if err := s.svc.Start(device); err != nil {
		if errors.Is(err, dictation.ErrAlreadyRecording) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.svc.Status())
}

func (s *Server) handleStop(c *gin.Context) {
	s.svc.Stop()
	c.JSON(http.StatusOK, s.svc.Status())
}

func (s *Server) handleClear(c *gin.Context) {
	s.svc.Clear()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDevices(c *gin.Context) {
	devices, err := s.svc.Devices()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if devices == nil {
		devices = []audiocapture.Device{}
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

func (s *Server) handleEngines(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"engines": s.svc.Engines()})
}

func (s *Server) handleSelectEngine(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "engine name required"})
		return
	}

	if err := s.svc.SelectEngine(req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.svc.SaveConfig(); err != nil {
		c.JSON(http.StatusOK, gin.H{"engines": s.svc.Engines(), "saved": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"engines": s.svc.Engines(), "saved": true})
}

func (s *Server) handleCalibrate(c *gin.Context) {
	var req struct {
		Seconds float64 `json:"seconds"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
			return
		}
	}

	seconds := req.Seconds
	if seconds == 0 {
		seconds = defaultCalibrateSeconds
	}
	if seconds < 0 || seconds > maxCalibrateSeconds {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seconds out of range"})
		return
	}

	threshold, err := s.svc.Calibrate(time.Duration(seconds * float64(time.Second)))
	if err != nil {
		if errors.Is(err, dictation.ErrAlreadyRecording) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, types.CalibrateResult{
		Threshold: threshold,
		Saved:     s.svc.SaveConfig() == nil,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	n := defaultHistoryLimit
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid n parameter"})
			return
		}
		n = parsed
	}

	entries, err := s.svc.History(n)
	if err != nil {
		if errors.Is(err, app.ErrHistoryUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleRefine(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
			return
		}
	}

	result, err := s.svc.Refine(c.Request.Context(), req.Text)
	if err != nil {
		if errors.Is(err, app.ErrNothingToRefine) || errors.Is(err, app.ErrNoProvider) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDetect(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.DetectLanguage(c.Query("text")))
}
