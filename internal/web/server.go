package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/ivlev/satwatch/internal/config"
	"github.com/ivlev/satwatch/internal/pipeline"
	"github.com/ivlev/satwatch/internal/signal"
	"github.com/ivlev/satwatch/internal/source"
)

// Handler exposes the monitor over HTTP. Every endpoint either reads a
// snapshot or flips a knob; frame processing never runs on a request
// goroutine.
type Handler struct {
	monitor  *pipeline.Monitor
	settings *config.Holder
	logger   *logrus.Logger
}

// NewHandler creates the HTTP handler around a running monitor.
func NewHandler(monitor *pipeline.Monitor, settings *config.Holder, logger *logrus.Logger) *Handler {
	return &Handler{
		monitor:  monitor,
		settings: settings,
		logger:   logger,
	}
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/health", h.CheckHealth)
		api.GET("/status", h.GetStatus)
		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.UpdateSettings)
		api.POST("/baseline", h.CaptureBaseline)
		api.DELETE("/baseline", h.ResetBaseline)
		api.POST("/pause", h.Pause)
		api.POST("/resume", h.Resume)
		api.POST("/source", h.SwitchSource)
		api.GET("/profiles", h.ListProfiles)
		api.PUT("/profiles/active", h.SetActiveProfile)
		api.GET("/history", h.GetHistory)
		api.GET("/history.csv", h.DownloadHistory)
		api.GET("/system", h.GetSystemStats)
	}
	router.GET("/chart", h.RenderChart)
}

// CheckHealth reports service liveness.
func (h *Handler) CheckHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// GetStatus returns the current monitor snapshot.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.Status())
}

// GetSettings returns the live analysis settings.
func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.Load())
}

// UpdateSettings patches the analysis settings. The request body only
// needs the fields being changed; omitted fields keep their current
// values. An invalid combination is rejected and the previous settings
// stay in effect.
func (h *Handler) UpdateSettings(c *gin.Context) {
	s := h.settings.Load()
	if err := c.ShouldBindJSON(&s); err != nil {
		h.logger.Errorf("Malformed settings update: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed settings body"})
		return
	}

	if err := h.settings.Store(s); err != nil {
		h.logger.Warnf("Rejected settings update: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	h.logger.Infof("Settings updated: margin=%.2f lambda=%.2f smoothing=%.2f alpha=%.3f window=%d",
		s.Margin, s.Lambda, s.Smoothing, s.Alpha, s.Window)
	c.JSON(http.StatusOK, s)
}

// CaptureBaseline schedules a baseline capture from the next located
// frame.
func (h *Handler) CaptureBaseline(c *gin.Context) {
	h.monitor.RequestBaseline()
	c.JSON(http.StatusAccepted, gin.H{"message": "baseline capture scheduled"})
}

// ResetBaseline discards the captured reference.
func (h *Handler) ResetBaseline(c *gin.Context) {
	h.monitor.ResetBaseline()
	c.JSON(http.StatusOK, gin.H{"message": "baseline reset"})
}

// Pause halts frame processing.
func (h *Handler) Pause(c *gin.Context) {
	h.monitor.Pause()
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

// Resume restarts frame processing.
func (h *Handler) Resume(c *gin.Context) {
	h.monitor.Resume()
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

type switchSourceRequest struct {
	Dir           string  `json:"dir" binding:"required"`
	FrameInterval float64 `json:"frame_interval"`
	MaxWidth      int     `json:"max_width"`
}

// SwitchSource swaps the frame source to another recorded run. The
// tracker, baseline and history carry over.
func (h *Handler) SwitchSource(c *gin.Context) {
	var req switchSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dir is required"})
		return
	}
	if req.FrameInterval <= 0 {
		req.FrameInterval = 0.1
	}

	src, err := source.NewImageDirSource(req.Dir, time.Duration(req.FrameInterval*float64(time.Second)), req.MaxWidth)
	if err != nil {
		h.logger.Errorf("Failed to open frame source %s: %v", req.Dir, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open source directory"})
		return
	}
	if src.Len() == 0 {
		src.Close()
		c.JSON(http.StatusBadRequest, gin.H{"error": "source directory holds no frames"})
		return
	}

	h.monitor.SetSource(src, time.Duration(req.FrameInterval*float64(time.Second)))
	h.logger.Infof("Switched frame source to %s (%d frames)", req.Dir, src.Len())
	c.JSON(http.StatusOK, gin.H{"frames": src.Len()})
}

// ListProfiles returns the loaded threshold profiles and the active
// selection.
func (h *Handler) ListProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"profiles": h.monitor.Profiles().Names(),
		"active":   h.settings.Load().ActiveProfile,
	})
}

type setProfileRequest struct {
	Name string `json:"name"`
}

// SetActiveProfile selects the threshold profile evaluated each frame.
// An empty name disables alerting.
func (h *Handler) SetActiveProfile(c *gin.Context) {
	var req setProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}

	if req.Name != "" {
		if _, ok := h.monitor.Profiles().Get(req.Name); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown profile"})
			return
		}
	}

	s := h.settings.Load()
	s.ActiveProfile = req.Name
	if err := h.settings.Store(s); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	h.logger.Infof("Active profile set to %q", req.Name)
	c.JSON(http.StatusOK, gin.H{"active": req.Name})
}

type seriesArrays struct {
	Raw    []float64 `json:"raw"`
	Decay  []float64 `json:"decay"`
	Smooth []float64 `json:"smooth"`
	Deriv1 []float64 `json:"deriv1"`
	Deriv2 []float64 `json:"deriv2"`
}

func (a *seriesArrays) append(s signal.Sample) {
	a.Raw = append(a.Raw, s.Raw)
	a.Decay = append(a.Decay, s.Decay)
	a.Smooth = append(a.Smooth, s.Smooth)
	a.Deriv1 = append(a.Deriv1, s.Deriv1)
	a.Deriv2 = append(a.Deriv2, s.Deriv2)
}

type historyResponse struct {
	Frames     []int        `json:"frames"`
	Timestamps []float64    `json:"timestamps"`
	Alerts     []bool       `json:"alerts"`
	Hue        seriesArrays `json:"hue"`
	Saturation seriesArrays `json:"saturation"`
	Value      seriesArrays `json:"value"`
	Total      int          `json:"total"`
}

// GetHistory returns the recorded series as parallel arrays, one per
// channel and filter stage, ready for plotting. The optional from/to
// query parameters select a frame range; to=-1 means the latest frame.
func (h *Handler) GetHistory(c *gin.Context) {
	from, to, ok := parseRange(c)
	if !ok {
		return
	}

	records := h.monitor.Store().Range(from, to)
	resp := historyResponse{
		Frames:     make([]int, 0, len(records)),
		Timestamps: make([]float64, 0, len(records)),
		Alerts:     make([]bool, 0, len(records)),
		Total:      h.monitor.Store().Len(),
	}
	for _, r := range records {
		resp.Frames = append(resp.Frames, r.Frame)
		resp.Timestamps = append(resp.Timestamps, float64(r.Timestamp.UnixNano())/1e9)
		resp.Alerts = append(resp.Alerts, r.Alert)
		resp.Hue.append(r.Sample.Hue)
		resp.Saturation.append(r.Sample.Saturation)
		resp.Value.append(r.Sample.Value)
	}

	c.JSON(http.StatusOK, resp)
}

// DownloadHistory streams the recorded series as CSV.
func (h *Handler) DownloadHistory(c *gin.Context) {
	from, to, ok := parseRange(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename=history.csv")
	if err := h.monitor.Store().WriteCSV(c.Writer, from, to); err != nil {
		h.logger.Errorf("Failed to stream history CSV: %v", err)
	}
}

// GetSystemStats reports host CPU and memory load.
func (h *Handler) GetSystemStats(c *gin.Context) {
	stats := gin.H{}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats["cpu_percent"] = percents[0]
	} else if err != nil {
		h.logger.Debugf("CPU stats unavailable: %v", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats["mem_total"] = vm.Total
		stats["mem_used"] = vm.Used
		stats["mem_percent"] = vm.UsedPercent
	} else {
		h.logger.Debugf("Memory stats unavailable: %v", err)
	}

	c.JSON(http.StatusOK, stats)
}

func parseRange(c *gin.Context) (from, to int, ok bool) {
	from, err := strconv.Atoi(c.DefaultQuery("from", "0"))
	if err != nil || from < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from parameter"})
		return 0, 0, false
	}
	to, err = strconv.Atoi(c.DefaultQuery("to", "-1"))
	if err != nil || to < -1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to parameter"})
		return 0, 0, false
	}
	return from, to, true
}
