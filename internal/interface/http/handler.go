package http

import (
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/zephyre/internal/domain/analysis"
	"github.com/yanqian/zephyre/internal/domain/session"
	"github.com/yanqian/zephyre/internal/domain/skincare"
	"github.com/yanqian/zephyre/internal/domain/weather"
	"github.com/yanqian/zephyre/internal/infra/config"
	apperrors "github.com/yanqian/zephyre/pkg/errors"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	weatherSvc  weather.Service
	analysisSvc analysis.Service
	sessionSvc  session.Service
	plans       session.PlanGenerator
	maxUpload   int64
	logger      *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(cfg *config.Config, weatherSvc weather.Service, analysisSvc analysis.Service, sessionSvc session.Service, plans session.PlanGenerator, logger *slog.Logger) *Handler {
	return &Handler{
		weatherSvc:  weatherSvc,
		analysisSvc: analysisSvc,
		sessionSvc:  sessionSvc,
		plans:       plans,
		maxUpload:   cfg.HTTP.MaxUploadBytes,
		logger:      logger.With("component", "http.handler"),
	}
}

type skinTypeView struct {
	Value skincare.SkinType `json:"value"`
	Label string            `json:"label"`
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SkinTypes lists every label the classifier can emit.
func (h *Handler) SkinTypes(c *gin.Context) {
	all := skincare.AllSkinTypes()
	views := make([]skinTypeView, 0, len(all))
	for _, st := range all {
		views = append(views, skinTypeView{Value: st, Label: st.Label()})
	}
	c.JSON(http.StatusOK, gin.H{"skinTypes": views})
}

// GeneratePlan builds a plan from an explicit skin type and weather observation.
func (h *Handler) GeneratePlan(c *gin.Context) {
	var req skincare.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, h.plans.GeneratePlan(req.SkinType, req.Weather))
}

// Weather looks up current conditions for ?place=.
func (h *Handler) Weather(c *gin.Context) {
	obs, err := h.weatherSvc.Lookup(c.Request.Context(), weather.Request{Place: c.Query("place")})
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, obs)
}

// WeatherPlaces lists the fixed weather directory.
func (h *Handler) WeatherPlaces(c *gin.Context) {
	places, err := h.weatherSvc.Places(c.Request.Context())
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"places": places})
}

// PopularPlaces returns the most searched places.
func (h *Handler) PopularPlaces(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "limit must be a non-negative integer", err))
			return
		}
		limit = parsed
	}
	places, err := h.weatherSvc.Popular(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"places": places})
}

// Analyze classifies a standalone image upload. An optional humidity form field biases the result.
func (h *Handler) Analyze(c *gin.Context) {
	data, mimeType, httpErr := h.readImage(c)
	if httpErr != nil {
		abortWithError(c, httpErr)
		return
	}
	req := analysis.Request{Image: data, MimeType: mimeType}
	if raw := strings.TrimSpace(c.PostForm("humidity")); raw != "" {
		humidity, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "humidity must be a number", err))
			return
		}
		req.Weather = &weather.Observation{Humidity: humidity}
	}

	result, err := h.analysisSvc.Classify(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateSession starts a new session on the landing page.
func (h *Handler) CreateSession(c *gin.Context) {
	state, err := h.sessionSvc.Create(c.Request.Context())
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusCreated, state)
}

// GetSession returns the current session state.
func (h *Handler) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	state, err := h.sessionSvc.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, state)
}

// DispatchAction applies a client action such as navigation or setting the user name.
func (h *Handler) DispatchAction(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var action session.Action
	if err := c.ShouldBindJSON(&action); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, errMessage(err), err))
		return
	}
	state, err := h.sessionSvc.Dispatch(c.Request.Context(), id, action)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, state)
}

// LoadSessionWeather looks up weather and records it on the session.
func (h *Handler) LoadSessionWeather(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req weather.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, errMessage(err), err))
		return
	}
	state, err := h.sessionSvc.LoadWeather(c.Request.Context(), id, req)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, state)
}

// CaptureSession uploads a still image and runs the skin analysis.
// When the analysis is scheduled in the background the session is returned with 202.
func (h *Handler) CaptureSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	data, mimeType, httpErr := h.readImage(c)
	if httpErr != nil {
		abortWithError(c, httpErr)
		return
	}
	state, err := h.sessionSvc.Capture(c.Request.Context(), id, session.CaptureRequest{Image: data, MimeType: mimeType})
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	status := http.StatusOK
	if state.Analyzing {
		status = http.StatusAccepted
	}
	c.JSON(status, state)
}

// CaptureImage streams back the staged capture for display.
func (h *Handler) CaptureImage(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	data, mimeType, err := h.sessionSvc.CaptureImage(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, mimeType, data)
}

// SessionPlan builds the plan for the session's analysis and weather.
func (h *Handler) SessionPlan(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	plan, err := h.sessionSvc.Plan(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, plan)
}

// SessionProfile returns the profile summary.
func (h *Handler) SessionProfile(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	profile, err := h.sessionSvc.Profile(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, profile)
}

// SessionReport downloads the analysis report as JSON, or as plain text with ?format=text.
func (h *Handler) SessionReport(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	report, err := h.sessionSvc.Report(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}

	filename := report.Filename()
	if strings.EqualFold(c.Query("format"), "text") {
		filename = strings.TrimSuffix(filename, ".json") + ".txt"
		c.Header("Content-Disposition", attachment(filename))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(report.Text()))
		return
	}
	c.Header("Content-Disposition", attachment(filename))
	c.JSON(http.StatusOK, report)
}

func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}

func (h *Handler) readImage(c *gin.Context) ([]byte, string, *HTTPError) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return nil, "", NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "image is required", err)
	}
	if h.maxUpload > 0 && fileHeader.Size > h.maxUpload {
		return nil, "", NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "image exceeds the upload limit", nil)
	}
	data, err := readFormFile(fileHeader)
	if err != nil {
		return nil, "", NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "failed to read upload", err)
	}
	return data, fileHeader.Header.Get("Content-Type"), nil
}

func readFormFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusNotFound, apperrors.CodeNotFound, "session not found", err))
		return uuid.Nil, false
	}
	return id, true
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
