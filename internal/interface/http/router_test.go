package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/zephyre/internal/domain/analysis"
	"github.com/yanqian/zephyre/internal/domain/session"
	"github.com/yanqian/zephyre/internal/domain/skincare"
	"github.com/yanqian/zephyre/internal/domain/weather"
	"github.com/yanqian/zephyre/internal/infra/capturestore"
	"github.com/yanqian/zephyre/internal/infra/config"
	"github.com/yanqian/zephyre/internal/infra/sessionstore"
	"github.com/yanqian/zephyre/internal/infra/weathercache"
	"github.com/yanqian/zephyre/internal/infra/weatherdir"
	apperrors "github.com/yanqian/zephyre/pkg/errors"
	"github.com/yanqian/zephyre/pkg/util"
)

var pngImage = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

func TestRouter_Healthz(t *testing.T) {
	server := newRouterUnderTest(t, nil)
	rec := performRequest(server, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRouter_SkinTypes(t *testing.T) {
	rec := performRequest(newRouterUnderTest(t, nil), http.MethodGet, "/api/v1/skin-types", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SkinTypes []skinTypeView `json:"skinTypes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.SkinTypes, len(skincare.AllSkinTypes()))
	require.Equal(t, "acne prone", body.SkinTypes[5].Label)
}

func TestRouter_GeneratePlan(t *testing.T) {
	payload := `{"skinType":"oily","weather":{"place":"Bangkok","temperatureCelsius":30,"humidityPercent":80,"condition":"Sunny"}}`
	rec := performRequest(newRouterUnderTest(t, nil), http.MethodPost, "/api/v1/plans", strings.NewReader(payload), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	var plan skincare.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	require.Equal(t, "Lightweight gel moisturizer", plan.Products[skincare.Moisturizer])
	require.Equal(t, "Water-resistant SPF 50+", plan.Products[skincare.Sunscreen])
	require.NotNil(t, plan.Warnings)
}

func TestRouter_GeneratePlanInvalidJSON(t *testing.T) {
	rec := performRequest(newRouterUnderTest(t, nil), http.MethodPost, "/api/v1/plans", strings.NewReader(`{"skinType":12}`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, apperrors.CodeInvalidInput, errBody["error"]["code"])
	require.NotEmpty(t, errBody["error"]["message"])
}

func TestRouter_WeatherLookup(t *testing.T) {
	server := newRouterUnderTest(t, nil)

	rec := performRequest(server, http.MethodGet, "/api/v1/weather?place=london", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var obs weather.Observation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &obs))
	require.Equal(t, "London", obs.Place)

	rec = performRequest(server, http.MethodGet, "/api/v1/weather?place=%20", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "please enter a city name", decodeErrorBody(t, rec.Body.Bytes())["error"]["message"])

	rec = performRequest(server, http.MethodGet, "/api/v1/weather/places", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var places struct {
		Places []weather.Observation `json:"places"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &places))
	require.Len(t, places.Places, 5)

	rec = performRequest(server, http.MethodGet, "/api/v1/weather/popular?limit=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var popular struct {
		Places []weather.PopularPlace `json:"places"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &popular))
	require.Equal(t, []weather.PopularPlace{{Place: "london", Count: 1}}, popular.Places)

	rec = performRequest(server, http.MethodGet, "/api/v1/weather/popular?limit=x", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AnalyzeRejectsNonImage(t *testing.T) {
	body, contentType := multipartImage(t, []byte("definitely not an image"), map[string]string{"humidity": "80"})
	rec := performRequest(newRouterUnderTest(t, nil), http.MethodPost, "/api/v1/analyses", body, contentType)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, apperrors.CodeInvalidInput, decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_AnalyzeImage(t *testing.T) {
	body, contentType := multipartImage(t, pngImage, map[string]string{"humidity": "85"})
	rec := performRequest(newRouterUnderTest(t, nil), http.MethodPost, "/api/v1/analyses", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)

	var result analysis.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.SkinType.IsKnown())
	require.GreaterOrEqual(t, result.Confidence, 70)
}

func TestRouter_SessionFlow(t *testing.T) {
	server := newRouterUnderTest(t, nil)

	rec := performRequest(server, http.MethodPost, "/api/v1/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	state := decodeState(t, rec)
	require.Equal(t, session.PageLanding, state.Page)
	base := "/api/v1/sessions/" + state.ID.String()

	rec = performRequest(server, http.MethodGet, base+"/plan", nil, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	body, contentType := multipartImage(t, pngImage, nil)
	rec = performRequest(server, http.MethodPost, base+"/captures", body, contentType)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "please enter your name before capturing", decodeErrorBody(t, rec.Body.Bytes())["error"]["message"])

	rec = performRequest(server, http.MethodPost, base+"/actions", strings.NewReader(`{"type":"set_user_name","userName":"Jane Doe"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = performRequest(server, http.MethodPost, base+"/actions", strings.NewReader(`{"type":"navigate","page":"dashboard"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, session.PageDashboard, decodeState(t, rec).Page)

	rec = performRequest(server, http.MethodPost, base+"/actions", strings.NewReader(`{"type":"analysis_completed"}`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = performRequest(server, http.MethodPost, base+"/weather", strings.NewReader(`{"place":"Tokyo"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Tokyo", decodeState(t, rec).Weather.Place)

	body, contentType = multipartImage(t, pngImage, nil)
	rec = performRequest(server, http.MethodPost, base+"/captures", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeState(t, rec)
	require.False(t, state.Analyzing)
	require.NotNil(t, state.Analysis)
	require.NotEmpty(t, state.CaptureImageKey)

	rec = performRequest(server, http.MethodGet, base+"/capture", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, pngImage, rec.Body.Bytes())

	rec = performRequest(server, http.MethodGet, base+"/plan", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var plan skincare.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	require.Len(t, plan.Products, len(skincare.Categories()))

	rec = performRequest(server, http.MethodGet, base+"/profile", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var profile session.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	require.Equal(t, "Jane Doe", profile.Name)
	require.Equal(t, state.Analysis.SkinType, profile.SkinType)

	rec = performRequest(server, http.MethodGet, base+"/report", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "zephyre-report-Jane-Doe.json")

	rec = performRequest(server, http.MethodGet, base+"/report?format=text", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "zephyre-report-Jane-Doe.txt")
	require.Contains(t, rec.Body.String(), "=== ZEPHYRE SKIN ANALYSIS REPORT ===")

	rec = performRequest(server, http.MethodPost, base+"/actions", strings.NewReader(`{"type":"capture_reset"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = performRequest(server, http.MethodGet, base+"/capture", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ReportFilenameIsQuoted(t *testing.T) {
	server := newRouterUnderTest(t, nil)

	rec := performRequest(server, http.MethodPost, "/api/v1/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	base := "/api/v1/sessions/" + decodeState(t, rec).ID.String()

	rec = performRequest(server, http.MethodPost, base+"/actions", strings.NewReader(`{"type":"set_user_name","userName":"Jane \"Q\" Doe;x=1"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	for format, want := range map[string]string{
		"":     `zephyre-report-Jane-"Q"-Doe;x=1.json`,
		"text": `zephyre-report-Jane-"Q"-Doe;x=1.txt`,
	} {
		rec = performRequest(server, http.MethodGet, base+"/report?format="+format, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		disposition, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
		require.NoError(t, err)
		require.Equal(t, "attachment", disposition)
		require.Equal(t, want, params["filename"])
		require.Len(t, params, 1)
	}
}

func TestRouter_SessionNotFound(t *testing.T) {
	server := newRouterUnderTest(t, nil)

	rec := performRequest(server, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = performRequest(server, http.MethodGet, "/api/v1/sessions/6f1c1f4e-4b8a-4a57-9d83-0ed0f1d9a4c1/profile", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, apperrors.CodeNotFound, decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_RateLimit(t *testing.T) {
	server := newRouterUnderTest(t, func(cfg *config.Config) {
		cfg.HTTP.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2}
	})

	for i := 0; i < 2; i++ {
		rec := performRequest(server, http.MethodGet, "/api/v1/skin-types", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := performRequest(server, http.MethodGet, "/api/v1/skin-types", nil, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, apperrors.CodeRateLimited, decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	server := newRouterUnderTest(t, func(cfg *config.Config) {
		cfg.HTTP.AllowedOrigins = []string{"https://app.example"}
	})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/plans", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestFromAppErrorMapsCodes(t *testing.T) {
	cases := map[string]int{
		apperrors.CodeInvalidInput:      http.StatusBadRequest,
		apperrors.CodeNotFound:          http.StatusNotFound,
		apperrors.CodeCaptureInProgress: http.StatusConflict,
		apperrors.CodeConflict:          http.StatusConflict,
		apperrors.CodeRateLimited:       http.StatusTooManyRequests,
		apperrors.CodeStorage:           http.StatusInternalServerError,
	}
	for code, status := range cases {
		httpErr := fromAppError(apperrors.Wrap(code, "boom", nil))
		require.Equal(t, status, httpErr.Status, code)
		require.Equal(t, code, httpErr.Code)
	}

	httpErr := fromAppError(io.ErrUnexpectedEOF)
	require.Equal(t, http.StatusInternalServerError, httpErr.Status)
	require.Equal(t, "something went wrong", httpErr.Message)
}

func TestRetryReplaysTransientFailures(t *testing.T) {
	attempts := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		payload, _ := io.ReadAll(r.Body)
		require.Equal(t, `{"place":"Paris"}`, string(payload))
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	cfg := config.RetryConfig{Enabled: true, MaxAttempts: 3, BaseBackoff: time.Millisecond, Exclude: []string{"/api/v1/sessions/*/captures"}}
	handler := withRetry(inner, cfg, newTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/abc/weather", strings.NewReader(`{"place":"Paris"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, attempts)

	attempts = 0
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/abc/captures", strings.NewReader(`{"place":"Paris"}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, 1, attempts)
}

func TestRateLimiterRefills(t *testing.T) {
	now := time.Unix(0, 0)
	limiter := newIPRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 60, Burst: 1}, func() time.Time { return now })

	ok, _ := limiter.allow("1.2.3.4")
	require.True(t, ok)
	ok, wait := limiter.allow("1.2.3.4")
	require.False(t, ok)
	require.Equal(t, time.Second, wait)

	now = now.Add(time.Second)
	ok, _ = limiter.allow("1.2.3.4")
	require.True(t, ok)
}

func performRequest(server *http.Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func multipartImage(t *testing.T, image []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile("image", "capture.png")
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func newRouterUnderTest(t *testing.T, mutate func(*config.Config)) *http.Server {
	t.Helper()
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:        ":0",
			ReadTimeout:    time.Second,
			WriteTimeout:   time.Second,
			MaxUploadBytes: 1 << 20,
		},
	}
	if mutate != nil {
		mutate(cfg)
	}
	logger := newTestLogger()

	weatherSvc := weather.NewService(weather.Config{CacheTTL: time.Minute, PopularLimit: 10}, weatherdir.NewMemoryDirectory(), weathercache.NewMemoryCache(), util.NewLockedRand(1), logger)
	analysisSvc := analysis.NewService(analysis.Config{MaxImageBytes: cfg.HTTP.MaxUploadBytes}, capturestore.NewMemoryStore(), util.NewLockedRand(2), logger)
	engine := skincare.NewEngine()
	sessionSvc := session.NewService(
		session.Config{TTL: time.Hour, LockTTL: time.Second, LockTimeout: time.Second},
		sessionstore.NewMemoryStore(),
		sessionstore.NewMemoryLocker(),
		weatherSvc,
		analysisSvc,
		engine,
		nil,
		logger,
	)
	return NewRouter(cfg, NewHandler(cfg, weatherSvc, analysisSvc, sessionSvc, engine, logger))
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) session.State {
	t.Helper()
	var state session.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	return state
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
