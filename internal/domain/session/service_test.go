package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/zephyre/internal/domain/analysis"
	"github.com/yanqian/zephyre/internal/domain/skincare"
	"github.com/yanqian/zephyre/internal/domain/weather"
	apperrors "github.com/yanqian/zephyre/pkg/errors"
)

func TestCreateAndGet(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	state, err := h.svc.Create(ctx)
	require.NoError(t, err)
	require.Equal(t, PageLanding, state.Page)
	require.Equal(t, 30*time.Minute, h.store.lastTTL)

	got, err := h.svc.Get(ctx, state.ID)
	require.NoError(t, err)
	require.Equal(t, state.ID, got.ID)

	_, err = h.svc.Get(ctx, uuid.New())
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestDispatchRejectsInternalActions(t *testing.T) {
	h := newHarness()
	state := h.create(t)

	_, err := h.svc.Dispatch(context.Background(), state.ID, Action{Type: ActionAnalysisCompleted, Analysis: &analysis.Result{}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	next, err := h.svc.Dispatch(context.Background(), state.ID, Action{Type: ActionNavigate, Page: PageAbout})
	require.NoError(t, err)
	require.Equal(t, PageAbout, next.Page)
	require.Equal(t, int64(1), next.Version)
}

func TestLoadWeatherRecordsObservation(t *testing.T) {
	h := newHarness()
	state := h.create(t)

	next, err := h.svc.LoadWeather(context.Background(), state.ID, weather.Request{Place: "Tokyo"})
	require.NoError(t, err)
	require.Equal(t, "Tokyo", next.Weather.Place)

	_, err = h.svc.LoadWeather(context.Background(), state.ID, weather.Request{})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	_, err = h.svc.LoadWeather(context.Background(), uuid.New(), weather.Request{Place: "Tokyo"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestCaptureRequiresName(t *testing.T) {
	h := newHarness()
	state := h.create(t)

	_, err := h.svc.Capture(context.Background(), state.ID, CaptureRequest{Image: []byte("img")})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	require.Zero(t, h.analysis.staged)
}

func TestCaptureProducesAnalysisAndPlan(t *testing.T) {
	h := newHarness()
	state := h.namedSession(t)
	ctx := context.Background()

	_, err := h.svc.Plan(ctx, state.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	_, err = h.svc.LoadWeather(ctx, state.ID, weather.Request{Place: "Tokyo"})
	require.NoError(t, err)

	done, err := h.svc.Capture(ctx, state.ID, CaptureRequest{Image: []byte("img"), MimeType: "image/png"})
	require.NoError(t, err)
	require.False(t, done.Analyzing)
	require.Equal(t, skincare.Oily, done.Analysis.SkinType)
	require.Equal(t, done.CaptureImageKey, done.Analysis.ImageKey)
	require.Equal(t, "Tokyo", h.analysis.lastWeather.Place)

	plan, err := h.svc.Plan(ctx, state.ID)
	require.NoError(t, err)
	require.Equal(t, "Lightweight gel moisturizer", plan.Products[skincare.Moisturizer])

	data, _, err := h.svc.CaptureImage(ctx, state.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("img"), data)
}

func TestPlanRequiresWeather(t *testing.T) {
	h := newHarness()
	state := h.namedSession(t)

	_, err := h.svc.Capture(context.Background(), state.ID, CaptureRequest{Image: []byte("img")})
	require.NoError(t, err)

	_, err = h.svc.Plan(context.Background(), state.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestSecondCaptureInFlightIsRejected(t *testing.T) {
	h := newHarness()
	h.analysis.gate = make(chan struct{})
	h.analysis.entered = make(chan struct{}, 1)
	state := h.namedSession(t)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = h.svc.Capture(ctx, state.ID, CaptureRequest{Image: []byte("first")})
	}()
	<-h.analysis.entered

	current, err := h.svc.Get(ctx, state.ID)
	require.NoError(t, err)
	require.True(t, current.Analyzing)

	_, err = h.svc.Capture(ctx, state.ID, CaptureRequest{Image: []byte("second")})
	require.True(t, apperrors.IsCode(err, apperrors.CodeCaptureInProgress))

	close(h.analysis.gate)
	wg.Wait()
	require.NoError(t, firstErr)
	require.Equal(t, 1, h.analysis.staged)
}

func TestCaptureFailureClearsAnalyzing(t *testing.T) {
	h := newHarness()
	h.analysis.classifyErr = apperrors.Wrap(apperrors.CodeInternal, "model crashed", nil)
	state := h.namedSession(t)

	_, err := h.svc.Capture(context.Background(), state.ID, CaptureRequest{Image: []byte("img")})
	require.Error(t, err)

	current, err := h.svc.Get(context.Background(), state.ID)
	require.NoError(t, err)
	require.False(t, current.Analyzing)
	require.Empty(t, current.CaptureImageKey)
	require.Len(t, h.analysis.discarded, 1)
}

func TestResetDiscardsImage(t *testing.T) {
	h := newHarness()
	state := h.namedSession(t)
	ctx := context.Background()

	done, err := h.svc.Capture(ctx, state.ID, CaptureRequest{Image: []byte("img")})
	require.NoError(t, err)

	reset, err := h.svc.Dispatch(ctx, state.ID, Action{Type: ActionCaptureReset})
	require.NoError(t, err)
	require.Nil(t, reset.Analysis)
	require.Equal(t, []string{done.CaptureImageKey}, h.analysis.discarded)

	_, _, err = h.svc.CaptureImage(ctx, state.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestProfileAndReport(t *testing.T) {
	h := newHarness()
	state := h.namedSession(t)
	ctx := context.Background()

	profile, err := h.svc.Profile(ctx, state.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada", profile.Name)
	require.Equal(t, 78, profile.SkinScore)

	_, err = h.svc.Capture(ctx, state.ID, CaptureRequest{Image: []byte("img")})
	require.NoError(t, err)

	report, err := h.svc.Report(ctx, state.ID)
	require.NoError(t, err)
	require.Equal(t, skincare.Oily, report.SkinType)
	require.Equal(t, 90, report.Confidence)
	require.Equal(t, "zephyre-report-Ada.json", report.Filename())
}

func TestLockFailureIsConflict(t *testing.T) {
	h := newHarness()
	state := h.create(t)
	h.locker.err = context.DeadlineExceeded

	_, err := h.svc.Dispatch(context.Background(), state.ID, Action{Type: ActionNavigate, Page: PageDashboard})
	require.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	h := newHarness()
	h.store.err = errors.New("valkey down")

	_, err := h.svc.Create(context.Background())
	require.True(t, apperrors.IsCode(err, apperrors.CodeStorage))
}

func TestAsyncCaptureCompletesThroughJob(t *testing.T) {
	h := newHarness()
	queue := &stubQueue{}
	cfg := Config{TTL: time.Minute, AsyncCapture: true}
	h.svc = NewService(cfg, h.store, h.locker, stubWeather{}, h.analysis, skincare.NewEngine(), queue, slog.New(slog.NewTextHandler(io.Discard, nil)))
	state := h.namedSession(t)
	ctx := context.Background()

	started, err := h.svc.Capture(ctx, state.ID, CaptureRequest{Image: []byte("img")})
	require.NoError(t, err)
	require.True(t, started.Analyzing)
	require.Nil(t, started.Analysis)
	require.Len(t, queue.jobs, 1)
	require.Equal(t, JobClassifyCapture, queue.jobs[0].name)

	h.svc.HandleJob(ctx, queue.jobs[0].name, queue.jobs[0].payload)

	done, err := h.svc.Get(ctx, state.ID)
	require.NoError(t, err)
	require.False(t, done.Analyzing)
	require.Equal(t, skincare.Oily, done.Analysis.SkinType)
	require.Equal(t, started.CaptureImageKey, done.Analysis.ImageKey)
}

func TestAsyncCaptureJobSupersededByReset(t *testing.T) {
	h := newHarness()
	queue := &stubQueue{}
	h.svc = NewService(Config{AsyncCapture: true}, h.store, h.locker, stubWeather{}, h.analysis, skincare.NewEngine(), queue, slog.New(slog.NewTextHandler(io.Discard, nil)))
	state := h.namedSession(t)
	ctx := context.Background()

	_, err := h.svc.Capture(ctx, state.ID, CaptureRequest{Image: []byte("img")})
	require.NoError(t, err)
	_, err = h.svc.Dispatch(ctx, state.ID, Action{Type: ActionCaptureReset})
	require.NoError(t, err)

	h.svc.HandleJob(ctx, queue.jobs[0].name, queue.jobs[0].payload)
	h.svc.HandleJob(ctx, "unknown", nil)

	current, err := h.svc.Get(ctx, state.ID)
	require.NoError(t, err)
	require.Nil(t, current.Analysis)
	require.False(t, current.Analyzing)
}

func TestAsyncCaptureEnqueueFailure(t *testing.T) {
	h := newHarness()
	queue := &stubQueue{err: errors.New("queue offline")}
	h.svc = NewService(Config{AsyncCapture: true}, h.store, h.locker, stubWeather{}, h.analysis, skincare.NewEngine(), queue, slog.New(slog.NewTextHandler(io.Discard, nil)))
	state := h.namedSession(t)

	_, err := h.svc.Capture(context.Background(), state.ID, CaptureRequest{Image: []byte("img")})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInternal))

	current, err := h.svc.Get(context.Background(), state.ID)
	require.NoError(t, err)
	require.False(t, current.Analyzing)
}

type queuedJob struct {
	name    string
	payload map[string]any
}

type stubQueue struct {
	jobs []queuedJob
	err  error
}

func (q *stubQueue) Enqueue(_ context.Context, name string, payload any) error {
	if q.err != nil {
		return q.err
	}
	typed, _ := payload.(map[string]any)
	q.jobs = append(q.jobs, queuedJob{name: name, payload: typed})
	return nil
}

type harness struct {
	svc      Service
	store    *stubStore
	locker   *stubLocker
	analysis *stubAnalysis
}

func newHarness() *harness {
	h := &harness{
		store:    &stubStore{states: make(map[uuid.UUID]State)},
		locker:   &stubLocker{},
		analysis: &stubAnalysis{blobs: make(map[string][]byte)},
	}
	cfg := Config{TTL: 30 * time.Minute, LockTTL: time.Second, LockTimeout: time.Second}
	h.svc = NewService(cfg, h.store, h.locker, stubWeather{}, h.analysis, skincare.NewEngine(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h
}

func (h *harness) create(t *testing.T) State {
	t.Helper()
	state, err := h.svc.Create(context.Background())
	require.NoError(t, err)
	return state
}

func (h *harness) namedSession(t *testing.T) State {
	t.Helper()
	state := h.create(t)
	state, err := h.svc.Dispatch(context.Background(), state.ID, Action{Type: ActionSetUserName, UserName: "Ada"})
	require.NoError(t, err)
	return state
}

type stubStore struct {
	mu      sync.Mutex
	states  map[uuid.UUID]State
	lastTTL time.Duration
	err     error
}

func (s *stubStore) Load(_ context.Context, id uuid.UUID) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return State{}, false, s.err
	}
	state, ok := s.states[id]
	return state, ok, nil
}

func (s *stubStore) Save(_ context.Context, state State, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.states[state.ID] = state
	s.lastTTL = ttl
	return nil
}

type stubLocker struct {
	mu  sync.Mutex
	err error
}

func (l *stubLocker) Lock(context.Context, string, time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	return l.mu.Unlock, nil
}

type stubWeather struct{}

func (stubWeather) Lookup(_ context.Context, req weather.Request) (weather.Observation, error) {
	if req.Place == "" {
		return weather.Observation{}, apperrors.Wrap(apperrors.CodeInvalidInput, "please enter a city name", nil)
	}
	return weather.Observation{Place: req.Place, Temperature: 28, Humidity: 85, Condition: "Humid"}, nil
}

func (stubWeather) Places(context.Context) ([]weather.Observation, error) {
	return weather.DefaultPlaces(), nil
}

func (stubWeather) Popular(context.Context, int) ([]weather.PopularPlace, error) {
	return nil, nil
}

type stubAnalysis struct {
	mu          sync.Mutex
	blobs       map[string][]byte
	staged      int
	discarded   []string
	lastWeather *weather.Observation
	classifyErr error
	gate        chan struct{}
	entered     chan struct{}
}

func (a *stubAnalysis) Classify(_ context.Context, req analysis.Request) (analysis.Result, error) {
	if a.entered != nil {
		a.entered <- struct{}{}
	}
	if a.gate != nil {
		<-a.gate
	}
	if a.classifyErr != nil {
		return analysis.Result{}, a.classifyErr
	}
	a.mu.Lock()
	a.lastWeather = req.Weather
	a.mu.Unlock()
	return analysis.Result{ID: uuid.New(), SkinType: skincare.Oily, Confidence: 90, Weather: req.Weather, ImageKey: req.ImageKey}, nil
}

func (a *stubAnalysis) Stage(_ context.Context, upload analysis.Upload) (analysis.StoredImage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.staged++
	key := "captures/" + upload.ID.String() + ".png"
	a.blobs[key] = upload.Image
	return analysis.StoredImage{Key: key, MimeType: "image/png", Size: int64(len(upload.Image))}, nil
}

func (a *stubAnalysis) Image(_ context.Context, key string) ([]byte, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.blobs[key]
	if !ok {
		return nil, "", apperrors.Wrap(apperrors.CodeNotFound, "image not found", nil)
	}
	return data, "image/png", nil
}

func (a *stubAnalysis) Discard(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.blobs, key)
	a.discarded = append(a.discarded, key)
	return nil
}
