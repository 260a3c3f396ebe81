package session

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/yanqian/zephyre/internal/domain/analysis"
	"github.com/yanqian/zephyre/internal/domain/skincare"
	"github.com/yanqian/zephyre/internal/domain/weather"
	apperrors "github.com/yanqian/zephyre/pkg/errors"
	"github.com/yanqian/zephyre/pkg/util"
)

// Service drives a session through weather lookups, captures and plan generation.
type Service interface {
	Create(ctx context.Context) (State, error)
	Get(ctx context.Context, id uuid.UUID) (State, error)
	Dispatch(ctx context.Context, id uuid.UUID, action Action) (State, error)
	LoadWeather(ctx context.Context, id uuid.UUID, req weather.Request) (State, error)
	Capture(ctx context.Context, id uuid.UUID, req CaptureRequest) (State, error)
	Plan(ctx context.Context, id uuid.UUID) (skincare.Plan, error)
	Profile(ctx context.Context, id uuid.UUID) (Profile, error)
	Report(ctx context.Context, id uuid.UUID) (Report, error)
	CaptureImage(ctx context.Context, id uuid.UUID) ([]byte, string, error)
	HandleJob(ctx context.Context, name string, payload map[string]any)
}

// JobClassifyCapture is the queued job that finishes an asynchronous capture.
const JobClassifyCapture = "classify_capture"

type service struct {
	cfg      Config
	store    Store
	locker   Locker
	weather  weather.Service
	analysis analysis.Service
	plans    PlanGenerator
	jobs     JobQueue
	logger   *slog.Logger
}

// NewService wires up the session domain.
// jobs may be nil, in which case captures are always classified inline.
func NewService(cfg Config, store Store, locker Locker, weatherSvc weather.Service, analysisSvc analysis.Service, plans PlanGenerator, jobs JobQueue, logger *slog.Logger) Service {
	return &service{
		cfg:      cfg,
		store:    store,
		locker:   locker,
		weather:  weatherSvc,
		analysis: analysisSvc,
		plans:    plans,
		jobs:     jobs,
		logger:   logger.With("component", "session.service"),
	}
}

func (s *service) Create(ctx context.Context) (State, error) {
	state := New(uuid.New(), util.NowUTC())
	if err := s.store.Save(ctx, state, s.cfg.TTL); err != nil {
		return State{}, apperrors.Wrap(apperrors.CodeStorage, "failed to create session", err)
	}
	s.logger.Info("session created", "session_id", state.ID)
	return state, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (State, error) {
	return s.load(ctx, id)
}

// Dispatch applies a client action. Service-internal actions are rejected.
func (s *service) Dispatch(ctx context.Context, id uuid.UUID, action Action) (State, error) {
	if !action.Type.ClientDispatchable() {
		return State{}, apperrors.Wrap(apperrors.CodeInvalidInput, "action cannot be dispatched by clients: "+string(action.Type), nil)
	}
	action = Action{Type: action.Type, Page: action.Page, UserName: action.UserName}

	var discard string
	state, err := s.mutate(ctx, id, func(current State) (State, error) {
		if action.Type == ActionCaptureReset {
			discard = current.CaptureImageKey
		}
		return Reduce(current, action)
	})
	if err != nil {
		return State{}, err
	}
	s.discardImage(ctx, discard)
	return state, nil
}

// LoadWeather runs the lookup outside the session lock, then records the observation.
func (s *service) LoadWeather(ctx context.Context, id uuid.UUID, req weather.Request) (State, error) {
	if _, err := s.load(ctx, id); err != nil {
		return State{}, err
	}
	obs, err := s.weather.Lookup(ctx, req)
	if err != nil {
		return State{}, err
	}
	return s.mutate(ctx, id, func(current State) (State, error) {
		return Reduce(current, Action{Type: ActionWeatherLoaded, Weather: &obs})
	})
}

// Capture stages the image, marks the session analyzing, and records the classification.
// A second capture while one is in flight fails with capture_in_progress.
func (s *service) Capture(ctx context.Context, id uuid.UUID, req CaptureRequest) (State, error) {
	var (
		stored   analysis.StoredImage
		previous string
	)
	started, err := s.mutate(ctx, id, func(current State) (State, error) {
		if err := CanCapture(current); err != nil {
			return current, err
		}
		var stageErr error
		stored, stageErr = s.analysis.Stage(ctx, analysis.Upload{ID: uuid.New(), Image: req.Image, MimeType: req.MimeType})
		if stageErr != nil {
			return current, stageErr
		}
		previous = current.CaptureImageKey
		return Reduce(current, Action{Type: ActionCaptureStarted, ImageKey: stored.Key})
	})
	if err != nil {
		return State{}, err
	}
	s.discardImage(ctx, previous)
	s.logger.Info("capture started", "session_id", id, "image_key", stored.Key, "async", s.async())

	if s.async() {
		payload := map[string]any{"session_id": id.String(), "image_key": stored.Key}
		if err := s.jobs.Enqueue(ctx, JobClassifyCapture, payload); err != nil {
			s.failCapture(ctx, id, stored.Key, err)
			return State{}, apperrors.Wrap(apperrors.CodeInternal, "failed to schedule analysis", err)
		}
		return started, nil
	}
	return s.classify(ctx, id, started.Weather, req.Image, stored)
}

// HandleJob finishes captures queued in async mode. Unknown jobs are ignored.
func (s *service) HandleJob(ctx context.Context, name string, payload map[string]any) {
	if name != JobClassifyCapture {
		s.logger.Warn("ignoring unknown job", "job", name)
		return
	}
	rawID, _ := payload["session_id"].(string)
	imageKey, _ := payload["image_key"].(string)
	id, err := uuid.Parse(rawID)
	if err != nil || imageKey == "" {
		s.logger.Warn("malformed capture job", "payload", payload)
		return
	}
	state, err := s.load(ctx, id)
	if err != nil {
		s.logger.Warn("capture job for missing session", "session_id", id, "error", err)
		return
	}
	if !state.Analyzing || state.CaptureImageKey != imageKey {
		s.logger.Info("capture job superseded", "session_id", id, "image_key", imageKey)
		return
	}
	image, mime, err := s.analysis.Image(ctx, imageKey)
	if err != nil {
		s.failCapture(ctx, id, imageKey, err)
		return
	}
	stored := analysis.StoredImage{Key: imageKey, MimeType: mime, Size: int64(len(image))}
	if _, err := s.classify(ctx, id, state.Weather, image, stored); err != nil {
		s.logger.Warn("capture job failed", "session_id", id, "error", err)
	}
}

func (s *service) classify(ctx context.Context, id uuid.UUID, obs *weather.Observation, image []byte, stored analysis.StoredImage) (State, error) {
	result, err := s.analysis.Classify(ctx, analysis.Request{
		Image:    image,
		MimeType: stored.MimeType,
		Weather:  obs,
		ImageKey: stored.Key,
	})
	if err != nil {
		s.failCapture(ctx, id, stored.Key, err)
		return State{}, err
	}
	return s.mutate(ctx, id, func(current State) (State, error) {
		return Reduce(current, Action{Type: ActionAnalysisCompleted, Analysis: &result})
	})
}

func (s *service) async() bool {
	return s.cfg.AsyncCapture && s.jobs != nil
}

// Plan combines the session's analysis and weather through the recommendation engine.
func (s *service) Plan(ctx context.Context, id uuid.UUID) (skincare.Plan, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return skincare.Plan{}, err
	}
	if state.Analysis == nil {
		return skincare.Plan{}, apperrors.Wrap(apperrors.CodeConflict, "complete a skin analysis first", nil)
	}
	if state.Weather == nil {
		return skincare.Plan{}, apperrors.Wrap(apperrors.CodeConflict, "load the weather for your city first", nil)
	}
	return s.plans.GeneratePlan(string(state.Analysis.SkinType), *state.Weather), nil
}

func (s *service) Profile(ctx context.Context, id uuid.UUID) (Profile, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return BuildProfile(state), nil
}

func (s *service) Report(ctx context.Context, id uuid.UUID) (Report, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(state, util.NowUTC()), nil
}

func (s *service) CaptureImage(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return s.analysis.Image(ctx, state.CaptureImageKey)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (State, error) {
	state, found, err := s.store.Load(ctx, id)
	if err != nil {
		return State{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load session", err)
	}
	if !found {
		return State{}, apperrors.Wrap(apperrors.CodeNotFound, "session not found", nil)
	}
	return state, nil
}

// mutate runs fn on the latest state under the session lock and persists the result.
func (s *service) mutate(ctx context.Context, id uuid.UUID, fn func(State) (State, error)) (State, error) {
	lockCtx := ctx
	if s.cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.cfg.LockTimeout)
		defer cancel()
	}
	unlock, err := s.locker.Lock(lockCtx, "session:"+id.String(), s.cfg.LockTTL)
	if err != nil {
		return State{}, apperrors.Wrap(apperrors.CodeConflict, "session is busy, try again", err)
	}
	defer unlock()

	current, err := s.load(ctx, id)
	if err != nil {
		return State{}, err
	}
	next, err := fn(current)
	if err != nil {
		return State{}, err
	}
	next.UpdatedAt = util.NowUTC()
	if err := s.store.Save(ctx, next, s.cfg.TTL); err != nil {
		return State{}, apperrors.Wrap(apperrors.CodeStorage, "failed to save session", err)
	}
	return next, nil
}

// failCapture clears the analyzing flag even when the request context is already gone.
func (s *service) failCapture(ctx context.Context, id uuid.UUID, imageKey string, cause error) {
	bg := context.WithoutCancel(ctx)
	_, err := s.mutate(bg, id, func(current State) (State, error) {
		if current.CaptureImageKey != imageKey {
			return current, apperrors.Wrap(apperrors.CodeConflict, "capture already replaced", nil)
		}
		return Reduce(current, Action{Type: ActionCaptureFailed})
	})
	if err != nil {
		s.logger.Warn("failed to clear capture after analysis error", "session_id", id, "error", err)
	} else {
		s.discardImage(bg, imageKey)
	}
	s.logger.Warn("skin analysis failed", "session_id", id, "error", cause)
}

func (s *service) discardImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.analysis.Discard(ctx, key); err != nil {
		s.logger.Warn("failed to discard capture image", "image_key", key, "error", err)
	}
}
