package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/zephyre/internal/domain/analysis"
	"github.com/yanqian/zephyre/internal/domain/weather"
	apperrors "github.com/yanqian/zephyre/pkg/errors"
)

// Page is the screen the client is showing.
type Page string

const (
	PageLanding   Page = "landing"
	PageDashboard Page = "dashboard"
	PageProfile   Page = "profile"
	PageAbout     Page = "about"
)

// Valid reports whether p names a known screen.
func (p Page) Valid() bool {
	switch p {
	case PageLanding, PageDashboard, PageProfile, PageAbout:
		return true
	}
	return false
}

// State is the full client-visible application state of one session.
// Values are replaced by Reduce, never mutated in place.
type State struct {
	ID              uuid.UUID            `json:"id"`
	Page            Page                 `json:"page"`
	UserName        string               `json:"userName"`
	CaptureImageKey string               `json:"captureImageKey,omitempty"`
	Analyzing       bool                 `json:"analyzing"`
	Analysis        *analysis.Result     `json:"analysis,omitempty"`
	Weather         *weather.Observation `json:"weather,omitempty"`
	Version         int64                `json:"version"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// New returns the initial state shown on first visit.
func New(id uuid.UUID, now time.Time) State {
	return State{
		ID:        id,
		Page:      PageLanding,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ActionType names a state transition.
type ActionType string

const (
	ActionNavigate          ActionType = "navigate"
	ActionSetUserName       ActionType = "set_user_name"
	ActionWeatherLoaded     ActionType = "weather_loaded"
	ActionCaptureStarted    ActionType = "capture_started"
	ActionAnalysisCompleted ActionType = "analysis_completed"
	ActionCaptureFailed     ActionType = "capture_failed"
	ActionCaptureReset      ActionType = "capture_reset"
)

// ClientDispatchable reports whether clients may send t directly.
// The remaining actions are produced by the service around weather and capture calls.
func (t ActionType) ClientDispatchable() bool {
	switch t {
	case ActionNavigate, ActionSetUserName, ActionCaptureReset:
		return true
	}
	return false
}

// Action is one requested transition. Only the fields relevant to Type are read.
type Action struct {
	Type     ActionType           `json:"type"`
	Page     Page                 `json:"page,omitempty"`
	UserName string               `json:"userName,omitempty"`
	Weather  *weather.Observation `json:"-"`
	ImageKey string               `json:"-"`
	Analysis *analysis.Result     `json:"-"`
}

// Reduce applies action to state and returns the successor with Version incremented.
// On error the input state is returned unchanged.
func Reduce(state State, action Action) (State, error) {
	next := state
	switch action.Type {
	case ActionNavigate:
		if !action.Page.Valid() {
			return state, apperrors.Wrap(apperrors.CodeInvalidInput, "unknown page: "+string(action.Page), nil)
		}
		next.Page = action.Page

	case ActionSetUserName:
		next.UserName = strings.TrimSpace(action.UserName)

	case ActionWeatherLoaded:
		if action.Weather == nil {
			return state, apperrors.Wrap(apperrors.CodeInvalidInput, "weather observation is required", nil)
		}
		obs := *action.Weather
		next.Weather = &obs

	case ActionCaptureStarted:
		if err := CanCapture(state); err != nil {
			return state, err
		}
		next.Analyzing = true
		next.CaptureImageKey = action.ImageKey
		next.Analysis = nil

	case ActionAnalysisCompleted:
		if action.Analysis == nil {
			return state, apperrors.Wrap(apperrors.CodeInvalidInput, "analysis result is required", nil)
		}
		if !state.Analyzing || action.Analysis.ImageKey != state.CaptureImageKey {
			return state, apperrors.Wrap(apperrors.CodeConflict, "capture was reset before the analysis finished", nil)
		}
		if !action.Analysis.SkinType.IsKnown() {
			return state, apperrors.Wrap(apperrors.CodeInvalidInput, "unknown skin type: "+string(action.Analysis.SkinType), nil)
		}
		result := *action.Analysis
		next.Analysis = &result
		next.Analyzing = false

	case ActionCaptureFailed:
		next.Analyzing = false
		next.CaptureImageKey = ""

	case ActionCaptureReset:
		next.Analyzing = false
		next.CaptureImageKey = ""
		next.Analysis = nil

	default:
		return state, apperrors.Wrap(apperrors.CodeInvalidInput, "unknown action: "+string(action.Type), nil)
	}
	next.Version = state.Version + 1
	return next, nil
}

// CanCapture checks the capture preconditions without changing state.
func CanCapture(state State) error {
	if state.UserName == "" {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "please enter your name before capturing", nil)
	}
	if state.Analyzing {
		return apperrors.Wrap(apperrors.CodeCaptureInProgress, "an analysis is already in progress", nil)
	}
	return nil
}
