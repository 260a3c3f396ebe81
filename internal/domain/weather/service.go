package weather

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/yanqian/zephyre/pkg/errors"
	"github.com/yanqian/zephyre/pkg/util"
)

const (
	syntheticDescription = "Current weather conditions"
	defaultPopularLimit  = 5
)

// Service exposes the simulated weather provider.
type Service interface {
	Lookup(ctx context.Context, req Request) (Observation, error)
	Places(ctx context.Context) ([]Observation, error)
	Popular(ctx context.Context, limit int) ([]PopularPlace, error)
}

type service struct {
	cfg       Config
	directory Directory
	cache     Cache
	rng       util.Intner
	logger    *slog.Logger
	group     singleflight.Group
}

// NewService wires up the weather domain.
func NewService(cfg Config, directory Directory, cache Cache, rng util.Intner, logger *slog.Logger) Service {
	return &service{
		cfg:       cfg,
		directory: directory,
		cache:     cache,
		rng:       rng,
		logger:    logger.With("component", "weather.service"),
	}
}

func (s *service) Lookup(ctx context.Context, req Request) (Observation, error) {
	place := strings.TrimSpace(req.Place)
	if place == "" {
		return Observation{}, apperrors.Wrap(apperrors.CodeInvalidInput, "please enter a city name", nil)
	}
	key := strings.ToLower(place)
	if err := s.cache.IncrementLookup(ctx, key, place); err != nil {
		s.logger.Warn("failed to record weather lookup", "place", place, "error", err)
	}

	if obs, ok := s.cached(ctx, key); ok {
		return obs, nil
	}

	// The shared lookup outlives any single caller; each caller only waits on its own ctx.
	ch := s.group.DoChan(key, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		if err := util.Sleep(shared, s.cfg.Latency); err != nil {
			return resolution{}, err
		}
		res := s.resolve(shared, place)
		if res.fromDirectory {
			if err := s.cache.Set(shared, key, res.obs, s.cfg.CacheTTL); err != nil {
				s.logger.Warn("weather cache write failed", "place", place, "error", err)
			}
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return Observation{}, apperrors.Wrap(apperrors.CodeInternal, "weather lookup cancelled", ctx.Err())
	case out := <-ch:
		if out.Err != nil {
			return Observation{}, apperrors.Wrap(apperrors.CodeInternal, "weather lookup failed", out.Err)
		}
		res := out.Val.(resolution)
		obs := res.obs
		if !res.fromDirectory {
			obs.Place = place
		}
		s.logger.Info("weather lookup", "query", place, "place", obs.Place, "shared", out.Shared)
		return obs, nil
	}
}

func (s *service) Places(ctx context.Context) ([]Observation, error) {
	places, err := s.directory.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "failed to list places", err)
	}
	return places, nil
}

func (s *service) Popular(ctx context.Context, limit int) ([]PopularPlace, error) {
	if limit <= 0 || (s.cfg.PopularLimit > 0 && limit > s.cfg.PopularLimit) {
		limit = s.cfg.PopularLimit
	}
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	popular, err := s.cache.TopLookups(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "failed to load popular places", err)
	}
	if popular == nil {
		popular = []PopularPlace{}
	}
	return popular, nil
}

func (s *service) cached(ctx context.Context, key string) (Observation, bool) {
	obs, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("weather cache read failed", "key", key, "error", err)
		return Observation{}, false
	}
	return obs, ok
}

// resolution records whether an observation came from the directory or was synthesized.
type resolution struct {
	obs           Observation
	fromDirectory bool
}

// resolve never fails: directory errors fall through to a synthetic observation.
// Only directory hits are cached; synthetic observations are labeled per caller.
func (s *service) resolve(ctx context.Context, place string) resolution {
	obs, found, err := s.directory.Find(ctx, place)
	if err != nil {
		s.logger.Warn("weather directory lookup failed, synthesizing", "place", place, "error", err)
	}
	if err == nil && found {
		return resolution{obs: obs, fromDirectory: true}
	}
	return resolution{obs: s.synthesize(place)}
}

func (s *service) synthesize(place string) Observation {
	return Observation{
		Place:       place,
		Temperature: float64(s.rng.Intn(30) + 10),
		Humidity:    float64(s.rng.Intn(40) + 40),
		Condition:   SyntheticConditions[s.rng.Intn(len(SyntheticConditions))],
		Description: syntheticDescription,
	}
}
