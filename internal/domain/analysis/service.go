package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/yanqian/zephyre/internal/domain/skincare"
	apperrors "github.com/yanqian/zephyre/pkg/errors"
	"github.com/yanqian/zephyre/pkg/util"
)

var (
	humidBias = []skincare.SkinType{skincare.Oily, skincare.Combination, skincare.AcneProne, skincare.PimpleProne, skincare.OpenPores}
	dryBias   = []skincare.SkinType{skincare.Dry, skincare.Dehydrated, skincare.Sensitive}
)

// Service exposes the placeholder skin classifier and capture staging.
type Service interface {
	Classify(ctx context.Context, req Request) (Result, error)
	Stage(ctx context.Context, upload Upload) (StoredImage, error)
	Image(ctx context.Context, key string) ([]byte, string, error)
	Discard(ctx context.Context, key string) error
}

type service struct {
	cfg    Config
	images ImageStore
	rng    util.Intner
	logger *slog.Logger
}

// NewService wires up the analysis domain.
func NewService(cfg Config, images ImageStore, rng util.Intner, logger *slog.Logger) Service {
	return &service{
		cfg:    cfg,
		images: images,
		rng:    rng,
		logger: logger.With("component", "analysis.service"),
	}
}

// Classify draws a skin type after the simulated model latency. The image content is only validated.
func (s *service) Classify(ctx context.Context, req Request) (Result, error) {
	if _, err := s.validate(req.Image, req.MimeType); err != nil {
		return Result{}, err
	}
	if err := util.Sleep(ctx, s.cfg.Latency); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeInternal, "analysis cancelled", err)
	}

	candidates := skincare.AllSkinTypes()
	if req.Weather != nil {
		switch {
		case req.Weather.Humidity > 70:
			candidates = humidBias
		case req.Weather.Humidity < 30:
			candidates = dryBias
		}
	}
	skinType := candidates[s.rng.Intn(len(candidates))]

	result := Result{
		ID:         uuid.New(),
		SkinType:   skinType,
		Confidence: 70 + s.rng.Intn(30),
		Notes:      fmt.Sprintf("Based on image analysis, your skin shows characteristics of %s skin type.", skinType.Label()),
		Timestamp:  util.NowUTC(),
		Weather:    req.Weather,
		ImageKey:   req.ImageKey,
	}
	s.logger.Info("skin analysis completed", "id", result.ID, "skin_type", result.SkinType, "confidence", result.Confidence)
	return result, nil
}

// Stage validates and stores an image under captures/<id><ext>.
func (s *service) Stage(ctx context.Context, upload Upload) (StoredImage, error) {
	mime, err := s.validate(upload.Image, upload.MimeType)
	if err != nil {
		return StoredImage{}, err
	}
	id := upload.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	key := fmt.Sprintf("captures/%s%s", id.String(), extensionFor(mime))
	stored, err := s.images.Put(ctx, key, upload.Image, mime)
	if err != nil {
		return StoredImage{}, apperrors.Wrap(apperrors.CodeStorage, "failed to store image", err)
	}
	s.logger.Info("capture staged", "key", stored.Key, "size", stored.Size, "mime_type", stored.MimeType)
	return stored, nil
}

func (s *service) Image(ctx context.Context, key string) ([]byte, string, error) {
	if strings.TrimSpace(key) == "" {
		return nil, "", apperrors.Wrap(apperrors.CodeNotFound, "no image captured", nil)
	}
	reader, err := s.images.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrImageNotFound) {
			return nil, "", apperrors.Wrap(apperrors.CodeNotFound, "image not found", err)
		}
		return nil, "", apperrors.Wrap(apperrors.CodeStorage, "failed to load image", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeStorage, "failed to read image", err)
	}
	return data, http.DetectContentType(data), nil
}

func (s *service) Discard(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	if err := s.images.Delete(ctx, key); err != nil && !errors.Is(err, ErrImageNotFound) {
		return apperrors.Wrap(apperrors.CodeStorage, "failed to delete image", err)
	}
	return nil
}

func (s *service) validate(image []byte, declared string) (string, error) {
	if len(image) == 0 {
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, "image content cannot be empty", nil)
	}
	if s.cfg.MaxImageBytes > 0 && int64(len(image)) > s.cfg.MaxImageBytes {
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, "image exceeds maximum allowed size", nil)
	}
	sniffed := http.DetectContentType(image)
	if !strings.HasPrefix(sniffed, "image/") {
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, "please provide a valid image file", nil)
	}
	if declared = strings.TrimSpace(declared); strings.HasPrefix(declared, "image/") {
		return declared, nil
	}
	return sniffed, nil
}

func extensionFor(mime string) string {
	switch {
	case strings.Contains(mime, "png"):
		return ".png"
	case strings.Contains(mime, "jpeg"), strings.Contains(mime, "jpg"):
		return ".jpg"
	case strings.Contains(mime, "gif"):
		return ".gif"
	case strings.Contains(mime, "webp"):
		return ".webp"
	case strings.Contains(mime, "bmp"):
		return ".bmp"
	default:
		return ".img"
	}
}
