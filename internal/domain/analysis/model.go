package analysis

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/zephyre/internal/domain/skincare"
	"github.com/yanqian/zephyre/internal/domain/weather"
)

// ErrImageNotFound is returned by an ImageStore when the key is unknown.
var ErrImageNotFound = errors.New("image not found")

// Result is the outcome of one classification. It is never mutated after creation.
type Result struct {
	ID         uuid.UUID            `json:"id"`
	SkinType   skincare.SkinType    `json:"skinType"`
	Confidence int                  `json:"confidencePercent"`
	Notes      string               `json:"notes"`
	Timestamp  time.Time            `json:"timestamp"`
	Weather    *weather.Observation `json:"weather,omitempty"`
	ImageKey   string               `json:"imageKey,omitempty"`
}

// Request carries an encoded still image and the weather to bias against.
type Request struct {
	Image    []byte
	MimeType string
	Weather  *weather.Observation
	ImageKey string
}

// Upload is an image to stage for later display.
type Upload struct {
	ID       uuid.UUID
	Image    []byte
	MimeType string
}

// StoredImage describes a staged capture.
type StoredImage struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	ETag     string `json:"etag,omitempty"`
}

// ImageStore abstracts blob storage for captured images.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredImage, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Config wires runtime knobs for the classification stub.
type Config struct {
	Latency       time.Duration
	MaxImageBytes int64
}
