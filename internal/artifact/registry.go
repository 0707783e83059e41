package artifact

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"credit-underwriter/internal/errs"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// RegistryStore reads and writes artifact blobs against a remote model
// registry over HTTP. Keys map to /artifacts/{key}.
type RegistryStore struct {
	client *resty.Client
}

// NewRegistryStore targets baseURL with the given request timeout.
func NewRegistryStore(baseURL string, timeout time.Duration) *RegistryStore {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &RegistryStore{client: client}
}

func (s *RegistryStore) Put(ctx context.Context, key string, data []byte) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data).
		Put("/artifacts/" + key)
	if err != nil {
		return fmt.Errorf("registry put %s: %w", key, err)
	}
	if resp.IsError() {
		return fmt.Errorf("registry put %s: status %d", key, resp.StatusCode())
	}
	log.Debug().Str("key", key).Int("bytes", len(data)).Msg("artifact uploaded")
	return nil
}

func (s *RegistryStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get("/artifacts/" + key)
	if err != nil {
		return nil, fmt.Errorf("registry get %s: %w", key, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("artifact %s: %w", key, errs.ErrArtifactUnavailable)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("registry get %s: status %d", key, resp.StatusCode())
	}
	return resp.Body(), nil
}
