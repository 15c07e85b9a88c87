// Package staging uploads rendered assets to public hosts so platform APIs
// that ingest by URL can fetch them.
package staging

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonesrussell/reelcast/internal/logger"
)

// ErrAllHostsFailed is returned when every configured host rejected the upload.
var ErrAllHostsFailed = errors.New("all staging hosts failed")

// Host uploads bytes and returns a publicly fetchable URL.
type Host interface {
	Name() string
	Upload(ctx context.Context, data []byte, filename, mime string) (string, error)
}

// Stager tries hosts in order until one accepts the asset.
type Stager struct {
	hosts  []Host
	client *http.Client
	logger logger.Logger
}

func NewStager(hosts []Host, client *http.Client, log logger.Logger) *Stager {
	if client == nil {
		client = http.DefaultClient
	}
	return &Stager{hosts: hosts, client: client, logger: log}
}

// Stage uploads the asset to the first host that accepts it. Host failures
// are logged and the next host is tried; only total failure is an error.
func (s *Stager) Stage(ctx context.Context, data []byte, filename, mime string) (string, error) {
	var errs []error
	for _, host := range s.hosts {
		url, err := host.Upload(ctx, data, filename, mime)
		if err != nil {
			s.logger.Warn("Staging host failed",
				logger.String("host", host.Name()),
				logger.Int("size", len(data)),
				logger.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", host.Name(), err))
			continue
		}
		s.logger.Info("Asset staged",
			logger.String("host", host.Name()),
			logger.String("url", url),
			logger.Int("size", len(data)),
		)
		return url, nil
	}
	return "", fmt.Errorf("%w: %w", ErrAllHostsFailed, errors.Join(errs...))
}

// Probe checks whether a previously staged URL is still fetchable.
// Staging hosts expire uploads, so a stored URL is only reused after a
// successful probe.
func (s *Stager) Probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
