package search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Indexer triggers a rebuild of the storefront search index after a
// successful import
type Indexer interface {
	Reindex(ctx context.Context) error
}

// HTTPIndexer asks the search service to reindex the catalog
type HTTPIndexer struct {
	baseURL string
	client  *http.Client
	log     *logrus.Entry
}

func NewHTTPIndexer(baseURL string, logger *logrus.Logger) *HTTPIndexer {
	return &HTTPIndexer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     logrus.NewEntry(logger).WithField("component", "search_indexer"),
	}
}

func (i *HTTPIndexer) Reindex(ctx context.Context) error {
	url := i.baseURL + "/internal/reindex"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build reindex request: %w", err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("reindex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("search service returned %d for reindex", resp.StatusCode)
	}
	i.log.Debug("search reindex triggered")
	return nil
}

// NoopIndexer is used when no search service is configured
type NoopIndexer struct{}

func (NoopIndexer) Reindex(context.Context) error {
	return nil
}
