package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/foliofox/foliofox/pkg/catalog"
)

// Probe runs the probe contract for ix.Type against ix.BaseURL and
// reports the elapsed time and any failure, per §4.3's per-backend
// contracts. A non-nil error means the probe failed; the indexer
// health monitor records both the duration and the error regardless.
func Probe(ctx context.Context, ix catalog.Indexer, client *http.Client) (responseTimeMS int, err error) {
	timeout := time.Duration(ix.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	switch ix.Type {
	case catalog.IndexerProwlarr:
		err = probeProwlarr(cctx, client, ix)
	case catalog.IndexerJackett:
		err = probeJackett(cctx, client, ix)
	default:
		err = probeGeneric(cctx, client, ix)
	}
	return int(time.Since(start).Milliseconds()), err
}

// probeProwlarr checks system status and indexer listing, both
// authenticated with X-Api-Key, both expected to return 200.
func probeProwlarr(ctx context.Context, client *http.Client, ix catalog.Indexer) error {
	status := NewHTTPChecker(ix.BaseURL+"/api/v1/system/status").
		WithHeader("X-Api-Key", ix.APIKey).WithStatusRange(200, 200)
	status.Client = client
	if r := status.Check(ctx); !r.Healthy {
		return fmt.Errorf("system status: %s", r.Message)
	}

	indexer := NewHTTPChecker(ix.BaseURL+"/api/v1/indexer").
		WithHeader("X-Api-Key", ix.APIKey).WithStatusRange(200, 200)
	indexer.Client = client
	if r := indexer.Check(ctx); !r.Healthy {
		return fmt.Errorf("indexer list: %s", r.Message)
	}
	return nil
}

// probeJackett checks server config, indexer listing, and a no-op
// torznab search against the aggregate endpoint, all expected 200.
func probeJackett(ctx context.Context, client *http.Client, ix catalog.Indexer) error {
	cfg := NewHTTPChecker(ix.BaseURL + "/api/v2.0/server/config").WithStatusRange(200, 200)
	cfg.Client = client
	if r := cfg.Check(ctx); !r.Healthy {
		return fmt.Errorf("server config: %s", r.Message)
	}

	idx := NewHTTPChecker(ix.BaseURL + "/api/v2.0/indexers").WithStatusRange(200, 200)
	idx.Client = client
	if r := idx.Check(ctx); !r.Healthy {
		return fmt.Errorf("indexer list: %s", r.Message)
	}

	searchURL := fmt.Sprintf("%s/api/v2.0/indexers/all/results/torznab/api?apikey=%s&t=search&q=", ix.BaseURL, ix.APIKey)
	search := NewHTTPChecker(searchURL).WithStatusRange(200, 200)
	search.Client = client
	if r := search.Check(ctx); !r.Healthy {
		return fmt.Errorf("no-op search: %s", r.Message)
	}
	return nil
}

// probeGeneric treats any of 200, 301, 302 from the base URL as alive.
func probeGeneric(ctx context.Context, client *http.Client, ix catalog.Indexer) error {
	checker := NewHTTPChecker(ix.BaseURL).WithStatusSet(200, 301, 302)
	checker.Client = client
	if r := checker.Check(ctx); !r.Healthy {
		return fmt.Errorf("base url: %s", r.Message)
	}
	return nil
}
