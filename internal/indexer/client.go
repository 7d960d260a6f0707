// Package indexer mirrors accepted companies into Elasticsearch so
// downstream consumers can search without touching Postgres. The mirror
// is best effort: Postgres is the source of truth, and indexing failures
// never fail a page.
package indexer

import (
	"crypto/tls"
	"fmt"
	"net/http"

	es "github.com/elastic/go-elasticsearch/v8"

	esconfig "github.com/jonesrussell/goprospect/internal/config/elasticsearch"
	"github.com/jonesrussell/goprospect/internal/logger"
)

// NewClient creates and pings an Elasticsearch client.
func NewClient(cfg *esconfig.Config, log logger.Interface) (*es.Client, error) {
	if len(cfg.Addresses) > 0 {
		log.Debug("connecting to elasticsearch", "addresses", cfg.Addresses)
	}

	client, err := es.NewClient(clientConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	res, err := client.Ping()
	if err != nil {
		return nil, fmt.Errorf("failed to ping elasticsearch: %w", err)
	}
	defer res.Body.Close() //nolint:errcheck // response body close errors are not actionable

	if res.IsError() {
		return nil, fmt.Errorf("error pinging elasticsearch: %s", res.String())
	}
	return client, nil
}

// clientConfig assembles addresses, auth, and transport. An API key wins
// over basic auth when both are configured.
func clientConfig(cfg *esconfig.Config) es.Config {
	clientCfg := es.Config{
		Addresses: cfg.Addresses,
	}

	if cfg.InsecureSkipVerify {
		clientCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // development clusters only, off by default
			},
		}
	}

	if cfg.APIKey != "" {
		clientCfg.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		clientCfg.Username = cfg.Username
		clientCfg.Password = cfg.Password
	}
	return clientCfg
}
