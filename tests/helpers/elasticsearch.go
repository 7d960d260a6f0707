package helpers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/elasticsearch"
	"github.com/testcontainers/testcontainers-go/wait"

	esconfig "github.com/jonesrussell/goprospect/internal/config/elasticsearch"
)

const (
	// DefaultElasticsearchImage is the image mirror tests run against.
	DefaultElasticsearchImage = "docker.elastic.co/elasticsearch/elasticsearch:8.11.0"
	// DefaultElasticsearchStartupTimeout is the default timeout for Elasticsearch to start.
	DefaultElasticsearchStartupTimeout = 60 * time.Second
	// DefaultHealthCheckTimeout bounds one cluster health request.
	DefaultHealthCheckTimeout = 5 * time.Second
	// DefaultHealthCheckRetries is how many times the health check polls.
	DefaultHealthCheckRetries = 30

	testESUser     = "elastic"
	testESPassword = "changeme"
	testESIndex    = "goprospect-companies-test"
)

// ElasticsearchContainer manages a test Elasticsearch instance for the
// company mirror.
type ElasticsearchContainer struct {
	Container testcontainers.Container
	Address   string
}

// StartElasticsearch starts an Elasticsearch container for testing.
// It returns a container instance that should be stopped with Stop().
func StartElasticsearch(ctx context.Context) (*ElasticsearchContainer, error) {
	esContainer, err := elasticsearch.Run(
		ctx,
		DefaultElasticsearchImage,
		elasticsearch.WithPassword(testESPassword),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/").WithPort("9200/tcp").WithStartupTimeout(DefaultElasticsearchStartupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start Elasticsearch container: %w", err)
	}

	host, err := esContainer.Host(ctx)
	if err != nil {
		_ = esContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mappedPort, err := esContainer.MappedPort(ctx, "9200")
	if err != nil {
		_ = esContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	address := fmt.Sprintf("http://%s", net.JoinHostPort(host, mappedPort.Port()))

	if waitErr := waitForElasticsearch(ctx, address); waitErr != nil {
		_ = esContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to wait for Elasticsearch: %w", waitErr)
	}

	return &ElasticsearchContainer{
		Container: esContainer,
		Address:   address,
	}, nil
}

// Stop stops and removes the Elasticsearch container.
func (e *ElasticsearchContainer) Stop(ctx context.Context) error {
	if e.Container == nil {
		return nil
	}
	return e.Container.Terminate(ctx)
}

// Config returns a mirror configuration pointed at the container.
func (e *ElasticsearchContainer) Config() *esconfig.Config {
	return &esconfig.Config{
		Enabled:   true,
		Addresses: []string{e.Address},
		Username:  testESUser,
		Password:  testESPassword,
		IndexName: testESIndex,
	}
}

// waitForElasticsearch polls cluster health until the node answers.
// The wait strategy covers the HTTP port opening; this covers the
// cluster actually forming behind it.
func waitForElasticsearch(ctx context.Context, address string) error {
	client := &http.Client{
		Timeout: DefaultHealthCheckTimeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/_cluster/health", address), http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(testESUser, testESPassword)

	for range DefaultHealthCheckRetries {
		resp, doErr := client.Do(req)
		if doErr == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}

	return fmt.Errorf("elasticsearch did not become ready within %d seconds", DefaultHealthCheckRetries)
}
