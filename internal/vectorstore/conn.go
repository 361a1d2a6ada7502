package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fyrsmithlabs/docsearchd/internal/logging"
)

// Config holds configuration for the Qdrant gRPC gateway.
type Config struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Default: 6334
	Port int

	// Collection is the default collection for document chunks.
	Collection string

	// VectorSize is the dimensionality of embeddings.
	// MUST match the embedding model output dimensions.
	VectorSize int

	// Distance is the similarity metric. Default: Cosine.
	Distance qdrant.Distance

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// MaxRetries is the retry budget for transient operation failures and
	// for establishing the connection. Default: 3.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubling per retry. Default: 1s.
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB, to carry large upsert batches.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ConnectionManager owns the single long-lived Qdrant client handle for the
// process. The handle is dialed lazily; dialing is verified with a health
// check and retried with exponential backoff before surfacing
// ErrConnectionFailed. Invalidate discards the handle so the next Get
// redials from scratch — the vector database may restart independently of
// this process and stale handles must self-heal rather than wedge every
// subsequent call.
type ConnectionManager struct {
	config *Config
	logger *logging.Logger

	mu     sync.Mutex
	client *qdrant.Client
}

// NewConnectionManager creates a manager without dialing.
func NewConnectionManager(config *Config, logger *logging.Logger) *ConnectionManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ConnectionManager{
		config: config,
		logger: logger.Named("vectorstore.conn"),
	}
}

// Get returns the cached client handle, dialing when absent. Dialing is
// attempted once plus MaxRetries retries with doubling backoff (1s, 2s, 4s).
func (m *ConnectionManager) Get(ctx context.Context) (*qdrant.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	backoff := m.config.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		client, err := m.dial(ctx)
		if err == nil {
			m.client = client
			reconnectsTotal.Inc()
			return client, nil
		}
		lastErr = err
		m.logger.Warn(ctx, "vector store dial failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, fmt.Errorf("%w after %d retries: %v", ErrConnectionFailed, m.config.MaxRetries, lastErr)
}

// dial creates a client and verifies it with a health check.
func (m *ConnectionManager) dial(ctx context.Context) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   m.config.Host,
		Port:   m.config.Port,
		UseTLS: m.config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(m.config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(m.config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(healthCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check: %w", err)
	}

	return client, nil
}

// Invalidate discards the cached handle. The next Get redials.
func (m *ConnectionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		_ = m.client.Close()
		m.client = nil
	}
}

// HealthCheck probes the cached handle (dialing when absent) and invalidates
// it on failure.
func (m *ConnectionManager) HealthCheck(ctx context.Context) error {
	client, err := m.Get(ctx)
	if err != nil {
		return err
	}

	if _, err := client.HealthCheck(ctx); err != nil {
		m.logger.Warn(ctx, "vector store unhealthy, invalidating handle", zap.Error(err))
		m.Invalidate()
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close releases the cached handle.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}
