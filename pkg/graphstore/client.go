package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Client wraps a Neo4j driver. One driver is shared by the process and a
// session is opened per logical operation.
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	Timeout  time.Duration
}

// Params configures a Client.
type Params struct {
	URI      string
	User     string
	Password string
	Database string
	MaxPool  int
	Timeout  time.Duration
}

// NewFromEnv connects using NEO4J_* variables. It returns nil, nil when
// NEO4J_URI is unset so callers can run without the graph.
func NewFromEnv(ctx context.Context) (*Client, error) {
	uri := util.GetEnv("NEO4J_URI")
	if uri == "" {
		return nil, nil
	}
	return New(ctx, Params{
		URI:      uri,
		User:     util.GetEnvString("NEO4J_USER", "neo4j"),
		Password: util.GetEnv("NEO4J_PASSWORD"),
		Database: util.GetEnv("NEO4J_DATABASE"),
		MaxPool:  int(util.GetEnvNumeric("NEO4J_MAX_POOL_SIZE", 50)),
		Timeout:  util.GetEnvDuration("NEO4J_TIMEOUT", 10*time.Second),
	})
}

// New creates a driver and verifies connectivity.
func New(ctx context.Context, params Params) (*Client, error) {
	if params.User == "" {
		params.User = "neo4j"
	}
	if params.MaxPool <= 0 {
		params.MaxPool = 50
	}
	if params.Timeout <= 0 {
		params.Timeout = 10 * time.Second
	}

	auth := neo4j.BasicAuth(params.User, params.Password, "")
	driver, err := neo4j.NewDriverWithContext(params.URI, auth, func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = params.MaxPool
		cfg.SocketConnectTimeout = params.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(vctx)
		return nil, fmt.Errorf("graphstore: verify connectivity: %w", err)
	}

	c := &Client{Driver: driver, Database: params.Database, Timeout: params.Timeout}
	c.EnsureSchema(ctx)
	return c, nil
}

// Close shuts the driver down.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}

var schemaStatements = []string{
	`CREATE CONSTRAINT paper_id_unique IF NOT EXISTS FOR (p:Paper) REQUIRE p.id IS UNIQUE`,
	`CREATE CONSTRAINT section_id_unique IF NOT EXISTS FOR (s:Section) REQUIRE s.id IS UNIQUE`,
	`CREATE CONSTRAINT author_name_unique IF NOT EXISTS FOR (a:Author) REQUIRE a.name IS UNIQUE`,
	`CREATE CONSTRAINT keyword_name_unique IF NOT EXISTS FOR (k:Keyword) REQUIRE k.name IS UNIQUE`,
	`CREATE INDEX entity_name_type IF NOT EXISTS FOR (e:Entity) ON (e.name, e.type)`,
}

// EnsureSchema creates constraints and indexes. Failures are logged only.
func (c *Client) EnsureSchema(ctx context.Context) {
	session := c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, q := range schemaStatements {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			logger.Warn("[Graph][Schema] Schema init failed (continuing)", "err", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

func (c *Client) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: c.Database,
	})
}

// write runs one statement in its own write transaction.
func (c *Client) write(ctx context.Context, cypher string, params map[string]any) error {
	session := c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

// read runs one statement in a read transaction and collects every record.
func (c *Client) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := c.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]*neo4j.Record), nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, 3*c.Timeout)
}
