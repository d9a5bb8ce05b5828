package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
)

// PostgresDB manages the Postgres connection pool
type PostgresDB struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
	config *common.PostgresConfig
}

// NewPostgresDB connects to Postgres and creates the schema when it is missing
func NewPostgresDB(ctx context.Context, logger arbor.ILogger, config *common.PostgresConfig) (*PostgresDB, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	poolConfig.ConnConfig.Logger = pgxLogger{logger: logger}
	poolConfig.ConnConfig.LogLevel = pgx.LogLevelWarn

	logger.Debug().Str("host", poolConfig.ConnConfig.Host).Str("database", poolConfig.ConnConfig.Database).Msg("Opening Postgres connection pool")

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db := &PostgresDB{
		pool:   pool,
		logger: logger,
		config: config,
	}

	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Debug().Msg("Postgres database initialized")

	return db, nil
}

// Pool returns the underlying connection pool
func (p *PostgresDB) Pool() *pgxpool.Pool {
	return p.pool
}

// Close releases every pooled connection
func (p *PostgresDB) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *PostgresDB) migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

// pgxLogger forwards pgx driver logs to arbor
type pgxLogger struct {
	logger arbor.ILogger
}

func (l pgxLogger) Log(ctx context.Context, level pgx.LogLevel, msg string, data map[string]interface{}) {
	fields := make([]string, 0, len(data))
	for k, v := range data {
		fields = append(fields, fmt.Sprintf("%s=%v", k, v))
	}

	switch level {
	case pgx.LogLevelError:
		l.logger.Error().Str("module", "pgx").Strs("data", fields).Msg(msg)
	case pgx.LogLevelWarn:
		l.logger.Warn().Str("module", "pgx").Strs("data", fields).Msg(msg)
	case pgx.LogLevelInfo:
		l.logger.Info().Str("module", "pgx").Strs("data", fields).Msg(msg)
	default:
		l.logger.Debug().Str("module", "pgx").Strs("data", fields).Msg(msg)
	}
}
