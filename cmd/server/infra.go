package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"custodia/internal/platform/config"
	"custodia/internal/platform/kafka"
	"custodia/internal/platform/postgres"
	"custodia/internal/platform/redis"
	httptransport "custodia/internal/transport/http"
)

// infra holds the optional backing services. Each is nil when its
// configuration is empty and the process falls back to memory.
type infra struct {
	db       *sql.DB
	redis    *redis.Client
	producer *kafka.Producer
	log      *slog.Logger
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (_ *infra, err error) {
	in := &infra{log: log}
	defer func() {
		if err != nil {
			in.Close()
		}
	}()

	if in.db, err = postgres.Open(ctx, cfg.Postgres); err != nil {
		return nil, err
	}
	if in.db != nil {
		if err = postgres.Migrate(ctx, in.db); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info("postgres connected")
	}

	if in.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if in.redis != nil {
		log.Info("redis connected")
	}

	if in.producer, err = kafka.NewProducer(cfg.Kafka, log); err != nil {
		return nil, err
	}
	if in.producer != nil {
		if err = in.producer.EnsureTopics(ctx, cfg.Kafka, cfg.Kafka.AuditTopic, cfg.Kafka.CatalogTopic); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (in *infra) healthChecks() map[string]httptransport.HealthCheck {
	checks := make(map[string]httptransport.HealthCheck)
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	if in.producer != nil {
		checks["kafka"] = in.producer.Ping
	}
	return checks
}

// Close releases every opened backend. Safe on a partially opened infra.
func (in *infra) Close() {
	if in.producer != nil {
		in.producer.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			in.log.Warn("close redis", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			in.log.Warn("close postgres", "error", err)
		}
	}
}
