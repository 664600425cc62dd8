package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/config"
	"github.com/hellofresh/health-go/v5"
	healthRedis "github.com/hellofresh/health-go/v5/checks/redis"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Endpoints holds the live connections the checks ping. A nil field turns
// its check off, so each service registers only what it depends on.
type Endpoints struct {
	DB   *sql.DB
	AMQP *amqp.Connection
}

func NewHealthHandler(cfg *config.Config, endpoints *Endpoints) (*health.Health, error) {

	checks := []health.Config{
		{
			Name:      "redis",
			Timeout:   2 * time.Second,
			SkipOnErr: false,
			Check: healthRedis.New(
				healthRedis.Config{
					DSN: cfg.RedisConnect.GetDSN(),
				},
			),
		},
	}

	if endpoints.DB != nil {
		checks = append(checks, health.Config{
			Name:      "database",
			Timeout:   3 * time.Second,
			SkipOnErr: false,
			Check:     pingDB(endpoints.DB),
		})
	}

	if endpoints.AMQP != nil {
		checks = append(checks, health.Config{
			Name:    "rabbitmq",
			Timeout: 2 * time.Second,
			// Price-change delivery degrades without the broker but baskets still work.
			SkipOnErr: true,
			Check:     brokerOpen(endpoints.AMQP),
		})
	}

	h, err := health.New(
		health.WithComponent(health.Component{
			Name:    cfg.ServiceName,
			Version: "1.0.0",
		}),
		health.WithSystemInfo(),
		health.WithChecks(checks...),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create health instance: %w", err)
	}

	return h, nil
}

func pingDB(db *sql.DB) health.CheckFunc {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		return nil
	}
}

func brokerOpen(conn *amqp.Connection) health.CheckFunc {
	return func(ctx context.Context) error {
		if conn.IsClosed() {
			return errors.New("rabbitmq connection is closed")
		}
		return nil
	}
}
