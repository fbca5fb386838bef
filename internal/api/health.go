package api

import (
	"context"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const (
	appVersion          = "v1.0.0"
	defaultCheckTimeout = 2 * time.Second
)

type HealthChecker interface {
	HealthCheck() echo.HandlerFunc
}

type healthChecker struct {
	health *health.Health
}

type Pinger interface {
	Ping(ctx context.Context) error
}

func NewHealthChecker(name string, checks ...health.Config) (HealthChecker, error) {
	h, err := health.New(health.WithComponent(health.Component{Name: name, Version: appVersion}))
	if err != nil {
		return nil, errors.Wrap(err, "create health checker")
	}

	for _, check := range checks {
		if err := h.Register(check); err != nil {
			return nil, errors.Wrapf(err, "register health check %s", check.Name)
		}
	}

	return &healthChecker{
		health: h,
	}, nil
}

// PostgresCheck pings the pool. A failing database makes the service unavailable.
func PostgresCheck(p Pinger) health.Config {
	return health.Config{
		Name:      "postgres",
		Timeout:   defaultCheckTimeout,
		SkipOnErr: false,
		Check: func(ctx context.Context) error {
			return p.Ping(ctx)
		},
	}
}

func (h *healthChecker) HealthCheck() echo.HandlerFunc {
	return echo.WrapHandler(h.health.Handler())
}
