package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/jadorel/afrimarket-backend/pkg/logger"
)

type expiredCartDeleter interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// CartExpirationJobParams configure the anonymous-cart sweep.
type CartExpirationJobParams struct {
	Logger *logger.Logger
	Carts  expiredCartDeleter
}

// NewCartExpirationJob builds the job that removes expired guest carts.
func NewCartExpirationJob(params CartExpirationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &cartExpirationJob{
		logg:  params.Logger,
		carts: params.Carts,
		now:   time.Now,
	}, nil
}

type cartExpirationJob struct {
	logg  *logger.Logger
	carts expiredCartDeleter
	now   func() time.Time
}

func (j *cartExpirationJob) Name() string { return "cart-expiration" }

func (j *cartExpirationJob) Run(ctx context.Context) error {
	deleted, err := j.carts.DeleteExpired(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("cart expiration: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"rows_deleted": deleted})
	j.logg.Info(logCtx, "cart expiration sweep complete")
	return nil
}
