package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
	"github.com/jadorel/afrimarket-backend/pkg/logger"
)

const defaultPendingPaymentTTL = 24 * time.Hour

type pendingOrderReader interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type orderExpirer interface {
	ExpireOrder(ctx context.Context, orderID uuid.UUID, ttl time.Duration) error
}

// OrderTTLJobParams configure the pending-order reaper.
type OrderTTLJobParams struct {
	Logger        *logger.Logger
	PendingReader pendingOrderReader
	Orders        orderExpirer
	TTL           time.Duration
}

// NewOrderTTLJob builds the cron job that expires orders left unpaid past the TTL.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.PendingReader == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order expirer required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingPaymentTTL
	}
	return &orderTTLJob{
		logg:          params.Logger,
		pendingReader: params.PendingReader,
		orders:        params.Orders,
		ttl:           ttl,
		now:           time.Now,
	}, nil
}

type orderTTLJob struct {
	logg          *logger.Logger
	pendingReader pendingOrderReader
	orders        orderExpirer
	ttl           time.Duration
	now           func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.pendingReader.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query pending orders: %w", err)
	}

	expired := 0
	skipped := 0
	var errs []error
	for _, order := range stale {
		if err := j.orders.ExpireOrder(ctx, order.ID, j.ttl); err != nil {
			// A payment may settle between the query and the expiry
			// attempt. Leave those orders alone.
			var typed *pkgerrors.Error
			if errors.As(err, &typed) && typed.Code() == pkgerrors.CodeNotCancellable {
				skipped++
				continue
			}
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"expired":    expired,
		"skipped":    skipped,
	})
	j.logg.Info(logCtx, "order expiration loop complete")
	return multierr.Combine(errs...)
}
