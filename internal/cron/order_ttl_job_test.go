package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
	"github.com/jadorel/afrimarket-backend/pkg/logger"
)

type fakePendingReader struct {
	orders     []models.Order
	lastCutoff time.Time
	err        error
}

func (f *fakePendingReader) FindPendingBefore(_ context.Context, cutoff time.Time) ([]models.Order, error) {
	f.lastCutoff = cutoff
	return f.orders, f.err
}

type fakeExpirer struct {
	expired []uuid.UUID
	errFor  map[uuid.UUID]error
}

func (f *fakeExpirer) ExpireOrder(_ context.Context, orderID uuid.UUID, _ time.Duration) error {
	if err, ok := f.errFor[orderID]; ok {
		return err
	}
	f.expired = append(f.expired, orderID)
	return nil
}

func newOrderTTLTestJob(t *testing.T, reader *fakePendingReader, expirer *fakeExpirer, ttl time.Duration) *orderTTLJob {
	t.Helper()
	jobIface, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		PendingReader: reader,
		Orders:        expirer,
		TTL:           ttl,
	})
	if err != nil {
		t.Fatalf("NewOrderTTLJob: %v", err)
	}
	return jobIface.(*orderTTLJob)
}

func TestOrderTTLJobExpiresStaleOrders(t *testing.T) {
	now := time.Date(2026, 1, 30, 12, 0, 0, 0, time.UTC)
	first := models.Order{ID: uuid.New()}
	second := models.Order{ID: uuid.New()}
	reader := &fakePendingReader{orders: []models.Order{first, second}}
	expirer := &fakeExpirer{}

	job := newOrderTTLTestJob(t, reader, expirer, 24*time.Hour)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedCutoff := now.Add(-24 * time.Hour)
	if !reader.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, reader.lastCutoff)
	}
	if len(expirer.expired) != 2 {
		t.Fatalf("expired = %d, want 2", len(expirer.expired))
	}
}

func TestOrderTTLJobSkipsOrdersPaidMeanwhile(t *testing.T) {
	paid := models.Order{ID: uuid.New()}
	stale := models.Order{ID: uuid.New()}
	reader := &fakePendingReader{orders: []models.Order{paid, stale}}
	expirer := &fakeExpirer{errFor: map[uuid.UUID]error{
		paid.ID: pkgerrors.New(pkgerrors.CodeNotCancellable, "order cannot be cancelled"),
	}}

	job := newOrderTTLTestJob(t, reader, expirer, 24*time.Hour)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run should swallow not-cancellable orders: %v", err)
	}
	if len(expirer.expired) != 1 || expirer.expired[0] != stale.ID {
		t.Fatalf("expired = %v", expirer.expired)
	}
}

func TestOrderTTLJobAccumulatesOtherErrors(t *testing.T) {
	broken := models.Order{ID: uuid.New()}
	healthy := models.Order{ID: uuid.New()}
	reader := &fakePendingReader{orders: []models.Order{broken, healthy}}
	expirer := &fakeExpirer{errFor: map[uuid.UUID]error{
		broken.ID: errors.New("db down"),
	}}

	job := newOrderTTLTestJob(t, reader, expirer, 24*time.Hour)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected accumulated error")
	}
	// The failing order must not block the rest of the batch.
	if len(expirer.expired) != 1 || expirer.expired[0] != healthy.ID {
		t.Fatalf("expired = %v", expirer.expired)
	}
}

func TestOrderTTLJobPropagatesReaderError(t *testing.T) {
	reader := &fakePendingReader{err: errors.New("boom")}
	job := newOrderTTLTestJob(t, reader, &fakeExpirer{}, time.Hour)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
