// internal/dashboard/stats_test.go
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"internship-portal/internal/common/logger"
	"internship-portal/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	stats []models.PaymentStats
	err   error
	calls int
}

func (f *fakeSource) Stats(context.Context) ([]models.PaymentStats, error) {
	f.calls++
	return f.stats, f.err
}

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleStats() []models.PaymentStats {
	return []models.PaymentStats{
		{Status: models.PaymentRecordPending, Count: 3, TotalAmount: 1500},
		{Status: models.PaymentRecordVerified, Count: 10, TotalAmount: 5000},
	}
}

func newService(t *testing.T, src StatsSource, rdb redis.Cmdable) *Service {
	s := NewService(src, rdb, time.Minute, logger.NewTestLogger(t))
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestSummary_CacheMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	src := &fakeSource{stats: sampleStats()}
	svc := newService(t, src, rdb)

	want := summarize(sampleStats(), fixedNow)
	data, _ := json.Marshal(want)
	mock.ExpectGet(cacheKey).RedisNil()
	mock.ExpectSet(cacheKey, data, time.Minute).SetVal("OK")

	got, err := svc.Summary(context.Background())

	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int64(3), got.Pending)
	assert.Equal(t, int64(5000), got.VerifiedTotal)
	assert.Equal(t, int64(13), got.Attempts)
	require.Len(t, got.ByStatus, 4)
	assert.Equal(t, models.PaymentStats{Status: models.PaymentRecordDuplicate}, got.ByStatus[3])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummary_CacheHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	src := &fakeSource{}
	svc := newService(t, src, rdb)

	cached, _ := json.Marshal(summarize(sampleStats(), fixedNow))
	mock.ExpectGet(cacheKey).SetVal(string(cached))

	got, err := svc.Summary(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Pending)
	assert.Zero(t, src.calls, "database not queried on a cache hit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummary_RedisDownFallsBack(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	src := &fakeSource{stats: sampleStats()}
	svc := newService(t, src, rdb)

	mock.ExpectGet(cacheKey).SetErr(errors.New("connection refused"))
	data, _ := json.Marshal(summarize(sampleStats(), fixedNow))
	mock.ExpectSet(cacheKey, data, time.Minute).SetErr(errors.New("connection refused"))

	got, err := svc.Summary(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Pending)
	assert.Equal(t, 1, src.calls)
}

func TestSummary_SourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	svc := newService(t, src, nil)

	_, err := svc.Summary(context.Background())

	assert.EqualError(t, err, "db down")
}

func TestInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	src := &fakeSource{stats: sampleStats()}
	svc := newService(t, src, rdb)
	ctx := context.Background()

	_, err = svc.Summary(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cacheKey))
	assert.Equal(t, time.Minute, mr.TTL(cacheKey))

	require.NoError(t, svc.Invalidate(ctx, models.OutboxEvent{EventType: models.EventApplicationCreated}))
	assert.True(t, mr.Exists(cacheKey), "application events keep the cache")

	require.NoError(t, svc.Invalidate(ctx, models.OutboxEvent{EventType: models.EventPaymentVerified}))
	assert.False(t, mr.Exists(cacheKey))

	_, err = svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}
