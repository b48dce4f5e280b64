package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/carmarket/backend/internal/domain/partner"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	items     []partner.Entity
	listCalls int
	getCalls  int
}

func (s *countingSource) ListActive(_ context.Context) ([]partner.Entity, error) {
	s.listCalls++
	return s.items, nil
}

func (s *countingSource) GetByID(_ context.Context, id string) (*partner.Entity, error) {
	s.getCalls++
	for _, p := range s.items {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, partner.ErrNotFound
}

func newTestSource(t *testing.T) (*PartnerSource, *countingSource, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	age := 8
	src := &countingSource{items: []partner.Entity{
		{ID: "P1", Name: "Banco Uno", AnnualRate: decimal.RequireFromString("12.5"), MinTerm: 12, MaxTerm: 72, Active: true, MaxVehicleAgeYears: &age},
	}}
	return NewPartnerSource(src, client, time.Minute, nil), src, mr
}

func TestPartnerSourceReadsThrough(t *testing.T) {
	cached, src, mr := newTestSource(t)
	ctx := context.Background()

	first, err := cached.ListActive(ctx)
	require.NoError(t, err)
	second, err := cached.ListActive(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, src.listCalls)
	require.Len(t, second, 1)
	assert.True(t, first[0].AnnualRate.Equal(second[0].AnnualRate))
	require.NotNil(t, second[0].MaxVehicleAgeYears)
	assert.Equal(t, 8, *second[0].MaxVehicleAgeYears)
	assert.True(t, mr.Exists(keyActivePartners))

	mr.FastForward(2 * time.Minute)
	_, err = cached.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.listCalls)
}

func TestPartnerSourceGetByID(t *testing.T) {
	cached, src, _ := newTestSource(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := cached.GetByID(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, "Banco Uno", p.Name)
	}
	assert.Equal(t, 1, src.getCalls)

	_, err := cached.GetByID(ctx, "P404")
	assert.True(t, errors.Is(err, partner.ErrNotFound))
}

func TestPartnerSourceFallsBackWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	src := &countingSource{items: []partner.Entity{{ID: "P1", Active: true}}}
	cached := NewPartnerSource(src, client, time.Minute, nil)

	items, err := cached.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, src.listCalls)
}

func TestPartnerSourceInvalidate(t *testing.T) {
	cached, src, mr := newTestSource(t)
	ctx := context.Background()

	_, err := cached.ListActive(ctx)
	require.NoError(t, err)
	_, err = cached.GetByID(ctx, "P1")
	require.NoError(t, err)

	require.NoError(t, cached.Invalidate(ctx))
	assert.False(t, mr.Exists(keyActivePartners))
	assert.False(t, mr.Exists(keyPartnerPrefix+"P1"))

	_, err = cached.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.listCalls)
}
