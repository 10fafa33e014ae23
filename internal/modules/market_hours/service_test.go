package market_hours

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

// fakeSource is a LiveSource with scripted answers
type fakeSource struct {
	status  LiveStatus
	err     error
	calls   atomic.Int32
	release chan struct{} // when set, calls block until closed
	started chan struct{}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) MarketStatus(ctx context.Context, region domain.Region) (LiveStatus, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return LiveStatus{}, ctx.Err()
		}
	}
	return f.status, f.err
}

func newTestGate(live LiveSource, clk *clock.Fake) *Gate {
	return NewGate(live, NewStatusCache(time.Minute, clk), clk, time.Second, zerolog.Nop())
}

func TestGate_LiveSuccess(t *testing.T) {
	clk := clock.NewFake(utc(2024, 6, 15, 14, 0)) // Saturday: calendar would say closed
	live := &fakeSource{status: LiveStatus{Session: SessionRegular, IsOpen: true}}
	gate := newTestGate(live, clk)

	status := gate.Status(context.Background(), "AAPL", "")
	assert.True(t, status.IsOpen)
	assert.Equal(t, SessionRegular, status.Session)
	assert.False(t, status.Fallback)
	assert.Equal(t, "fake", status.Source)
	assert.Equal(t, domain.RegionUS, status.Region)
}

func TestGate_LiveErrorFallsBack(t *testing.T) {
	clk := clock.NewFake(utc(2024, 6, 11, 14, 0))
	live := &fakeSource{err: errors.New("restricted")}
	gate := newTestGate(live, clk)

	status := gate.Status(context.Background(), "AAPL", "")
	assert.True(t, status.IsOpen)
	assert.Equal(t, SessionRegular, status.Session)
	assert.True(t, status.Fallback)
	assert.Equal(t, SourceCalendar, status.Source)
}

func TestGate_LiveSessionInferred(t *testing.T) {
	clk := clock.NewFake(utc(2024, 6, 11, 14, 0))
	gate := newTestGate(&fakeSource{status: LiveStatus{IsOpen: true}}, clk)
	assert.Equal(t, SessionRegular, gate.Status(context.Background(), "US", "").Session)
}

func TestGate_NoLiveSource(t *testing.T) {
	clk := clock.NewFake(utc(2024, 1, 9, 17, 0))
	gate := newTestGate(nil, clk)

	status := gate.Status(context.Background(), "SAP.DE", "")
	assert.False(t, status.IsOpen)
	assert.Equal(t, SessionClosed, status.Session)
	assert.True(t, status.Fallback)
}

func TestGate_CachesPerRegion(t *testing.T) {
	clk := clock.NewFake(utc(2024, 6, 11, 14, 0))
	live := &fakeSource{status: LiveStatus{Session: SessionRegular, IsOpen: true}}
	gate := newTestGate(live, clk)
	ctx := context.Background()

	gate.Status(ctx, "AAPL", "")
	gate.Status(ctx, "MSFT", "NASDAQ")
	gate.Status(ctx, "US", "")
	assert.Equal(t, int32(1), live.calls.Load(), "same region shares one cache entry")

	gate.Status(ctx, "SAP.DE", "")
	assert.Equal(t, int32(2), live.calls.Load())

	clk.Advance(time.Minute)
	gate.Status(ctx, "AAPL", "")
	assert.Equal(t, int32(3), live.calls.Load(), "expired entry triggers a new lookup")
}

func TestGate_CachesFallbackAnswers(t *testing.T) {
	clk := clock.NewFake(utc(2024, 6, 11, 14, 0))
	live := &fakeSource{err: errors.New("down")}
	gate := newTestGate(live, clk)

	gate.Status(context.Background(), "AAPL", "")
	gate.Status(context.Background(), "AAPL", "")
	assert.Equal(t, int32(1), live.calls.Load())
}

func TestGate_CoalescesConcurrentLookups(t *testing.T) {
	clk := clock.NewFake(utc(2024, 6, 11, 14, 0))
	live := &fakeSource{
		status:  LiveStatus{Session: SessionRegular, IsOpen: true},
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	gate := NewGate(live, NewStatusCache(time.Minute, clk), clk, 5*time.Second, zerolog.Nop())

	const callers = 20
	var wg sync.WaitGroup
	results := make([]MarketStatus, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = gate.Status(context.Background(), "AAPL", "")
	}()

	// Wait for the first flight to reach the source before piling on
	select {
	case <-live.started:
	case <-time.After(5 * time.Second):
		t.Fatal("live source never called")
	}

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = gate.Status(context.Background(), "MSFT", "NYSE")
		}(i)
	}

	// Give the followers time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(live.release)
	wg.Wait()

	assert.Equal(t, int32(1), live.calls.Load())
	for _, r := range results {
		assert.True(t, r.IsOpen)
		assert.False(t, r.Fallback)
	}
}

func TestGate_LiveTimeoutFallsBack(t *testing.T) {
	clk := clock.NewFake(utc(2024, 6, 11, 14, 0))
	live := &fakeSource{release: make(chan struct{})}
	defer close(live.release)
	gate := NewGate(live, nil, clk, 20*time.Millisecond, zerolog.Nop())

	status := gate.Status(context.Background(), "AAPL", "")
	assert.True(t, status.Fallback)
	assert.True(t, status.IsOpen)
}

func TestGate_IsAnyOpen(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"both open", utc(2024, 6, 11, 14, 0), true},
		{"only us", utc(2024, 6, 11, 18, 0), true},
		{"only eu", utc(2024, 6, 11, 7, 0), true},
		{"weekend", utc(2024, 6, 15, 14, 0), false},
		{"night", utc(2024, 6, 11, 2, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := newTestGate(nil, clock.NewFake(tt.at))
			assert.Equal(t, tt.want, gate.IsAnyOpen(context.Background()))
		})
	}
}

func TestGate_Regions(t *testing.T) {
	gate := newTestGate(nil, clock.NewFake(utc(2024, 6, 11, 18, 0)))
	regions := gate.Regions(context.Background())
	require.Len(t, regions, 2)
	assert.Equal(t, domain.RegionUS, regions[0].Region)
	assert.True(t, regions[0].IsOpen)
	assert.Equal(t, domain.RegionEU, regions[1].Region)
	assert.False(t, regions[1].IsOpen)
}
