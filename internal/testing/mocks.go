package testing

import (
	"context"
	"sync"
	"time"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

// MockMarketData is a scripted domain.MarketDataProvider.
// Errors are looked up per symbol; calls are recorded.
type MockMarketData struct {
	mu            sync.Mutex
	SnapshotErrs  map[string]error
	HistoryErrs   map[string]error
	Price         float64
	HistoryLength int
	snapshotCalls []string
	historyCalls  []string
}

// NewMockMarketData creates a provider that succeeds for every symbol
func NewMockMarketData() *MockMarketData {
	return &MockMarketData{
		SnapshotErrs:  make(map[string]error),
		HistoryErrs:   make(map[string]error),
		Price:         100,
		HistoryLength: 60,
	}
}

func (m *MockMarketData) FetchSnapshot(ctx context.Context, symbol string) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshotCalls = append(m.snapshotCalls, symbol)
	if err := m.SnapshotErrs[symbol]; err != nil {
		return nil, err
	}
	return NewSnapshotFixture(symbol, m.Price, time.Now().UTC()), nil
}

func (m *MockMarketData) FetchHistory(ctx context.Context, symbol string, days int) ([]domain.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyCalls = append(m.historyCalls, symbol)
	if err := m.HistoryErrs[symbol]; err != nil {
		return nil, err
	}
	n := m.HistoryLength
	if days > 0 && days < n {
		n = days
	}
	return NewCandleSeries(n, m.Price, time.Now().UTC()), nil
}

// SnapshotCalls returns the symbols passed to FetchSnapshot, in order
func (m *MockMarketData) SnapshotCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.snapshotCalls...)
}

// HistoryCalls returns the symbols passed to FetchHistory, in order
func (m *MockMarketData) HistoryCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.historyCalls...)
}

// MockAnalyzer is a scripted domain.AnalysisProvider
type MockAnalyzer struct {
	mu      sync.Mutex
	Label   string
	Err     error
	Content string
	prompts []string
}

func (m *MockAnalyzer) Name() string {
	if m.Label == "" {
		return "mock"
	}
	return m.Label
}

func (m *MockAnalyzer) GenerateAnalysis(ctx context.Context, prompt string) (*domain.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	content := m.Content
	if content == "" {
		content = "risk: moderate"
	}
	return &domain.Analysis{
		CreatedAt: time.Now().UTC(),
		Provider:  m.Name(),
		Model:     "mock-1",
		Content:   content,
	}, nil
}

// Prompts returns every prompt received
func (m *MockAnalyzer) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// MockCatalog is a fixed domain.InstrumentCatalog
type MockCatalog struct {
	Targets []domain.SyncTarget
	Err     error
}

func (m *MockCatalog) ListTracked(ctx context.Context) ([]domain.SyncTarget, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]domain.SyncTarget(nil), m.Targets...), nil
}
