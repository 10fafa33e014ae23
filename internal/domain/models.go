// Package domain provides core domain models and types.
package domain

import "time"

// Region represents a trading-calendar region
type Region string

const (
	RegionUS    Region = "US"
	RegionEU    Region = "EU"
	RegionOther Region = "OTHER"
)

// SyncTarget is a tracked instrument eligible for periodic sync.
type SyncTarget struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Name     string `json:"name,omitempty"`
}

// Snapshot is a point-in-time price read for one instrument
type Snapshot struct {
	FetchedAt     time.Time `json:"fetched_at"`
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	PreviousClose float64   `json:"previous_close"`
	Timestamp     int64     `json:"timestamp"` // Provider quote time (unix seconds)
}

// Candle is one daily OHLCV bar.
type Candle struct {
	Time   int64   `json:"t" msgpack:"t"` // Unix seconds
	Open   float64 `json:"o" msgpack:"o"`
	High   float64 `json:"h" msgpack:"h"`
	Low    float64 `json:"l" msgpack:"l"`
	Close  float64 `json:"c" msgpack:"c"`
	Volume float64 `json:"v" msgpack:"v"`
}

// Analysis is the output of an AI analysis provider
type Analysis struct {
	CreatedAt time.Time `json:"created_at"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Content   string    `json:"content"`
}
