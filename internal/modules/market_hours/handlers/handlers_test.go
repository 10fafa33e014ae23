package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/market_hours"
)

// 2024-06-11 is a Tuesday; 14:00 UTC is 10:00 New York and 16:00 Berlin
var testNow = time.Date(2024, 6, 11, 14, 0, 0, 0, time.UTC)

func newTestRouter() chi.Router {
	clk := clock.NewFake(testNow)
	gate := market_hours.NewGate(nil, market_hours.NewStatusCache(time.Minute, clk), clk, time.Second, zerolog.Nop())
	handler := NewHandler(gate, zerolog.Nop())

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return r
}

func TestHandleGetStatus(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name       string
		path       string
		wantRegion string
		wantOpen   bool
	}{
		{"us symbol", "/api/market-hours/status/AAPL", "US", true},
		{"eu suffix", "/api/market-hours/status/SAP.DE", "EU", true},
		{"exchange hint", "/api/market-hours/status/VOD?exchange=LSE", "EU", true},
		{"region name", "/api/market-hours/status/US", "US", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)

			var response struct {
				Data struct {
					Status market_hours.MarketStatus `json:"status"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.wantRegion, string(response.Data.Status.Region))
			assert.Equal(t, tt.wantOpen, response.Data.Status.IsOpen)
			assert.True(t, response.Data.Status.Fallback)
		})
	}
}

func TestHandleGetRegions(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/market-hours/regions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Len(t, data["regions"], 2)
	assert.Equal(t, float64(2), data["open_count"])
	assert.Equal(t, true, data["any_open"])
}

func TestHandleGetStatus_EmptySymbol(t *testing.T) {
	handler := NewHandler(stubGate{}, zerolog.Nop())
	w := httptest.NewRecorder()
	handler.HandleGetStatus(w, httptest.NewRequest(http.MethodGet, "/", nil), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubGate struct{}

func (stubGate) Status(context.Context, string, string) market_hours.MarketStatus {
	return market_hours.MarketStatus{}
}

func (stubGate) Regions(context.Context) []market_hours.MarketStatus { return nil }
