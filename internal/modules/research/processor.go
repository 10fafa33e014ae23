package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/marketdata"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/pkg/formulas"
)

// HistorySource is the stored market data a risk analysis is built from
type HistorySource interface {
	GetCandles(ctx context.Context, symbol string) ([]domain.Candle, error)
	GetSnapshot(ctx context.Context, symbol string) (*domain.Snapshot, error)
}

// Processor runs a risk ticket to completion inline
type Processor struct {
	tickets  *Manager
	history  HistorySource
	analyzer domain.AnalysisProvider
	clock    clock.Clock
	log      zerolog.Logger
}

// NewProcessor creates a ticket processor
func NewProcessor(tickets *Manager, history HistorySource, analyzer domain.AnalysisProvider, clk clock.Clock, log zerolog.Logger) *Processor {
	if clk == nil {
		clk = clock.System{}
	}
	return &Processor{
		tickets:  tickets,
		history:  history,
		analyzer: analyzer,
		clock:    clk,
		log:      log.With().Str("component", "ticket_processor").Logger(),
	}
}

// Process claims the ticket, generates the analysis and completes it. Any failure
// after the claim fails the ticket with the error message and is returned.
func (p *Processor) Process(ctx context.Context, ticketID string) (*Ticket, error) {
	ticket, err := p.tickets.Claim(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	log := p.log.With().Str("ticket_id", ticket.ID).Str("subject", ticket.Subject).Logger()

	report, runErr := p.run(ctx, ticket)
	if runErr != nil {
		if _, err := p.tickets.Fail(ctx, ticket.ID, runErr.Error()); err != nil {
			log.Error().Err(err).Msg("Failed to mark ticket failed")
		}
		log.Warn().Err(runErr).Msg("Research ticket failed")
		return nil, runErr
	}

	done, err := p.tickets.Complete(ctx, ticket.ID, report)
	if err != nil {
		log.Error().Err(err).Msg("Failed to mark ticket completed")
		return nil, err
	}

	log.Info().Str("provider", report.Provider).Msg("Research ticket completed")
	return done, nil
}

func (p *Processor) run(ctx context.Context, ticket *Ticket) (*RiskReport, error) {
	var req RiskScanRequest
	if len(ticket.Payload) > 0 {
		if err := json.Unmarshal(ticket.Payload, &req); err != nil {
			return nil, domain.NewPermanentError("decode ticket payload", err)
		}
	}
	if req.Symbol == "" {
		req.Symbol = ticket.Subject
	}
	if req.Symbol == "" {
		return nil, domain.NewPermanentError("process ticket", errors.New("ticket has no symbol"))
	}

	inputs, err := p.buildInputs(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	analysis, err := p.analyzer.GenerateAnalysis(ctx, BuildRiskPrompt(req.Symbol, inputs))
	if err != nil {
		return nil, fmt.Errorf("analysis for %s: %w", req.Symbol, err)
	}

	return &RiskReport{
		GeneratedAt: p.clock.Now(),
		Symbol:      req.Symbol,
		Provider:    analysis.Provider,
		Model:       analysis.Model,
		Analysis:    analysis.Content,
		Inputs:      inputs,
	}, nil
}

// buildInputs computes indicators from stored history. Missing history is not an error.
func (p *Processor) buildInputs(ctx context.Context, symbol string) (RiskInputs, error) {
	var inputs RiskInputs

	candles, err := p.history.GetCandles(ctx, symbol)
	if err != nil && !errors.Is(err, marketdata.ErrNoData) {
		return inputs, err
	}
	inputs = ComputeRiskInputs(candles)

	snap, err := p.history.GetSnapshot(ctx, symbol)
	switch {
	case err == nil:
		price := snap.Price
		inputs.Price = &price
	case !errors.Is(err, marketdata.ErrNoData):
		return inputs, err
	}
	return inputs, nil
}

// ComputeRiskInputs derives indicators from daily candles, oldest first
func ComputeRiskInputs(candles []domain.Candle) RiskInputs {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	inputs := RiskInputs{
		Bars:        len(closes),
		RSI14:       formulas.CalculateRSI(closes, 14),
		SMA50:       formulas.CalculateSMA(closes, 50),
		Volatility:  formulas.AnnualizedVolatility(closes),
		MaxDrawdown: formulas.MaxDrawdown(closes),
	}
	if len(closes) > 0 {
		last := closes[len(closes)-1]
		inputs.LastClose = &last
	}
	return inputs
}

// BuildRiskPrompt renders the analysis request for one instrument
func BuildRiskPrompt(symbol string, in RiskInputs) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Assess the current investment risk of %s.\n", symbol)
	fmt.Fprintf(&sb, "Daily bars available: %d\n", in.Bars)
	writeOptional(&sb, "Latest price", in.Price, "%.2f")
	writeOptional(&sb, "Last close", in.LastClose, "%.2f")
	writeOptional(&sb, "RSI(14)", in.RSI14, "%.1f")
	writeOptional(&sb, "SMA(50)", in.SMA50, "%.2f")
	writeOptional(&sb, "Annualized volatility", in.Volatility, "%.1f%%", 100)
	fmt.Fprintf(&sb, "Max drawdown: %.1f%%\n", in.MaxDrawdown*100)
	sb.WriteString("Respond with a short risk rating (low, medium, high) and the main drivers.")
	return sb.String()
}

func writeOptional(sb *strings.Builder, label string, v *float64, format string, scale ...float64) {
	if v == nil {
		return
	}
	value := *v
	for _, s := range scale {
		value *= s
	}
	fmt.Fprintf(sb, "%s: "+format+"\n", label, value)
}
