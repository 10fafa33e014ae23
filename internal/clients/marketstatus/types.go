package marketstatus

import (
	"fmt"
	"strings"
	"time"
)

// Exchange status values after normalization
const (
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusPreOpen   = "pre_open"
	StatusPostClose = "post_close"
)

// wsMarketData is the payload of a "markets" frame: ["markets", {...}]
type wsMarketData struct {
	Timestamp string     `json:"t"`
	Markets   []wsMarket `json:"m"`
}

// wsMarket is one exchange entry as sent on the wire
type wsMarket struct {
	Name      string `json:"n"`
	Code      string `json:"n2"` // MIC, e.g. XNYS
	Status    string `json:"s"`  // OPEN, CLOSE, PRE_OPEN, POST_CLOSE
	OpenTime  string `json:"o"`
	CloseTime string `json:"c"`
	Date      string `json:"dt"`
}

// ExchangeStatus is the cached status of a single exchange
type ExchangeStatus struct {
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	OpenTime  string    `json:"open_time"`
	CloseTime string    `json:"close_time"`
	Date      string    `json:"date"`
}

func normalizeStatus(raw string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "OPEN":
		return StatusOpen, nil
	case "CLOSE", "CLOSED":
		return StatusClosed, nil
	case "PRE_OPEN", "PREOPEN":
		return StatusPreOpen, nil
	case "POST_CLOSE", "POSTCLOSE":
		return StatusPostClose, nil
	default:
		return "", fmt.Errorf("unknown market status %q", raw)
	}
}

// transformMarkets keys wire entries by exchange code. Entries without a code
// or with an unknown status are dropped.
func transformMarkets(markets []wsMarket, at time.Time) (map[string]ExchangeStatus, []error) {
	out := make(map[string]ExchangeStatus, len(markets))
	var errs []error
	for _, m := range markets {
		code := strings.ToUpper(strings.TrimSpace(m.Code))
		if code == "" {
			errs = append(errs, fmt.Errorf("market %q has no code", m.Name))
			continue
		}
		status, err := normalizeStatus(m.Status)
		if err != nil {
			errs = append(errs, fmt.Errorf("market %s: %w", code, err))
			continue
		}
		out[code] = ExchangeStatus{
			UpdatedAt: at,
			Name:      m.Name,
			Code:      code,
			Status:    status,
			OpenTime:  m.OpenTime,
			CloseTime: m.CloseTime,
			Date:      m.Date,
		}
	}
	return out, errs
}
