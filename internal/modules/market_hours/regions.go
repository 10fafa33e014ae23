package market_hours

import (
	"strings"
	"unicode"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

// euSymbolSuffixes are ticker suffixes of European venues (Yahoo/Finnhub style)
var euSymbolSuffixes = map[string]bool{
	"PA": true, // Euronext Paris
	"DE": true, // XETRA
	"F":  true, // Frankfurt
	"L":  true, // London
	"AS": true, // Amsterdam
	"BR": true, // Brussels
	"LS": true, // Lisbon
	"MI": true, // Milan
	"MC": true, // Madrid
	"SW": true, // SIX Swiss
	"VI": true, // Vienna
	"ST": true, // Stockholm
	"HE": true, // Helsinki
	"CO": true, // Copenhagen
	"OL": true, // Oslo
	"IR": true, // Dublin
	"AT": true, // Athens
}

// euExchangeTokens are exchange names and MIC codes of European venues
var euExchangeTokens = map[string]bool{
	"LSE": true, "LONDON": true, "XLON": true,
	"XETRA": true, "XETR": true, "FRANKFURT": true, "FWB": true, "GER": true,
	"EURONEXT": true, "PARIS": true, "XPAR": true, "EPA": true,
	"AMSTERDAM": true, "XAMS": true, "BRUSSELS": true, "XBRU": true,
	"LISBON": true, "XLIS": true, "MILAN": true, "XMIL": true, "BIT": true,
	"MADRID": true, "BME": true, "XMAD": true, "SIX": true, "XSWX": true,
	"VIENNA": true, "XWBO": true, "STOCKHOLM": true, "XSTO": true,
	"HELSINKI": true, "XHEL": true, "COPENHAGEN": true, "XCSE": true,
	"OSLO": true, "XOSL": true, "DUBLIN": true, "XDUB": true,
	"ATHENS": true, "ASEX": true,
}

// usExchangeTokens mark US venues
var usExchangeTokens = map[string]bool{
	"NASDAQ": true, "NASDAQGS": true, "NASDAQCM": true, "NASDAQGM": true, "XNAS": true,
	"NYSE": true, "XNYS": true, "ARCA": true, "AMEX": true, "BATS": true, "US": true,
}

// ResolveRegion maps a symbol (or a literal region name) plus an optional exchange
// hint to a calendar region. European suffixes or exchanges win, then US venues,
// then undotted symbols default to US. Everything else is OTHER.
func ResolveRegion(symbolOrRegion, exchangeHint string) domain.Region {
	symbol := strings.ToUpper(strings.TrimSpace(symbolOrRegion))
	hint := strings.ToUpper(strings.TrimSpace(exchangeHint))

	switch domain.Region(symbol) {
	case domain.RegionUS, domain.RegionEU, domain.RegionOther:
		if hint == "" {
			return domain.Region(symbol)
		}
	}

	if hasToken(hint, euExchangeTokens) {
		return domain.RegionEU
	}

	suffix := ""
	if i := strings.LastIndex(symbol, "."); i >= 0 {
		suffix = symbol[i+1:]
	}
	if suffix != "" && euSymbolSuffixes[suffix] {
		return domain.RegionEU
	}

	if hasToken(hint, usExchangeTokens) {
		return domain.RegionUS
	}
	if !strings.Contains(symbol, ".") {
		return domain.RegionUS
	}
	return domain.RegionOther
}

// hasToken splits s on non-alphanumerics and reports whether any token (or the
// whole string with separators removed) is in set.
func hasToken(s string, set map[string]bool) bool {
	if s == "" {
		return false
	}
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if set[tok] {
			return true
		}
	}
	return set[strings.Join(tokens, "")]
}
