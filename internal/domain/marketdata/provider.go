package marketdata

import "context"

// Provider is one external market-data source behind the fallback chain.
// Implementations classify their failures with the pkg/errors sentinels
// (ErrRateLimitExceeded, ErrSymbolNotFound, ErrUnsupportedRequest,
// ErrUnavailable) so the gateway can decide retry-or-advance.
type Provider interface {
	// Name returns the chain identifier ("alphavantage", "finnhub", "yahoo")
	Name() string
	// Supports reports whether the provider implements the request kind
	Supports(kind RequestKind) bool

	FetchQuote(ctx context.Context, ticker string) (*Quote, error)
	FetchProfile(ctx context.Context, ticker string) (*Profile, error)
	FetchHistory(ctx context.Context, ticker string, rng HistoryRange) (*History, error)
}
