package ports

import "errors"

// Standard application-level errors.
// Adapters wrap infrastructure errors with these so callers can match with errors.Is.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Calculation input errors. These reject the triggering operation and leave stored fields untouched.
	ErrStopAboveEntry   = errors.New("stop3 must be below purchase price")
	ErrOverExit         = errors.New("exited shares exceed shares bought")
	ErrNonPositiveInput = errors.New("value must be positive")

	// Market Data Errors
	ErrMarketDataUnavailable = errors.New("market data unavailable")
	ErrProviderUnavailable   = errors.New("market data provider is unavailable")
	ErrRateLimited           = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed  = errors.New("market data authentication failed (check API key)")
	ErrUnknownTicker         = errors.New("ticker not known to provider")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
	ErrDeleteFailed   = errors.New("database delete failed")
)
