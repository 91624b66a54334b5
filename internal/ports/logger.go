package ports

import "context"

// Logger is the logging port used by every component.
// Fields are optional; only the first map is read.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs err alongside msg.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}

// NopLogger discards everything. Handy for tools and tests.
type NopLogger struct{}

func (NopLogger) Debug(context.Context, string, ...map[string]interface{})        {}
func (NopLogger) Info(context.Context, string, ...map[string]interface{})         {}
func (NopLogger) Warn(context.Context, string, ...map[string]interface{})         {}
func (NopLogger) Error(context.Context, error, string, ...map[string]interface{}) {}
