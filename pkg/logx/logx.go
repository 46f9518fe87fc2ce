// Package logx provides domain-tagged structured logging for the hub.
//
// Every component gets its own named logger (logx.NewLogger("statestore"),
// logx.NewLogger("supervisor"), ...) so log lines are greppable by
// subsystem. Output is backed by zerolog; format and debug verbosity are
// controlled entirely by environment variables so the hub never needs a
// config file just to get useful logs during bootstrap:
//
//	DEBUG=1                 enable debug-level logging
//	DEBUG_DOMAINS=a,b,c     restrict debug logging to these domains (default: all)
//	CODEX_AUTORUNNER_LOG_FORMAT=json|console   output encoding (default: console)
package logx

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	debugMu      sync.RWMutex
	debugEnabled bool
	debugDomains map[string]bool // nil/empty means "all domains"

	baseOnce   sync.Once
	baseLogger zerolog.Logger
)

func init() { //nolint:gochecknoinits // environment-driven defaults, mirrors teacher's debug bootstrap
	initDebugFromEnv()
}

func initDebugFromEnv() {
	debugMu.Lock()
	defer debugMu.Unlock()

	v := os.Getenv("DEBUG")
	debugEnabled = v == "1" || strings.EqualFold(v, "true")

	debugDomains = nil
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugDomains = make(map[string]bool)
		for _, d := range strings.Split(domains, ",") {
			d = strings.TrimSpace(d)
			if d != "" {
				debugDomains[d] = true
			}
		}
	}
}

func base() zerolog.Logger {
	baseOnce.Do(func() {
		format := os.Getenv("CODEX_AUTORUNNER_LOG_FORMAT")
		var w = os.Stderr
		if format == "json" {
			baseLogger = zerolog.New(w).With().Timestamp().Logger()
			return
		}
		baseLogger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	})
	return baseLogger
}

// SetDebugConfig overrides the debug enablement programmatically (used by tests).
func SetDebugConfig(enabled bool, domains ...string) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugEnabled = enabled
	if len(domains) == 0 {
		debugDomains = nil
		return
	}
	debugDomains = make(map[string]bool, len(domains))
	for _, d := range domains {
		debugDomains[d] = true
	}
}

// IsDebugEnabled reports whether debug logging is globally enabled.
func IsDebugEnabled() bool {
	debugMu.RLock()
	defer debugMu.RUnlock()
	return debugEnabled
}

// IsDebugEnabledForDomain reports whether debug logging is enabled for a
// specific domain, honoring DEBUG_DOMAINS filtering.
func IsDebugEnabledForDomain(domain string) bool {
	debugMu.RLock()
	defer debugMu.RUnlock()
	if !debugEnabled {
		return false
	}
	if len(debugDomains) == 0 {
		return true
	}
	return debugDomains[domain]
}

// Logger is a domain-scoped logger. The zero value is not usable; construct
// one with NewLogger.
type Logger struct {
	domain string
	z      zerolog.Logger
}

// NewLogger returns a logger tagged with the given domain (e.g. "statestore",
// "supervisor", "flowruntime", "eventbus", "delivery", "destination").
func NewLogger(domain string) *Logger {
	return &Logger{
		domain: domain,
		z:      base().With().Str("domain", domain).Logger(),
	}
}

// WithField returns a derived logger carrying an additional structured field,
// useful for tagging a logger with a run_id or session_id for the lifetime of
// a flow run or agent session.
func (l *Logger) WithField(key, value string) *Logger {
	return &Logger{domain: l.domain, z: l.z.With().Str(key, value).Logger()}
}

// Domain returns the logger's domain tag.
func (l *Logger) Domain() string { return l.domain }

// Debug logs a debug-level message if debugging is enabled for this logger's domain.
func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabledForDomain(l.domain) {
		return
	}
	l.z.Debug().Msgf(format, args...)
}

// Info logs an info-level message.
func (l *Logger) Info(format string, args ...any) {
	l.z.Info().Msgf(format, args...)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(format string, args ...any) {
	l.z.Warn().Msgf(format, args...)
}

// Error logs an error-level message.
func (l *Logger) Error(format string, args ...any) {
	l.z.Error().Msgf(format, args...)
}

// contextKey namespaces values this package stores in a context.Context.
type contextKey string

const domainKey contextKey = "logx_domain"

// WithDomain returns a context carrying the given logging domain, used by
// the package-level Debug helper below for call sites that don't have a
// *Logger handy (e.g. deep in a call chain that only carries a context).
func WithDomain(ctx context.Context, domain string) context.Context {
	return context.WithValue(ctx, domainKey, domain)
}

// Debug logs a debug message for the domain carried on ctx, if any.
func Debug(ctx context.Context, domain, format string, args ...any) {
	if d, ok := ctx.Value(domainKey).(string); ok && d != "" {
		domain = d
	}
	if !IsDebugEnabledForDomain(domain) {
		return
	}
	base().With().Str("domain", domain).Logger().Debug().Msgf(format, args...)
}
