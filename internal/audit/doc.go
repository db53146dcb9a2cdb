// Package audit provides an optional append-only log of render attempts.
//
// Unlike the bounded user-facing history, the audit log records every
// attempt (including failures) and is never truncated by the appliance.
// It is best-effort: audit errors are logged by callers and never fail a
// scheduler tick.
package audit
