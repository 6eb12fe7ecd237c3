// Package events records an append-only audit trail of resource activity.
// Recording is best-effort: a failed insert is logged and never fails the
// operation that produced it.
package events
