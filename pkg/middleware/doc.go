// Package middleware carries the HTTP middleware chain: principal and
// link-token extraction, then tenant resolution.
package middleware
