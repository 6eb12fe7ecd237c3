// Package api wires the HTTP surface: routing, request decoding, access
// gates, and status mapping. Business rules live in the tenancy, access,
// hierarchy, and sharing packages; handlers here stay thin.
package api
