// Package resources persists the directory tree and the documents inside
// it, tenant-scoped by domain throughout.
package resources
