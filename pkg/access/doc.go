// Package access resolves the effective role a principal holds over a
// directory or document, combining ownership, domain-admin standing, link
// grants, and explicit shares under one total order.
package access
