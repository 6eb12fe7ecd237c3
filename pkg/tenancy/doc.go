// Package tenancy establishes which domain and workspace a request operates
// in. It holds the tenant data model (domains, workspaces, memberships, the
// deprecated per-user workspace list), the resolver that reconciles those
// overlapping access models into one effective tenant context, and the
// idempotent migration that folds legacy list entries into normalized
// membership records.
package tenancy
