// Package auth defines the principal and role types shared by every
// permission decision in the system.
//
// Token issuance and verification are external concerns: request-handling
// code hands this package an already-authenticated Principal (or a raw link
// token string, which pkg/sharing resolves). What lives here is the single
// definition of the role order used by pkg/access and pkg/tenancy.
package auth
