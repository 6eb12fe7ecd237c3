// Package sharing persists explicit role grants over directories and
// documents, and issues the rotating link tokens that substitute for
// principal identity.
package sharing
