// Package hierarchy performs structural mutations on the directory tree:
// validated reparenting and cascading subtree deletion.
package hierarchy
