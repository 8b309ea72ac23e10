// Package session provides SessionStore implementations. The in-memory
// store here suits tests and single-process use; the libsql subpackage
// offers a durable SQL-backed store behind the same narrow interface.
package session
