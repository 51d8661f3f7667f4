// Package database provides PostgreSQL connection pool management for the
// optional mutation journal.
package database
