// Package postgres implements the insight and user repositories on PostgreSQL.
//
// Schema migrations are embedded and applied with tern under an advisory lock,
// so several instances can start at once.
package postgres
