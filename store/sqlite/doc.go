// Package sqlite is a [authsession.PrincipalStore] backed by SQLite through
// modernc.org/sqlite. The schema ships as embedded golang-migrate
// migrations; call [Store.ApplyMigrations] once after opening.
package sqlite
