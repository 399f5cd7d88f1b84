// Package postgres implements the authcore store contracts on PostgreSQL
// through database/sql and the pgx driver.
//
// The schema lives in migrations/ and is embedded; Migrate applies it with
// golang-migrate. Accounts, APIKeys and Activities share one *sql.DB.
// API key usage is recorded with a single UPDATE so concurrent requests never
// lose increments.
package postgres
