// Package pgstore is a PostgreSQL implementation of the versioned verification
// store, using database/sql with the pgx stdlib driver.
//
// All rows live in one table keyed by (phone, version). Version 0 is the
// pointer row carrying latest; attempt rows carry id, created, secret,
// attempts and verified. Advancing a chain is a conditional UPDATE on the
// pointer row followed by the attempt INSERT inside one transaction, so the
// row lock on the pointer serializes concurrent writers.
//
// Errors are the sentinels of package verification.
package pgstore
