// Package catalog keeps a SQLite record of reduction runs: the run
// configuration, its inputs and the per-order outcome.
//
// The database is opened in WAL mode and migrated on open from the SQL
// files embedded in the migrations package.
package catalog
