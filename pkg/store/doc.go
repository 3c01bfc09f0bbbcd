/*
Package store persists template sources and their compiled programs in an
SQLite database. Sources are keyed by name; compiled programs are cached
against a hash of the source and syntax descriptor, so a stale program is
never served after a template changes. The cache round-trips programs
losslessly through template.EncodeProgram and template.DecodeProgram.

The package is driver-agnostic: callers open the *sql.DB with whichever
SQLite driver suits their build (see cmd/templar's build-tagged setup).
*/
package store
