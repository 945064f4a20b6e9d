// Package database selects and wires a metadata backend for shelfkeep.
//
// Three backends implement the shelfkeep.BookRepo contract:
//
//   - jsonfile: one structured JSON file, full-file atomic rewrites,
//     writes serialized behind an in-process mutex. The original
//     single-user deployment format.
//   - sqlite: embedded relational store (modernc.org/sqlite, no cgo).
//   - postgres: relational store with a foreign-key cascade from covers
//     to books (jackc/pgx).
//
// The backend is chosen exactly once, at process start, from configuration;
// nothing re-reads the selection mid-operation. Connect runs migrations for
// the relational backends and initializes the data file for jsonfile before
// returning.
package database
