// Package repository defines where the virtual network snapshot lives
// between runs.
//
// The server loads the snapshot on boot, saves it after every mutation and
// deletes it on interrupt, so a restart without an interrupt resumes the
// same expansion state.
//
// # Implementations
//
// The jsonfile subpackage writes the snapshot as one JSON document,
// replaced atomically through a temporary file.
//
// The sqlite subpackage stores nodes, edges and expansion records in
// tables, keeping their order, so a snapshot can be inspected with SQL.
package repository
