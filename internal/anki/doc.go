// Package anki reads and writes an Anki collection file in place.
//
// A Collection holds the SQLite database in one exclusive transaction from
// Open to Close, so Anki itself cannot open the profile while k2a runs and
// a second k2a process gets ErrLocked. Save commits and starts the next
// transaction. Note types and the tag registry live as JSON in the col
// table and are written back on every Save.
package anki
