package batch

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// KindleError means the Kindle vocabulary database could not be read
type KindleError struct {
	Path string
	Err  error
}

func (e *KindleError) Error() string {
	return fmt.Sprintf("kindle vocabulary %s: %v", e.Path, e.Err)
}

func (e *KindleError) Unwrap() error { return e.Err }

const kindleQuery = `SELECT w.stem, COALESCE(l.usage, '')
	FROM LOOKUPS l
	JOIN WORDS w ON l.word_key = w.id
	WHERE w.lang = ?
	ORDER BY l.timestamp, l.id`

// ReadKindleVocab reads the words looked up on a Kindle from its vocab.db,
// oldest lookup first. The usage sentence of the first lookup of a stem is
// kept, later lookups of the same stem are dropped.
func ReadKindleVocab(path, lang string) ([]Entry, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &KindleError{Path: path, Err: err}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, &KindleError{Path: path, Err: err}
	}
	defer db.Close()

	rows, err := db.Query(kindleQuery, lang)
	if err != nil {
		return nil, &KindleError{Path: path, Err: err}
	}
	defer rows.Close()

	var entries []Entry
	seen := make(map[string]bool)
	for rows.Next() {
		var stem, usage string
		if err := rows.Scan(&stem, &usage); err != nil {
			return nil, &KindleError{Path: path, Err: err}
		}
		stem = normalize(stem)
		if stem == "" || seen[stem] {
			continue
		}
		seen[stem] = true
		entries = append(entries, Entry{Expression: stem, Sentence: normalize(usage)})
	}
	if err := rows.Err(); err != nil {
		return nil, &KindleError{Path: path, Err: err}
	}

	return entries, nil
}
