package anki

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// CreateOptions describes the deck and note type of a new collection
type CreateOptions struct {
	DeckName  string
	ModelName string
	Fields    []string // note type field names in order
}

// Create builds an empty collection (schema 11) at path with one deck and
// one note type and opens it. The media directory is created alongside.
func Create(path string, opts CreateOptions) (*Collection, error) {
	if len(opts.Fields) == 0 {
		return nil, fmt.Errorf("note type needs at least one field")
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("collection already exists: %s", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	deckID := now.UnixMilli()
	modelID := deckID + 1

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := insertCollection(db, now, deckID, modelID, opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert collection: %w", err)
	}

	if err := db.Close(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(mediaDir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	return Open(path)
}

// createTables creates the required Anki database tables
func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE col (
			id integer PRIMARY KEY,
			crt integer NOT NULL,
			mod integer NOT NULL,
			scm integer NOT NULL,
			ver integer NOT NULL,
			dty integer NOT NULL,
			usn integer NOT NULL,
			ls integer NOT NULL,
			conf text NOT NULL,
			models text NOT NULL,
			decks text NOT NULL,
			dconf text NOT NULL,
			tags text NOT NULL
		)`,
		`CREATE TABLE notes (
			id integer PRIMARY KEY,
			guid text NOT NULL,
			mid integer NOT NULL,
			mod integer NOT NULL,
			usn integer NOT NULL,
			tags text NOT NULL,
			flds text NOT NULL,
			sfld text NOT NULL,
			csum integer NOT NULL,
			flags integer NOT NULL,
			data text NOT NULL
		)`,
		`CREATE TABLE cards (
			id integer PRIMARY KEY,
			nid integer NOT NULL,
			did integer NOT NULL,
			ord integer NOT NULL,
			mod integer NOT NULL,
			usn integer NOT NULL,
			type integer NOT NULL,
			queue integer NOT NULL,
			due integer NOT NULL,
			ivl integer NOT NULL,
			factor integer NOT NULL,
			reps integer NOT NULL,
			lapses integer NOT NULL,
			left integer NOT NULL,
			odue integer NOT NULL,
			odid integer NOT NULL,
			flags integer NOT NULL,
			data text NOT NULL
		)`,
		`CREATE TABLE revlog (
			id integer PRIMARY KEY,
			cid integer NOT NULL,
			usn integer NOT NULL,
			ease integer NOT NULL,
			ivl integer NOT NULL,
			lastIvl integer NOT NULL,
			factor integer NOT NULL,
			time integer NOT NULL,
			type integer NOT NULL
		)`,
		`CREATE TABLE graves (
			usn integer NOT NULL,
			oid integer NOT NULL,
			type integer NOT NULL
		)`,
		`CREATE INDEX ix_notes_csum ON notes (csum)`,
		`CREATE INDEX ix_notes_usn ON notes (usn)`,
		`CREATE INDEX ix_cards_usn ON cards (usn)`,
		`CREATE INDEX ix_cards_nid ON cards (nid)`,
		`CREATE INDEX ix_cards_sched ON cards (did, queue, due)`,
		`CREATE INDEX ix_revlog_usn ON revlog (usn)`,
		`CREATE INDEX ix_revlog_cid ON revlog (cid)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// insertCollection inserts the collection metadata row
func insertCollection(db *sql.DB, now time.Time, deckID, modelID int64, opts CreateOptions) error {
	secs := now.Unix()

	decks := map[string]interface{}{
		"1": deckConfig(1, "Default", secs),
	}
	if opts.DeckName != "" && opts.DeckName != "Default" {
		decks[fmt.Sprintf("%d", deckID)] = deckConfig(deckID, opts.DeckName, secs)
	} else {
		deckID = 1
	}
	decksJSON, _ := json.Marshal(decks)

	models := map[string]interface{}{
		fmt.Sprintf("%d", modelID): noteTypeConfig(modelID, deckID, secs, opts),
	}
	modelsJSON, _ := json.Marshal(models)

	conf := map[string]interface{}{
		"nextPos":       1,
		"estTimes":      true,
		"activeDecks":   []int64{1},
		"sortType":      "noteFld",
		"sortBackwards": false,
		"addToCur":      true,
		"curDeck":       deckID,
		"newSpread":     0,
		"dueCounts":     true,
		"collapseTime":  1200,
		"timeLim":       0,
		"schedVer":      1,
		"curModel":      fmt.Sprintf("%d", modelID),
		"dayLearnFirst": false,
	}
	confJSON, _ := json.Marshal(conf)

	dconf := map[string]interface{}{
		"1": map[string]interface{}{
			"id":   1,
			"name": "Default",
			"dyn":  0,
			"new": map[string]interface{}{
				"delays":        []int{1, 10},
				"ints":          []int{1, 4, 7},
				"initialFactor": 2500,
				"perDay":        20,
				"order":         1,
				"bury":          true,
				"separate":      true,
			},
			"lapse": map[string]interface{}{
				"delays":      []int{10},
				"mult":        0,
				"minInt":      1,
				"leechFails":  8,
				"leechAction": 0,
			},
			"rev": map[string]interface{}{
				"perDay":   100,
				"ease4":    1.3,
				"fuzz":     0.05,
				"maxIvl":   36500,
				"ivlFct":   1,
				"bury":     true,
				"minSpace": 1,
			},
			"timer":    0,
			"maxTaken": 60,
			"usn":      0,
			"mod":      secs,
			"autoplay": true,
			"replayq":  true,
		},
	}
	dconfJSON, _ := json.Marshal(dconf)

	query := `INSERT INTO col VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.Exec(query,
		1,         // id
		secs,      // crt
		secs*1000, // mod
		secs*1000, // scm
		11,        // ver (schema version)
		0,         // dty
		0,         // usn
		0,         // ls
		string(confJSON),
		string(modelsJSON),
		string(decksJSON),
		string(dconfJSON),
		"{}", // tags
	)
	return err
}

func deckConfig(id int64, name string, mod int64) map[string]interface{} {
	return map[string]interface{}{
		"id":               id,
		"name":             name,
		"mod":              mod,
		"desc":             "",
		"collapsed":        false,
		"dyn":              0,
		"conf":             1,
		"usn":              0,
		"newToday":         []int{0, 0},
		"revToday":         []int{0, 0},
		"lrnToday":         []int{0, 0},
		"timeToday":        []int{0, 0},
		"browserCollapsed": false,
		"extendNew":        10,
		"extendRev":        50,
	}
}

// noteTypeConfig creates the note type configuration with a single
// recognition template: the first field on the front, the rest on the back
func noteTypeConfig(modelID, deckID, mod int64, opts CreateOptions) map[string]interface{} {
	name := opts.ModelName
	if name == "" {
		name = "Japanese (k2a)"
	}

	flds := make([]map[string]interface{}, 0, len(opts.Fields))
	back := make([]string, 0, len(opts.Fields))
	for i, field := range opts.Fields {
		flds = append(flds, map[string]interface{}{
			"name":   field,
			"ord":    i,
			"sticky": false,
			"rtl":    false,
			"font":   "Arial",
			"size":   20,
			"media":  []string{},
		})
		if i > 0 {
			back = append(back, fmt.Sprintf("{{#%[1]s}}<div class=\"field\">{{%[1]s}}</div>{{/%[1]s}}", field))
		}
	}

	return map[string]interface{}{
		"id":    modelID,
		"name":  name,
		"type":  0,
		"mod":   mod,
		"usn":   -1,
		"sortf": 0,
		"did":   deckID,
		"req":   [][]interface{}{{0, "all", []int{0}}},
		"vers":  []int{},
		"tags":  []string{},
		"latexPre": `\documentclass[12pt]{article}
\special{papersize=3in,5in}
\usepackage[utf8]{inputenc}
\usepackage{amssymb,amsmath}
\pagestyle{empty}
\setlength{\parindent}{0in}
\begin{document}`,
		"latexPost": `\end{document}`,
		"flds":      flds,
		"tmpls": []map[string]interface{}{
			{
				"name":  "Recognition",
				"ord":   0,
				"qfmt":  fmt.Sprintf(`<div class="expression">{{%s}}</div>`, opts.Fields[0]),
				"afmt":  "{{FrontSide}}\n\n<hr id=\"answer\">\n\n" + strings.Join(back, "\n"),
				"did":   nil,
				"bqfmt": "",
				"bafmt": "",
			},
		},
		"css": `.card {
  font-family: "Hiragino Sans", "Noto Sans JP", sans-serif;
  font-size: 20px;
  text-align: center;
  color: #333;
  background-color: white;
}

.expression {
  font-size: 40px;
  margin: 20px 0;
}

.field {
  margin: 10px 0;
}`,
	}
}
