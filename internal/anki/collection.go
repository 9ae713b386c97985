package anki

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrLocked is returned by Open when another process holds the collection
	ErrLocked = errors.New("collection is locked by another process")
	// ErrNotFound is returned when a note, model or deck does not exist
	ErrNotFound = errors.New("not found")
)

// Collection is an open Anki collection. All changes happen inside a single
// exclusive transaction that Save commits and reopens, so nothing reaches
// disk before the first Save and no other process can write meanwhile.
type Collection struct {
	path string
	db   *sql.DB
	tx   *sql.Tx

	models map[int64]*Model
	decks  map[int64]*Deck
	tags   map[string]int // tag registry, name -> usn

	// raw JSON of every model keyed by id, round-tripped on save
	rawModels map[string]map[string]interface{}
	changed   map[int64]bool // note types touched by SaveModel
	dirty     bool
	lastID    int64
	closed    bool
}

// Open opens the collection at path and takes the exclusive write lock
func Open(path string) (*Collection, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("collection not found: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_txlock=exclusive&_busy_timeout=250")
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}
	// one connection carries the transaction and every query
	db.SetMaxOpenConns(1)

	c := &Collection{path: path, db: db, changed: make(map[int64]bool)}
	if err := c.begin(); err != nil {
		db.Close()
		return nil, err
	}

	if err := c.load(); err != nil {
		c.tx.Rollback()
		db.Close()
		return nil, err
	}

	return c, nil
}

// Path returns the collection file path
func (c *Collection) Path() string {
	return c.path
}

// MediaDir returns the collection's media folder
func (c *Collection) MediaDir() string {
	return mediaDir(c.path)
}

func mediaDir(path string) string {
	return strings.TrimSuffix(path, ".anki2") + ".media"
}

func (c *Collection) begin() error {
	tx, err := c.db.Begin()
	if err != nil {
		if isLocked(err) {
			return ErrLocked
		}
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	c.tx = tx
	return nil
}

func isLocked(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// load reads note types, decks and the tag registry from the col row
func (c *Collection) load() error {
	var modelsJSON, decksJSON, tagsJSON string
	err := c.tx.QueryRow(`SELECT models, decks, tags FROM col`).Scan(&modelsJSON, &decksJSON, &tagsJSON)
	if err != nil {
		if isLocked(err) {
			return ErrLocked
		}
		return fmt.Errorf("not an Anki collection: %w", err)
	}

	if err := c.loadModels(modelsJSON); err != nil {
		return fmt.Errorf("failed to parse note types: %w", err)
	}
	if err := c.loadDecks(decksJSON); err != nil {
		return fmt.Errorf("failed to parse decks: %w", err)
	}

	c.tags = make(map[string]int)
	if err := json.Unmarshal([]byte(tagsJSON), &c.tags); err != nil {
		return fmt.Errorf("failed to parse tags: %w", err)
	}

	var maxID sql.NullInt64
	err = c.tx.QueryRow(`SELECT MAX(id) FROM (SELECT id FROM notes UNION ALL SELECT id FROM cards)`).Scan(&maxID)
	if err != nil {
		return fmt.Errorf("failed to read ids: %w", err)
	}
	c.lastID = maxID.Int64

	return nil
}

func (c *Collection) loadModels(data string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return err
	}

	c.models = make(map[int64]*Model, len(raw))
	c.rawModels = make(map[string]map[string]interface{}, len(raw))
	for _, msg := range raw {
		var mj modelJSON
		if err := json.Unmarshal(msg, &mj); err != nil {
			return err
		}

		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.UseNumber()
		var full map[string]interface{}
		if err := dec.Decode(&full); err != nil {
			return err
		}

		c.models[mj.ID] = mj.model()
		c.rawModels[strconv.FormatInt(mj.ID, 10)] = full
	}

	return nil
}

func (c *Collection) loadDecks(data string) error {
	var raw map[string]struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return err
	}

	c.decks = make(map[int64]*Deck, len(raw))
	for _, d := range raw {
		c.decks[d.ID] = &Deck{ID: d.ID, Name: d.Name}
	}

	return nil
}

// flush writes changed note types and tags back into the col row
func (c *Collection) flush() error {
	now := time.Now()
	if c.dirty {
		for id := range c.changed {
			m := c.models[id]
			full, ok := c.rawModels[strconv.FormatInt(id, 10)]
			if !ok {
				continue
			}
			tags := m.Tags
			if tags == nil {
				tags = []string{}
			}
			full["tags"] = tags
			full["did"] = m.DeckID
			full["mod"] = now.Unix()
			full["usn"] = -1
		}

		modelsJSON, err := json.Marshal(c.rawModels)
		if err != nil {
			return err
		}
		tagsJSON, err := json.Marshal(c.tags)
		if err != nil {
			return err
		}

		if _, err := c.tx.Exec(`UPDATE col SET models = ?, tags = ?`, string(modelsJSON), string(tagsJSON)); err != nil {
			return fmt.Errorf("failed to update collection: %w", err)
		}
		c.dirty = false
		c.changed = make(map[int64]bool)
	}

	_, err := c.tx.Exec(`UPDATE col SET mod = ?`, now.UnixMilli())
	return err
}

// Save commits all pending changes and keeps the collection open
func (c *Collection) Save() error {
	if c.closed {
		return errors.New("collection is closed")
	}
	if err := c.flush(); err != nil {
		return err
	}
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return c.begin()
}

// Close commits pending changes and releases the lock. It is safe to call
// more than once.
func (c *Collection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if err := c.flush(); err != nil {
		errs = append(errs, err)
		c.tx.Rollback()
	} else if err := c.tx.Commit(); err != nil {
		errs = append(errs, fmt.Errorf("failed to commit: %w", err))
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Models returns all note types ordered by name
func (c *Collection) Models() []*Model {
	models := make([]*Model, 0, len(c.models))
	for _, m := range c.models {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models
}

// ModelByName finds a note type by exact name
func (c *Collection) ModelByName(name string) (*Model, error) {
	for _, m := range c.models {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("note type %q: %w", name, ErrNotFound)
}

// DeckByName finds a deck by name, ignoring case like Anki does
func (c *Collection) DeckByName(name string) (*Deck, error) {
	for _, d := range c.decks {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("deck %q: %w", name, ErrNotFound)
}

// SaveModel records changes to a note type's tags and default deck
func (c *Collection) SaveModel(m *Model) error {
	if _, ok := c.models[m.ID]; !ok {
		return fmt.Errorf("note type %d: %w", m.ID, ErrNotFound)
	}
	c.models[m.ID] = m
	c.changed[m.ID] = true
	c.registerTags(m.Tags)
	c.dirty = true
	return nil
}

// CanonifyTags maps tags onto the spelling already registered in the
// collection, registers new ones, and returns them deduplicated and sorted
func (c *Collection) CanonifyTags(tags []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		tag = c.registerTag(tag)
		if key := strings.ToLower(tag); !seen[key] {
			seen[key] = true
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Collection) registerTags(tags []string) {
	for _, tag := range tags {
		c.registerTag(tag)
	}
}

func (c *Collection) registerTag(tag string) string {
	for known := range c.tags {
		if strings.EqualFold(known, tag) {
			return known
		}
	}
	c.tags[tag] = -1
	c.dirty = true
	return tag
}

// nextID returns a millisecond timestamp id, bumped to stay unique within
// this session
func (c *Collection) nextID() int64 {
	id := time.Now().UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return id
}
