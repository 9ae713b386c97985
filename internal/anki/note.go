package anki

import (
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/k3a/html2text"
)

// fieldSeparator joins note fields in the flds column
const fieldSeparator = "\x1f"

// Note is a single Anki note
type Note struct {
	ID      int64
	GUID    string
	ModelID int64
	Mod     int64
	Tags    []string
	Fields  []string
}

// NewNote returns an unsaved note of the given type with empty fields
func NewNote(m *Model) *Note {
	return &Note{
		ModelID: m.ID,
		Fields:  make([]string, len(m.Fields)),
	}
}

// Field returns the field at index i, or "" when out of range
func (n *Note) Field(i int) string {
	if i < 0 || i >= len(n.Fields) {
		return ""
	}
	return n.Fields[i]
}

// SetField sets the field at index i
func (n *Note) SetField(i int, value string) error {
	if i < 0 || i >= len(n.Fields) {
		return fmt.Errorf("field index %d out of range (note has %d fields)", i, len(n.Fields))
	}
	n.Fields[i] = value
	return nil
}

// HasTag reports whether the note carries tag, ignoring case
func (n *Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// AddTag adds tag unless the note already has it
func (n *Note) AddTag(tag string) {
	if !n.HasTag(tag) {
		n.Tags = append(n.Tags, tag)
	}
}

// DelTag removes every spelling of tag from the note
func (n *Note) DelTag(tag string) {
	kept := n.Tags[:0]
	for _, t := range n.Tags {
		if !strings.EqualFold(t, tag) {
			kept = append(kept, t)
		}
	}
	n.Tags = kept
}

// joinTags renders tags the way Anki stores them: space separated with a
// leading and trailing space so LIKE '% tag %' matches whole tags
func joinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " " + strings.Join(tags, " ") + " "
}

func splitTags(s string) []string {
	return strings.Fields(s)
}

// stripHTML reduces a field to the text Anki compares: tags removed and
// entities decoded
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(html2text.HTML2Text(s))
}

// fieldChecksum is the first 8 hex digits of the sha1 of the stripped first
// field, which Anki uses for duplicate detection
func fieldChecksum(s string) int64 {
	sum := sha1.Sum([]byte(stripHTML(s)))
	v, _ := strconv.ParseInt(hex.EncodeToString(sum[:])[:8], 16, 64)
	return v
}

func (c *Collection) sortField(n *Note) string {
	if m, ok := c.models[n.ModelID]; ok {
		return stripHTML(n.Field(m.SortField))
	}
	return stripHTML(n.Field(0))
}

// AddNote inserts the note with one new card per template into deckID and
// fills in its id and guid
func (c *Collection) AddNote(n *Note, deckID int64) error {
	m, ok := c.models[n.ModelID]
	if !ok {
		return fmt.Errorf("note type %d: %w", n.ModelID, ErrNotFound)
	}
	if len(n.Fields) != len(m.Fields) {
		return fmt.Errorf("note has %d fields, note type %q has %d", len(n.Fields), m.Name, len(m.Fields))
	}
	if _, ok := c.decks[deckID]; !ok {
		return fmt.Errorf("deck %d: %w", deckID, ErrNotFound)
	}

	n.ID = c.nextID()
	n.GUID = uuid.New().String()
	n.Mod = time.Now().Unix()
	c.registerTags(n.Tags)

	_, err := c.tx.Exec(`INSERT INTO notes VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.GUID,
		n.ModelID,
		n.Mod,
		-1, // usn
		joinTags(n.Tags),
		strings.Join(n.Fields, fieldSeparator),
		c.sortField(n),
		fieldChecksum(n.Field(0)),
		0,  // flags
		"", // data
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}

	templates := m.Templates
	if templates < 1 {
		templates = 1
	}
	for ord := 0; ord < templates; ord++ {
		_, err := c.tx.Exec(`INSERT INTO cards VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.nextID(),
			n.ID,
			deckID,
			ord,
			n.Mod,
			-1,   // usn
			0,    // type (new)
			0,    // queue (new)
			n.ID, // due (new cards use note id for ordering)
			0,    // ivl
			0,    // factor
			0,    // reps
			0,    // lapses
			0,    // left
			0,    // odue
			0,    // odid
			0,    // flags
			"",   // data
		)
		if err != nil {
			return fmt.Errorf("failed to insert card: %w", err)
		}
	}

	return nil
}

// GetNote loads a note by id
func (c *Collection) GetNote(id int64) (*Note, error) {
	var n Note
	var tags, flds string
	err := c.tx.QueryRow(`SELECT id, guid, mid, mod, tags, flds FROM notes WHERE id = ?`, id).
		Scan(&n.ID, &n.GUID, &n.ModelID, &n.Mod, &tags, &flds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load note %d: %w", id, err)
	}

	n.Tags = splitTags(tags)
	n.Fields = strings.Split(flds, fieldSeparator)
	return &n, nil
}

// UpdateNote writes a modified note's fields and tags
func (c *Collection) UpdateNote(n *Note) error {
	n.Mod = time.Now().Unix()
	c.registerTags(n.Tags)

	res, err := c.tx.Exec(`UPDATE notes SET mod = ?, usn = -1, tags = ?, flds = ?, sfld = ?, csum = ? WHERE id = ?`,
		n.Mod,
		joinTags(n.Tags),
		strings.Join(n.Fields, fieldSeparator),
		c.sortField(n),
		fieldChecksum(n.Field(0)),
		n.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update note %d: %w", n.ID, err)
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("note %d: %w", n.ID, ErrNotFound)
	}
	return nil
}
