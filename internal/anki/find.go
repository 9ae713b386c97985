package anki

import (
	"fmt"
	"strings"
)

// FindByField returns ids of notes whose named field equals value exactly,
// across every note type that has such a field
func (c *Collection) FindByField(field, value string) ([]int64, error) {
	var ids []int64
	for _, m := range c.Models() {
		idx := m.FieldIndex(field)
		if idx < 0 {
			continue
		}

		rows, err := c.tx.Query(`SELECT id, flds FROM notes WHERE mid = ? ORDER BY id`, m.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to search notes: %w", err)
		}

		for rows.Next() {
			var id int64
			var flds string
			if err := rows.Scan(&id, &flds); err != nil {
				rows.Close()
				return nil, err
			}
			fields := strings.Split(flds, fieldSeparator)
			if idx < len(fields) && fields[idx] == value {
				ids = append(ids, id)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}

	return ids, nil
}

// FindByTags returns ids of notes carrying all of the given tags
func (c *Collection) FindByTags(tags ...string) ([]int64, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("no tags given")
	}

	var where []string
	var args []interface{}
	for _, tag := range tags {
		where = append(where, `tags LIKE ? ESCAPE '\'`)
		args = append(args, "% "+escapeLike(tag)+" %")
	}

	rows, err := c.tx.Query(`SELECT id FROM notes WHERE `+strings.Join(where, " AND ")+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search tags: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// FindEmptyField returns ids of notes in deck (or its subdecks) whose named
// field is empty and which do not carry excludeTag
func (c *Collection) FindEmptyField(deckName, field, excludeTag string) ([]int64, error) {
	deck, err := c.DeckByName(deckName)
	if err != nil {
		return nil, err
	}

	var deckIDs []interface{}
	var marks []string
	prefix := strings.ToLower(deck.Name) + "::"
	for _, d := range c.decks {
		if d.ID == deck.ID || strings.HasPrefix(strings.ToLower(d.Name), prefix) {
			deckIDs = append(deckIDs, d.ID)
			marks = append(marks, "?")
		}
	}

	query := `SELECT DISTINCT n.id, n.mid, n.tags, n.flds FROM notes n
		JOIN cards c ON c.nid = n.id
		WHERE c.did IN (` + strings.Join(marks, ",") + `) ORDER BY n.id`
	rows, err := c.tx.Query(query, deckIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to search deck: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var n Note
		var tags, flds string
		if err := rows.Scan(&n.ID, &n.ModelID, &tags, &flds); err != nil {
			return nil, err
		}

		m, ok := c.models[n.ModelID]
		if !ok {
			continue
		}
		idx := m.FieldIndex(field)
		if idx < 0 {
			continue
		}

		n.Tags = splitTags(tags)
		n.Fields = strings.Split(flds, fieldSeparator)
		if strings.TrimSpace(n.Field(idx)) == "" && (excludeTag == "" || !n.HasTag(excludeTag)) {
			ids = append(ids, n.ID)
		}
	}
	return ids, rows.Err()
}
