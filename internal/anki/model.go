package anki

import (
	"sort"
	"strings"
)

// Model is an Anki note type
type Model struct {
	ID        int64
	Name      string
	Fields    []string // field names ordered by ord
	Templates int
	SortField int
	DeckID    int64 // deck new cards of this type go to by default
	Tags      []string
}

// FieldIndex returns the position of the named field, ignoring case, or -1
func (m *Model) FieldIndex(name string) int {
	for i, field := range m.Fields {
		if strings.EqualFold(field, name) {
			return i
		}
	}
	return -1
}

// Deck is an Anki deck
type Deck struct {
	ID   int64
	Name string
}

type modelJSON struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Sortf int      `json:"sortf"`
	Did   *int64   `json:"did"`
	Tags  []string `json:"tags"`
	Flds  []struct {
		Name string `json:"name"`
		Ord  int    `json:"ord"`
	} `json:"flds"`
	Tmpls []struct {
		Name string `json:"name"`
	} `json:"tmpls"`
}

func (mj modelJSON) model() *Model {
	flds := mj.Flds
	sort.SliceStable(flds, func(i, j int) bool { return flds[i].Ord < flds[j].Ord })

	m := &Model{
		ID:        mj.ID,
		Name:      mj.Name,
		Templates: len(mj.Tmpls),
		SortField: mj.Sortf,
		Tags:      mj.Tags,
	}
	for _, f := range flds {
		m.Fields = append(m.Fields, f.Name)
	}
	if mj.Did != nil {
		m.DeckID = *mj.Did
	}
	return m
}
