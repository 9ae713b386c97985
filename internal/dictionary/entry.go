package dictionary

import (
	"strings"
	"unicode/utf8"
)

// SurfaceForm pairs a written form with its reading. Either side may be
// missing: kana-only words come back with a reading and no word.
type SurfaceForm struct {
	Word    *string `json:"word,omitempty"`
	Reading *string `json:"reading,omitempty"`
}

// HasReading reports whether the provider sent a reading field at all
func (f SurfaceForm) HasReading() bool {
	return f.Reading != nil
}

// Sense is one definition group of an entry
type Sense struct {
	EnglishDefinitions []string `json:"english_definitions"`
	PartsOfSpeech      []string `json:"parts_of_speech,omitempty"`
}

// Entry is a single dictionary result
type Entry struct {
	Slug     string        `json:"slug"`
	IsCommon bool          `json:"is_common"`
	Japanese []SurfaceForm `json:"japanese"`
	Senses   []Sense       `json:"senses"`
}

// English renders the senses the way the cards store them: definitions of a
// sense joined by "; ", senses separated by <br/>.
func (e Entry) English() string {
	senses := make([]string, 0, len(e.Senses))
	for _, s := range e.Senses {
		senses = append(senses, strings.Join(s.EnglishDefinitions, "; "))
	}
	return strings.Join(senses, "<br/>")
}

// MatchKind is the outcome of scanning an entry's surface forms
type MatchKind int

const (
	// NoMatch means no surface form equals the expression
	NoMatch MatchKind = iota
	// MatchedWritten means a written form equals the expression
	MatchedWritten
	// MatchedReading means only a reading equals the expression, so the
	// expression is kana
	MatchedReading
)

func (k MatchKind) String() string {
	switch k {
	case MatchedWritten:
		return "written"
	case MatchedReading:
		return "reading"
	default:
		return "none"
	}
}

// Match scans the surface forms in provider order and stops at the first
// form whose word or reading equals expression. Within a form the word is
// checked before the reading. Forms with neither are passed over but stay in
// the entry, so the first form is always the provider's first.
func Match(entry Entry, expression string) MatchKind {
	for _, form := range entry.Japanese {
		if form.Word != nil && *form.Word == expression {
			return MatchedWritten
		}
		if form.Reading != nil && *form.Reading == expression {
			return MatchedReading
		}
	}
	return NoMatch
}

// ResolveReading decides which reading to store for a matched entry.
//
// The entry is unusable (ok is false) when its first surface form has no
// reading field, or when the expression is a single kana character. For any
// other kana-only expression the reading is empty since the expression is
// already its own reading. Otherwise the first form's reading is returned
// verbatim.
func ResolveReading(entry Entry, expression string, kanaOnly bool) (reading string, ok bool) {
	if len(entry.Japanese) == 0 {
		return "", false
	}
	first := entry.Japanese[0]
	if !first.HasReading() || (kanaOnly && utf8.RuneCountInString(expression) == 1) {
		return "", false
	}
	if kanaOnly {
		return "", true
	}
	return *first.Reading, true
}
