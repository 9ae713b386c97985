package anki

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

var testFields = []string{"Expression", "Reading", "English", "Sentence", "Audio"}

func newTestCollection(t *testing.T) *Collection {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collection.anki2")
	col, err := Create(path, CreateOptions{DeckName: "Japanese", ModelName: "Japanese", Fields: testFields})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { col.Close() })
	return col
}

func addTestNote(t *testing.T, col *Collection, deckID int64, fields []string, tags ...string) *Note {
	t.Helper()
	m, err := col.ModelByName("Japanese")
	if err != nil {
		t.Fatal(err)
	}
	n := NewNote(m)
	copy(n.Fields, fields)
	n.Tags = tags
	if err := col.AddNote(n, deckID); err != nil {
		t.Fatalf("AddNote() error = %v", err)
	}
	return n
}

func TestCreate(t *testing.T) {
	col := newTestCollection(t)

	m, err := col.ModelByName("Japanese")
	if err != nil {
		t.Fatalf("ModelByName() error = %v", err)
	}
	if !reflect.DeepEqual(m.Fields, testFields) {
		t.Errorf("Fields = %v, want %v", m.Fields, testFields)
	}
	if m.Templates != 1 {
		t.Errorf("Templates = %d, want 1", m.Templates)
	}

	deck, err := col.DeckByName("japanese")
	if err != nil {
		t.Fatalf("DeckByName() should ignore case: %v", err)
	}
	if m.DeckID != deck.ID {
		t.Errorf("model deck = %d, want %d", m.DeckID, deck.ID)
	}

	if info, err := os.Stat(col.MediaDir()); err != nil || !info.IsDir() {
		t.Errorf("media directory %s missing", col.MediaDir())
	}

	if _, err := Create(col.Path(), CreateOptions{Fields: testFields}); err == nil {
		t.Error("Create() over an existing collection should fail")
	}
}

func TestLookupErrors(t *testing.T) {
	col := newTestCollection(t)

	if _, err := col.ModelByName("Basic"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ModelByName() error = %v, want ErrNotFound", err)
	}
	if _, err := col.DeckByName("Spanish"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeckByName() error = %v, want ErrNotFound", err)
	}
	if _, err := col.GetNote(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetNote() error = %v, want ErrNotFound", err)
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.anki2")); err == nil {
		t.Error("expected error for missing collection")
	}
}

func TestOpen_Locked(t *testing.T) {
	col := newTestCollection(t)

	if _, err := Open(col.Path()); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Open() error = %v, want ErrLocked", err)
	}

	if err := col.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	again, err := Open(col.Path())
	if err != nil {
		t.Fatalf("Open() after Close() error = %v", err)
	}
	again.Close()
}

func TestCloseTwice(t *testing.T) {
	col := newTestCollection(t)
	if err := col.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := col.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := col.Save(); err == nil {
		t.Error("Save() on a closed collection should fail")
	}
}

func TestSavePersistsAcrossOpen(t *testing.T) {
	col := newTestCollection(t)
	deck, _ := col.DeckByName("Japanese")
	n := addTestNote(t, col, deck.ID, []string{"猫", "ねこ", "cat", "", ""}, "k2a")

	if err := col.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// still usable after a save
	addTestNote(t, col, deck.ID, []string{"犬", "いぬ", "dog", "", ""})
	if err := col.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(col.Path())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetNote(n.ID)
	if err != nil {
		t.Fatalf("GetNote() error = %v", err)
	}
	if got.Field(0) != "猫" || !got.HasTag("k2a") {
		t.Errorf("reloaded note = %+v", got)
	}

	ids, err := reopened.FindByField("Expression", "犬")
	if err != nil || len(ids) != 1 {
		t.Errorf("note added after Save() not persisted: %v %v", ids, err)
	}
}

func TestSaveModel(t *testing.T) {
	col := newTestCollection(t)
	m, _ := col.ModelByName("Japanese")

	m.Tags = []string{"k2a", "lastimport"}
	m.DeckID = 1
	if err := col.SaveModel(m); err != nil {
		t.Fatalf("SaveModel() error = %v", err)
	}
	if err := col.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(col.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, _ := reopened.ModelByName("Japanese")
	if !reflect.DeepEqual(got.Tags, []string{"k2a", "lastimport"}) {
		t.Errorf("Tags = %v", got.Tags)
	}
	if got.DeckID != 1 {
		t.Errorf("DeckID = %d, want 1", got.DeckID)
	}
	if !reflect.DeepEqual(got.Fields, testFields) {
		t.Errorf("fields lost on round trip: %v", got.Fields)
	}

	if err := reopened.SaveModel(&Model{ID: 7}); !errors.Is(err, ErrNotFound) {
		t.Errorf("SaveModel() unknown type error = %v", err)
	}
}

func TestCanonifyTags(t *testing.T) {
	col := newTestCollection(t)

	got := col.CanonifyTags([]string{"lastimport", "k2a", " ", "k2a"})
	if !reflect.DeepEqual(got, []string{"k2a", "lastimport"}) {
		t.Errorf("CanonifyTags() = %v", got)
	}

	// existing spelling wins
	got = col.CanonifyTags([]string{"K2A", "Verb"})
	if !reflect.DeepEqual(got, []string{"Verb", "k2a"}) {
		t.Errorf("CanonifyTags() = %v", got)
	}

	got = col.CanonifyTags([]string{"verb"})
	if !reflect.DeepEqual(got, []string{"Verb"}) {
		t.Errorf("CanonifyTags() = %v", got)
	}
}
