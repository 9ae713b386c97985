package batch

import (
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func createVocabDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	statements := []string{
		`CREATE TABLE WORDS (id TEXT PRIMARY KEY NOT NULL, word TEXT, stem TEXT, lang TEXT, category INTEGER DEFAULT 0, timestamp INTEGER DEFAULT 0, profileid TEXT)`,
		`CREATE TABLE LOOKUPS (id TEXT PRIMARY KEY NOT NULL, word_key TEXT, book_key TEXT, dict_key TEXT, pos TEXT, usage TEXT, timestamp INTEGER DEFAULT 0)`,
		`INSERT INTO WORDS (id, word, stem, lang) VALUES
			('ja:猫', '猫', '猫', 'ja'),
			('ja:食べた', '食べた', '食べる', 'ja'),
			('en:cat', 'cats', 'cat', 'en')`,
		`INSERT INTO LOOKUPS (id, word_key, usage, timestamp) VALUES
			('l1', 'ja:食べた', 'ご飯を食べた。', 100),
			('l2', 'ja:猫', '猫が好きです。', 200),
			('l3', 'en:cat', 'Two cats.', 150),
			('l4', 'ja:猫', '猫がいる。', 300)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to build vocab.db: %v", err)
		}
	}
	return path
}

func TestReadKindleVocab(t *testing.T) {
	path := createVocabDB(t)

	got, err := ReadKindleVocab(path, "ja")
	if err != nil {
		t.Fatalf("ReadKindleVocab() error = %v", err)
	}

	want := []Entry{
		{Expression: "食べる", Sentence: "ご飯を食べた。"},
		{Expression: "猫", Sentence: "猫が好きです。"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadKindleVocab() = %v, want %v", got, want)
	}
}

func TestReadKindleVocab_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.db")},
		{"not a vocabulary database", createEmptyDB(t, dir)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadKindleVocab(tt.path, "ja")
			var kindleErr *KindleError
			if !errors.As(err, &kindleErr) {
				t.Errorf("ReadKindleVocab() error = %v, want KindleError", err)
			}
		})
	}
}

func createEmptyDB(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "empty.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE other (id INTEGER)`); err != nil {
		t.Fatal(err)
	}
	return path
}
