package anki

import (
	"reflect"
	"testing"
)

func TestFindByField(t *testing.T) {
	col := newTestCollection(t)
	deck, _ := col.DeckByName("Japanese")
	cat := addTestNote(t, col, deck.ID, []string{"猫", "ねこ", "cat", "", ""})
	addTestNote(t, col, deck.ID, []string{"子猫", "こねこ", "kitten", "", ""})

	tests := []struct {
		name  string
		field string
		value string
		want  []int64
	}{
		{"exact match", "Expression", "猫", []int64{cat.ID}},
		{"field name ignores case", "expression", "猫", []int64{cat.ID}},
		{"no substring match", "Expression", "子", nil},
		{"other field", "English", "cat", []int64{cat.ID}},
		{"unknown field", "Meaning", "cat", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := col.FindByField(tt.field, tt.value)
			if err != nil {
				t.Fatalf("FindByField() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindByField() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindByTags(t *testing.T) {
	col := newTestCollection(t)
	deck, _ := col.DeckByName("Japanese")
	both := addTestNote(t, col, deck.ID, []string{"猫", "", "", "", ""}, "k2a", "lastimport")
	old := addTestNote(t, col, deck.ID, []string{"犬", "", "", "", ""}, "k2a")
	addTestNote(t, col, deck.ID, []string{"鳥", "", "", "", ""}, "k2abc")

	tests := []struct {
		tags []string
		want []int64
	}{
		{[]string{"k2a", "lastimport"}, []int64{both.ID}},
		{[]string{"k2a"}, []int64{both.ID, old.ID}},
		{[]string{"LastImport"}, []int64{both.ID}},
		{[]string{"k2a_"}, nil},
		{[]string{"missing"}, nil},
	}

	for _, tt := range tests {
		got, err := col.FindByTags(tt.tags...)
		if err != nil {
			t.Fatalf("FindByTags(%v) error = %v", tt.tags, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FindByTags(%v) = %v, want %v", tt.tags, got, tt.want)
		}
	}

	if _, err := col.FindByTags(); err == nil {
		t.Error("FindByTags() without tags should fail")
	}
}

func TestFindEmptyField(t *testing.T) {
	col := newTestCollection(t)
	deck, _ := col.DeckByName("Japanese")

	missing := addTestNote(t, col, deck.ID, []string{"猫", "ねこ", "cat", "", ""})
	addTestNote(t, col, deck.ID, []string{"犬", "いぬ", "dog", "", "[sound:k2a_犬_いぬ.mp3]"})
	addTestNote(t, col, deck.ID, []string{"鳥", "とり", "bird", "", ""}, "no-audio")
	addTestNote(t, col, 1, []string{"魚", "さかな", "fish", "", ""}) // Default deck
	blank := addTestNote(t, col, deck.ID, []string{"馬", "うま", "horse", "", "  "})

	got, err := col.FindEmptyField("Japanese", "Audio", "no-audio")
	if err != nil {
		t.Fatalf("FindEmptyField() error = %v", err)
	}
	if want := []int64{missing.ID, blank.ID}; !reflect.DeepEqual(got, want) {
		t.Errorf("FindEmptyField() = %v, want %v", got, want)
	}

	if _, err := col.FindEmptyField("Spanish", "Audio", "no-audio"); err == nil {
		t.Error("expected error for unknown deck")
	}
}
