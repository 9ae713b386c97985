package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"codeberg.org/snonux/k2a/internal/anki"
	"codeberg.org/snonux/k2a/internal/audio"
	"codeberg.org/snonux/k2a/internal/batch"
	"codeberg.org/snonux/k2a/internal/dictionary"
)

// Outcome is what AddCard did with an expression
type Outcome int

const (
	// Added means a new card was written
	Added Outcome = iota
	// SkippedExisting means a card with the expression already exists
	SkippedExisting
	// SkippedNoEntry means the dictionary had no usable entry
	SkippedNoEntry
	// SkippedNoReading means the entry carries no useful reading
	SkippedNoReading
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case SkippedExisting:
		return "exists"
	case SkippedNoEntry:
		return "no entry"
	case SkippedNoReading:
		return "no reading"
	default:
		return "unknown"
	}
}

// AddCard creates a card for expression unless one exists. Audio problems
// leave the audio field empty and do not stop the card from being added.
func (p *Processor) AddCard(ctx context.Context, expression, sentence string) (Outcome, error) {
	expression = norm.NFC.String(strings.TrimSpace(expression))

	existing, err := p.store.FindByField(p.expressionField, expression)
	if err != nil {
		return 0, fmt.Errorf("failed to search for %s: %w", expression, err)
	}
	if len(existing) > 0 {
		p.logger.Debug("already in collection", zap.String("expression", expression))
		return SkippedExisting, nil
	}

	lookup, err := p.dictionary.Lookup(ctx, expression)
	if err != nil {
		p.record(expression, fmt.Errorf("dictionary lookup: %w", err))
		return SkippedNoEntry, nil
	}
	if lookup == nil {
		p.logger.Debug("no dictionary entry", zap.String("expression", expression))
		return SkippedNoEntry, nil
	}

	reading, ok := dictionary.ResolveReading(lookup.Entry, expression, lookup.KanaOnly)
	if !ok {
		p.logger.Debug("no usable reading", zap.String("expression", expression))
		return SkippedNoReading, nil
	}

	english := lookup.Entry.English()

	var soundRef string
	if clip, err := p.audio.Acquire(ctx, expression, reading); err == nil {
		soundRef = clip.SoundRef()
	} else if errors.Is(err, audio.ErrTooLong) {
		p.logger.Info("audio rejected", zap.String("expression", expression), zap.Error(err))
	} else {
		p.record(expression, fmt.Errorf("audio: %w", err))
	}

	note, err := p.buildCard(expression, reading, english, sentence, soundRef)
	if err != nil {
		return 0, err
	}
	if err := p.store.AddNote(note, p.deck.ID); err != nil {
		return 0, fmt.Errorf("failed to add %s: %w", expression, err)
	}

	if reading != "" {
		fmt.Fprintf(p.out, "Added %s (%s) to Anki: %s\n", expression, reading, truncateGloss(english))
	} else {
		fmt.Fprintf(p.out, "Added %s to Anki: %s\n", expression, truncateGloss(english))
	}
	return Added, nil
}

// buildCard fills the five fields at their configured positions, tags the
// note and makes sure the note type knows the tags and the deck
func (p *Processor) buildCard(expression, reading, english, sentence, soundRef string) (*anki.Note, error) {
	note := anki.NewNote(p.model)

	values := []struct {
		index int
		value string
	}{
		{p.fields.Expression, expression},
		{p.fields.Reading, reading},
		{p.fields.English, english},
		{p.fields.Sentence, sentence},
		{p.fields.Audio, soundRef},
	}
	for _, v := range values {
		if err := note.SetField(v.index, v.value); err != nil {
			return nil, err
		}
	}

	note.Tags = p.store.CanonifyTags([]string{SourceTag, LastImportTag})

	changed := p.model.DeckID != p.deck.ID
	p.model.DeckID = p.deck.ID
	for _, tag := range note.Tags {
		if !containsFold(p.model.Tags, tag) {
			p.model.Tags = append(p.model.Tags, tag)
			changed = true
		}
	}
	if changed {
		if err := p.store.SaveModel(p.model); err != nil {
			return nil, fmt.Errorf("failed to update note type: %w", err)
		}
	}

	return note, nil
}

// ImportStats summarises an Import run
type ImportStats struct {
	Total     int
	Added     int
	Existing  int
	NoEntry   int
	NoReading int
}

// Import resets the lastimport tag and adds a card for every entry,
// checkpointing every save interval entries
func (p *Processor) Import(ctx context.Context, entries []batch.Entry) (ImportStats, error) {
	stats := ImportStats{Total: len(entries)}

	if _, err := p.ResetLastImportTag(); err != nil {
		return stats, err
	}

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		outcome, err := p.AddCard(ctx, entry.Expression, entry.Sentence)
		if err != nil {
			return stats, err
		}

		switch outcome {
		case Added:
			stats.Added++
		case SkippedExisting:
			stats.Existing++
		case SkippedNoEntry:
			stats.NoEntry++
		case SkippedNoReading:
			stats.NoReading++
		}

		if (i+1)%p.saveInterval == 0 && i+1 < len(entries) {
			if err := p.Save(); err != nil {
				return stats, err
			}
			fmt.Fprintf(p.out, "\nCollection saved\n")
		}
	}

	fmt.Fprintf(p.out, "\n=== Import Summary ===\n")
	fmt.Fprintf(p.out, "Total entries: %d\n", stats.Total)
	fmt.Fprintf(p.out, "Added: %d\n", stats.Added)
	fmt.Fprintf(p.out, "Skipped (already in collection): %d\n", stats.Existing)
	fmt.Fprintf(p.out, "Skipped (no dictionary entry): %d\n", stats.NoEntry+stats.NoReading)
	if n := len(p.errors); n > 0 {
		fmt.Fprintf(p.out, "Errors: %d\n", n)
	}
	fmt.Fprintf(p.out, "======================\n")

	p.PrintErrors()
	return stats, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
