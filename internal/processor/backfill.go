package processor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"codeberg.org/snonux/k2a/internal/audio"
)

// BackfillStats summarises a BackfillAudio run
type BackfillStats struct {
	Processed   int
	Added       int
	Missing     int // tagged no-audio
	Checkpoints int // saves before the final one
}

// BackfillAudio fetches audio for every note in deckName whose audio field
// is empty and which is not tagged no-audio. It saves every save interval
// items and once at the end, then prints the collected errors.
func (p *Processor) BackfillAudio(ctx context.Context, deckName string) (BackfillStats, error) {
	var stats BackfillStats
	if deckName == "" {
		deckName = p.deckName
	}

	ids, err := p.store.FindEmptyField(deckName, p.audioField, NoAudioTag)
	if err != nil {
		return stats, fmt.Errorf("failed to find notes without audio: %w", err)
	}
	total := len(ids)
	p.logger.Info("backfill", zap.String("deck", deckName), zap.Int("notes", total))

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			// keep what was fetched before the interrupt
			if serr := p.Save(); serr != nil {
				return stats, serr
			}
			return stats, err
		}
		stats.Processed++
		p.backfillNote(ctx, id, fmt.Sprintf("%d/%d", i+1, total), &stats)

		if stats.Processed%p.saveInterval == 0 && i+1 < total {
			if err := p.Save(); err != nil {
				return stats, err
			}
			stats.Checkpoints++
			fmt.Fprintf(p.out, "\nCollection saved\n")
		}
	}

	if err := p.Save(); err != nil {
		return stats, err
	}

	p.PrintErrors()
	return stats, nil
}

// backfillNote handles one note. Failures are recorded, never returned.
func (p *Processor) backfillNote(ctx context.Context, id int64, progress string, stats *BackfillStats) {
	note, err := p.store.GetNote(id)
	if err != nil {
		p.record(fmt.Sprintf("note %d", id), err)
		return
	}

	expression := note.Field(p.fields.Expression)
	reading := note.Field(p.fields.Reading)

	clip, err := p.audio.Acquire(ctx, expression, reading)
	if err != nil && ctx.Err() != nil {
		// interrupted, not missing
		return
	}
	if err == nil {
		if err := note.SetField(p.fields.Audio, clip.SoundRef()); err != nil {
			p.record(expression, err)
			return
		}
		fmt.Fprintf(p.out, "%s\tAdding audio \"%s\" for %s\n", progress, clip.FileName, expression)
		stats.Added++
	} else {
		fmt.Fprintf(p.out, "%s\tAudio not found for %s, skipping...\n", progress, expression)
		if !errors.Is(err, audio.ErrTooLong) {
			p.record(expression, err)
		}
		note.AddTag(NoAudioTag)
		stats.Missing++
	}

	if err := p.store.UpdateNote(note); err != nil {
		p.record(expression, err)
	}
}
