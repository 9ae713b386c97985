package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"codeberg.org/snonux/k2a/internal/anki"
	"codeberg.org/snonux/k2a/internal/audio"
	"codeberg.org/snonux/k2a/internal/config"
	"codeberg.org/snonux/k2a/internal/dictionary"
)

const (
	// SourceTag marks every card k2a created
	SourceTag = "k2a"
	// LastImportTag marks the cards of the most recent import run
	LastImportTag = "lastimport"
	// NoAudioTag marks cards for which no acceptable audio exists
	NoAudioTag = "no-audio"

	// DefaultSaveInterval is the number of backfill items between checkpoints
	DefaultSaveInterval = 50
)

// Store is the card database the processor works on
type Store interface {
	FindByField(field, value string) ([]int64, error)
	FindByTags(tags ...string) ([]int64, error)
	FindEmptyField(deckName, field, excludeTag string) ([]int64, error)
	GetNote(id int64) (*anki.Note, error)
	AddNote(note *anki.Note, deckID int64) error
	UpdateNote(note *anki.Note) error
	CanonifyTags(tags []string) []string
	SaveModel(model *anki.Model) error
	Save() error
	Close() error
}

// Dictionary looks up expressions
type Dictionary interface {
	Lookup(ctx context.Context, expression string) (*dictionary.Lookup, error)
}

// AudioAcquirer fetches and validates pronunciation clips
type AudioAcquirer interface {
	Acquire(ctx context.Context, expression, reading string) (*audio.Clip, error)
}

// Options configures a Processor
type Options struct {
	Store      Store
	Dictionary Dictionary
	Audio      AudioAcquirer
	Model      *anki.Model
	Deck       *anki.Deck
	Fields     config.Fields

	ExpressionField string // field name used for duplicate detection
	AudioField      string // field name searched by the backfill
	DeckName        string // deck the backfill scans, defaults to Deck.Name

	SaveInterval int
	Out          io.Writer
	Logger       *zap.Logger
}

// ItemError is a recoverable failure of a single item
type ItemError struct {
	Expression string
	Err        error
}

// Processor sequences lookup, reading resolution, audio and card writing
// over one open store
type Processor struct {
	store      Store
	dictionary Dictionary
	audio      AudioAcquirer
	model      *anki.Model
	deck       *anki.Deck
	fields     config.Fields

	expressionField string
	audioField      string
	deckName        string
	saveInterval    int

	out    io.Writer
	logger *zap.Logger
	errors []ItemError
}

// New creates a processor. Field indices must fit the note type.
func New(opts Options) (*Processor, error) {
	if opts.Store == nil || opts.Model == nil || opts.Deck == nil {
		return nil, errors.New("processor needs a store, a note type and a deck")
	}
	if err := opts.Fields.Validate(len(opts.Model.Fields)); err != nil {
		return nil, err
	}

	p := &Processor{
		store:           opts.Store,
		dictionary:      opts.Dictionary,
		audio:           opts.Audio,
		model:           opts.Model,
		deck:            opts.Deck,
		fields:          opts.Fields,
		expressionField: opts.ExpressionField,
		audioField:      opts.AudioField,
		deckName:        opts.DeckName,
		saveInterval:    opts.SaveInterval,
		out:             opts.Out,
		logger:          opts.Logger,
	}

	if p.expressionField == "" {
		p.expressionField = opts.Model.Fields[opts.Fields.Expression]
	}
	if p.audioField == "" {
		p.audioField = opts.Model.Fields[opts.Fields.Audio]
	}
	if p.deckName == "" {
		p.deckName = opts.Deck.Name
	}
	if p.saveInterval <= 0 {
		p.saveInterval = DefaultSaveInterval
	}
	if p.out == nil {
		p.out = os.Stdout
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}

	return p, nil
}

// Errors returns the recoverable errors collected so far
func (p *Processor) Errors() []ItemError {
	return p.errors
}

func (p *Processor) record(expression string, err error) {
	p.errors = append(p.errors, ItemError{Expression: expression, Err: err})
	p.logger.Warn("item failed", zap.String("expression", expression), zap.Error(err))
}

// PrintErrors writes the collected errors as one report
func (p *Processor) PrintErrors() {
	if len(p.errors) == 0 {
		return
	}
	fmt.Fprintln(p.out, "The following errors occurred:")
	for _, e := range p.errors {
		fmt.Fprintf(p.out, "%s - %s\n", e.Expression, e.Err)
	}
}

// Save checkpoints the store
func (p *Processor) Save() error {
	return p.store.Save()
}

// SaveAndClose flushes and releases the store
func (p *Processor) SaveAndClose() error {
	return p.store.Close()
}

// ResetLastImportTag removes the lastimport tag from every k2a card that
// carries it and returns how many cards changed
func (p *Processor) ResetLastImportTag() (int, error) {
	ids, err := p.store.FindByTags(SourceTag, LastImportTag)
	if err != nil {
		return 0, fmt.Errorf("failed to find last import: %w", err)
	}

	for _, id := range ids {
		note, err := p.store.GetNote(id)
		if err != nil {
			return 0, err
		}
		note.DelTag(LastImportTag)
		if err := p.store.UpdateNote(note); err != nil {
			return 0, err
		}
	}

	p.logger.Info("reset last import", zap.Int("notes", len(ids)))
	return len(ids), nil
}

// truncateGloss shortens a gloss for the confirmation line
func truncateGloss(english string) string {
	runes := []rune(english)
	if len(runes) > 53 {
		english = string(runes[:50]) + "..."
	}
	return strings.ReplaceAll(english, "<br/>", "; ")
}
