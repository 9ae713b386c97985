package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codeberg.org/snonux/k2a/internal/anki"
	"codeberg.org/snonux/k2a/internal/archive"
	"codeberg.org/snonux/k2a/internal/audio"
	"codeberg.org/snonux/k2a/internal/config"
	"codeberg.org/snonux/k2a/internal/dictionary"
	"codeberg.org/snonux/k2a/internal/processor"
)

// session is one open collection with the processor wired around it
type session struct {
	cfg    *config.Config
	col    *anki.Collection
	proc   *processor.Processor
	logger *zap.Logger
}

// loadConfig reads the config file with the command's override flags bound
// on top. Flags the command does not define are skipped.
func loadConfig(cmd *cobra.Command, flags *Flags) (*config.Config, error) {
	cfg, err := config.Load(flags.CfgFile,
		config.Binding{Key: "settings.deckname", Flag: cmd.Flags().Lookup("deck")},
		config.Binding{Key: "audio.openai_fallback", Flag: cmd.Flags().Lookup("openai-fallback")},
	)
	if err != nil {
		var indexErr *config.IndexError
		if errors.As(err, &indexErr) {
			return nil, &ExitError{Code: ExitFieldIndex, Err: err}
		}
		// also covers an incomplete [SETTINGS] or a bad [AUDIO] value
		return nil, &ExitError{Code: ExitConfig, Err: err}
	}
	return cfg, nil
}

// openSession backs the collection up when the command writes to it, opens
// it and validates the configured note type, deck and field indices before
// any card is touched
func openSession(cmd *cobra.Command, flags *Flags, cfg *config.Config, mutating bool) (*session, error) {
	logger, err := NewLogger(flags.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	path := cfg.CollectionPath()
	if mutating && !flags.NoBackup {
		backup, err := archive.BackupCollection(path)
		if err != nil {
			return nil, &ExitError{Code: ExitCollection, Err: err}
		}
		logger.Info("Collection backed up", zap.String("backup", backup))
	}

	col, err := anki.Open(path)
	if err != nil {
		return nil, &ExitError{Code: ExitCollection, Err: err}
	}

	proc, err := newProcessor(cmd, cfg, col, logger)
	if err != nil {
		col.Close()
		return nil, err
	}

	logger.Debug("Collection opened",
		zap.String("path", path),
		zap.String("note_type", cfg.CardTypeName),
		zap.String("deck", cfg.DeckName))

	return &session{cfg: cfg, col: col, proc: proc, logger: logger}, nil
}

func newProcessor(cmd *cobra.Command, cfg *config.Config, col *anki.Collection, logger *zap.Logger) (*processor.Processor, error) {
	model, err := col.ModelByName(cfg.CardTypeName)
	if err != nil {
		return nil, &ExitError{Code: ExitConfig, Err: err}
	}
	deck, err := col.DeckByName(cfg.DeckName)
	if err != nil {
		return nil, &ExitError{Code: ExitConfig, Err: err}
	}
	if err := cfg.Fields.Validate(len(model.Fields)); err != nil {
		return nil, &ExitError{Code: ExitFieldIndex, Err: err}
	}

	sources, err := audio.NewSources(audioConfig(cfg, col.MediaDir()), logger)
	if err != nil {
		return nil, &ExitError{Code: ExitConfig, Err: err}
	}

	proc, err := processor.New(processor.Options{
		Store: col,
		Dictionary: dictionary.NewClient(&dictionary.ClientOptions{
			Timeout: cfg.Audio.Timeout,
			Logger:  logger,
		}),
		Audio:           audio.NewAcquirer(col.MediaDir(), nil, logger, sources...),
		Model:           model,
		Deck:            deck,
		Fields:          cfg.Fields,
		ExpressionField: cfg.ExpressionFieldName,
		AudioField:      cfg.AudioFieldName,
		DeckName:        cfg.DeckName,
		Out:             cmd.OutOrStdout(),
		Logger:          logger,
	})
	if err != nil {
		return nil, withExitCode(err)
	}
	return proc, nil
}

func audioConfig(cfg *config.Config, mediaDir string) *audio.Config {
	c := audio.DefaultConfig()
	c.MediaDir = mediaDir
	c.Timeout = cfg.Audio.Timeout
	c.OpenAIFallback = cfg.Audio.OpenAIFallback
	c.OpenAIKey = cfg.Audio.OpenAIKey
	c.OpenAIModel = cfg.Audio.OpenAIModel
	c.OpenAIVoice = cfg.Audio.OpenAIVoice
	c.OpenAISpeed = cfg.Audio.OpenAISpeed
	return c
}

// close saves and releases the collection
func (s *session) close() error {
	err := s.proc.SaveAndClose()
	_ = s.logger.Sync()
	return err
}

// withSession runs fn on an open session and always releases the
// collection afterwards, also when fn fails
func withSession(cmd *cobra.Command, flags *Flags, cfg *config.Config, mutating bool, fn func(*session) error) (err error) {
	s, err := openSession(cmd, flags, cfg, mutating)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil && err == nil {
			err = withExitCode(fmt.Errorf("failed to save collection: %w", cerr))
		}
	}()

	return withExitCode(fn(s))
}
