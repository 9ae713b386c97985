package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codeberg.org/snonux/k2a/internal"
	"codeberg.org/snonux/k2a/internal/audio"
	"codeberg.org/snonux/k2a/internal/batch"
	"codeberg.org/snonux/k2a/internal/processor"
)

// CreateRootCommand creates and configures the root cobra command
func CreateRootCommand(flags *Flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "k2a",
		Short: "Japanese vocabulary to Anki sync",
		Long: `k2a turns Japanese words into Anki cards.

It looks each word up on Jisho, resolves its reading, fetches a native
speaker recording from LanguagePod101 and writes the card straight into
your Anki collection, tagged k2a and lastimport.

Close Anki before running k2a, the collection is locked while it runs.

Examples:
  k2a add 猫 "猫が好きです"        # Add one card
  k2a import                      # Import the Kindle vocabulary builder
  k2a import --batch words.txt    # Import "expression = sentence" lines
  k2a backfill --deck Japanese    # Fetch audio for cards without any
  k2a export --out batch.apkg     # Package the last import`,
		Version:       internal.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, flags)

	rootCmd.AddCommand(
		newAddCommand(flags),
		newImportCommand(flags),
		newBackfillCommand(flags),
		newResetTagCommand(flags),
		newExportCommand(flags),
		newTTSModelsCommand(flags),
	)

	return rootCmd
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	cmd.PersistentFlags().StringVarP(&flags.CfgFile, "config", "c", flags.CfgFile, "INI config file")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Log diagnostics at debug level")
	cmd.PersistentFlags().BoolVar(&flags.NoBackup, "no-backup", false, "Do not back the collection up before writing to it")
}

// addOpenAIFlag registers the override for [AUDIO] openai_fallback on
// commands that fetch audio
func addOpenAIFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("openai-fallback", false, "Fall back to OpenAI text-to-speech when no recording is accepted")
}

func newAddCommand(flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <expression> [sentence]",
		Short: "Add one card",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			var sentence string
			if len(args) > 1 {
				sentence = args[1]
			}

			return withSession(cmd, flags, cfg, true, func(s *session) error {
				outcome, err := s.proc.AddCard(cmd.Context(), args[0], sentence)
				if err != nil {
					return err
				}
				if outcome != processor.Added {
					fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s: %s\n", args[0], outcome)
				}
				s.proc.PrintErrors()
				return nil
			})
		},
	}
	addOpenAIFlag(cmd)
	return cmd
}

func newImportCommand(flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import the Kindle vocabulary builder or a batch file",
		Long: `Import clears the lastimport tag from the previous batch, then adds a card
for every word of the Kindle vocab.db configured as dbPath. With --batch the
words come from a text file instead, one "expression = sentence" per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			var entries []batch.Entry
			if flags.BatchFile != "" {
				entries, err = batch.ReadBatchFile(flags.BatchFile)
			} else {
				entries, err = batch.ReadKindleVocab(cfg.DBPath, flags.KindleLang)
			}
			if err != nil {
				return withExitCode(err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to import")
				return nil
			}

			return withSession(cmd, flags, cfg, true, func(s *session) error {
				_, err := s.proc.Import(cmd.Context(), entries)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&flags.BatchFile, "batch", "", "Read words from a text file instead of the Kindle")
	cmd.Flags().StringVar(&flags.KindleLang, "lang", flags.KindleLang, "Kindle lookup language")
	addOpenAIFlag(cmd)
	return cmd
}

func newBackfillCommand(flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Fetch audio for cards that have none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			return withSession(cmd, flags, cfg, true, func(s *session) error {
				stats, err := s.proc.BackfillAudio(cmd.Context(), cfg.DeckName)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Audio added to %d of %d cards\n", stats.Added, stats.Processed)
				return nil
			})
		},
	}
	cmd.Flags().String("deck", "", "Deck to scan, subdecks included (default from config)")
	addOpenAIFlag(cmd)
	return cmd
}

func newResetTagCommand(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-tag",
		Short: "Remove the lastimport tag from the previous batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			return withSession(cmd, flags, cfg, true, func(s *session) error {
				n, err := s.proc.ResetLastImportTag()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %d cards\n", processor.LastImportTag, n)
				return nil
			})
		},
	}
}

func newExportCommand(flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Package the last import as an .apkg file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			out := flags.OutFile
			if out == "" {
				out = internal.SanitizeFilename(cfg.DeckName) + ".apkg"
			}

			return withSession(cmd, flags, cfg, false, func(s *session) error {
				ids, err := s.col.FindByTags(processor.SourceTag, processor.LastImportTag)
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No cards in the last import")
					return nil
				}
				if err := s.col.Export(ids, cfg.DeckName, out); err != nil {
					os.Remove(out)
					return fmt.Errorf("failed to export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d cards to %s\n", len(ids), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&flags.OutFile, "out", "o", "", "Output file (default <deck>.apkg)")
	return cmd
}

func newTTSModelsCommand(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "tts-models",
		Short: "List the OpenAI text-to-speech models usable for the audio fallback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			tts, err := audio.NewOpenAISource(audioConfig(cfg, cfg.MediaDir()))
			if err != nil {
				return fmt.Errorf("%w: set OPENAI_API_KEY or [AUDIO] openai_key", err)
			}
			models, err := tts.Models(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Text-to-Speech (TTS) Models:")
			if len(models) == 0 {
				fmt.Fprintln(out, "  No TTS models found")
			}
			for _, m := range models {
				marker := " "
				if m == cfg.Audio.OpenAIModel {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, m)
			}
			return nil
		},
	}
}
