package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// Config is the loaded k2a configuration
type Config struct {
	File string

	// [SETTINGS]
	DBPath              string // Kindle vocab.db
	ProfilePath         string
	CollectionName      string
	CardTypeName        string
	DeckName            string
	ExpressionFieldName string
	AudioFieldName      string

	Fields Fields
	Audio  Audio
}

// Fields holds the note field positions from [NOTE_FIELD_INDICES]
type Fields struct {
	Expression int
	Reading    int
	English    int
	Sentence   int
	Audio      int
}

// Audio holds the optional [AUDIO] section
type Audio struct {
	Timeout        time.Duration
	OpenAIFallback bool
	OpenAIKey      string
	OpenAIModel    string
	OpenAIVoice    string
	OpenAISpeed    float64
}

// PathError means the config file is missing, unreadable or empty
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("config file %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// IndexError means a note field index is not an integer or does not fit
// the note type
type IndexError struct {
	Field  string
	Value  string
	Reason string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("invalid note field index %s=%q: %s", e.Field, e.Value, e.Reason)
}

// Binding maps a command-line flag onto a config key. A flag the user set
// wins over the environment and the file.
type Binding struct {
	Key  string
	Flag *pflag.Flag
}

// Load reads the INI file at path. Environment variables prefixed with K2A_
// override file values, e.g. K2A_SETTINGS_DECKNAME.
func Load(path string, bindings ...Binding) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &PathError{Path: path, Err: err}
	}
	if info.Size() == 0 {
		return nil, &PathError{Path: path, Err: fmt.Errorf("file is empty")}
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, &PathError{Path: path, Err: err}
	}

	v := viper.New()
	v.SetEnvPrefix("K2A")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.MergeConfigMap(sections(file)); err != nil {
		return nil, &PathError{Path: path, Err: err}
	}

	for _, b := range bindings {
		if b.Flag == nil {
			continue
		}
		if err := v.BindPFlag(b.Key, b.Flag); err != nil {
			return nil, err
		}
	}

	return fromViper(v, path)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("settings.expressionfieldname", "Expression")
	v.SetDefault("settings.audiofieldname", "Audio")
	v.SetDefault("audio.timeout", "30s")
	v.SetDefault("audio.openai_fallback", false)
	v.SetDefault("audio.openai_model", "gpt-4o-mini-tts")
	v.SetDefault("audio.openai_voice", "nova")
	v.SetDefault("audio.openai_speed", 1.0)
}

// sections flattens the INI file into the nested map viper expects
func sections(file *ini.File) map[string]interface{} {
	out := make(map[string]interface{})
	for _, section := range file.Sections() {
		keys := section.Keys()
		if len(keys) == 0 {
			continue
		}
		values := make(map[string]interface{}, len(keys))
		for _, key := range keys {
			values[strings.ToLower(key.Name())] = key.String()
		}
		out[strings.ToLower(section.Name())] = values
	}
	return out
}

func fromViper(v *viper.Viper, path string) (*Config, error) {
	cfg := &Config{
		File:                path,
		DBPath:              expandHome(v.GetString("settings.dbpath")),
		ProfilePath:         expandHome(v.GetString("settings.profilepath")),
		CollectionName:      v.GetString("settings.collectionname"),
		CardTypeName:        v.GetString("settings.cardtypename"),
		DeckName:            v.GetString("settings.deckname"),
		ExpressionFieldName: v.GetString("settings.expressionfieldname"),
		AudioFieldName:      v.GetString("settings.audiofieldname"),
	}

	required := []struct {
		key   string
		value string
	}{
		{"profilePath", cfg.ProfilePath},
		{"collectionName", cfg.CollectionName},
		{"cardTypeName", cfg.CardTypeName},
		{"deckName", cfg.DeckName},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, fmt.Errorf("config file %s: [SETTINGS] %s is required", path, r.key)
		}
	}

	fields, err := parseFields(v)
	if err != nil {
		return nil, err
	}
	cfg.Fields = fields

	timeout, err := parseTimeout(v.GetString("audio.timeout"))
	if err != nil {
		return nil, fmt.Errorf("config file %s: [AUDIO] timeout: %w", path, err)
	}

	cfg.Audio = Audio{
		Timeout:        timeout,
		OpenAIFallback: v.GetBool("audio.openai_fallback"),
		OpenAIKey:      openAIKey(v),
		OpenAIModel:    v.GetString("audio.openai_model"),
		OpenAIVoice:    v.GetString("audio.openai_voice"),
		OpenAISpeed:    v.GetFloat64("audio.openai_speed"),
	}

	return cfg, nil
}

func parseFields(v *viper.Viper) (Fields, error) {
	var f Fields
	targets := []struct {
		name string
		dst  *int
	}{
		{"expression", &f.Expression},
		{"reading", &f.Reading},
		{"english", &f.English},
		{"sentence", &f.Sentence},
		{"audio", &f.Audio},
	}

	for _, t := range targets {
		raw := v.GetString("note_field_indices." + t.name)
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Fields{}, &IndexError{Field: t.name, Value: raw, Reason: "not an integer"}
		}
		*t.dst = n
	}

	return f, nil
}

// parseTimeout accepts a Go duration or a bare number of seconds
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// openAIKey prefers OPENAI_API_KEY over the config file
func openAIKey(v *viper.Viper) string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	return v.GetString("audio.openai_key")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// CollectionPath is <profilePath>/<collectionName>.anki2
func (c *Config) CollectionPath() string {
	return filepath.Join(c.ProfilePath, c.CollectionName+".anki2")
}

// MediaDir is <profilePath>/<collectionName>.media
func (c *Config) MediaDir() string {
	return filepath.Join(c.ProfilePath, c.CollectionName+".media")
}

// Validate checks every index against a note type with numFields fields
func (f Fields) Validate(numFields int) error {
	checks := []struct {
		name  string
		index int
	}{
		{"expression", f.Expression},
		{"reading", f.Reading},
		{"english", f.English},
		{"sentence", f.Sentence},
		{"audio", f.Audio},
	}

	for _, c := range checks {
		if c.index < 0 || c.index >= numFields {
			return &IndexError{
				Field:  c.name,
				Value:  strconv.Itoa(c.index),
				Reason: fmt.Sprintf("note type has %d fields", numFields),
			}
		}
	}
	return nil
}
