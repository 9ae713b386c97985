package cli

// Flags holds all command-line flag values. Flags that override config
// file settings (--deck, --openai-fallback) are bound through viper and
// read back from the loaded config instead.
type Flags struct {
	// Global flags
	CfgFile  string
	Verbose  bool
	NoBackup bool

	// import
	BatchFile  string
	KindleLang string

	// export
	OutFile string
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{
		CfgFile:    "config.ini",
		KindleLang: "ja",
	}
}
