// Package cli builds the k2a command tree. It loads the INI config with the
// command-line overrides bound on top, backs the collection up, opens it,
// wires the dictionary, audio sources and processor together and maps fatal
// errors onto process exit codes.
package cli
