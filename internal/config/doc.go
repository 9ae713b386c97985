// Package config loads the k2a INI configuration: collection location,
// note type and deck names, and the positions of the five note fields k2a
// writes. Files are parsed with ini.v1 and merged into viper so that
// K2A_ environment variables can override any value.
package config
