// Package config loads application settings with viper.
//
// Values come from defaults, an optional YAML file and PROGRESSOR_-prefixed
// environment variables, in increasing order of precedence. The result is
// checked with validator struct tags before use.
package config
