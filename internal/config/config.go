package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database" validate:"required"`
	Tracker     TrackerConfig     `mapstructure:"tracker" validate:"required"`
	Progression ProgressionConfig `mapstructure:"progression" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"omitempty,oneof=json text"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// DatabaseConfig selects and tunes the persistence backend.
// The memory driver keeps all state in process and ignores the remaining fields.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	URL             string        `mapstructure:"url" validate:"required_if=Driver postgres"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// Delete policies for cards that still have time entries.
const (
	DeletePolicyCascade = "cascade"
	DeletePolicyReject  = "reject"
)

// TrackerConfig contains settings for card tracking and aggregation.
type TrackerConfig struct {
	// DeletePolicy decides what happens to a card's time entries on delete.
	DeletePolicy string `mapstructure:"delete_policy" validate:"required,oneof=cascade reject"`
	// Timezone is the IANA zone used to split daily totals at local midnight.
	Timezone string `mapstructure:"timezone" validate:"required,timezone"`
}

// Location resolves Timezone. Callers should only use it on a validated config.
func (c TrackerConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// ProgressionConfig tunes the experience formula.
type ProgressionConfig struct {
	XPPerMinute   float64 `mapstructure:"xp_per_minute" validate:"gt=0"`
	OnTimeBonus   float64 `mapstructure:"on_time_bonus" validate:"gte=1"`
	LevelConstant float64 `mapstructure:"level_constant" validate:"gt=0"`
}
