package config

// Config holds all application configuration.
type Config struct {
	LogLevel string      `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	Store    StoreConfig `mapstructure:"store" validate:"required"`
	Fines    FinesConfig `mapstructure:"fines" validate:"required"`
}

// StoreConfig selects the storage backend. Both backends are in-memory.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory sqlite"`
}

// FinesConfig holds the flat overdue fine policy.
type FinesConfig struct {
	RatePerDay float64 `mapstructure:"rate_per_day" validate:"gte=0"`
	Currency   string  `mapstructure:"currency" validate:"required,len=3,alpha"`
}

const (
	// BackendMemory keeps records in Go slices.
	BackendMemory = "memory"

	// BackendSQLite keeps records in an in-memory SQLite database.
	BackendSQLite = "sqlite"
)
