// Package config loads librarian settings from LIBRARIAN_* environment
// variables (and an optional config file), applies defaults that reproduce
// the classic behavior, and validates the result.
package config
