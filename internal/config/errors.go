package config

import (
	"errors"
	"fmt"
)

// ErrConfig matches every configuration error via errors.Is
var ErrConfig = errors.New("configuration error")

// ConfigError is a fatal configuration problem detected before any network call
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrConfig) match any ConfigError
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

func configErr(field string, format string, args ...any) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}
