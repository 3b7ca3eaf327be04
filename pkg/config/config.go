// Package config resolves run settings from the config file,
// environment, and flags, in that order of increasing precedence.
// Flag binding happens in cmd; this package only reads the merged
// viper state.
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const defaultTimeout = 30 * time.Minute

// Settings are the resolved run settings.
type Settings struct {
	Region  string
	Profile string
	// Timeout bounds a whole run, waiters included.
	Timeout time.Duration
	// DocumentDir is prepended to relative document paths.
	DocumentDir string
}

// FromViper reads settings from the merged viper state. Unset keys
// get defaults; an explicitly empty region is left empty so the
// document's region wins.
func FromViper(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Region:  v.GetString("aws.region"),
		Profile: v.GetString("aws.profile"),
		Timeout: defaultTimeout,
	}

	if v.IsSet("general.timeout") {
		s.Timeout = v.GetDuration("general.timeout")
		if s.Timeout <= 0 {
			return nil, fmt.Errorf("general.timeout must be positive, got %s", v.GetString("general.timeout"))
		}
	}

	if v.IsSet("general.document_dir") {
		dir, err := homedir.Expand(v.GetString("general.document_dir"))
		if err != nil {
			return nil, fmt.Errorf("failed to expand document dir: %w", err)
		}
		s.DocumentDir = dir
	}

	return s, nil
}
