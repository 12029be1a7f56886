package config

import (
	"os"
	"path/filepath"
)

const sessionFileName = "session.yaml"

type Session struct {
	File string `env:"SESSION_FILE"`
	// SingleFlightRefresh collapses refreshes triggered by concurrent 401s.
	SingleFlightRefresh bool `env:"SINGLE_FLIGHT_REFRESH, default=false"`
}

var _ SessionConfig = Session{}

// GetSessionFile defaults to ~/.ctfclient/session.yaml, or ./.ctfclient/session.yaml when
// there is no home directory.
func (s Session) GetSessionFile() string {
	if s.File != "" {
		return s.File
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".ctfclient", sessionFileName)
}

func (s Session) GetSingleFlightRefresh() bool {
	return s.SingleFlightRefresh
}
