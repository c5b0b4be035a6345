package config

import (
	"os"
	"path/filepath"
	"time"
)

// CLIConfig configures the sourcetrak command line client.
type CLIConfig struct {
	APIBaseURL   string
	PublicOrigin string
	APITimeout   time.Duration
	StateDir     string // where the session snapshot lives
	CacheDB      DBConfig
}

// LoadCLIConfig reads the same API_BASE_URL/PUBLIC_ORIGIN variables as the
// web service plus SOURCETRAK_HOME for local state (default ~/.sourcetrak).
func LoadCLIConfig() CLIConfig {
	LoadDotEnv()
	home := os.Getenv("SOURCETRAK_HOME")
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(h, ".sourcetrak")
		} else {
			home = ".sourcetrak"
		}
	}
	return CLIConfig{
		APIBaseURL:   getenv("API_BASE_URL", "https://staging.sourcetrak.com/api"),
		PublicOrigin: getenv("PUBLIC_ORIGIN", "https://app.sourcetrak.com"),
		APITimeout:   envDur("API_TIMEOUT", 15*time.Second),
		StateDir:     home,
		CacheDB:      loadDB("CACHE_DB", "file:"+filepath.Join(home, "entries.db")+"?_pragma=busy_timeout(5000)"),
	}
}
