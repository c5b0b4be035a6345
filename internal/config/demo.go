package config

import "golang.org/x/crypto/bcrypt"

// DemoConfig configures the standalone demo backend.
type DemoConfig struct {
	Port       string
	DB         DBConfig
	BcryptCost int
}

// LoadDemoConfig reads DEMO_* variables.  Without DEMO_DB_DSN the backend
// keeps its data in a local SQLite file.
func LoadDemoConfig() DemoConfig {
	LoadDotEnv()
	cfg := DemoConfig{
		Port:       getenv("DEMO_PORT", "8081"),
		DB:         loadDB("DEMO_DB", "file:sourcetrak-demo.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"),
		BcryptCost: envInt("BCRYPT_COST", bcrypt.DefaultCost),
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return cfg
}
