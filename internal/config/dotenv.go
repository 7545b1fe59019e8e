package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files, .env.local taking priority over .env.
// godotenv never overwrites variables already set, so OS environment always
// wins. Returns the files actually found.
func LoadDotEnv() []string {
	candidates := []string{".env.local", ".env"}
	var found []string
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			found = append(found, f)
		}
	}
	if len(found) > 0 {
		_ = godotenv.Load(found...)
	}
	return found
}
