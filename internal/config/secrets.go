// internal/config/secrets.go

package config

import (
	"fmt"
	"os"
)

// RequireSecret retrieves a secret that must be set in the environment.
func RequireSecret(key string) (string, error) {
	secret := os.Getenv(key)
	if secret == "" {
		return "", fmt.Errorf("required environment variable %s not set", key)
	}
	return secret, nil
}
