// Package auth resolves the QuickCheck bearer token used for both the
// REST API and the websocket handshake.
package auth

import (
	"fmt"
	"os"
	"strings"

	"github.com/quickcheckhq/realtime/internal/config"
)

// LoadToken resolves the bearer token from config. An explicit token
// value wins, then the named environment variable, then the token file.
func LoadToken(cfg config.AuthConfig) (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}

	if cfg.TokenEnv != "" {
		token := os.Getenv(cfg.TokenEnv)
		if token == "" {
			return "", fmt.Errorf("auth: environment variable %s is empty or unset", cfg.TokenEnv)
		}
		return token, nil
	}

	if cfg.TokenFile != "" {
		data, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("auth: read token file: %w", err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("auth: token file %s is empty", cfg.TokenFile)
		}
		return token, nil
	}

	return "", fmt.Errorf("auth: no token source configured")
}
