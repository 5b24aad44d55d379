package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// loads relay server configuration from environment variables
func LoadEnvironmentVariables() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // not an error - production environments may not have .env file
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	customerAPIURL := os.Getenv("CUSTOMER_API_URL")
	environment := os.Getenv("ENVIRONMENT")

	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	if customerAPIURL == "" {
		return nil, fmt.Errorf("CUSTOMER_API_URL environment variable is required")
	}

	if environment == "" {
		environment = "development"
	}

	return &Config{
		JWTSecret:      jwtSecret,
		CustomerAPIURL: customerAPIURL,
		Environment:    environment,
	}, nil
}

// loads operator console configuration from environment variables
func LoadConsoleEnvironment() (*ConsoleConfig, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // optional .env
	}

	address := os.Getenv("RELAY_WS_ENDPOINT")
	if address == "" {
		address = "ws://localhost:8080/api/v1/ws"
	}

	credential := os.Getenv("RELAY_OPERATOR_TOKEN")

	timeout := 10 * time.Second
	if raw := os.Getenv("RELAY_CONNECT_TIMEOUT"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid RELAY_CONNECT_TIMEOUT: %w", err)
		}
		timeout = parsed
	}

	return &ConsoleConfig{
		ServerAddress:  address,
		Credential:     credential,
		ConnectTimeout: timeout,
	}, nil
}
