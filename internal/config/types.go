package config

import "time"

// holds relay server configuration loaded from the environment
type Config struct {
	JWTSecret      string
	CustomerAPIURL string
	Environment    string
}

// holds client-role connection settings for the operator console
type ConsoleConfig struct {
	ServerAddress  string
	Credential     string
	ConnectTimeout time.Duration
}
