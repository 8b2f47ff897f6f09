package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validProductionConfig() *Config {
	return &Config{
		Port:            "8476",
		Env:             "production",
		DBPassword:      "secure-password",
		DBSSLMode:       "require",
		DiscordToken:    "bot-token",
		DiscordClientID: "123456789",
		DiscordSecret:   "client-secret",
		HomeGuildID:     "987654321",
		StateSecret:     "state-secret-at-least-32-chars-long!!",
	}
}

func TestConfig_ValidateProduction(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"Complete production config", func(c *Config) {}, false},
		{"Missing Discord token", func(c *Config) { c.DiscordToken = "" }, true},
		{"Missing client credentials", func(c *Config) { c.DiscordClientID = "" }, true},
		{"Missing home guild", func(c *Config) { c.HomeGuildID = "" }, true},
		{"Default state secret", func(c *Config) { c.StateSecret = "state-secret-change-in-production" }, true},
		{"Short state secret", func(c *Config) { c.StateSecret = "short" }, true},
		{"Default DB password", func(c *Config) { c.DBPassword = "password" }, true},
		{"Missing port", func(c *Config) { c.Port = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validProductionConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateDevelopmentIsLenient(t *testing.T) {
	c := &Config{
		Port: "8476",
		Env:  "development",
	}
	assert.NoError(t, c.Validate())
}
