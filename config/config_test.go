package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMasked(t *testing.T) {
	c := Config{
		JWTSecret:     "secret",
		MQTTPassword:  "",
		InfluxDBToken: "token",
		DatabaseURL:   "postgres://soil:pw@localhost:5432/soil?sslmode=disable",
		MongoURL:      "mongodb://localhost:27017",
	}

	m := c.Masked()
	assert.Equal(t, "********", m.JWTSecret)
	assert.Equal(t, "", m.MQTTPassword)
	assert.Equal(t, "********", m.InfluxDBToken)
	assert.NotContains(t, m.DatabaseURL, ":pw@")
	assert.Contains(t, m.DatabaseURL, "postgres://soil:")
	assert.Contains(t, m.DatabaseURL, "@localhost:5432/soil?sslmode=disable")
	assert.Equal(t, "mongodb://localhost:27017", m.MongoURL)

	assert.Equal(t, "secret", c.JWTSecret)
}

func TestValidateGateway(t *testing.T) {
	secret := strings.Repeat("s", MinJWTSecretLength)

	assert.NoError(t, Config{BindPort: 8080, JWTSecret: secret}.ValidateGateway())

	err := Config{BindPort: 8080}.ValidateGateway()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "JWT_SECRET is required")
	}

	err = Config{BindPort: 8080, JWTSecret: "short"}.ValidateGateway()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "at least 32 characters")
	}

	assert.Error(t, Config{BindPort: 0, JWTSecret: secret}.ValidateGateway())
}
