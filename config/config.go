package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains all application settings
type Config struct {
	BindPort int    `mapstructure:"PORT" yaml:"port"`
	BindHost string `mapstructure:"HOST" yaml:"host"`

	// StorageDriver is one of memory, postgres, sqlite3 or mongo.
	StorageDriver string `mapstructure:"STORAGE_DRIVER" yaml:"storage_driver"`
	DatabaseURL   string `mapstructure:"DATABASE_URL" yaml:"database_url"`
	MongoURL      string `mapstructure:"MONGO_URL" yaml:"mongo_url"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE" yaml:"mongo_database"`

	NATSServerURL     string `mapstructure:"NATS_URL" yaml:"nats_url"`
	NATSSubjectPrefix string `mapstructure:"NATS_SUBJECT_PREFIX" yaml:"nats_subject_prefix"`

	MQTTBrokerURL   string `mapstructure:"MQTT_URL" yaml:"mqtt_url"`
	MQTTClientID    string `mapstructure:"MQTT_CLIENT_ID" yaml:"mqtt_client_id"`
	MQTTUsername    string `mapstructure:"MQTT_USERNAME" yaml:"mqtt_username"`
	MQTTPassword    string `mapstructure:"MQTT_PASSWORD" yaml:"mqtt_password"`
	MQTTTopicPrefix string `mapstructure:"MQTT_TOPIC_PREFIX" yaml:"mqtt_topic_prefix"`

	InfluxDBURL    string `mapstructure:"INFLUXDB_URL" yaml:"influxdb_url"`
	InfluxDBToken  string `mapstructure:"INFLUXDB_TOKEN" yaml:"influxdb_token"`
	InfluxDBOrg    string `mapstructure:"INFLUXDB_ORG" yaml:"influxdb_org"`
	InfluxDBBucket string `mapstructure:"INFLUXDB_BUCKET" yaml:"influxdb_bucket"`

	JWTSecret string `mapstructure:"JWT_SECRET" yaml:"jwt_secret"`

	SignatureScheme  string        `mapstructure:"SIGNATURE_SCHEME" yaml:"signature_scheme"`
	SignatureMaxSkew time.Duration `mapstructure:"SIGNATURE_MAX_SKEW" yaml:"signature_max_skew"`
	AuthTimeout      time.Duration `mapstructure:"AUTH_TIMEOUT" yaml:"auth_timeout"`
	OutboxSize       int           `mapstructure:"OUTBOX_SIZE" yaml:"outbox_size"`

	LogLevel  string `mapstructure:"LOG_LEVEL" yaml:"log_level"`
	LogFormat string `mapstructure:"LOG_FORMAT" yaml:"log_format"`

	// Version
	BuildVersion string `yaml:"-"`
	BuildHash    string `yaml:"-"`
	BuildTime    string `yaml:"-"`
}

const masked = "********"

// Masked returns a copy with secrets replaced.
func (c Config) Masked() Config {
	for _, s := range []*string{&c.JWTSecret, &c.InfluxDBToken, &c.MQTTPassword} {
		if *s != "" {
			*s = masked
		}
	}
	c.DatabaseURL = maskURLPassword(c.DatabaseURL)
	c.MongoURL = maskURLPassword(c.MongoURL)
	return c
}

// MinJWTSecretLength is the shortest accepted JWT_SECRET.
const MinJWTSecretLength = 32

// ValidateGateway reports settings the gateway can't run with.
func (c Config) ValidateGateway() error {
	var errs []string
	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(c.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Sprintf("JWT_SECRET must be at least %d characters", MinJWTSecretLength))
	}
	if c.BindPort < 1 || c.BindPort > 65535 {
		errs = append(errs, "PORT must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
