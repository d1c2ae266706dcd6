package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BearBump/RouteWatch/internal/services/delay"
	"github.com/go-playground/validator/v10"
	"go.yaml.in/yaml/v4"
)

// Environment variables that override the file.
const (
	EnvGoogleMapsAPIKey        = "GOOGLE_MAPS_API_KEY"
	EnvThresholdPercentage     = "TRAFFIC_DELAY_THRESHOLD_PERCENTAGE"
	EnvPredictionAPIKey        = "MY_TRAFFIC_API_KEY"
	EnvFirebaseCredentialsFile = "FIREBASE_CREDENTIALS_FILE"

	DefaultThresholdPercentage = delay.DefaultThresholdPercentage
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Log        LogConfig        `yaml:"log"`
	Scan       ScanConfig       `yaml:"scan"`
	Directions DirectionsConfig `yaml:"directions"`
	Push       PushConfig       `yaml:"push"`
	API        APIConfig        `yaml:"api"`
	Prediction PredictionConfig `yaml:"prediction"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN returns a pgx connection string, or "" when no host is configured.
func (d DatabaseConfig) DSN() string {
	if d.Host == "" {
		return ""
	}
	ssl := d.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.Username, d.Password, d.Host, d.Port, d.DBName, ssl)
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port" validate:"gte=0,lte=65535"`
	TrafficAlertsTopicName string `yaml:"traffic_alerts_topic_name"`
	ConsumerGroup          string `yaml:"consumer_group"`
}

func (k KafkaConfig) Addr() string {
	if k.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", k.Host, k.Port)
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"gte=0,lte=65535"`
}

func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

type ScanConfig struct {
	HTTPAddr       string `yaml:"http_addr"`
	Timezone       string `yaml:"timezone"`
	ScheduleMinute int    `yaml:"schedule_minute" validate:"gte=0,lte=59"`
	RunOnStart     bool   `yaml:"run_on_start"`

	// nil means DefaultThresholdPercentage; 0 alerts on any delay.
	ThresholdPercentage *int  `yaml:"threshold_percentage"`
	Concurrency         int   `yaml:"concurrency" validate:"gte=0"`
	SendTimeoutSeconds  int   `yaml:"send_timeout_seconds" validate:"gte=0"`
	RateLimitPerMinute  int64 `yaml:"rate_limit_per_minute" validate:"gte=0"`
}

func (s ScanConfig) Threshold() int {
	if s.ThresholdPercentage == nil {
		return DefaultThresholdPercentage
	}
	return *s.ThresholdPercentage
}

type DirectionsConfig struct {
	Mode              string  `yaml:"mode" validate:"omitempty,oneof=google fake"`
	BaseURL           string  `yaml:"base_url" validate:"omitempty,url"`
	APIKey            string  `yaml:"api_key"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" validate:"gte=0"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

type PushConfig struct {
	Mode                    string `yaml:"mode" validate:"omitempty,oneof=fcm kafka fake"`
	FirebaseCredentialsFile string `yaml:"firebase_credentials_file"`
	FirebaseProjectID       string `yaml:"firebase_project_id"`
}

type APIConfig struct {
	HTTPAddr           string   `yaml:"http_addr"`
	APIKey             string   `yaml:"api_key"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	RelayAlerts        bool     `yaml:"relay_alerts"`
	RelayMaxAgeSeconds int      `yaml:"relay_max_age_seconds" validate:"gte=0"`
}

type PredictionConfig struct {
	ModelFile       string `yaml:"model_file"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" validate:"gte=0"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyEnv overlays the environment on top of the file values.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvGoogleMapsAPIKey); ok && v != "" {
		c.Directions.APIKey = v
	}
	if v, ok := lookup(EnvPredictionAPIKey); ok && v != "" {
		c.API.APIKey = v
	}
	if v, ok := lookup(EnvFirebaseCredentialsFile); ok && v != "" {
		c.Push.FirebaseCredentialsFile = v
	}
	if v, ok := lookup(EnvThresholdPercentage); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvThresholdPercentage, v, err)
		}
		c.Scan.ThresholdPercentage = &n
	}
	return nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
