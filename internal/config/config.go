// Package config loads service configuration from the environment,
// optionally overlaid with a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"rt-transcribe/internal/service/session"
	"rt-transcribe/internal/translate"
)

type Config struct {
	Soniox    Soniox    `yaml:"soniox"`
	Languages Languages `yaml:"languages"`
	Translate Translate `yaml:"translate"`
	Kafka     Kafka     `yaml:"kafka"`
	Metrics   Metrics   `yaml:"metrics"`
	Log       Log       `yaml:"log"`
}

type Soniox struct {
	APIKey string `yaml:"api_key"`
	URL    string `yaml:"url"`
	Model  string `yaml:"model"`
}

type Languages struct {
	Primary string `yaml:"primary"`
	Foreign string `yaml:"foreign"`
}

type Translate struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type Kafka struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	TopicPartial string   `yaml:"topic_partial"`
	TopicFinal   string   `yaml:"topic_final"`
	Principal    string   `yaml:"principal"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from the environment with sensible defaults.
func Load() *Config {
	return &Config{
		Soniox: Soniox{
			APIKey: os.Getenv("SONIOX_API_KEY"),
			URL:    envOrDefault("SONIOX_WS_URL", session.DefaultURL),
			Model:  os.Getenv("SONIOX_MODEL"),
		},
		Languages: Languages{
			Primary: envOrDefault("PRIMARY_LANGUAGE", "en"),
			Foreign: envOrDefault("FOREIGN_LANGUAGE", "hr"),
		},
		Translate: Translate{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  envOrDefault("DEFAULT_TRANSLATE_MODEL", translate.DefaultModel),
		},
		Kafka: Kafka{
			Enabled:      envBool("KAFKA_ENABLED", false),
			Brokers:      envList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicPartial: envOrDefault("KAFKA_TOPIC_PARTIAL", "transcripts.partial"),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "transcripts.final"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", "rt-transcribe"),
		},
		Metrics: Metrics{
			Addr: os.Getenv("METRICS_ADDR"),
		},
		Log: Log{
			Level:  envOrDefault("LOG_LEVEL", "info"),
			Format: envOrDefault("LOG_FORMAT", "console"),
		},
	}
}

// LoadFile loads the environment config and overlays values from a YAML
// file. File values win over environment values.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
