package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Provider  ProviderConfig  `yaml:"provider"`
	ColisDesk ColisDeskConfig `yaml:"colisdesk"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	ParcelChangedTopicName string `yaml:"parcel_changed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ProviderConfig points at the delivery provider's two APIs. mode: "fake"
// runs the whole stack without upstream access.
type ProviderConfig struct {
	Mode        string `yaml:"mode"` // "real" | "fake"
	SoapURL     string `yaml:"soap_url"`
	RestBaseURL string `yaml:"rest_base_url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

type ColisDeskConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	StatsTTLSeconds     int `yaml:"stats_ttl_seconds"`
	ProvincesTTLSeconds int `yaml:"provinces_ttl_seconds"`

	ListMaxPages         int `yaml:"list_max_pages"`
	PageFetchConcurrency int `yaml:"page_fetch_concurrency"`

	BulkRateLimitPerMinute int `yaml:"bulk_rate_limit_per_minute"`

	StatsRefreshIntervalSeconds int `yaml:"stats_refresh_interval_seconds"`
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

	return &config, nil
}
