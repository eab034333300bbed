package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the bridge configuration, read from a YAML file with environment
// overrides for the secrets.
type Config struct {
	Portal PortalConfig `yaml:"portal"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Bridge BridgeConfig `yaml:"bridge"`
	Log    LogConfig    `yaml:"log"`
}

type PortalConfig struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Region     string `yaml:"region"`
	ExpertMode bool   `yaml:"expert_mode"`
}

type MQTTConfig struct {
	BrokerURL   string `yaml:"broker_url"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

type BridgeConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig reads the configuration file, applies environment overrides and
// defaults, and validates the result.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if cfg.Portal.Username == "" || cfg.Portal.Password == "" {
		return nil, fmt.Errorf("portal username and password are required")
	}
	if cfg.MQTT.BrokerURL == "" {
		return nil, fmt.Errorf("mqtt broker_url is required")
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WOLF_USERNAME"); v != "" {
		c.Portal.Username = v
	}
	if v := os.Getenv("WOLF_PASSWORD"); v != "" {
		c.Portal.Password = v
	}
	if v := os.Getenv("MQTT_BROKER_URL"); v != "" {
		c.MQTT.BrokerURL = v
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Portal.Region == "" {
		c.Portal.Region = "en"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "wolf-mqtt-bridge"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "wolf"
	}
	if c.Bridge.PollInterval == 0 {
		c.Bridge.PollInterval = time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
