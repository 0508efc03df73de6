package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	URL            string `yaml:"url"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	Listen         string `yaml:"listen"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func readConfig(filename string) (Config, error) {
	var config Config

	data, err := os.ReadFile(filename)
	if err != nil {
		if !os.IsNotExist(err) {
			return config, err
		}
		// No config file is fine; the environment can carry everything.
	} else if err := yaml.Unmarshal(data, &config); err != nil {
		return config, err
	}

	// Environment overrides (godotenv has already loaded .env).
	if v := os.Getenv("QSW_URL"); v != "" {
		config.URL = v
	}
	if v := os.Getenv("QSW_USERNAME"); v != "" {
		config.Username = v
	}
	if v := os.Getenv("QSW_PASSWORD"); v != "" {
		config.Password = v
	}
	if v := os.Getenv("QSW_LISTEN"); v != "" {
		config.Listen = v
	}

	if config.Listen == "" {
		config.Listen = ":9855"
	}
	if config.TimeoutSeconds == 0 {
		config.TimeoutSeconds = 60
	}

	if config.URL == "" || config.Username == "" || config.Password == "" {
		return config, fmt.Errorf("missing required configuration fields (url, username, password)")
	}
	return config, nil
}

func (c Config) scrapeTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
