// Package config loads the relay's runtime configuration. Values come
// from an optional JSON file, with FACERELAY_* environment variables
// taking precedence over both the file and the built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the relay's startup configuration. Fields are
// pointers so a partial JSON file only overrides what it names; the
// Get* methods provide fallback defaults for everything else.
type Config struct {
	// Server params
	Listen *string `json:"listen,omitempty"`

	// Model params
	ModelPath *string `json:"model_path,omitempty"`
	ModelURL  *string `json:"model_url,omitempty"`

	// Engine params
	MQTTBroker    *string `json:"mqtt_broker,omitempty"`
	RequestTopic  *string `json:"request_topic,omitempty"`
	ResponseTopic *string `json:"response_topic,omitempty"`

	// Tracking params
	DetectTimeout *string `json:"detect_timeout,omitempty"` // duration string like "1s"
}

// Load reads the config file at path (empty path skips the file),
// applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		cleanPath := filepath.Clean(path)
		if ext := filepath.Ext(cleanPath); ext != ".json" {
			return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
		}
		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays FACERELAY_* environment variables onto the config.
func (c *Config) applyEnv() {
	overlay := func(dst **string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = &v
		}
	}
	overlay(&c.Listen, "FACERELAY_LISTEN")
	overlay(&c.ModelPath, "FACERELAY_MODEL")
	overlay(&c.ModelURL, "FACERELAY_MODEL_URL")
	overlay(&c.MQTTBroker, "FACERELAY_MQTT_BROKER")
	overlay(&c.RequestTopic, "FACERELAY_REQUEST_TOPIC")
	overlay(&c.ResponseTopic, "FACERELAY_RESPONSE_TOPIC")
	overlay(&c.DetectTimeout, "FACERELAY_DETECT_TIMEOUT")
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.DetectTimeout != nil && *c.DetectTimeout != "" {
		d, err := time.ParseDuration(*c.DetectTimeout)
		if err != nil {
			return fmt.Errorf("invalid detect_timeout '%s': %w", *c.DetectTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("detect_timeout must be positive, got %s", d)
		}
	}
	return nil
}

// GetListen returns the listen address or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8000"
	}
	return *c.Listen
}

// GetModelPath returns the on-disk landmark model path or the default.
func (c *Config) GetModelPath() string {
	if c.ModelPath == nil || *c.ModelPath == "" {
		return "face_landmarker.task"
	}
	return *c.ModelPath
}

// GetModelURL returns the model download URL or the default.
func (c *Config) GetModelURL() string {
	if c.ModelURL == nil || *c.ModelURL == "" {
		return "https://storage.googleapis.com/mediapipe-models/face_landmarker/face_landmarker/float16/latest/face_landmarker.task"
	}
	return *c.ModelURL
}

// GetMQTTBroker returns the broker URL, or "" when no broker is
// configured and the in-process engine should be used.
func (c *Config) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return ""
	}
	return *c.MQTTBroker
}

// GetRequestTopic returns the detection request topic or the default.
func (c *Config) GetRequestTopic() string {
	if c.RequestTopic == nil || *c.RequestTopic == "" {
		return "facerelay/detect/request"
	}
	return *c.RequestTopic
}

// GetResponseTopic returns the detection response topic or the default.
func (c *Config) GetResponseTopic() string {
	if c.ResponseTopic == nil || *c.ResponseTopic == "" {
		return "facerelay/detect/response"
	}
	return *c.ResponseTopic
}

// GetDetectTimeout parses and returns DetectTimeout as a time.Duration.
func (c *Config) GetDetectTimeout() time.Duration {
	if c.DetectTimeout == nil || *c.DetectTimeout == "" {
		return time.Second
	}
	d, err := time.ParseDuration(*c.DetectTimeout)
	if err != nil {
		return time.Second
	}
	return d
}
