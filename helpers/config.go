package helpers

import (
	"time"

	"github.com/Jeffail/gabs"
)

// config Saves the bot-config
var config *gabs.Container

// LoadConfig loads the config from $path into $config
func LoadConfig(path string) {
	json, err := gabs.ParseJSONFile(path)

	if err != nil {
		panic(err)
	}

	config = json
}

// SetConfig replaces the loaded config, used by tests and embedded setups
func SetConfig(container *gabs.Container) {
	config = container
}

// GetConfig is a config getter
func GetConfig() *gabs.Container {
	if config == nil {
		config = gabs.New()
	}
	return config
}

// ConfigString returns the string at path or fallback if it is missing
func ConfigString(path string, fallback string) string {
	if value, ok := GetConfig().Path(path).Data().(string); ok {
		return value
	}
	return fallback
}

func ConfigBool(path string, fallback bool) bool {
	if value, ok := GetConfig().Path(path).Data().(bool); ok {
		return value
	}
	return fallback
}

// ConfigFloat returns the number at path, JSON numbers are always float64
func ConfigFloat(path string, fallback float64) float64 {
	if value, ok := GetConfig().Path(path).Data().(float64); ok {
		return value
	}
	return fallback
}

func ConfigInt(path string, fallback int) int {
	return int(ConfigFloat(path, float64(fallback)))
}

func ConfigInt64(path string, fallback int64) int64 {
	return int64(ConfigFloat(path, float64(fallback)))
}

// ConfigDuration parses a duration string like "10m"
func ConfigDuration(path string, fallback time.Duration) time.Duration {
	value := ConfigString(path, "")
	if value == "" {
		return fallback
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return duration
}
