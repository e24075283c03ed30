package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigResolver resolves settings with precedence:
// 1. Config file values
// 2. Environment variables
// 3. Default values
type ConfigResolver struct {
	configData map[string]interface{}
	envPrefix  string
}

// NewConfigResolver creates a resolver. A missing or unreadable file is not an
// error; env vars and defaults are used instead.
func NewConfigResolver(configPath string) *ConfigResolver {
	resolver := &ConfigResolver{}
	if configPath != "" {
		if data, err := LoadConfigFile(configPath); err == nil {
			resolver.configData = data
		}
	}
	return resolver
}

// NewConfigResolverWithPrefix creates a resolver whose env lookups are prefixed,
// e.g. prefix "DATACORE_" turns DB_HOST into DATACORE_DB_HOST.
func NewConfigResolverWithPrefix(configPath, envPrefix string) *ConfigResolver {
	resolver := NewConfigResolver(configPath)
	resolver.envPrefix = envPrefix
	return resolver
}

// NewConfigResolverFromMap builds a resolver over already-parsed data.
func NewConfigResolverFromMap(data map[string]interface{}) *ConfigResolver {
	return &ConfigResolver{configData: data}
}

func (cr *ConfigResolver) GetString(configKey, envKey, defaultValue string) string {
	if value, exists := cr.getNestedValue(configKey); exists {
		if str, ok := toString(value); ok {
			return str
		}
	}
	if envValue := cr.lookupEnv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

func (cr *ConfigResolver) GetInt(configKey, envKey string, defaultValue int) int {
	if value, exists := cr.getNestedValue(configKey); exists {
		if intVal, ok := toInt(value); ok {
			return intVal
		}
	}
	if envValue := cr.lookupEnv(envKey); envValue != "" {
		if parsed, err := strconv.Atoi(envValue); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (cr *ConfigResolver) GetFloat(configKey, envKey string, defaultValue float64) float64 {
	if value, exists := cr.getNestedValue(configKey); exists {
		if f, ok := toFloat(value); ok {
			return f
		}
	}
	if envValue := cr.lookupEnv(envKey); envValue != "" {
		if parsed, err := strconv.ParseFloat(envValue, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (cr *ConfigResolver) GetBool(configKey, envKey string, defaultValue bool) bool {
	if value, exists := cr.getNestedValue(configKey); exists {
		if boolVal, ok := toBool(value); ok {
			return boolVal
		}
	}
	if envValue := cr.lookupEnv(envKey); envValue != "" {
		if boolVal, ok := toBool(envValue); ok {
			return boolVal
		}
	}
	return defaultValue
}

// GetDuration accepts either a Go duration string ("1.5s") or a bare integer,
// which is read as milliseconds.
func (cr *ConfigResolver) GetDuration(configKey, envKey string, defaultValue time.Duration) time.Duration {
	if value, exists := cr.getNestedValue(configKey); exists {
		if d, ok := toDuration(value); ok {
			return d
		}
	}
	if envValue := cr.lookupEnv(envKey); envValue != "" {
		if d, ok := toDuration(envValue); ok {
			return d
		}
	}
	return defaultValue
}

func (cr *ConfigResolver) GetStringSlice(configKey, envKey string, defaultValue []string) []string {
	if value, exists := cr.getNestedValue(configKey); exists {
		if slice, ok := toStringSlice(value); ok {
			return slice
		}
	}
	if envValue := cr.lookupEnv(envKey); envValue != "" {
		parts := strings.Split(envValue, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// GetMapSlice returns a list of mappings from the config file only, e.g. the
// replica list under database.read. There is no env fallback for structured lists.
func (cr *ConfigResolver) GetMapSlice(configKey string) []map[string]interface{} {
	value, exists := cr.getNestedValue(configKey)
	if !exists {
		return nil
	}
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}
	result := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			result = append(result, m)
		}
	}
	return result
}

// Sub returns a resolver rooted at a nested mapping. Env lookups are unchanged.
func (cr *ConfigResolver) Sub(data map[string]interface{}) *ConfigResolver {
	return &ConfigResolver{configData: data, envPrefix: cr.envPrefix}
}

func (cr *ConfigResolver) HasConfigFile() bool {
	return cr.configData != nil
}

// GetLoadedConfigKeys returns all dotted keys present in the loaded file.
func (cr *ConfigResolver) GetLoadedConfigKeys() []string {
	if cr.configData == nil {
		return nil
	}
	return extractKeys(cr.configData, "")
}

func (cr *ConfigResolver) lookupEnv(envKey string) string {
	if envKey == "" {
		return ""
	}
	return os.Getenv(cr.envPrefix + envKey)
}

func (cr *ConfigResolver) getNestedValue(key string) (interface{}, bool) {
	if cr.configData == nil || key == "" {
		return nil, false
	}

	parts := strings.Split(key, ".")
	current := cr.configData
	for i, part := range parts {
		value, exists := current[part]
		if !exists {
			return nil, false
		}
		if i == len(parts)-1 {
			return value, true
		}
		next, ok := value.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

func toString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func toBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		return v != 0, true
	}
	return false, false
}

func toDuration(value interface{}) (time.Duration, bool) {
	switch v := value.(type) {
	case int:
		return time.Duration(v) * time.Millisecond, true
	case int64:
		return time.Duration(v) * time.Millisecond, true
	case float64:
		return time.Duration(v * float64(time.Millisecond)), true
	case string:
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond, true
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d, true
		}
	}
	return 0, false
}

func toStringSlice(value interface{}) ([]string, bool) {
	switch v := value.(type) {
	case []interface{}:
		result := make([]string, len(v))
		for i, item := range v {
			str, ok := toString(item)
			if !ok {
				return nil, false
			}
			result[i] = str
		}
		return result, true
	case []string:
		return v, true
	case string:
		return []string{v}, true
	}
	return nil, false
}

func extractKeys(data map[string]interface{}, prefix string) []string {
	var keys []string
	for key, value := range data {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if subMap, ok := value.(map[string]interface{}); ok {
			keys = append(keys, extractKeys(subMap, fullKey)...)
		} else {
			keys = append(keys, fullKey)
		}
	}
	return keys
}

// LoadConfigFile parses a yaml file into a generic map.
func LoadConfigFile(configPath string) (map[string]interface{}, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config map[string]interface{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}
