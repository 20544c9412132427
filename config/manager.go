package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Manager is a flat key/value store filled from configuration sources.
// Keys are lower-case and dot-separated, e.g. "queue.capacity".
type Manager struct {
	values map[string]interface{}
	mu     sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		values: make(map[string]interface{}),
	}
}

// Set sets a configuration value
func (m *Manager) Set(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
}

// LoadFromEnv loads configuration from environment variables.
// PREFIX_READ_TIMEOUT=5s becomes read.timeout.
func (m *Manager) LoadFromEnv(prefix string) {
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}

		if prefix != "" {
			if !strings.HasPrefix(key, prefix+"_") {
				continue
			}
			key = strings.TrimPrefix(key, prefix+"_")
		}

		key = strings.ToLower(key)
		key = strings.ReplaceAll(key, "_", ".")

		m.Set(key, value)
	}
}

// LoadFromJSON loads configuration from JSON file. Nested objects are
// flattened, so {"queue": {"capacity": 4}} and {"queue.capacity": 4} agree.
func (m *Manager) LoadFromJSON(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var values map[string]interface{}
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to parse JSON config: %w", err)
	}

	m.loadFromMap("", values)
	return nil
}

// loadFromMap recursively loads configuration from a map
func (m *Manager) loadFromMap(prefix string, values map[string]interface{}) {
	for key, value := range values {
		fullKey := strings.ToLower(key)
		if prefix != "" {
			fullKey = prefix + "." + fullKey
		}

		if nested, ok := value.(map[string]interface{}); ok {
			m.loadFromMap(fullKey, nested)
		} else {
			m.Set(fullKey, value)
		}
	}
}

// Unmarshal copies values into the fields of the struct target points to.
// Fields are keyed by their `config` tag; a tag of "-" skips the field.
func (m *Manager) Unmarshal(prefix string, target interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	targetValue := reflect.ValueOf(target)
	if targetValue.Kind() != reflect.Ptr {
		return fmt.Errorf("target must be a pointer")
	}

	targetValue = targetValue.Elem()
	if targetValue.Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to struct")
	}

	targetType := targetValue.Type()

	for i := 0; i < targetType.NumField(); i++ {
		field := targetType.Field(i)
		fieldValue := targetValue.Field(i)

		if !fieldValue.CanSet() {
			continue
		}

		configKey := field.Tag.Get("config")
		if configKey == "-" {
			continue
		}
		if configKey == "" {
			configKey = strings.ToLower(field.Name)
		}

		if prefix != "" {
			configKey = prefix + "." + configKey
		}

		value, exists := m.values[configKey]
		if !exists {
			continue
		}

		if err := setFieldValue(fieldValue, value); err != nil {
			return fmt.Errorf("key %s: %w", configKey, err)
		}
	}

	return nil
}

// setFieldValue sets a reflect.Value from an interface{} value
func setFieldValue(field reflect.Value, value interface{}) error {
	if field.Type() == durationType {
		d, err := toDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		if str, ok := value.(string); ok {
			field.SetString(str)
		} else {
			field.SetString(fmt.Sprintf("%v", value))
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch v := value.(type) {
		case int:
			field.SetInt(int64(v))
		case int64:
			field.SetInt(v)
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("%v is not an integer", v)
			}
			field.SetInt(int64(v))
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		default:
			return fmt.Errorf("cannot convert %T to %v", value, field.Type())
		}

	case reflect.Bool:
		switch v := value.(type) {
		case bool:
			field.SetBool(v)
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			field.SetBool(b)
		default:
			return fmt.Errorf("cannot convert %T to bool", value)
		}

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %v", field.Type())
		}
		var items []string
		switch v := value.(type) {
		case []string:
			items = v
		case []interface{}:
			items = make([]string, 0, len(v))
			for _, item := range v {
				str, ok := item.(string)
				if !ok {
					return fmt.Errorf("list item %v is not a string", item)
				}
				items = append(items, str)
			}
		case string:
			// Comma-separated, as from the environment.
			items = splitList(v)
		default:
			return fmt.Errorf("cannot convert %T to %v", value, field.Type())
		}
		field.Set(reflect.ValueOf(items).Convert(field.Type()))

	default:
		valueReflect := reflect.ValueOf(value)
		if !valueReflect.Type().ConvertibleTo(field.Type()) {
			return fmt.Errorf("cannot convert %v to %v", valueReflect.Type(), field.Type())
		}
		field.Set(valueReflect.Convert(field.Type()))
	}

	return nil
}

// toDuration accepts "1.5s"-style strings and plain numbers of seconds
func toDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		return time.ParseDuration(strings.TrimSpace(v))
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case int:
		return time.Duration(v) * time.Second, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to duration", value)
	}
}

// Delete deletes a configuration value
func (m *Manager) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
}
