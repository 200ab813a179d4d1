// Package config loads configuration files (YAML or JSON) into structs,
// applies environment variable overrides, and runs validators.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// Validator validates a loaded configuration.
type Validator interface {
	Validate(config interface{}) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(config interface{}) error

func (f ValidatorFunc) Validate(config interface{}) error {
	return f(config)
}

// Load loads a configuration file into target, detecting the format by
// extension. Unknown extensions default to YAML.
func Load(path string, target interface{}) error {
	if strings.HasSuffix(path, ".json") {
		return LoadJSON(path, target)
	}
	return LoadYAML(path, target)
}

// LoadWithEnv loads a configuration file and then applies environment
// variable overrides of the form PREFIX_FIELD_SUBFIELD.
func LoadWithEnv(path, prefix string, target interface{}) error {
	if err := Load(path, target); err != nil {
		return fmt.Errorf("load config file: %w", err)
	}
	if err := ApplyEnvOverrides(prefix, target); err != nil {
		return fmt.Errorf("apply env overrides: %w", err)
	}
	return nil
}

// Validate runs each validator against config, stopping at the first
// failure.
func Validate(config interface{}, validators ...Validator) error {
	for _, v := range validators {
		if err := v.Validate(config); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// ApplyEnvOverrides overrides struct fields from environment variables.
// target must be a pointer to a struct; nested structs append their field
// name to the prefix.
func ApplyEnvOverrides(prefix string, target interface{}) error {
	if prefix == "" {
		prefix = "APP"
	}
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to a struct")
	}
	return overrideStruct(prefix, val.Elem())
}

func overrideStruct(prefix string, val reflect.Value) error {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !field.CanSet() {
			continue
		}

		key := prefix + "_" + strings.ToUpper(typ.Field(i).Name)
		key = strings.ReplaceAll(key, "-", "_")

		if field.Kind() == reflect.Struct {
			if err := overrideStruct(key, field); err != nil {
				return err
			}
			continue
		}
		if field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct {
			if field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
			if err := overrideStruct(key, field.Elem()); err != nil {
				return err
			}
			continue
		}

		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}
		if err := setField(field, raw); err != nil {
			return fmt.Errorf("set field %s from env %s: %w", typ.Field(i).Name, key, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value %q", raw)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value %q", raw)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid float value %q", raw)
		}
		field.SetFloat(n)
	case reflect.Bool:
		field.SetBool(strings.EqualFold(raw, "true") || raw == "1")
	case reflect.Slice:
		parts := strings.Split(raw, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, part := range parts {
			if err := setField(slice.Index(i), strings.TrimSpace(part)); err != nil {
				return err
			}
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
