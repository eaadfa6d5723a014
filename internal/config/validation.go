package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, entityType string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required for %s", entityType),
		}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateEntityName validates that a queue or endpoint name is usable.
func ValidateEntityName(name, entityType string) error {
	if err := ValidateRequired("name", name, entityType); err != nil {
		return err
	}
	if strings.ContainsAny(name, " '") {
		return ValidationError{
			Field:   "name",
			Value:   name,
			Message: "cannot contain spaces or quotes",
		}
	}
	return nil
}

// Validate checks the configuration and returns every problem found, or nil.
func (c Config) Validate(path string) error {
	errs := NewConfigurationErrorCollection()
	fileName := filepath.Base(path)

	add := func(category, message string, suggestions ...string) {
		errs.Add(NewConfigurationErrorWithDetails(path, fileName, "config", category, "validation", message, "", suggestions))
	}

	d := c.Defaults
	for field, v := range map[string]int64{
		"defaults.receiveTimeout":  int64(d.ReceiveTimeout),
		"defaults.pollingInterval": int64(d.PollingInterval),
		"defaults.waitTimeout":     int64(d.WaitTimeout),
		"defaults.waitInterval":    int64(d.WaitInterval),
		"defaults.caseTimeout":     int64(d.CaseTimeout),
		"defaults.asyncGrace":      int64(d.AsyncGrace),
	} {
		if v < 0 {
			add("defaults", fmt.Sprintf("%s must not be negative", field))
		}
	}

	queues := map[string]bool{}
	for i, q := range c.Queues {
		if err := ValidateEntityName(q.Name, "queue"); err != nil {
			add("queues", fmt.Sprintf("queue #%d: %v", i+1, err))
			continue
		}
		if queues[q.Name] {
			add("queues", fmt.Sprintf("duplicate queue '%s'", q.Name))
		}
		queues[q.Name] = true
	}

	endpoints := map[string]bool{}
	for i, e := range c.Endpoints {
		if err := ValidateEntityName(e.Name, "endpoint"); err != nil {
			add("endpoints", fmt.Sprintf("endpoint #%d: %v", i+1, err))
			continue
		}
		if endpoints[e.Name] {
			add("endpoints", fmt.Sprintf("duplicate endpoint '%s'", e.Name))
		}
		endpoints[e.Name] = true

		if err := ValidateOneOf("type", e.Type, []string{EndpointTypeDirect}); err != nil {
			add("endpoints", fmt.Sprintf("endpoint '%s': %v", e.Name, err),
				"set type: direct for in-process queue endpoints")
		}
		if err := ValidateRequired("queue", e.Queue, "endpoint"); err != nil {
			add("endpoints", fmt.Sprintf("endpoint '%s': %v", e.Name, err))
		}
		if e.Timeout < 0 || e.PollingInterval < 0 {
			add("endpoints", fmt.Sprintf("endpoint '%s': durations must not be negative", e.Name))
		}
	}

	if errs.HasErrors() {
		return *errs
	}
	return nil
}
