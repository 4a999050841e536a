package provider

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mstgnz/hyperpay/infra/config"
)

var typeRules = map[string]string{
	"number":  "numeric",
	"url":     "url",
	"email":   "email",
	"boolean": "boolean",
}

// ValidateConfigFields validates configuration against provided field definitions
func ValidateConfigFields(providerName string, cfg map[string]string, requiredFields []ConfigField) error {
	for _, field := range requiredFields {
		value, exists := cfg[field.Key]

		if field.Required {
			if !exists {
				return fmt.Errorf("%s: required field '%s' is missing", providerName, field.Key)
			}
			if strings.TrimSpace(value) == "" {
				return fmt.Errorf("%s: required field '%s' cannot be empty", providerName, field.Key)
			}
		} else if strings.TrimSpace(value) == "" {
			continue
		}

		if err := validateFieldType(providerName, field, value); err != nil {
			return err
		}
		if err := validateFieldPattern(providerName, field, value); err != nil {
			return err
		}
		if err := validateFieldLength(providerName, field, value); err != nil {
			return err
		}
	}

	return nil
}

func validateFieldType(providerName string, field ConfigField, value string) error {
	rule, ok := typeRules[field.Type]
	if !ok {
		return nil
	}
	if err := config.App().Validator.Var(value, rule); err != nil {
		return fmt.Errorf("%s: field '%s' must be a valid %s", providerName, field.Key, field.Type)
	}
	return nil
}

func validateFieldPattern(providerName string, field ConfigField, value string) error {
	if field.Pattern == "" {
		return nil
	}

	matched, err := regexp.MatchString(field.Pattern, value)
	if err != nil {
		return fmt.Errorf("%s: invalid pattern for field '%s': %v", providerName, field.Key, err)
	}
	if !matched {
		return fmt.Errorf("%s: field '%s' does not match required pattern", providerName, field.Key)
	}
	return nil
}

func validateFieldLength(providerName string, field ConfigField, value string) error {
	if field.MinLength > 0 && len(value) < field.MinLength {
		return fmt.Errorf("%s: field '%s' must be at least %d characters", providerName, field.Key, field.MinLength)
	}
	if field.MaxLength > 0 && len(value) > field.MaxLength {
		return fmt.Errorf("%s: field '%s' must not exceed %d characters", providerName, field.Key, field.MaxLength)
	}
	return nil
}
