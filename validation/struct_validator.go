package validation

import (
	"net"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// factoryPrefix marks a lookup of a FactoryBean itself and cannot start a name.
const factoryPrefix = "&"

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report fields under their configuration keys.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"mapstructure", "json"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return toSnakeCase(fld.Name)
		})
		_ = validate.RegisterValidation("beanname", func(fl validator.FieldLevel) bool {
			return beanNameProblem(fl.Field().String()) == ""
		})
		_ = validate.RegisterValidation("listen_addr", func(fl validator.FieldLevel) bool {
			return isListenAddr(fl.Field().String())
		})
	})
	return validate
}

// isListenAddr accepts "[host]:port" with port 0 to 65535; port 0 asks the
// system for an ephemeral port.
func isListenAddr(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return false
	}
	if host == "" || net.ParseIP(host) != nil {
		return true
	}
	return !strings.ContainsFunc(host, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.')
	})
}

// Engine returns the shared validator with the beanname and listen_addr
// rules and configuration-key field names registered. Applications can register it
// as a managed object to validate their own structs the same way.
func Engine() *validator.Validate {
	return getValidator()
}

// Validate validates a struct using struct tags such as
// `validate:"required,beanname"` and returns an INVALID_CONFIG error whose
// "fields" detail lists every violation by its dotted configuration key.
func Validate(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return New().Merge("", err).Validate()
	}

	fieldErrors := make([]FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   fieldPath(e.Namespace()),
			Message: formatValidationError(e),
		})
	}
	return fieldsError(fieldErrors)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func beanNameProblem(name string) string {
	switch {
	case strings.TrimSpace(name) == "":
		return "must not be blank"
	case strings.HasPrefix(name, factoryPrefix):
		return "must not start with " + factoryPrefix
	case strings.IndexFunc(name, unicode.IsSpace) >= 0:
		return "must not contain whitespace"
	}
	return ""
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "required_if", "required_with":
		return "is required when " + e.Param() + " is set"
	case "min":
		if e.Kind() == reflect.String {
			return "must be at least " + e.Param() + " characters"
		}
		return "must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "must be at most " + e.Param() + " characters"
		}
		return "must be at most " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "hostname_port", "listen_addr":
		return "must be a host:port address"
	case "url":
		return "must be a valid URL"
	case "beanname":
		if name, ok := e.Value().(string); ok {
			return beanNameProblem(name)
		}
		return "is not a valid name"
	default:
		return "is invalid"
	}
}

// toSnakeCase converts a field name to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			result.WriteRune('_')
		}
		result.WriteRune(unicode.ToLower(r))
	}
	return result.String()
}
