// Package validation checks settings and declarative definitions before they
// reach the factory.
//
// Struct tags cover single fields; the programmatic Validator covers rules
// that span several fields. Both report an INVALID_CONFIG error whose
// "fields" detail lists each violation.
//
// # Struct Tag Validation
//
//	type BeanSpec struct {
//	    Name  string `mapstructure:"name" validate:"required,beanname"`
//	    Scope string `mapstructure:"scope" validate:"omitempty,oneof=singleton prototype"`
//	}
//	err := validation.Validate(spec)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.ExactlyOne("args[0]", map[string]bool{"value": hasValue, "ref": hasRef})
//	err := v.Validate()
package validation
