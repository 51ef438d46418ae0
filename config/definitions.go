package config

import (
	"fmt"
	"io"
	"reflect"
	"slices"

	"github.com/spf13/viper"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/logger"
	"github.com/kbukum/beankit/typeinfo"
	"github.com/kbukum/beankit/validation"
)

// DefinitionSpec is the declarative form of one descriptor.
//
//	beans:
//	  - name: orderRepository
//	    type: OrderRepository
//	    args:
//	      - ref: dataSource
//	    properties:
//	      - name: table
//	        value: orders
//	    destroy_method: Close
//
// Keys are case-insensitive, so attribute and map value keys arrive
// lower-cased.
type DefinitionSpec struct {
	Name            string          `yaml:"name" mapstructure:"name" validate:"required,beanname"`
	Type            string          `yaml:"type" mapstructure:"type"`
	Parent          string          `yaml:"parent" mapstructure:"parent" validate:"omitempty,beanname"`
	Scope           string          `yaml:"scope" mapstructure:"scope"`
	Abstract        bool            `yaml:"abstract" mapstructure:"abstract"`
	Lazy            bool            `yaml:"lazy" mapstructure:"lazy"`
	Primary         bool            `yaml:"primary" mapstructure:"primary"`
	ExcludeAutowire bool            `yaml:"exclude_from_autowire" mapstructure:"exclude_from_autowire"`
	NonPublic       bool            `yaml:"non_public_access" mapstructure:"non_public_access"`
	Autowire        string          `yaml:"autowire" mapstructure:"autowire" validate:"omitempty,oneof=no byName byType constructor"`
	DependencyCheck string          `yaml:"dependency_check" mapstructure:"dependency_check" validate:"omitempty,oneof=none objects simple all"`
	DependsOn       []string        `yaml:"depends_on" mapstructure:"depends_on" validate:"dive,beanname"`
	Aliases         []string        `yaml:"aliases" mapstructure:"aliases" validate:"dive,beanname"`
	InitMethod      string          `yaml:"init_method" mapstructure:"init_method"`
	DestroyMethod   string          `yaml:"destroy_method" mapstructure:"destroy_method"`
	FactoryMethod   string          `yaml:"factory_method" mapstructure:"factory_method"`
	FactoryBean     string          `yaml:"factory_bean" mapstructure:"factory_bean" validate:"omitempty,beanname"`
	Args            []ArgSpec       `yaml:"args" mapstructure:"args" validate:"dive"`
	Properties      []PropertySpec  `yaml:"properties" mapstructure:"properties" validate:"dive"`
	LookupMethods   []MethodSpec    `yaml:"lookup_methods" mapstructure:"lookup_methods" validate:"dive"`
	ReplacedMethods []MethodSpec    `yaml:"replaced_methods" mapstructure:"replaced_methods" validate:"dive"`
	Qualifiers      []QualifierSpec `yaml:"qualifiers" mapstructure:"qualifiers" validate:"dive"`
	Attributes      map[string]any  `yaml:"attributes" mapstructure:"attributes"`
	Description     string          `yaml:"description" mapstructure:"description"`
}

// ArgSpec is one constructor or factory routine argument. Index, Name and
// Type select how it is matched; without them it is matched generically.
type ArgSpec struct {
	Index *int   `yaml:"index" mapstructure:"index" validate:"omitempty,min=0"`
	Name  string `yaml:"name" mapstructure:"name"`
	Type  string `yaml:"type" mapstructure:"type"`
	Value any    `yaml:"value" mapstructure:"value"`
	Ref   string `yaml:"ref" mapstructure:"ref" validate:"omitempty,beanname"`
}

// PropertySpec assigns a literal value or a reference to a property.
type PropertySpec struct {
	Name  string `yaml:"name" mapstructure:"name" validate:"required"`
	Value any    `yaml:"value" mapstructure:"value"`
	Ref   string `yaml:"ref" mapstructure:"ref" validate:"omitempty,beanname"`
}

// MethodSpec overrides Method with the object named Bean.
type MethodSpec struct {
	Method string `yaml:"method" mapstructure:"method" validate:"required"`
	Bean   string `yaml:"bean" mapstructure:"bean" validate:"required,beanname"`
}

// QualifierSpec attaches a qualifier to the descriptor.
type QualifierSpec struct {
	Type       string         `yaml:"type" mapstructure:"type" validate:"required"`
	Value      string         `yaml:"value" mapstructure:"value"`
	Attributes map[string]any `yaml:"attributes" mapstructure:"attributes"`
}

// Validate checks tags and the rules spanning several fields.
func (s *DefinitionSpec) Validate() error {
	v := validation.New()
	v.Merge("", validation.Validate(s))
	v.Custom(s.Type != "" || s.Parent != "" || s.FactoryBean != "" || s.Abstract,
		"type", "is required without parent or factory_bean")
	v.Custom(s.FactoryBean == "" || s.FactoryMethod != "",
		"factory_method", "is required with factory_bean")
	v.Pattern("scope", s.Scope, `^[A-Za-z][A-Za-z0-9_.-]*$`)
	for i, a := range s.Args {
		field := fmt.Sprintf("args[%d]", i)
		v.ExactlyOne(field, map[string]bool{"value": a.Value != nil, "ref": a.Ref != ""})
		selectors := 0
		for _, set := range []bool{a.Index != nil, a.Name != "", a.Type != ""} {
			if set {
				selectors++
			}
		}
		v.Custom(selectors <= 1, field, "index, name and type are exclusive")
	}
	for i, p := range s.Properties {
		v.ExactlyOne(fmt.Sprintf("properties[%d]", i), map[string]bool{"value": p.Value != nil, "ref": p.Ref != ""})
	}
	return v.Validate()
}

// Descriptor converts the definition into a descriptor. Type names are resolved through loader
// when one is given and left for the factory to resolve otherwise.
func (s *DefinitionSpec) Descriptor(loader *typeinfo.Loader) (*descriptor.Descriptor, error) {
	var opts []descriptor.Option
	if s.Type != "" {
		if loader != nil {
			info, err := loader.Load(s.Type)
			if err != nil {
				return nil, errors.InvalidDescriptor(s.Name, err.Error())
			}
			opts = append(opts, descriptor.WithType(info.Type))
		} else {
			opts = append(opts, descriptor.WithTypeName(s.Type))
		}
	}
	if s.Parent != "" {
		opts = append(opts, descriptor.WithParent(s.Parent))
	}
	if s.Scope != "" {
		opts = append(opts, descriptor.WithScope(s.Scope))
	}
	if s.Abstract {
		opts = append(opts, descriptor.AsAbstract())
	}
	if s.Lazy {
		opts = append(opts, descriptor.AsLazy())
	}
	if s.Primary {
		opts = append(opts, descriptor.AsPrimary())
	}
	if s.NonPublic {
		opts = append(opts, descriptor.WithNonPublicAccess())
	}
	if s.ExcludeAutowire {
		opts = append(opts, descriptor.ExcludedFromAutowire())
	}
	if s.Autowire != "" {
		mode, err := descriptor.ParseAutowireMode(s.Autowire)
		if err != nil {
			return nil, errors.InvalidDescriptor(s.Name, err.Error())
		}
		opts = append(opts, descriptor.WithAutowire(mode))
	}
	if s.DependencyCheck != "" {
		check, err := descriptor.ParseDependencyCheck(s.DependencyCheck)
		if err != nil {
			return nil, errors.InvalidDescriptor(s.Name, err.Error())
		}
		opts = append(opts, descriptor.WithDependencyCheck(check))
	}
	if len(s.DependsOn) > 0 {
		opts = append(opts, descriptor.WithDependsOn(s.DependsOn...))
	}
	if s.InitMethod != "" {
		opts = append(opts, descriptor.WithInitMethod(s.InitMethod))
	}
	if s.DestroyMethod != "" {
		opts = append(opts, descriptor.WithDestroyMethod(s.DestroyMethod))
	}
	switch {
	case s.FactoryBean != "":
		opts = append(opts, descriptor.WithFactoryBean(s.FactoryBean, s.FactoryMethod))
	case s.FactoryMethod != "":
		opts = append(opts, descriptor.WithFactoryMethod(s.FactoryMethod))
	}

	for _, a := range s.Args {
		value := a.Value
		if a.Ref != "" {
			value = descriptor.RefTo(a.Ref)
		}
		switch {
		case a.Index != nil:
			opts = append(opts, descriptor.WithArg(*a.Index, value))
		case a.Name != "":
			opts = append(opts, descriptor.WithNamedArg(a.Name, value))
		case a.Type != "":
			t, err := argType(loader, a.Type)
			if err != nil {
				return nil, errors.InvalidDescriptor(s.Name, err.Error())
			}
			opts = append(opts, descriptor.WithTypedArg(t, value))
		default:
			opts = append(opts, descriptor.WithArgs(value))
		}
	}
	for _, p := range s.Properties {
		if p.Ref != "" {
			opts = append(opts, descriptor.WithRef(p.Name, p.Ref))
		} else {
			opts = append(opts, descriptor.WithProperty(p.Name, p.Value))
		}
	}
	for _, m := range s.LookupMethods {
		opts = append(opts, descriptor.WithLookupMethod(m.Method, m.Bean))
	}
	for _, m := range s.ReplacedMethods {
		opts = append(opts, descriptor.WithReplacedMethod(m.Method, m.Bean))
	}
	for _, q := range s.Qualifiers {
		q := &descriptor.Qualifier{Type: q.Type, Value: q.Value, Attributes: q.Attributes}
		opts = append(opts, func(d *descriptor.Descriptor) { d.AddQualifier(q) })
	}
	keys := make([]string, 0, len(s.Attributes))
	for k := range s.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		opts = append(opts, descriptor.WithAttribute(k, s.Attributes[k]))
	}
	if s.Description != "" {
		opts = append(opts, descriptor.WithDescription(s.Description))
	}
	return descriptor.New(opts...), nil
}

// argType resolves a type-matched argument. Only the loader knows the
// reflect.Type behind a name, so typed arguments require one.
func argType(loader *typeinfo.Loader, name string) (reflect.Type, error) {
	if loader == nil {
		return nil, fmt.Errorf("argument type %q needs a type loader", name)
	}
	info, err := loader.Load(name)
	if err != nil {
		return nil, err
	}
	return info.Type, nil
}

// Registrar receives converted definitions. *factory.Factory satisfies it.
type Registrar interface {
	Register(name string, d *descriptor.Descriptor) error
	Alias(name, alias string) error
	Loader() *typeinfo.Loader
}

// Definitions is a validated set of specs in file order.
type Definitions struct {
	Beans []DefinitionSpec `yaml:"beans" mapstructure:"beans"`
}

// LoadDefinitions reads a definitions file. The format follows the file
// extension (yml, yaml, json, toml).
func LoadDefinitions(path string) (*Definitions, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read definitions %s: %w", path, err)
	}
	return decodeDefinitions(v, path)
}

// ReadDefinitions reads definitions in the given format from r.
func ReadDefinitions(r io.Reader, format string) (*Definitions, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}
	return decodeDefinitions(v, "reader")
}

func decodeDefinitions(v *viper.Viper, source string) (*Definitions, error) {
	var defs Definitions
	if err := v.Unmarshal(&defs); err != nil {
		return nil, fmt.Errorf("failed to decode definitions from %s: %w", source, err)
	}
	if err := defs.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Definitions loaded", logger.Fields("source", source, logger.FieldCount, len(defs.Beans)))
	return &defs, nil
}

// Validate validates every spec and rejects duplicate names or aliases.
func (d *Definitions) Validate() error {
	v := validation.New()
	seen := make(map[string]bool)
	for i, spec := range d.Beans {
		field := fmt.Sprintf("beans[%d]", i)
		v.Merge(field, spec.Validate())
		for _, name := range append([]string{spec.Name}, spec.Aliases...) {
			if name == "" {
				continue
			}
			v.Custom(!seen[name], field, fmt.Sprintf("name %q is already used", name))
			seen[name] = true
		}
	}
	return v.Validate()
}

// Register converts every spec and registers it with its aliases, in file
// order.
func (d *Definitions) Register(r Registrar) error {
	for i := range d.Beans {
		spec := &d.Beans[i]
		desc, err := spec.Descriptor(r.Loader())
		if err != nil {
			return err
		}
		if err := r.Register(spec.Name, desc); err != nil {
			return err
		}
		for _, alias := range spec.Aliases {
			if err := r.Alias(spec.Name, alias); err != nil {
				return err
			}
		}
	}
	return nil
}
