package typeinfo

import (
	"net/url"
	"reflect"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// TagName is the struct tag that renames or hides a property.
const TagName = "bean"

// Property is one settable member of a managed type: an exported struct
// field or a SetXxx method.
type Property struct {
	Name string
	Type reflect.Type

	index  []int
	setter *reflect.Method
}

// Settable reports whether the property can be written.
func (p *Property) Settable() bool { return p.index != nil || p.setter != nil }

// Properties returns the settable properties of the type keyed by name.
func (i *Info) Properties() map[string]*Property {
	i.buildProperties()
	return i.props
}

// PropertyNames returns the property names in declaration order.
func (i *Info) PropertyNames() []string {
	i.buildProperties()
	return append([]string(nil), i.propOrder...)
}

// Property looks up a property by name. An exact match wins over a
// case-insensitive one.
func (i *Info) Property(name string) (*Property, bool) {
	i.buildProperties()
	if p, ok := i.props[name]; ok {
		return p, true
	}
	for _, n := range i.propOrder {
		if strings.EqualFold(n, name) {
			return i.props[n], true
		}
	}
	return nil, false
}

func (i *Info) buildProperties() {
	i.propsOnce.Do(func() {
		i.props = make(map[string]*Property)
		add := func(p *Property) {
			if _, seen := i.props[p.Name]; !seen {
				i.propOrder = append(i.propOrder, p.Name)
			}
			i.props[p.Name] = p
		}

		st := i.Type
		if st.Kind() == reflect.Pointer {
			st = st.Elem()
		}
		if st.Kind() == reflect.Struct {
			for _, f := range reflect.VisibleFields(st) {
				if !f.IsExported() || f.Anonymous && f.Type.Kind() == reflect.Struct {
					continue
				}
				name := Decapitalize(f.Name)
				if tag, ok := f.Tag.Lookup(TagName); ok {
					tag, _, _ = strings.Cut(tag, ",")
					if tag == "-" {
						continue
					}
					if tag != "" {
						name = tag
					}
				}
				add(&Property{Name: name, Type: f.Type, index: f.Index})
			}
		}

		if i.Type.Kind() == reflect.Interface {
			return
		}
		for k := 0; k < i.Type.NumMethod(); k++ {
			m := i.Type.Method(k)
			if !strings.HasPrefix(m.Name, "Set") || len(m.Name) == 3 {
				continue
			}
			mt := m.Type
			if mt.NumIn() != 2 || mt.NumOut() > 1 || mt.NumOut() == 1 && mt.Out(0) != errorType {
				continue
			}
			add(&Property{Name: Decapitalize(m.Name[3:]), Type: mt.In(1), setter: &m})
		}
	})
}

// Decapitalize lower-cases the first letter of a name unless the first two
// letters are both upper case, so "Repo" becomes "repo" and "URL" stays "URL".
func Decapitalize(name string) string {
	if name == "" {
		return name
	}
	r0, n := utf8.DecodeRuneInString(name)
	if r1, _ := utf8.DecodeRuneInString(name[n:]); unicode.IsUpper(r0) && unicode.IsUpper(r1) {
		return name
	}
	return string(unicode.ToLower(r0)) + name[n:]
}

var (
	durationType = reflect.TypeFor[time.Duration]()
	timeType     = reflect.TypeFor[time.Time]()
	urlType      = reflect.TypeFor[url.URL]()
	typeType     = reflect.TypeFor[reflect.Type]()
)

// IsSimple reports whether values of t are scalars rather than references to
// other managed objects: booleans, numbers, strings, durations, times, URLs,
// type tokens and arrays or slices of those.
func IsSimple(t reflect.Type) bool {
	switch t {
	case durationType, timeType, urlType, typeType:
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Pointer:
		return t.Elem() == urlType || t.Elem() == timeType
	case reflect.Slice, reflect.Array:
		return IsSimple(t.Elem())
	}
	return false
}
