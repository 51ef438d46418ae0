package factory

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/logger"
	"github.com/kbukum/beankit/typeinfo"
)

var contextType = reflect.TypeFor[context.Context]()

// Markers stored in a cached resolution for arguments that are resolved
// again on every creation.
type (
	autowiredArg struct{}
	contextArg   struct{}
)

// argsHolder keeps the arguments prepared for one candidate routine.
type argsHolder struct {
	raw              []any
	converted        []any
	args             []reflect.Value
	prepared         []any
	resolveNecessary bool
}

func newArgsHolder(n int) *argsHolder {
	return &argsHolder{
		raw:       make([]any, n),
		converted: make([]any, n),
		args:      make([]reflect.Value, n),
		prepared:  make([]any, n),
	}
}

func (h *argsHolder) set(i int, raw any, v reflect.Value) {
	h.raw[i] = raw
	h.args[i] = v
	if v.IsValid() && v.CanInterface() {
		h.converted[i] = v.Interface()
	}
}

// weight scores how well the arguments fit params; lower is better. The
// lenient score prefers candidates taking the raw values without
// conversion. The strict score only tells apart assignable, convertible
// and unusable arguments, so any two fully matching candidates tie.
func (h *argsHolder) weight(params []reflect.Type, lenient bool) int {
	if lenient {
		w := typeDifferenceWeight(params, h.converted)
		raw := typeDifferenceWeight(params, h.raw)
		if raw != math.MaxInt {
			raw -= 1024
		} else {
			raw = math.MaxInt - 1024
		}
		return min(w, raw)
	}
	for i, p := range params {
		if !assignableValue(p, h.converted[i]) {
			return math.MaxInt
		}
	}
	for i, p := range params {
		if !assignableValue(p, h.raw[i]) {
			return math.MaxInt - 512
		}
	}
	return math.MaxInt - 1024
}

// store caches the selection on the resolved descriptor.
func (h *argsHolder) store(rd *descriptor.Descriptor, r *typeinfo.Routine, factoryType reflect.Type) {
	res := descriptor.Resolution{Routine: r, FactoryType: factoryType}
	if h.resolveNecessary {
		res.Prepared = h.prepared
	} else {
		res.ArgsResolved = true
		res.Args = h.args
	}
	rd.CacheResolution(res)
}

func typeDifferenceWeight(params []reflect.Type, values []any) int {
	result := 0
	for i, p := range params {
		if !assignableValue(p, values[i]) {
			return math.MaxInt
		}
		if values[i] == nil {
			continue
		}
		if p.Kind() == reflect.Interface {
			result++
		} else if reflect.TypeOf(values[i]) != p {
			result += 2
		}
	}
	return result
}

func assignableValue(t reflect.Type, v any) bool {
	if v == nil {
		return nillable(t)
	}
	return reflect.TypeOf(v).AssignableTo(t)
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// sortRoutines orders public routines first, then by descending arity.
func sortRoutines(rs []*typeinfo.Routine) {
	slices.SortStableFunc(rs, func(a, b *typeinfo.Routine) int {
		if a.Public != b.Public {
			if a.Public {
				return -1
			}
			return 1
		}
		return b.ParamCount() - a.ParamCount()
	})
}

// visibleRoutines drops non-public routines unless the descriptor permits them.
func visibleRoutines(rs []*typeinfo.Routine, rd *descriptor.Descriptor) []*typeinfo.Routine {
	if rd.NonPublicAccess {
		return rs
	}
	return slices.DeleteFunc(rs, func(r *typeinfo.Routine) bool { return !r.Public })
}

func paramPoint(r *typeinfo.Routine, i int) string {
	if n := r.ParamName(i); n != "" {
		return fmt.Sprintf("parameter %d (%s) of %s", i, n, r)
	}
	return fmt.Sprintf("parameter %d of %s", i, r)
}

func routineLabels(rs []*typeinfo.Routine) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.String()
	}
	return out
}

// autowireConstructor selects a constructor by weighted argument matching
// and builds the instance with it. chosen, when non-nil, replaces the
// declared constructors and switches on autowiring.
func (f *Factory) autowireConstructor(ctx context.Context, beanName string, rd *descriptor.Descriptor, info *typeinfo.Info, chosen []*typeinfo.Routine, explicit []any) (any, error) {
	var (
		use       *typeinfo.Routine
		argsToUse []reflect.Value
	)
	if explicit == nil {
		if res, ok := rd.CachedResolution(); ok && res.Routine != nil {
			use = res.Routine
			if res.ArgsResolved {
				argsToUse = res.Args
				if argsToUse == nil {
					argsToUse = []reflect.Value{}
				}
			} else {
				var err error
				if argsToUse, err = f.resolvePreparedArgs(ctx, beanName, rd, use, res.Prepared); err != nil {
					return nil, err
				}
			}
		}
	}

	if use == nil || argsToUse == nil {
		candidates := chosen
		if candidates == nil {
			candidates = visibleRoutines(info.Constructors(), rd)
		}
		if len(candidates) == 0 {
			return nil, errors.NoMatchingConstructor(beanName, "no usable constructor found on type "+info.Type.String())
		}
		if len(candidates) == 1 && explicit == nil && !rd.HasArgs() && candidates[0].ParamCount() == 0 {
			rd.CacheResolution(descriptor.Resolution{Routine: candidates[0], ArgsResolved: true, Args: []reflect.Value{}})
			return f.instantiate(ctx, beanName, rd, candidates[0], reflect.Value{}, nil)
		}

		autowiring := chosen != nil || rd.Autowire == descriptor.AutowireConstructor
		r, holder, err := f.selectRoutine(ctx, beanName, rd, candidates, explicit, autowiring, false)
		if err != nil {
			return nil, err
		}
		if explicit == nil {
			holder.store(rd, r, nil)
		}
		use, argsToUse = r, holder.args
	}
	return f.instantiate(ctx, beanName, rd, use, reflect.Value{}, argsToUse)
}

// instantiateUsingFactoryMethod builds the instance by calling a factory
// routine: a static routine registered for the descriptor's type, or a
// method of the factory object named by the descriptor.
func (f *Factory) instantiateUsingFactoryMethod(ctx context.Context, beanName string, rd *descriptor.Descriptor, t reflect.Type, explicit []any) (any, error) {
	var (
		receiver    reflect.Value
		factoryType reflect.Type
		candidates  []*typeinfo.Routine
	)
	if rd.FactoryBean != "" {
		factoryName := f.transformedName(rd.FactoryBean)
		if factoryName == beanName {
			return nil, errors.InvalidDescriptor(beanName, "factory object reference points back to the same descriptor")
		}
		fbObj, err := f.GetBean(ctx, rd.FactoryBean)
		if err != nil {
			return nil, errors.ConstructionFailed(beanName, "factory object '"+rd.FactoryBean+"'", err)
		}
		if fbObj == nil {
			return nil, errors.InvalidDescriptor(beanName, "factory object '"+rd.FactoryBean+"' is nil")
		}
		if rd.IsSingleton() && f.cache.Contains(beanName) {
			return nil, errors.InvalidDescriptor(beanName, "singleton appeared while its factory object was built")
		}
		f.Graph().Register(factoryName, beanName)
		receiver = reflect.ValueOf(fbObj)
		factoryType = receiver.Type()
		candidates = f.loader.Info(factoryType).MethodRoutines(rd.FactoryMethod)
	} else {
		if t == nil {
			return nil, errors.InvalidDescriptor(beanName, "descriptor names neither a type nor a factory object for factory routine '"+rd.FactoryMethod+"'")
		}
		factoryType = t
		candidates = f.loader.Info(t).FactoryRoutines(rd.FactoryMethod)
	}
	candidates = visibleRoutines(candidates, rd)

	if explicit == nil {
		if res, ok := rd.CachedResolution(); ok && res.Routine != nil {
			args := res.Args
			if !res.ArgsResolved {
				var err error
				if args, err = f.resolvePreparedArgs(ctx, beanName, rd, res.Routine, res.Prepared); err != nil {
					return nil, err
				}
			}
			return f.instantiate(ctx, beanName, rd, res.Routine, receiver, args)
		}
	}

	if len(candidates) == 0 {
		return nil, errors.NoMatchingConstructor(beanName, fmt.Sprintf("no factory routine '%s' found on %s", rd.FactoryMethod, factoryType))
	}
	if len(candidates) == 1 && explicit == nil && !rd.HasArgs() && candidates[0].ParamCount() == 0 {
		r := candidates[0]
		if r.IsVoid() {
			return nil, errors.NoMatchingConstructor(beanName, "invalid factory routine '"+rd.FactoryMethod+"': needs to have a non-void return type")
		}
		rd.CacheResolution(descriptor.Resolution{Routine: r, FactoryType: factoryType, ArgsResolved: true, Args: []reflect.Value{}})
		return f.instantiate(ctx, beanName, rd, r, receiver, nil)
	}

	r, holder, err := f.selectRoutine(ctx, beanName, rd, candidates, explicit, rd.Autowire == descriptor.AutowireConstructor, true)
	if err != nil {
		return nil, err
	}
	if explicit == nil {
		holder.store(rd, r, factoryType)
	}
	return f.instantiate(ctx, beanName, rd, r, receiver, holder.args)
}

// selectRoutine runs weighted selection over candidates. Larger routines
// are tried first; a routine is skipped when it cannot take every
// configured argument, and the search stops once the chosen routine takes
// more arguments than the next candidate declares.
func (f *Factory) selectRoutine(ctx context.Context, beanName string, rd *descriptor.Descriptor, candidates []*typeinfo.Routine, explicit []any, autowiring, factoryMode bool) (*typeinfo.Routine, *argsHolder, error) {
	resolvedArgs := &descriptor.ConstructorArgs{}
	var source map[*descriptor.ValueHolder]*descriptor.ValueHolder
	minArgs := 0
	if explicit != nil {
		minArgs = len(explicit)
	} else if rd.HasArgs() {
		var err error
		if resolvedArgs, source, err = f.resolveConstructorArgs(ctx, beanName, rd); err != nil {
			return nil, nil, err
		}
		minArgs = resolvedArgs.MinCount()
	}

	candidates = slices.Clone(candidates)
	sortRoutines(candidates)

	var (
		use       *typeinfo.Routine
		useHolder *argsHolder
		minWeight = math.MaxInt
		ambiguous []*typeinfo.Routine
		causes    []error
	)
	for _, cand := range candidates {
		pc := cand.ParamCount()
		if use != nil && len(useHolder.args) > pc {
			break
		}
		if pc < minArgs {
			continue
		}

		var holder *argsHolder
		if explicit == nil {
			h, err := f.createArgumentArray(ctx, beanName, resolvedArgs, source, cand, autowiring, len(candidates) == 1)
			if err != nil {
				f.log.Debug("ignoring candidate routine", logger.MergeWithError(logger.Fields(logger.FieldBean, beanName, "routine", cand.String()), err))
				causes = append(causes, err)
				continue
			}
			holder = h
		} else {
			if pc != len(explicit) {
				continue
			}
			h, err := f.explicitArgs(beanName, cand, explicit)
			if err != nil {
				causes = append(causes, err)
				continue
			}
			holder = h
		}

		weight := holder.weight(cand.Params, !rd.Strict)
		switch {
		case weight < minWeight:
			use, useHolder, minWeight, ambiguous = cand, holder, weight, nil
		case use != nil && weight == minWeight:
			if factoryMode && (!rd.Strict || pc != use.ParamCount() || cand.SameParams(use)) {
				continue
			}
			if ambiguous == nil {
				ambiguous = []*typeinfo.Routine{use}
			}
			ambiguous = append(ambiguous, cand)
		}
	}

	if use == nil {
		if len(causes) > 0 {
			for _, c := range causes[:len(causes)-1] {
				f.log.Debug("suppressed candidate failure", logger.MergeWithError(logger.BeanFields(beanName, "instantiation"), c))
			}
			return nil, nil, causes[len(causes)-1]
		}
		if factoryMode {
			return nil, nil, errors.NoMatchingConstructor(beanName, fmt.Sprintf(
				"no matching factory routine '%s' found for %d argument(s); check that a routine with the specified name and arguments exists", rd.FactoryMethod, minArgs))
		}
		return nil, nil, errors.NoMatchingConstructor(beanName,
			"could not resolve a matching constructor (hint: specify index, type or name of arguments for simple parameters to avoid type ambiguities)")
	}
	if factoryMode && use.IsVoid() {
		return nil, nil, errors.NoMatchingConstructor(beanName, "invalid factory routine '"+rd.FactoryMethod+"': needs to have a non-void return type")
	}
	if ambiguous != nil && rd.Strict {
		labels := routineLabels(ambiguous)
		if factoryMode {
			return nil, nil, errors.AmbiguousFactoryMethod(beanName, rd.FactoryMethod, labels)
		}
		return nil, nil, errors.NoMatchingConstructor(beanName,
			"ambiguous constructor matches found: "+strings.Join(labels, "; ")+" (hint: specify index, type or name of arguments for simple parameters to avoid type ambiguities)").
			WithDetail("candidates", labels)
	}
	return use, useHolder, nil
}

// createArgumentArray matches configured arguments to the parameters of r
// and autowires the rest when autowiring is on.
func (f *Factory) createArgumentArray(ctx context.Context, beanName string, resolvedArgs *descriptor.ConstructorArgs,
	source map[*descriptor.ValueHolder]*descriptor.ValueHolder, r *typeinfo.Routine, autowiring, fallback bool) (*argsHolder, error) {
	n := r.ParamCount()
	h := newArgsHolder(n)
	used := make(map[*descriptor.ValueHolder]bool)

	for i, pt := range r.Params {
		if _, indexed := resolvedArgs.Indexed(i); pt == contextType && !indexed {
			h.set(i, ctx, reflect.ValueOf(&ctx).Elem())
			h.prepared[i] = contextArg{}
			h.resolveNecessary = true
			continue
		}

		var vh *descriptor.ValueHolder
		if !resolvedArgs.IsEmpty() {
			vh = resolvedArgs.Match(i, pt, r.ParamName(i), used)
			if vh == nil && (!autowiring || n == resolvedArgs.Count()) {
				vh = resolvedArgs.Match(i, nil, "", used)
			}
		}
		if vh != nil {
			used[vh] = true
			conv, err := f.converter.Convert(vh.Value, pt)
			if err != nil {
				return nil, errors.UnsatisfiedDependency(beanName, paramPoint(r, i), fmt.Sprintf(
					"could not convert argument value of type %s to required type %s", typeLabel(vh.Value), pt)).WithCause(err)
			}
			h.set(i, vh.Value, conv)
			h.prepared[i] = vh.Value
			if src := source[vh]; src != nil && needsResolution(src.Value) {
				h.prepared[i] = src.Value
				h.resolveNecessary = true
			}
			continue
		}

		if !autowiring {
			return nil, errors.UnsatisfiedDependency(beanName, paramPoint(r, i),
				"ambiguous argument values for parameter of type "+pt.String()+"; did you specify the correct references as arguments?")
		}
		v, err := f.resolveAutowiredArgument(ctx, beanName, r, i, fallback)
		if err != nil {
			return nil, errors.UnsatisfiedDependency(beanName, paramPoint(r, i), "no resolvable candidate").WithCause(err)
		}
		var raw any
		if v.IsValid() && v.CanInterface() {
			raw = v.Interface()
		}
		h.set(i, raw, v)
		h.prepared[i] = autowiredArg{}
		h.resolveNecessary = true
	}
	return h, nil
}

func (f *Factory) explicitArgs(beanName string, r *typeinfo.Routine, explicit []any) (*argsHolder, error) {
	h := newArgsHolder(len(explicit))
	for i, v := range explicit {
		conv, err := f.converter.Convert(v, r.Params[i])
		if err != nil {
			return nil, errors.UnsatisfiedDependency(beanName, paramPoint(r, i), fmt.Sprintf(
				"could not convert explicit argument of type %s to required type %s", typeLabel(v), r.Params[i])).WithCause(err)
		}
		h.set(i, v, conv)
	}
	return h, nil
}

func (f *Factory) resolveAutowiredArgument(ctx context.Context, beanName string, r *typeinfo.Routine, i int, fallback bool) (reflect.Value, error) {
	pt := r.Params[i]
	dd := &DependencyDescriptor{
		Type:     pt,
		Name:     r.ParamName(i),
		Required: true,
		Eager:    true,
		Point:    paramPoint(r, i),
	}
	v, err := f.Resolve(ctx, dd, beanName)
	if err != nil && fallback && errors.HasCode(err, errors.ErrCodeNoMatchingCandidate) {
		switch pt.Kind() {
		case reflect.Slice:
			return reflect.MakeSlice(pt, 0, 0), nil
		case reflect.Map:
			return reflect.MakeMap(pt), nil
		case reflect.Array:
			return reflect.New(pt).Elem(), nil
		}
	}
	return v, err
}

// resolvePreparedArgs re-resolves the arguments of a cached selection.
func (f *Factory) resolvePreparedArgs(ctx context.Context, beanName string, rd *descriptor.Descriptor, r *typeinfo.Routine, prepared []any) ([]reflect.Value, error) {
	args := make([]reflect.Value, len(prepared))
	for i, p := range prepared {
		pt := r.Params[i]
		switch p.(type) {
		case autowiredArg:
			v, err := f.resolveAutowiredArgument(ctx, beanName, r, i, false)
			if err != nil {
				return nil, errors.UnsatisfiedDependency(beanName, paramPoint(r, i), "no resolvable candidate").WithCause(err)
			}
			args[i] = v
		case contextArg:
			args[i] = reflect.ValueOf(&ctx).Elem()
		default:
			v, err := f.resolveValue(ctx, beanName, rd, paramPoint(r, i), p)
			if err != nil {
				return nil, err
			}
			conv, err := f.converter.Convert(v, pt)
			if err != nil {
				return nil, errors.UnsatisfiedDependency(beanName, paramPoint(r, i), "could not convert argument value").WithCause(err)
			}
			args[i] = conv
		}
	}
	return args, nil
}

func typeLabel(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
