package rupy

import (
	"fmt"
	"math"
	"math/big"
	"reflect"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feather-lang/rupy/guest"
)

// Symbol is an interned name. It crosses into the guest as a str.
type Symbol string

// Func is a host callable the guest can invoke. Arguments arrive converted
// by ToNative; values that have no native form arrive as *Proxy. Those
// proxies are released when the call returns; Clone one to keep it.
type Func func(args ...any) (any, error)

// ToForeign converts a host value into a guest object. With isKey set, the
// value is converted for use as a dict key: sequences become tuples and
// mappings are rejected.
//
// Supported values are string, Symbol, bool, nil, Go integer and float
// kinds, *big.Int, slices and arrays, maps, Func and other Go functions,
// *Proxy and *Handle.
func (b *Bridge) ToForeign(v any, isKey bool) (*Handle, error) {
	if !b.Alive() {
		return nil, ErrNotRunning
	}
	b.metrics.conversions.WithLabelValues(string(ToForeignDirection)).Inc()
	return b.toForeign(v, isKey)
}

func (b *Bridge) toForeign(v any, isKey bool) (*Handle, error) {
	rt := b.rt
	switch val := v.(type) {
	case nil:
		return b.wrap(rt.None(), Borrowed), nil
	case bool:
		if val {
			return b.wrap(rt.True(), Borrowed), nil
		}
		return b.wrap(rt.False(), Borrowed), nil
	case string:
		return b.wrap(rt.NewStr(val), Owned), nil
	case Symbol:
		return b.wrap(rt.NewStr(string(val)), Owned), nil
	case *big.Int:
		if val == nil {
			return b.wrap(rt.None(), Borrowed), nil
		}
		return b.wrap(rt.NewLong(val), Owned), nil
	case *Proxy:
		if val == nil {
			return b.wrap(rt.None(), Borrowed), nil
		}
		return b.reuse(val.h)
	case *Handle:
		if val == nil {
			return b.wrap(rt.None(), Borrowed), nil
		}
		return b.reuse(val)
	case Func:
		return b.newShim(func(args []any) (any, error) { return val(args...) })
	case func(...any) (any, error):
		return b.newShim(func(args []any) (any, error) { return val(args...) })
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return b.wrap(rt.NewInt(rv.Int()), Owned), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return b.wrap(rt.NewLong(new(big.Int).SetUint64(u)), Owned), nil
		}
		return b.wrap(rt.NewInt(int64(u)), Owned), nil
	case reflect.Float32, reflect.Float64:
		return b.wrap(rt.NewFloat(rv.Float()), Owned), nil
	case reflect.String:
		return b.wrap(rt.NewStr(rv.String()), Owned), nil
	case reflect.Bool:
		return b.toForeign(rv.Bool(), isKey)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() && !isKey {
			return b.wrap(rt.NewList(0), Owned), nil
		}
		return b.sequenceToForeign(rv, isKey)
	case reflect.Map:
		if isKey {
			return nil, &ConversionError{Direction: ToForeignDirection, Type: rv.Type().String(), Reason: "a mapping cannot be used as a dict key"}
		}
		return b.mapToForeign(rv)
	case reflect.Func:
		if rv.IsNil() {
			return b.wrap(rt.None(), Borrowed), nil
		}
		call, err := wrapFunc(v)
		if err != nil {
			return nil, err
		}
		return b.newShim(call)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return b.wrap(rt.None(), Borrowed), nil
		}
		return b.toForeign(rv.Elem().Interface(), isKey)
	}
	return nil, &ConversionError{Direction: ToForeignDirection, Type: fmt.Sprintf("%T", v), Reason: "unsupported type"}
}

// reuse hands out a new handle to an object the host already holds.
func (b *Bridge) reuse(h *Handle) (*Handle, error) {
	if h.b != b {
		return nil, &ConversionError{Direction: ToForeignDirection, Type: "*rupy.Handle", Reason: "handle belongs to another bridge"}
	}
	if h.IsNull() {
		return b.wrap(b.rt.None(), Borrowed), nil
	}
	if h.Released() {
		return nil, ErrReleased
	}
	return b.wrap(h.token, Borrowed), nil
}

func (b *Bridge) sequenceToForeign(rv reflect.Value, isKey bool) (*Handle, error) {
	rt := b.rt
	n := rv.Len()
	if isKey {
		items := make([]*Handle, 0, n)
		defer func() {
			for _, h := range items {
				h.Release()
			}
		}()
		toks := make([]guest.Token, n)
		for i := 0; i < n; i++ {
			h, err := b.toForeign(rv.Index(i).Interface(), true)
			if err != nil {
				return nil, err
			}
			items = append(items, h)
			toks[i] = h.token
		}
		return b.wrap(rt.TuplePack(toks...), Owned), nil
	}

	list := b.wrap(rt.NewList(n), Owned)
	for i := 0; i < n; i++ {
		h, err := b.toForeign(rv.Index(i).Interface(), false)
		if err != nil {
			list.Release()
			return nil, err
		}
		rt.ListSetItem(list.token, i, h.steal())
	}
	return list, nil
}

func (b *Bridge) mapToForeign(rv reflect.Value) (*Handle, error) {
	rt := b.rt
	d := b.wrap(rt.NewDict(), Owned)
	iter := rv.MapRange()
	for iter.Next() {
		k, err := b.toForeign(iter.Key().Interface(), true)
		if err != nil {
			d.Release()
			return nil, err
		}
		v, err := b.toForeign(iter.Value().Interface(), false)
		if err != nil {
			k.Release()
			d.Release()
			return nil, err
		}
		r := rt.DictSetItem(d.token, k.token, v.token)
		k.Release()
		v.Release()
		if r < 0 {
			d.Release()
			return nil, b.HandlePending()
		}
	}
	return d, nil
}

// ToNative converts a guest object into a host value. Objects are checked
// in this order: str → string, list → []any, int → int64, long → *big.Int,
// float → float64, tuple → []any, dict → map[any]any, True, False, None →
// nil. Anything else is returned as a new *Handle.
//
// Dict keys keep the same mapping except that tuples become [N]any arrays.
// A long key becomes a *big.Int, which Go maps compare by pointer: find it
// by ranging over the map and comparing with Cmp, not by indexing with an
// equal *big.Int.
func (b *Bridge) ToNative(h *Handle) (any, error) {
	if !b.Alive() {
		return nil, ErrNotRunning
	}
	if h == nil || h.IsNull() {
		return nil, nil
	}
	if h.Released() {
		return nil, ErrReleased
	}
	b.metrics.conversions.WithLabelValues(string(ToNativeDirection)).Inc()
	return b.toNative(h.token, false)
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

func (b *Bridge) toNative(t guest.Token, isKey bool) (any, error) {
	rt := b.rt
	switch rt.KindOf(t) {
	case guest.KindStr:
		return rt.StrValue(t), nil
	case guest.KindList:
		n := rt.ListSize(t)
		out := make([]any, n)
		for i := 0; i < n; i++ {
			v, err := b.toNative(rt.ListGetItem(t, i), false)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case guest.KindInt:
		return rt.IntValue(t), nil
	case guest.KindLong:
		return rt.LongValue(t), nil
	case guest.KindFloat:
		return rt.FloatValue(t), nil
	case guest.KindTuple:
		n := rt.TupleSize(t)
		if isKey {
			arr := reflect.New(reflect.ArrayOf(n, anyType)).Elem()
			for i := 0; i < n; i++ {
				v, err := b.toNative(rt.TupleGetItem(t, i), true)
				if err != nil {
					return nil, err
				}
				if v != nil {
					arr.Index(i).Set(reflect.ValueOf(v))
				}
			}
			return arr.Interface(), nil
		}
		out := make([]any, n)
		for i := 0; i < n; i++ {
			v, err := b.toNative(rt.TupleGetItem(t, i), false)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case guest.KindDict:
		out := make(map[any]any, rt.DictSize(t))
		pos := 0
		for {
			k, v, ok := rt.DictNext(t, &pos)
			if !ok {
				break
			}
			nk, err := b.toNative(k, true)
			if err != nil {
				return nil, err
			}
			if nk != nil && !reflect.TypeOf(nk).Comparable() {
				return nil, &ConversionError{Direction: ToNativeDirection, Type: fmt.Sprintf("%T", nk), Reason: "dict key has no comparable native form"}
			}
			nv, err := b.toNative(v, false)
			if err != nil {
				return nil, err
			}
			out[nk] = nv
		}
		return out, nil
	case guest.KindBool:
		return t == rt.True(), nil
	case guest.KindNone:
		return nil, nil
	}
	return b.wrap(t, Borrowed), nil
}

// newShim exposes a host callable to the guest as a builtin function.
func (b *Bridge) newShim(call func(args []any) (any, error)) (*Handle, error) {
	if b.legacy {
		return nil, &ConversionError{Direction: ToForeignDirection, Type: "func", Reason: "callbacks are not supported in legacy mode"}
	}
	name := "rupy.func." + uuid.NewString()
	tok := b.rt.NewCFunction(name, func(rt *guest.Runtime, _, args guest.Token) guest.Token {
		items := rt.Args(args)
		natives := make([]any, len(items))
		var proxies []*Proxy
		defer func() {
			for _, p := range proxies {
				p.Release()
			}
		}()
		for i, item := range items {
			v, err := b.toNative(item, false)
			if err != nil {
				b.raise(err)
				return guest.Null
			}
			if h, ok := v.(*Handle); ok {
				p := b.newProxy(h)
				proxies = append(proxies, p)
				v = p
			}
			natives[i] = v
		}
		out, err := call(natives)
		if err != nil {
			b.log.Debug("host callback failed", zap.String("shim", name), zap.Error(err))
			b.raise(err)
			return guest.Null
		}
		h, err := b.toForeign(out, false)
		if err != nil {
			b.raise(err)
			return guest.Null
		}
		// the guest caller gets its own reference; the handle drops ours
		rt.IncRef(h.token)
		h.Release()
		return h.token
	})
	b.log.Debug("created callback shim", zap.String("shim", name))
	return b.wrap(tok, Owned), nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// wrapFunc adapts an arbitrary Go function to the shim calling convention.
// Arguments are converted to the parameter types; a trailing error result
// is reported as a failure.
func wrapFunc(fn any) (func(args []any) (any, error), error) {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return nil, &ConversionError{Direction: ToForeignDirection, Type: fmt.Sprintf("%T", fn), Reason: "not a function"}
	}

	return func(args []any) (any, error) {
		numIn := fnType.NumIn()
		isVariadic := fnType.IsVariadic()

		if isVariadic {
			if len(args) < numIn-1 {
				return nil, fmt.Errorf("wrong # args: expected at least %d, got %d", numIn-1, len(args))
			}
		} else if len(args) != numIn {
			return nil, fmt.Errorf("wrong # args: expected %d, got %d", numIn, len(args))
		}

		callArgs := make([]reflect.Value, len(args))
		for j, arg := range args {
			var paramType reflect.Type
			if isVariadic && j >= numIn-1 {
				paramType = fnType.In(numIn - 1).Elem()
			} else {
				paramType = fnType.In(j)
			}
			converted, err := convertArg(arg, paramType)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", j+1, err)
			}
			callArgs[j] = converted
		}

		return processResults(fnVal.Call(callArgs), fnType)
	}, nil
}

// convertArg coerces a native value to a parameter type.
func convertArg(arg any, target reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch target.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func:
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use None as %v", target)
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if isNumeric(v.Kind()) && isNumeric(target.Kind()) {
		return convertNumber(v, target)
	}
	if n, ok := arg.(*big.Int); ok && isNumeric(target.Kind()) {
		if n.IsInt64() {
			return convertNumber(reflect.ValueOf(n.Int64()), target)
		}
		if n.IsUint64() {
			return convertNumber(reflect.ValueOf(n.Uint64()), target)
		}
		return reflect.Value{}, numberError(n, target, "is out of range")
	}

	switch target.Kind() {
	case reflect.Slice:
		items, ok := arg.([]any)
		if !ok {
			break
		}
		slice := reflect.MakeSlice(target, len(items), len(items))
		for j, item := range items {
			converted, err := convertArg(item, target.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", j, err)
			}
			slice.Index(j).Set(converted)
		}
		return slice, nil
	case reflect.Map:
		m, ok := arg.(map[any]any)
		if !ok {
			break
		}
		out := reflect.MakeMapWithSize(target, len(m))
		for k, val := range m {
			ck, err := convertArg(k, target.Key())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %v: %w", k, err)
			}
			cv, err := convertArg(val, target.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("value for %v: %w", k, err)
			}
			out.SetMapIndex(ck, cv)
		}
		return out, nil
	case reflect.String:
		if s, ok := arg.(Symbol); ok {
			return reflect.ValueOf(string(s)).Convert(target), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %v", arg, target)
}

// convertNumber converts between numeric kinds, refusing conversions that
// would lose the value: fractional floats to integers and anything out of
// the target's range.
func convertNumber(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		switch {
		case v.CanInt():
			n = v.Int()
		case v.CanUint():
			if v.Uint() > math.MaxInt64 {
				return reflect.Value{}, numberError(v.Interface(), target, "is out of range")
			}
			n = int64(v.Uint())
		default:
			f := v.Float()
			if f != math.Trunc(f) || math.IsInf(f, 0) {
				return reflect.Value{}, numberError(f, target, "is not a whole number")
			}
			if f < math.MinInt64 || f >= math.MaxInt64 {
				return reflect.Value{}, numberError(f, target, "is out of range")
			}
			n = int64(f)
		}
		if out.OverflowInt(n) {
			return reflect.Value{}, numberError(v.Interface(), target, "is out of range")
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		switch {
		case v.CanInt():
			if v.Int() < 0 {
				return reflect.Value{}, numberError(v.Interface(), target, "is out of range")
			}
			n = uint64(v.Int())
		case v.CanUint():
			n = v.Uint()
		default:
			f := v.Float()
			if f != math.Trunc(f) || math.IsInf(f, 0) {
				return reflect.Value{}, numberError(f, target, "is not a whole number")
			}
			if f < 0 || f >= math.MaxUint64 {
				return reflect.Value{}, numberError(f, target, "is out of range")
			}
			n = uint64(f)
		}
		if out.OverflowUint(n) {
			return reflect.Value{}, numberError(v.Interface(), target, "is out of range")
		}
		out.SetUint(n)
	default:
		f := v.Convert(reflect.TypeOf(float64(0))).Float()
		if out.OverflowFloat(f) {
			return reflect.Value{}, numberError(f, target, "is out of range")
		}
		out.SetFloat(f)
	}
	return out, nil
}

func numberError(v any, target reflect.Type, reason string) error {
	return &ConversionError{
		Direction: ToNativeDirection,
		Type:      fmt.Sprintf("%T", v),
		Reason:    fmt.Sprintf("%v %s for %v", v, reason, target),
	}
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// processResults maps a Go call's results to one value and an error.
func processResults(results []reflect.Value, fnType reflect.Type) (any, error) {
	if n := fnType.NumOut(); n > 0 && fnType.Out(n-1).Implements(errorType) {
		last := results[len(results)-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		results = results[:len(results)-1]
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0].Interface(), nil
	}
	out := make([]any, len(results))
	for i, r := range results {
		out[i] = r.Interface()
	}
	return out, nil
}
