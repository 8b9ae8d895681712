// Package rupy bridges Go host code to an embedded, reference-counted guest
// object runtime.
//
// # Overview
//
// The guest runtime (package guest) manages object lifetimes with explicit
// reference counts. Go code manages memory with a garbage collector. rupy
// sits between the two:
//
//   - [Handle] owns one guest reference and keeps it registered with the
//     [Bridge] until it is released or the runtime stops.
//   - [Bridge.ToForeign] and [Bridge.ToNative] convert values both ways.
//   - [Proxy] forwards attribute access, calls and operators to a guest
//     object, reporting guest exceptions as [*InterpreterError].
//   - [Bridge.Generator] exposes a host [Producer] as a guest iterator.
//
// # Quick Start
//
//	b := rupy.New(rupy.WithLogger(logger))
//	err := b.Session(func(b *rupy.Bridge) error {
//	    newFraction, err := b.Type("fractions.Fraction")
//	    if err != nil {
//	        return err
//	    }
//	    half, err := newFraction(1, 2)
//	    if err != nil {
//	        return err
//	    }
//	    defer half.Release()
//
//	    sum, err := half.Add(half)
//	    if err != nil {
//	        return err
//	    }
//	    defer sum.Release()
//	    fmt.Println(sum) // "1"
//	    return nil
//	})
//
// # Handles and Lifetimes
//
// Every guest object reachable from Go is held by a Handle. Call Release on
// proxies and handles you no longer need, or run code inside
// [Bridge.Scope] to release everything created there in one go.
//
// When the runtime stops, the registry is cleared without touching the
// guest. Handles that outlive the runtime are inert: releasing them is a
// no-op, and other operations return [ErrNotRunning].
//
// # Type Conversion
//
// Host to guest:
//
//	nil, true, false    → None, True, False
//	string, Symbol      → str
//	int kinds           → int (long if the value needs it)
//	*big.Int            → long
//	float32, float64    → float
//	slices, arrays      → list (tuple when used as a dict key)
//	maps                → dict
//	Func, other funcs   → builtin function calling back into Go
//	*Proxy, *Handle     → the same object
//
// Guest to host: str → string, list → []any, int → int64, long → *big.Int,
// float → float64, tuple → []any ([N]any as a map key), dict → map[any]any,
// bool → bool, None → nil. Everything else stays a handle.
//
// # Errors
//
// Guest exceptions surface as [*InterpreterError] with the exception class
// name in Kind. Values that cannot cross surface as [*ConversionError].
// Misuse of the bridge, such as wrapping a token after the runtime has
// stopped, panics with a [*ContractViolation].
//
// # Legacy Mode
//
// [WithLegacyMode] makes [Proxy.Send] return native values where a
// conversion exists and refuses to pass Go callables or producers to the
// guest.
//
// # Thread Safety
//
// A Bridge is not safe for concurrent use. The handle registry is guarded
// by a mutex, so LiveHandles and Released may be called from any goroutine,
// but guest reference counts are not: release handles on the goroutine that
// drives the bridge.
package rupy
