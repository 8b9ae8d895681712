// Package guest implements the embedded object runtime that rupy bridges to.
//
// # Overview
//
// The guest runtime is a small dynamically typed object system with explicit
// reference counting. Its surface is shaped after a classic C embedding API:
//
//   - Objects are identified by a [Token]; [Null] marks absence or failure.
//   - Every constructor and most lookups return a NEW reference that the
//     caller must release with [Runtime.DecRef].
//   - Accessors documented as "borrowed" return a reference owned elsewhere;
//     call [Runtime.IncRef] to keep it.
//   - A failing operation returns Null and leaves an exception pending in the
//     runtime's error slot (see [Runtime.ErrOccurred] and [Runtime.ErrFetch]).
//
// Only one Runtime may be initialized per process at a time. A Runtime is
// not safe for concurrent use from multiple goroutines.
//
// # Builtin Types
//
// str, int, long (arbitrary precision), float, bool, NoneType, list, tuple,
// dict, type, module, builtin_function_or_method, iterator and a small
// exception hierarchy rooted at BaseException.
//
// # Modules
//
// [Runtime.Import] resolves modules from builders registered with
// [Runtime.DefineModule]. The runtime ships with __builtin__ (alias
// builtins), operator, string, math, fractions and urllib2.
//
//	rt := guest.New()
//	if err := rt.Initialize(); err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Finalize()
//
//	m := rt.Import("string")
//	letters := rt.GetAttr(m, "ascii_letters")
//	fmt.Println(rt.StrValue(letters))
//	rt.DecRef(letters)
//	rt.DecRef(m)
package guest
