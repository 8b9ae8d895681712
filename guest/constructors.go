package guest

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

func constructStr(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("str", items, 0, 1) {
		return Null
	}
	if len(items) == 0 {
		return rt.NewStr("")
	}
	return rt.Str(items[0])
}

// parseInteger parses a literal the way int() and long() accept it.
func (rt *Runtime) parseInteger(fname, s string) (*big.Int, bool) {
	lit := strings.TrimSpace(s)
	if fname == "long" {
		lit = strings.TrimSuffix(strings.TrimSuffix(lit, "L"), "l")
	}
	v, ok := new(big.Int).SetString(lit, 10)
	if !ok {
		rt.ErrFormat(rt.Exc.ValueError, "invalid literal for %s() with base 10: %s", fname, quoteStr(s))
		return nil, false
	}
	return v, true
}

func (rt *Runtime) toInteger(fname string, items []Token) (*big.Int, bool) {
	if len(items) == 0 {
		return new(big.Int), true
	}
	o := items[0]
	switch v := rt.get(o, fname).payload.(type) {
	case string:
		return rt.parseInteger(fname, v)
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			rt.ErrSetString(rt.Exc.OverflowError, "cannot convert float infinity or NaN to integer")
			return nil, false
		}
		i, _ := big.NewFloat(math.Trunc(v)).Int(nil)
		return i, true
	}
	if i := rt.LongValue(o); i != nil {
		return i, true
	}
	rt.ErrFormat(rt.Exc.TypeError, "%s() argument must be a string or a number, not '%s'", fname, rt.TypeName(o))
	return nil, false
}

func constructInt(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("int", items, 0, 1) {
		return Null
	}
	v, ok := rt.toInteger("int", items)
	if !ok {
		return Null
	}
	if v.IsInt64() {
		return rt.NewInt(v.Int64())
	}
	return rt.NewLong(v)
}

func constructLong(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("long", items, 0, 1) {
		return Null
	}
	v, ok := rt.toInteger("long", items)
	if !ok {
		return Null
	}
	return rt.NewLong(v)
}

func constructFloat(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("float", items, 0, 1) {
		return Null
	}
	if len(items) == 0 {
		return rt.NewFloat(0)
	}
	if s, ok := rt.AsString(items[0]); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			rt.ErrFormat(rt.Exc.ValueError, "could not convert string to float: %s", s)
			return Null
		}
		return rt.NewFloat(f)
	}
	f, ok := rt.AsFloat(items[0])
	if !ok {
		rt.ErrFormat(rt.Exc.TypeError, "float() argument must be a string or a number, not '%s'", rt.TypeName(items[0]))
		return Null
	}
	return rt.NewFloat(f)
}

func constructBool(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("bool", items, 0, 1) {
		return Null
	}
	if len(items) == 0 {
		return rt.ReturnBool(false)
	}
	r := rt.IsTrue(items[0])
	if r < 0 {
		return Null
	}
	return rt.ReturnBool(r == 1)
}

func constructList(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("list", items, 0, 1) {
		return Null
	}
	if len(items) == 0 {
		return rt.NewList(0)
	}
	return rt.SequenceList(items[0])
}

func constructTuple(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("tuple", items, 0, 1) {
		return Null
	}
	if len(items) == 0 {
		return rt.newTuple(nil)
	}
	return rt.SequenceTuple(items[0])
}

func constructDict(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("dict", items, 0, 1) {
		return Null
	}
	d := rt.NewDict()
	if len(items) == 1 && rt.updateDict(d, items[0]) < 0 {
		rt.DecRef(d)
		return Null
	}
	return d
}
