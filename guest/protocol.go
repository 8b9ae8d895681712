package guest

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// CompareOp selects a rich comparison.
type CompareOp int

const (
	OpLt CompareOp = iota
	OpLe
	OpEq
	OpNe
	OpGt
	OpGe
)

var compareSpecials = [...]string{"__lt__", "__le__", "__eq__", "__ne__", "__gt__", "__ge__"}
var compareSymbols = [...]string{"<", "<=", "==", "!=", ">", ">="}
var compareSwapped = [...]CompareOp{OpGt, OpGe, OpEq, OpNe, OpLt, OpLe}

func (op CompareOp) String() string { return compareSymbols[op] }

// Special returns the special method name for op, e.g. "__lt__".
func (op CompareOp) Special() string { return compareSpecials[op] }

func (op CompareOp) holds(c int) bool {
	switch op {
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpGt:
		return c > 0
	default:
		return c >= 0
	}
}

// Str returns str(o) as a new str object.
func (rt *Runtime) Str(o Token) Token {
	switch rt.KindOf(o) {
	case KindStr:
		rt.IncRef(o)
		return o
	case KindInstance:
		r, _ := rt.callSpecial(o, "__str__")
		return rt.checkStr(r, "__str__")
	}
	s, ok := rt.format(o, false)
	if !ok {
		return Null
	}
	return rt.NewStr(s)
}

// Repr returns repr(o) as a new str object.
func (rt *Runtime) Repr(o Token) Token {
	if rt.KindOf(o) == KindInstance {
		r, _ := rt.callSpecial(o, "__repr__")
		return rt.checkStr(r, "__repr__")
	}
	s, ok := rt.format(o, true)
	if !ok {
		return Null
	}
	return rt.NewStr(s)
}

func (rt *Runtime) checkStr(r Token, method string) Token {
	if r == Null {
		return Null
	}
	if rt.KindOf(r) != KindStr {
		name := rt.TypeName(r)
		rt.DecRef(r)
		rt.ErrFormat(rt.Exc.TypeError, "%s returned non-string (type %s)", method, name)
		return Null
	}
	return r
}

// StrString is Str followed by StrValue.
func (rt *Runtime) StrString(o Token) (string, bool) {
	r := rt.Str(o)
	if r == Null {
		return "", false
	}
	defer rt.DecRef(r)
	return rt.StrValue(r), true
}

func (rt *Runtime) reprString(o Token) (string, bool) {
	r := rt.Repr(o)
	if r == Null {
		return "", false
	}
	defer rt.DecRef(r)
	return rt.StrValue(r), true
}

// format renders builtin objects. Container elements use repr.
func (rt *Runtime) format(o Token, repr bool) (string, bool) {
	obj := rt.get(o, "str")
	switch p := obj.payload.(type) {
	case string:
		if repr {
			return quoteStr(p), true
		}
		return p, true
	case int64:
		return strconv.FormatInt(p, 10), true
	case bool:
		if p {
			return "True", true
		}
		return "False", true
	case *big.Int:
		if repr {
			return p.String() + "L", true
		}
		return p.String(), true
	case float64:
		return formatFloat(p), true
	case *listData:
		return rt.formatItems("[", p.items, "]")
	case *tupleData:
		if len(p.items) == 1 {
			return rt.formatItems("(", p.items, ",)")
		}
		return rt.formatItems("(", p.items, ")")
	case *dictData:
		var b strings.Builder
		b.WriteByte('{')
		for i := range p.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			k, ok := rt.reprString(p.keys[i])
			if !ok {
				return "", false
			}
			v, ok := rt.reprString(p.vals[i])
			if !ok {
				return "", false
			}
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
		}
		b.WriteByte('}')
		return b.String(), true
	case *typeData:
		if p.builtin && p.module == "" {
			return fmt.Sprintf("<type '%s'>", p.name), true
		}
		if p.module != "" {
			return fmt.Sprintf("<class '%s.%s'>", p.module, p.name), true
		}
		return fmt.Sprintf("<class '%s'>", p.name), true
	case *moduleData:
		return fmt.Sprintf("<module '%s' (built-in)>", p.name), true
	case *funcData:
		if p.self != Null {
			return fmt.Sprintf("<built-in method %s of %s object at %#x>", p.name, rt.TypeName(p.self), uintptr(p.self)), true
		}
		return fmt.Sprintf("<built-in function %s>", p.name), true
	case nil:
		if o == rt.none {
			return "None", true
		}
		if o == rt.notImpl {
			return "NotImplemented", true
		}
	}
	return fmt.Sprintf("<%s object at %#x>", rt.TypeName(o), uintptr(o)), true
}

func (rt *Runtime) formatItems(open string, items []Token, close string) (string, bool) {
	var b strings.Builder
	b.WriteString(open)
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		s, ok := rt.reprString(item)
		if !ok {
			return "", false
		}
		b.WriteString(s)
	}
	b.WriteString(close)
	return b.String(), true
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	case f == math.Trunc(f) && math.Abs(f) < 1e16:
		return strconv.FormatFloat(f, 'f', -1, 64) + ".0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func quoteStr(s string) string {
	q := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == q || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '\r':
			b.WriteString(`\r`)
		case c < 0x20 || c == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(q)
	return b.String()
}

// IsTrue returns 1 if o is truthy, 0 if not, -1 on error.
func (rt *Runtime) IsTrue(o Token) int {
	obj := rt.get(o, "truth")
	switch p := obj.payload.(type) {
	case bool:
		return boolInt(p)
	case int64:
		return boolInt(p != 0)
	case *big.Int:
		return boolInt(p.Sign() != 0)
	case float64:
		return boolInt(p != 0)
	case string:
		return boolInt(p != "")
	case *listData:
		return boolInt(len(p.items) > 0)
	case *tupleData:
		return boolInt(len(p.items) > 0)
	case *dictData:
		return boolInt(len(p.keys) > 0)
	case nil:
		if o == rt.none {
			return 0
		}
	case *instanceData:
		if r, ok := rt.callSpecial(o, "__nonzero__"); ok {
			if r == Null {
				return -1
			}
			defer rt.DecRef(r)
			return rt.IsTrue(r)
		}
		if _, ok := rt.special(o, "__len__"); ok {
			n := rt.Len(o)
			if n < 0 {
				return -1
			}
			return boolInt(n > 0)
		}
	}
	return 1
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Len returns len(o), or -1 with an exception set.
func (rt *Runtime) Len(o Token) int {
	obj := rt.get(o, "len")
	switch p := obj.payload.(type) {
	case string:
		return len(p)
	case *listData:
		return len(p.items)
	case *tupleData:
		return len(p.items)
	case *dictData:
		return len(p.keys)
	case *instanceData:
		if r, ok := rt.callSpecial(o, "__len__"); ok {
			if r == Null {
				return -1
			}
			defer rt.DecRef(r)
			n, ok := rt.AsInt64(r)
			if !ok || n < 0 {
				rt.ErrSetString(rt.Exc.ValueError, "__len__() should return >= 0")
				return -1
			}
			return int(n)
		}
	}
	rt.ErrFormat(rt.Exc.TypeError, "object of type '%s' has no len()", rt.TypeName(o))
	return -1
}

func (rt *Runtime) seqIndex(o, key Token, n int, what string) (int, bool) {
	i, ok := rt.AsInt64(key)
	if !ok {
		rt.ErrFormat(rt.Exc.TypeError, "%s indices must be integers, not %s", what, rt.TypeName(key))
		return 0, false
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		rt.ErrFormat(rt.Exc.IndexError, "%s index out of range", what)
		return 0, false
	}
	return int(i), true
}

// GetItem returns o[key] as a new reference.
func (rt *Runtime) GetItem(o, key Token) Token {
	obj := rt.get(o, "getitem")
	switch p := obj.payload.(type) {
	case string:
		i, ok := rt.seqIndex(o, key, len(p), "string")
		if !ok {
			return Null
		}
		return rt.NewStr(p[i : i+1])
	case *listData:
		i, ok := rt.seqIndex(o, key, len(p.items), "list")
		if !ok {
			return Null
		}
		rt.IncRef(p.items[i])
		return p.items[i]
	case *tupleData:
		i, ok := rt.seqIndex(o, key, len(p.items), "tuple")
		if !ok {
			return Null
		}
		rt.IncRef(p.items[i])
		return p.items[i]
	case *dictData:
		v := rt.DictGetItem(o, key)
		if v == Null {
			if _, ok := rt.hashKey(key); ok {
				rt.setKeyError(key)
			}
			return Null
		}
		rt.IncRef(v)
		return v
	case *instanceData:
		if r, ok := rt.callSpecial(o, "__getitem__", key); ok {
			return r
		}
	}
	rt.ErrFormat(rt.Exc.TypeError, "'%s' object has no attribute '__getitem__'", rt.TypeName(o))
	return Null
}

// SetItem performs o[key] = v. Returns 0, or -1 with an exception set.
func (rt *Runtime) SetItem(o, key, v Token) int {
	obj := rt.get(o, "setitem")
	switch p := obj.payload.(type) {
	case *listData:
		i, ok := rt.seqIndex(o, key, len(p.items), "list")
		if !ok {
			return -1
		}
		rt.IncRef(v)
		return rt.ListSetItem(o, i, v)
	case *dictData:
		return rt.DictSetItem(o, key, v)
	case *instanceData:
		if r, ok := rt.callSpecial(o, "__setitem__", key, v); ok {
			if r == Null {
				return -1
			}
			rt.DecRef(r)
			return 0
		}
	}
	rt.ErrFormat(rt.Exc.TypeError, "'%s' object does not support item assignment", rt.TypeName(o))
	return -1
}

// DelItem performs del o[key].
func (rt *Runtime) DelItem(o, key Token) int {
	obj := rt.get(o, "delitem")
	switch p := obj.payload.(type) {
	case *listData:
		i, ok := rt.seqIndex(o, key, len(p.items), "list")
		if !ok {
			return -1
		}
		old := p.items[i]
		p.items = append(p.items[:i], p.items[i+1:]...)
		rt.DecRef(old)
		return 0
	case *dictData:
		return rt.DictDelItem(o, key)
	case *instanceData:
		if r, ok := rt.callSpecial(o, "__delitem__", key); ok {
			if r == Null {
				return -1
			}
			rt.DecRef(r)
			return 0
		}
	}
	rt.ErrFormat(rt.Exc.TypeError, "'%s' object does not support item deletion", rt.TypeName(o))
	return -1
}

// Contains returns 1 if item is in o, 0 if not, -1 on error.
func (rt *Runtime) Contains(o, item Token) int {
	obj := rt.get(o, "contains")
	switch p := obj.payload.(type) {
	case string:
		s, ok := rt.AsString(item)
		if !ok {
			rt.ErrFormat(rt.Exc.TypeError, "'in <string>' requires string as left operand, not %s", rt.TypeName(item))
			return -1
		}
		return boolInt(strings.Contains(p, s))
	case *listData:
		return rt.containsItem(p.items, item)
	case *tupleData:
		return rt.containsItem(p.items, item)
	case *dictData:
		return rt.DictContains(o, item)
	case *instanceData:
		if r, ok := rt.callSpecial(o, "__contains__", item); ok {
			if r == Null {
				return -1
			}
			defer rt.DecRef(r)
			return rt.IsTrue(r)
		}
	}
	items, ok := rt.collect(o)
	if !ok {
		rt.ErrFormat(rt.Exc.TypeError, "argument of type '%s' is not iterable", rt.TypeName(o))
		return -1
	}
	defer rt.decAll(items)
	return rt.containsItem(items, item)
}

func (rt *Runtime) containsItem(items []Token, item Token) int {
	for _, x := range items {
		switch rt.RichCompareBool(x, item, OpEq) {
		case 1:
			return 1
		case -1:
			return -1
		}
	}
	return 0
}

// RichCompare evaluates a op b. User-defined comparison methods are tried
// on a first, then reflected on b. Returns a new reference.
func (rt *Runtime) RichCompare(a, b Token, op CompareOp) Token {
	if rt.KindOf(a) == KindInstance {
		if r, done := rt.tryCompare(a, b, op); done {
			return r
		}
	}
	if rt.KindOf(b) == KindInstance {
		if r, done := rt.tryCompare(b, a, compareSwapped[op]); done {
			return r
		}
	}
	c, ok := rt.builtinCompare(a, b, op)
	if !ok {
		return Null
	}
	return rt.ReturnBool(c)
}

func (rt *Runtime) tryCompare(self, other Token, op CompareOp) (Token, bool) {
	r, found := rt.callSpecial(self, compareSpecials[op], other)
	if !found {
		return Null, false
	}
	if r == rt.notImpl {
		rt.DecRef(r)
		return Null, false
	}
	return r, true
}

func (rt *Runtime) builtinCompare(a, b Token, op CompareOp) (bool, bool) {
	if x, ok := rt.asNumber(a); ok {
		if y, ok := rt.asNumber(b); ok {
			return op.holds(compareNumbers(x, y)), true
		}
	}
	ka, kb := rt.KindOf(a), rt.KindOf(b)
	switch {
	case ka == KindStr && kb == KindStr:
		return op.holds(strings.Compare(rt.StrValue(a), rt.StrValue(b))), true
	case ka == KindList && kb == KindList:
		return rt.compareSeq(rt.list(a).items, rt.list(b).items, op)
	case ka == KindTuple && kb == KindTuple:
		return rt.compareSeq(rt.tuple(a).items, rt.tuple(b).items, op)
	case ka == KindDict && kb == KindDict && (op == OpEq || op == OpNe):
		eq, ok := rt.dictEqual(a, b)
		if !ok {
			return false, false
		}
		return eq == (op == OpEq), true
	}
	switch op {
	case OpEq:
		return a == b, true
	case OpNe:
		return a != b, true
	}
	rt.ErrFormat(rt.Exc.TypeError, "unorderable types: %s() %s %s()", rt.TypeName(a), op, rt.TypeName(b))
	return false, false
}

func (rt *Runtime) compareSeq(xs, ys []Token, op CompareOp) (bool, bool) {
	n := min(len(xs), len(ys))
	for i := 0; i < n; i++ {
		eq := rt.RichCompareBool(xs[i], ys[i], OpEq)
		if eq < 0 {
			return false, false
		}
		if eq == 0 {
			switch op {
			case OpEq:
				return false, true
			case OpNe:
				return true, true
			}
			r := rt.RichCompareBool(xs[i], ys[i], op)
			if r < 0 {
				return false, false
			}
			return r == 1, true
		}
	}
	return op.holds(len(xs) - len(ys)), true
}

func (rt *Runtime) dictEqual(a, b Token) (bool, bool) {
	da, db := rt.dict(a), rt.dict(b)
	if len(da.keys) != len(db.keys) {
		return false, true
	}
	for i, k := range da.keys {
		v := rt.DictGetItem(b, k)
		if v == Null {
			return false, true
		}
		eq := rt.RichCompareBool(da.vals[i], v, OpEq)
		if eq < 0 {
			return false, false
		}
		if eq == 0 {
			return false, true
		}
	}
	return true, true
}

// RichCompareBool returns 1 if a op b holds, 0 if not, -1 on error.
// Identical objects are always equal.
func (rt *Runtime) RichCompareBool(a, b Token, op CompareOp) int {
	if a == b {
		switch op {
		case OpEq:
			return 1
		case OpNe:
			return 0
		}
	}
	r := rt.RichCompare(a, b, op)
	if r == Null {
		return -1
	}
	defer rt.DecRef(r)
	return rt.IsTrue(r)
}

// Compare is three-way comparison: -1, 0 or 1. Check ErrOccurred after a
// -1 result to tell failure from less-than.
func (rt *Runtime) Compare(a, b Token) int {
	if rt.KindOf(a) == KindInstance {
		if r, ok := rt.callSpecial(a, "__cmp__", b); ok {
			if r == Null {
				return -1
			}
			defer rt.DecRef(r)
			n, ok := rt.AsInt64(r)
			if !ok {
				rt.ErrSetString(rt.Exc.TypeError, "comparison did not return an int")
				return -1
			}
			return sign(n)
		}
	}
	eq := rt.RichCompareBool(a, b, OpEq)
	if eq < 0 {
		return -1
	}
	if eq == 1 {
		return 0
	}
	lt := rt.RichCompareBool(a, b, OpLt)
	if lt < 0 {
		return -1
	}
	if lt == 1 {
		return -1
	}
	return 1
}

func sign(n int64) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

type seqIterData struct {
	seq Token // list or tuple (owned)
	pos int
}

type callIterData struct {
	fn, sentinel Token // owned; sentinel may be Null
	done         bool
}

// Iter returns an iterator over o.
func (rt *Runtime) Iter(o Token) Token {
	obj := rt.get(o, "iter")
	switch p := obj.payload.(type) {
	case *seqIterData, *callIterData:
		rt.IncRef(o)
		return o
	case *listData, *tupleData:
		rt.IncRef(o)
		return rt.alloc(rt.types.iterator, &seqIterData{seq: o})
	case string:
		chars := make([]Token, len(p))
		for i := range p {
			chars[i] = rt.NewStr(p[i : i+1])
		}
		return rt.alloc(rt.types.iterator, &seqIterData{seq: rt.newTuple(chars)})
	case *dictData:
		keys := rt.TuplePack(p.keys...)
		return rt.alloc(rt.types.iterator, &seqIterData{seq: keys})
	case *instanceData:
		if r, ok := rt.callSpecial(o, "__iter__"); ok {
			return r
		}
	}
	rt.ErrFormat(rt.Exc.TypeError, "'%s' object is not iterable", rt.TypeName(o))
	return Null
}

// CallIter returns an iterator that calls fn with no arguments on each
// step. Iteration ends when fn raises StopIteration or, if sentinel is not
// Null, when fn returns a value equal to sentinel.
func (rt *Runtime) CallIter(fn, sentinel Token) Token {
	rt.IncRef(fn)
	rt.IncRef(sentinel)
	return rt.alloc(rt.types.iterator, &callIterData{fn: fn, sentinel: sentinel})
}

// IterNext advances an iterator. It returns Null without an exception set
// when the iterator is exhausted.
func (rt *Runtime) IterNext(it Token) Token {
	obj := rt.get(it, "next")
	switch p := obj.payload.(type) {
	case *seqIterData:
		var items []Token
		if l, ok := rt.get(p.seq, "next").payload.(*listData); ok {
			items = l.items
		} else {
			items = rt.tuple(p.seq).items
		}
		if p.pos >= len(items) {
			return Null
		}
		v := items[p.pos]
		p.pos++
		rt.IncRef(v)
		return v
	case *callIterData:
		if p.done {
			return Null
		}
		r := rt.Call(p.fn, Null)
		if r == Null {
			if rt.ErrMatches(rt.Exc.StopIteration) {
				rt.ErrClear()
				p.done = true
			}
			return Null
		}
		if p.sentinel != Null {
			switch rt.RichCompareBool(r, p.sentinel, OpEq) {
			case 1:
				rt.DecRef(r)
				p.done = true
				return Null
			case -1:
				rt.DecRef(r)
				return Null
			}
		}
		return r
	case *instanceData:
		if r, ok := rt.callSpecial(it, "next"); ok {
			if r == Null && rt.ErrMatches(rt.Exc.StopIteration) {
				rt.ErrClear()
			}
			return r
		}
	}
	rt.ErrFormat(rt.Exc.TypeError, "'%s' object is not an iterator", rt.TypeName(it))
	return Null
}
