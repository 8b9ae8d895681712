package guest

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

type listData struct {
	items []Token // owned; may hold Null slots until filled
}

type tupleData struct {
	items []Token // owned
}

type dictData struct {
	keys, vals []Token // owned, insertion order
	index      map[string]int
}

// None returns the None singleton (borrowed).
func (rt *Runtime) None() Token { return rt.none }

// True returns the True singleton (borrowed).
func (rt *Runtime) True() Token { return rt.true_ }

// False returns the False singleton (borrowed).
func (rt *Runtime) False() Token { return rt.false_ }

// NotImplemented returns the NotImplemented singleton (borrowed).
func (rt *Runtime) NotImplemented() Token { return rt.notImpl }

// ReturnNone returns a new reference to None.
func (rt *Runtime) ReturnNone() Token {
	rt.IncRef(rt.none)
	return rt.none
}

// ReturnBool returns a new reference to True or False.
func (rt *Runtime) ReturnBool(b bool) Token {
	t := rt.false_
	if b {
		t = rt.true_
	}
	rt.IncRef(t)
	return t
}

// NewStr creates a str object.
func (rt *Runtime) NewStr(s string) Token {
	return rt.alloc(rt.types.str, s)
}

// StrValue returns the contents of a str object, or "" if t is not a str.
func (rt *Runtime) StrValue(t Token) string {
	s, _ := rt.get(t, "str").payload.(string)
	return s
}

// AsString returns the contents of t if it is a str.
func (rt *Runtime) AsString(t Token) (string, bool) {
	s, ok := rt.get(t, "str").payload.(string)
	return s, ok
}

// NewInt creates an int object.
func (rt *Runtime) NewInt(v int64) Token {
	return rt.alloc(rt.types.int_, v)
}

// IntValue returns the value of an int or bool object, or 0.
func (rt *Runtime) IntValue(t Token) int64 {
	v, _ := rt.AsInt64(t)
	return v
}

// AsInt64 returns the integral value of an int, bool or long that fits in
// 64 bits.
func (rt *Runtime) AsInt64(t Token) (int64, bool) {
	switch v := rt.get(t, "int").payload.(type) {
	case int64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case *big.Int:
		if v.IsInt64() {
			return v.Int64(), true
		}
	}
	return 0, false
}

// NewLong creates a long object holding a copy of v.
func (rt *Runtime) NewLong(v *big.Int) Token {
	return rt.alloc(rt.types.long, new(big.Int).Set(v))
}

// LongValue returns a copy of the value of an integral object, or nil.
func (rt *Runtime) LongValue(t Token) *big.Int {
	switch v := rt.get(t, "long").payload.(type) {
	case *big.Int:
		return new(big.Int).Set(v)
	case int64:
		return big.NewInt(v)
	case bool:
		if v {
			return big.NewInt(1)
		}
		return big.NewInt(0)
	}
	return nil
}

// NewFloat creates a float object.
func (rt *Runtime) NewFloat(f float64) Token {
	return rt.alloc(rt.types.float, f)
}

// FloatValue returns the value of a float object, or 0.
func (rt *Runtime) FloatValue(t Token) float64 {
	f, _ := rt.get(t, "float").payload.(float64)
	return f
}

// AsFloat returns the numeric value of any number as a float64.
func (rt *Runtime) AsFloat(t Token) (float64, bool) {
	n, ok := rt.asNumber(t)
	if !ok {
		return 0, false
	}
	return n.float(), true
}

// NewList creates a list of n Null slots, to be filled with ListSetItem.
func (rt *Runtime) NewList(n int) Token {
	return rt.alloc(rt.types.list, &listData{items: make([]Token, n)})
}

func (rt *Runtime) list(t Token) *listData {
	l, _ := rt.get(t, "list").payload.(*listData)
	return l
}

// ListSetItem stores v at index i, stealing the reference to v. The previous
// occupant is released. Returns -1 with IndexError set if i is out of range.
func (rt *Runtime) ListSetItem(l Token, i int, v Token) int {
	ld := rt.list(l)
	if ld == nil || i < 0 || i >= len(ld.items) {
		rt.DecRef(v)
		rt.ErrSetString(rt.Exc.IndexError, "list assignment index out of range")
		return -1
	}
	old := ld.items[i]
	ld.items[i] = v
	rt.DecRef(old)
	return 0
}

// ListGetItem returns the item at index i (borrowed).
func (rt *Runtime) ListGetItem(l Token, i int) Token {
	ld := rt.list(l)
	if ld == nil || i < 0 || i >= len(ld.items) {
		rt.ErrSetString(rt.Exc.IndexError, "list index out of range")
		return Null
	}
	return ld.items[i]
}

// ListSize returns the number of items in a list, or -1.
func (rt *Runtime) ListSize(l Token) int {
	if ld := rt.list(l); ld != nil {
		return len(ld.items)
	}
	return -1
}

// ListAppend appends v to the list. The list takes its own reference.
func (rt *Runtime) ListAppend(l, v Token) int {
	ld := rt.list(l)
	if ld == nil {
		rt.ErrSetString(rt.Exc.SystemError, "bad argument to ListAppend")
		return -1
	}
	rt.IncRef(v)
	ld.items = append(ld.items, v)
	return 0
}

// newTuple creates a tuple that steals the given references.
func (rt *Runtime) newTuple(items []Token) Token {
	return rt.alloc(rt.types.tuple, &tupleData{items: items})
}

// TuplePack creates a tuple of the given items, taking new references.
func (rt *Runtime) TuplePack(items ...Token) Token {
	owned := make([]Token, len(items))
	for i, t := range items {
		rt.IncRef(t)
		owned[i] = t
	}
	return rt.newTuple(owned)
}

func (rt *Runtime) tuple(t Token) *tupleData {
	td, _ := rt.get(t, "tuple").payload.(*tupleData)
	return td
}

// TupleSize returns the length of a tuple, or -1.
func (rt *Runtime) TupleSize(t Token) int {
	if td := rt.tuple(t); td != nil {
		return len(td.items)
	}
	return -1
}

// TupleGetItem returns the item at index i (borrowed).
func (rt *Runtime) TupleGetItem(t Token, i int) Token {
	td := rt.tuple(t)
	if td == nil || i < 0 || i >= len(td.items) {
		rt.ErrSetString(rt.Exc.IndexError, "tuple index out of range")
		return Null
	}
	return td.items[i]
}

// collect drains any iterable into a slice of new references.
func (rt *Runtime) collect(seq Token) ([]Token, bool) {
	switch p := rt.get(seq, "iter").payload.(type) {
	case *listData:
		out := append([]Token(nil), p.items...)
		for _, t := range out {
			rt.IncRef(t)
		}
		return out, true
	case *tupleData:
		out := append([]Token(nil), p.items...)
		for _, t := range out {
			rt.IncRef(t)
		}
		return out, true
	}
	it := rt.Iter(seq)
	if it == Null {
		return nil, false
	}
	defer rt.DecRef(it)
	var out []Token
	for {
		item := rt.IterNext(it)
		if item == Null {
			if rt.ErrOccurred() != Null {
				rt.decAll(out)
				return nil, false
			}
			return out, true
		}
		out = append(out, item)
	}
}

// SequenceTuple converts any iterable into a tuple. A tuple argument is
// returned as a new reference to itself.
func (rt *Runtime) SequenceTuple(seq Token) Token {
	if rt.KindOf(seq) == KindTuple {
		rt.IncRef(seq)
		return seq
	}
	items, ok := rt.collect(seq)
	if !ok {
		return Null
	}
	return rt.newTuple(items)
}

// SequenceList converts any iterable into a new list.
func (rt *Runtime) SequenceList(seq Token) Token {
	items, ok := rt.collect(seq)
	if !ok {
		return Null
	}
	return rt.alloc(rt.types.list, &listData{items: items})
}

// NewDict creates an empty dict.
func (rt *Runtime) NewDict() Token {
	return rt.alloc(rt.types.dict, &dictData{index: map[string]int{}})
}

func (rt *Runtime) dict(t Token) *dictData {
	d, _ := rt.get(t, "dict").payload.(*dictData)
	return d
}

// DictSetItem stores d[k] = v, taking new references to both.
// Returns -1 with TypeError set if k is unhashable.
func (rt *Runtime) DictSetItem(d, k, v Token) int {
	dd := rt.dict(d)
	if dd == nil {
		rt.ErrSetString(rt.Exc.SystemError, "bad argument to DictSetItem")
		return -1
	}
	h, ok := rt.hashKey(k)
	if !ok {
		return -1
	}
	rt.IncRef(v)
	if i, ok := dd.index[h]; ok {
		old := dd.vals[i]
		dd.vals[i] = v
		rt.DecRef(old)
		return 0
	}
	rt.IncRef(k)
	dd.index[h] = len(dd.keys)
	dd.keys = append(dd.keys, k)
	dd.vals = append(dd.vals, v)
	return 0
}

// DictGetItem returns d[k] (borrowed), or Null without an exception when the
// key is absent or unhashable.
func (rt *Runtime) DictGetItem(d, k Token) Token {
	dd := rt.dict(d)
	if dd == nil {
		return Null
	}
	h, ok := rt.hashKey(k)
	if !ok {
		rt.ErrClear()
		return Null
	}
	if i, ok := dd.index[h]; ok {
		return dd.vals[i]
	}
	return Null
}

// DictContains returns 1 if k is a key of d, 0 if not, -1 on error.
func (rt *Runtime) DictContains(d, k Token) int {
	dd := rt.dict(d)
	if dd == nil {
		rt.ErrSetString(rt.Exc.SystemError, "bad argument to DictContains")
		return -1
	}
	h, ok := rt.hashKey(k)
	if !ok {
		return -1
	}
	if _, ok := dd.index[h]; ok {
		return 1
	}
	return 0
}

// DictDelItem removes d[k]. Returns -1 with KeyError set if absent.
func (rt *Runtime) DictDelItem(d, k Token) int {
	dd := rt.dict(d)
	if dd == nil {
		rt.ErrSetString(rt.Exc.SystemError, "bad argument to DictDelItem")
		return -1
	}
	h, ok := rt.hashKey(k)
	if !ok {
		return -1
	}
	i, ok := dd.index[h]
	if !ok {
		rt.setKeyError(k)
		return -1
	}
	oldK, oldV := dd.keys[i], dd.vals[i]
	dd.keys = append(dd.keys[:i], dd.keys[i+1:]...)
	dd.vals = append(dd.vals[:i], dd.vals[i+1:]...)
	delete(dd.index, h)
	for j := i; j < len(dd.keys); j++ {
		kh, _ := rt.hashKey(dd.keys[j])
		dd.index[kh] = j
	}
	rt.DecRef(oldK)
	rt.DecRef(oldV)
	return 0
}

// DictSize returns the number of entries in d, or -1.
func (rt *Runtime) DictSize(d Token) int {
	if dd := rt.dict(d); dd != nil {
		return len(dd.keys)
	}
	return -1
}

// DictNext iterates d in insertion order. Start with *pos = 0. The returned
// key and value are borrowed.
func (rt *Runtime) DictNext(d Token, pos *int) (k, v Token, ok bool) {
	dd := rt.dict(d)
	if dd == nil || *pos < 0 || *pos >= len(dd.keys) {
		return Null, Null, false
	}
	i := *pos
	*pos++
	return dd.keys[i], dd.vals[i], true
}

func (rt *Runtime) setKeyError(k Token) {
	s, ok := rt.reprString(k)
	if !ok {
		rt.ErrClear()
		s = "?"
	}
	rt.ErrSetString(rt.Exc.KeyError, s)
}

// hashKey computes the identity of a dict key. Numbers that compare equal
// hash alike, so 1, 1L, 1.0 and True share a slot.
func (rt *Runtime) hashKey(k Token) (string, bool) {
	o := rt.get(k, "hash")
	switch v := o.payload.(type) {
	case string:
		return "s" + v, true
	case int64:
		return "i" + strconv.FormatInt(v, 10), true
	case bool:
		if v {
			return "i1", true
		}
		return "i0", true
	case *big.Int:
		return "i" + v.String(), true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			bf, _ := big.NewFloat(v).Int(nil)
			return "i" + bf.String(), true
		}
		return "f" + strconv.FormatFloat(v, 'g', -1, 64), true
	case nil:
		if k == rt.none {
			return "n", true
		}
	case *tupleData:
		var b strings.Builder
		b.WriteString("t(")
		for _, item := range v.items {
			h, ok := rt.hashKey(item)
			if !ok {
				return "", false
			}
			b.WriteString(strconv.Itoa(len(h)))
			b.WriteByte(':')
			b.WriteString(h)
		}
		b.WriteByte(')')
		return b.String(), true
	case *listData, *dictData:
		rt.ErrFormat(rt.Exc.TypeError, "unhashable type: '%s'", rt.TypeName(k))
		return "", false
	}
	return "o" + strconv.FormatUint(uint64(k), 16), true
}
