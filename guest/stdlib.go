package guest

import (
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

func buildFractions(rt *Runtime, m *Module) error {
	_, err := m.Class(ClassDef{
		Name: "Fraction",
		Methods: map[string]NativeFunc{
			"__init__":    fractionInit,
			"__add__":     fractionArith("__add__", (*big.Rat).Add),
			"__sub__":     fractionArith("__sub__", (*big.Rat).Sub),
			"__mul__":     fractionArith("__mul__", (*big.Rat).Mul),
			"__div__":     fractionDiv,
			"__neg__":     fractionUnary("__neg__", (*big.Rat).Neg),
			"__pos__":     fractionUnary("__pos__", (*big.Rat).Set),
			"__abs__":     fractionUnary("__abs__", (*big.Rat).Abs),
			"__eq__":      fractionCompare(OpEq),
			"__ne__":      fractionCompare(OpNe),
			"__lt__":      fractionCompare(OpLt),
			"__le__":      fractionCompare(OpLe),
			"__gt__":      fractionCompare(OpGt),
			"__ge__":      fractionCompare(OpGe),
			"__nonzero__": method0("__nonzero__", fractionNonzero),
			"__str__":     method0("__str__", fractionStr),
			"__repr__":    method0("__repr__", fractionRepr),
		},
	})
	return err
}

// ratOf reads a Fraction instance or an integral number as a rational.
func (rt *Runtime) ratOf(cls, t Token) (*big.Rat, bool) {
	if rt.IsInstance(t, cls) {
		id := rt.get(t, "fraction").payload.(*instanceData)
		n, d := id.attrs["numerator"], id.attrs["denominator"]
		if n == Null || d == Null {
			return nil, false
		}
		return new(big.Rat).SetFrac(rt.LongValue(n), rt.LongValue(d)), true
	}
	if k := rt.KindOf(t); k == KindInt || k == KindLong || k == KindBool {
		return new(big.Rat).SetInt(rt.LongValue(t)), true
	}
	return nil, false
}

func (rt *Runtime) integral(v *big.Int) Token {
	if v.IsInt64() {
		return rt.NewInt(v.Int64())
	}
	return rt.NewLong(v)
}

func (rt *Runtime) setFraction(self Token, r *big.Rat) {
	id := rt.get(self, "fraction").payload.(*instanceData)
	for name, v := range map[string]*big.Int{"numerator": r.Num(), "denominator": r.Denom()} {
		old := id.attrs[name]
		id.attrs[name] = rt.integral(v)
		rt.DecRef(old)
	}
}

func (rt *Runtime) newFraction(cls Token, r *big.Rat) Token {
	inst := rt.newInstance(cls)
	rt.setFraction(inst, r)
	return inst
}

func fractionInit(rt *Runtime, self, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("__init__", items, 0, 2) {
		return Null
	}
	num, den := big.NewInt(0), big.NewInt(1)
	for i, it := range items {
		k := rt.KindOf(it)
		if k != KindInt && k != KindLong && k != KindBool {
			rt.ErrFormat(rt.Exc.TypeError, "both arguments should be Rational instances, not %s", rt.TypeName(it))
			return Null
		}
		if i == 0 {
			num = rt.LongValue(it)
		} else {
			den = rt.LongValue(it)
		}
	}
	if den.Sign() == 0 {
		rt.ErrFormat(rt.Exc.ZeroDivisionError, "Fraction(%s, 0)", num)
		return Null
	}
	rt.setFraction(self, new(big.Rat).SetFrac(num, den))
	return rt.ReturnNone()
}

func fractionArith(name string, op func(z, x, y *big.Rat) *big.Rat) NativeFunc {
	return method1(name, func(rt *Runtime, self, other Token) Token {
		cls := rt.TypeOf(self)
		x, _ := rt.ratOf(cls, self)
		y, ok := rt.ratOf(cls, other)
		if !ok {
			return rt.unsupportedSpecial(name, self, other)
		}
		return rt.newFraction(cls, op(new(big.Rat), x, y))
	})
}

var fractionDiv = method1("__div__", func(rt *Runtime, self, other Token) Token {
	cls := rt.TypeOf(self)
	x, _ := rt.ratOf(cls, self)
	y, ok := rt.ratOf(cls, other)
	if !ok {
		return rt.unsupportedSpecial("__div__", self, other)
	}
	if y.Sign() == 0 {
		rt.ErrFormat(rt.Exc.ZeroDivisionError, "Fraction(%s, 0)", x.Num())
		return Null
	}
	return rt.newFraction(cls, new(big.Rat).Quo(x, y))
})

func (rt *Runtime) unsupportedSpecial(name string, a, b Token) Token {
	for op := OpAdd; op <= OpRShift; op++ {
		if op.Special() == name {
			return rt.unsupported(op, a, b)
		}
	}
	rt.ErrFormat(rt.Exc.TypeError, "unsupported operand for %s", name)
	return Null
}

func fractionUnary(name string, op func(z, x *big.Rat) *big.Rat) NativeFunc {
	return method0(name, func(rt *Runtime, self Token) Token {
		cls := rt.TypeOf(self)
		x, _ := rt.ratOf(cls, self)
		return rt.newFraction(cls, op(new(big.Rat), x))
	})
}

func fractionCompare(op CompareOp) NativeFunc {
	return method1(op.Special(), func(rt *Runtime, self, other Token) Token {
		cls := rt.TypeOf(self)
		x, _ := rt.ratOf(cls, self)
		y, ok := rt.ratOf(cls, other)
		if !ok {
			if f, isFloat := rt.get(other, "compare").payload.(float64); isFloat {
				xf, _ := x.Float64()
				return rt.ReturnBool(op.holds(compareNumbers(number{kind: KindFloat, f: xf}, number{kind: KindFloat, f: f})))
			}
			rt.IncRef(rt.notImpl)
			return rt.notImpl
		}
		return rt.ReturnBool(op.holds(x.Cmp(y)))
	})
}

func fractionNonzero(rt *Runtime, self Token) Token {
	x, _ := rt.ratOf(rt.TypeOf(self), self)
	return rt.ReturnBool(x.Sign() != 0)
}

func fractionStr(rt *Runtime, self Token) Token {
	x, _ := rt.ratOf(rt.TypeOf(self), self)
	if x.IsInt() {
		return rt.NewStr(x.Num().String())
	}
	return rt.NewStr(x.Num().String() + "/" + x.Denom().String())
}

func fractionRepr(rt *Runtime, self Token) Token {
	x, _ := rt.ratOf(rt.TypeOf(self), self)
	return rt.NewStr(fmt.Sprintf("Fraction(%s, %s)", x.Num(), x.Denom()))
}

func buildURLLib2(rt *Runtime, m *Module) error {
	_, err := m.Class(ClassDef{
		Name: "Request",
		Methods: map[string]NativeFunc{
			"__init__":     requestInit,
			"get_full_url": method0("get_full_url", requestAttr("_url")),
			"get_data":     method0("get_data", requestAttr("data")),
			"get_type": method0("get_type", func(rt *Runtime, self Token) Token {
				u, ok := rt.requestURL(self)
				if !ok {
					return Null
				}
				return rt.NewStr(u.Scheme)
			}),
			"get_host": method0("get_host", func(rt *Runtime, self Token) Token {
				u, ok := rt.requestURL(self)
				if !ok {
					return Null
				}
				return rt.NewStr(u.Host)
			}),
			"get_selector": method0("get_selector", func(rt *Runtime, self Token) Token {
				u, ok := rt.requestURL(self)
				if !ok {
					return Null
				}
				return rt.NewStr(u.RequestURI())
			}),
			"get_method": method0("get_method", func(rt *Runtime, self Token) Token {
				if rt.requestHasData(self) {
					return rt.NewStr("POST")
				}
				return rt.NewStr("GET")
			}),
			"has_data": method0("has_data", func(rt *Runtime, self Token) Token {
				return rt.ReturnBool(rt.requestHasData(self))
			}),
			"add_header": method2("add_header", func(rt *Runtime, self, key, val Token) Token {
				k, ok := strArg(rt, "add_header", key)
				if !ok {
					return Null
				}
				headers := rt.GetAttr(self, "headers")
				if headers == Null {
					return Null
				}
				defer rt.DecRef(headers)
				name := rt.NewStr(canonicalHeader(k))
				defer rt.DecRef(name)
				if rt.DictSetItem(headers, name, val) < 0 {
					return Null
				}
				return rt.ReturnNone()
			}),
			"get_header": func(rt *Runtime, self, args Token) Token {
				items := rt.Args(args)
				if !rt.arity("get_header", items, 1, 2) {
					return Null
				}
				k, ok := strArg(rt, "get_header", items[0])
				if !ok {
					return Null
				}
				headers := rt.GetAttr(self, "headers")
				if headers == Null {
					return Null
				}
				defer rt.DecRef(headers)
				name := rt.NewStr(canonicalHeader(k))
				defer rt.DecRef(name)
				if v := rt.DictGetItem(headers, name); v != Null {
					rt.IncRef(v)
					return v
				}
				if len(items) == 2 {
					rt.IncRef(items[1])
					return items[1]
				}
				return rt.ReturnNone()
			},
		},
	})
	return err
}

func canonicalHeader(k string) string {
	if k == "" {
		return k
	}
	return strings.ToUpper(k[:1]) + strings.ToLower(k[1:])
}

func requestInit(rt *Runtime, self, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("__init__", items, 1, 2) {
		return Null
	}
	if _, ok := strArg(rt, "Request", items[0]); !ok {
		return Null
	}
	data := rt.none
	if len(items) == 2 {
		data = items[1]
	}
	headers := rt.NewDict()
	defer rt.DecRef(headers)
	if rt.SetAttr(self, "_url", items[0]) < 0 ||
		rt.SetAttr(self, "data", data) < 0 ||
		rt.SetAttr(self, "headers", headers) < 0 {
		return Null
	}
	return rt.ReturnNone()
}

func requestAttr(name string) func(rt *Runtime, self Token) Token {
	return func(rt *Runtime, self Token) Token {
		return rt.GetAttr(self, name)
	}
}

func (rt *Runtime) requestHasData(self Token) bool {
	data := rt.GetAttr(self, "data")
	if data == Null {
		rt.ErrClear()
		return false
	}
	defer rt.DecRef(data)
	return data != rt.none
}

func (rt *Runtime) requestURL(self Token) (*url.URL, bool) {
	raw := rt.GetAttr(self, "_url")
	if raw == Null {
		return nil, false
	}
	defer rt.DecRef(raw)
	s := rt.StrValue(raw)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		rt.ErrFormat(rt.Exc.ValueError, "unknown url type: %s", s)
		return nil, false
	}
	return u, true
}
