package main

import (
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/feather-lang/rupy"
)

// parseArgs decodes each argument as a YAML literal.
func parseArgs(args []string) ([]any, error) {
	out := make([]any, 0, len(args))
	for _, s := range args {
		var v any
		if err := yaml.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("argument %q: %w", s, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseLine splits a REPL line "target arg, arg" into the target and its
// arguments, read as a YAML flow sequence.
func parseLine(line string) (string, []any, error) {
	target, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	var args []any
	if rest = strings.TrimSpace(rest); rest != "" {
		if err := yaml.Unmarshal([]byte("["+rest+"]"), &args); err != nil {
			return "", nil, fmt.Errorf("arguments %q: %w", rest, err)
		}
	}
	return target, args, nil
}

// resolve imports the module named by target and returns it with the
// attribute name. A target with no module refers to the builtins.
func resolve(b *rupy.Bridge, target string) (*rupy.Proxy, string, error) {
	i := strings.LastIndexByte(target, '.')
	if i < 0 {
		builtins, err := b.Main()
		return builtins, target, err
	}
	if i == 0 || i == len(target)-1 {
		return nil, "", fmt.Errorf("invalid target %q", target)
	}
	m, err := b.Import(target[:i])
	return m, target[i+1:], err
}

// evaluate calls target with args and renders the result. Every handle
// created on the way is released before it returns.
func evaluate(b *rupy.Bridge, target string, args []any) (string, error) {
	var out string
	err := b.Scope(func(*rupy.Scope) error {
		recv, name, err := resolve(b, target)
		if err != nil {
			return err
		}
		attr, err := recv.GetAttr(name)
		if err != nil {
			return err
		}
		var r any = attr
		if attr.IsCallable() {
			if r, err = recv.Send(name, args...); err != nil {
				return err
			}
		} else if len(args) > 0 {
			return fmt.Errorf("%s is not callable", target)
		}
		out, err = render(r)
		return err
	})
	return out, err
}

// listing returns the public attribute names of a module.
func listing(b *rupy.Bridge, module string, all bool) ([]string, error) {
	var names []string
	err := b.Scope(func(*rupy.Scope) error {
		m, err := b.Import(module)
		if err != nil {
			return err
		}
		dir, err := m.Dir()
		if err != nil {
			return err
		}
		for _, n := range dir {
			if all || !strings.HasPrefix(n, "_") {
				names = append(names, n)
			}
		}
		return nil
	})
	return names, err
}

// render prints a native result as YAML. Values with no native form print
// as the guest's str(), wherever they are nested.
func render(v any) (string, error) {
	if p, ok := v.(*rupy.Proxy); ok {
		n, err := p.Native()
		if err != nil {
			return "", err
		}
		if np, ok := n.(*rupy.Proxy); ok {
			return np.String(), nil
		}
		v = n
	}
	if v == nil {
		return "None", nil
	}
	data, err := yaml.Marshal(printable(v))
	if err != nil {
		return "", fmt.Errorf("render result: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// printable replaces the handles and proxies inside a converted value with
// their str(). Tuple keys print as "(1, 2)".
func printable(v any) any {
	switch x := v.(type) {
	case *rupy.Handle:
		return x.String()
	case *rupy.Proxy:
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = printable(item)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(x))
		for k, item := range x {
			out[printableKey(k)] = printable(item)
		}
		return out
	}
	return v
}

func printableKey(k any) any {
	rv := reflect.ValueOf(k)
	if rv.Kind() != reflect.Array {
		return printable(k)
	}
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(printable(rv.Index(i).Interface()))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
