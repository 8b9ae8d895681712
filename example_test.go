package rupy_test

import (
	"fmt"
	"log"
	"strings"

	"github.com/feather-lang/rupy"
)

func ExampleBridge_Type() {
	b := rupy.New()
	err := b.Session(func(b *rupy.Bridge) error {
		newFraction, err := b.Type("fractions.Fraction")
		if err != nil {
			return err
		}
		half, err := newFraction(1, 2)
		if err != nil {
			return err
		}
		defer half.Release()

		sum, err := half.Add(half)
		if err != nil {
			return err
		}
		defer sum.Release()
		fmt.Println(half, "+", half, "=", sum)
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	// Output: 1/2 + 1/2 = 1
}

func ExampleBridge_ToForeign() {
	b := rupy.New()
	err := b.Session(func(b *rupy.Bridge) error {
		shout := rupy.Func(func(args ...any) (any, error) {
			return strings.ToUpper(args[0].(string)) + "!", nil
		})
		main, err := b.Main()
		if err != nil {
			return err
		}
		r, err := main.Send("map", shout, []string{"hi", "go"})
		if err != nil {
			return err
		}
		out := r.(*rupy.Proxy)
		defer out.Release()
		fmt.Println(out)
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	// Output: ['HI!', 'GO!']
}

func ExampleBridge_Generator() {
	b := rupy.New()
	err := b.Session(func(b *rupy.Bridge) error {
		gen, err := b.Generator(rupy.Values(1, 2, 3))
		if err != nil {
			return err
		}
		defer gen.Release()

		main, err := b.Main()
		if err != nil {
			return err
		}
		r, err := main.Send("sum", gen)
		if err != nil {
			return err
		}
		total := r.(*rupy.Proxy)
		defer total.Release()
		fmt.Println(total)
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	// Output: 6
}

func ExampleInterpreterError() {
	b := rupy.New()
	err := b.Session(func(b *rupy.Bridge) error {
		_, err := b.Import("nope")
		return err
	})
	fmt.Println(err)
	// Output: import nope: ImportError: No module named nope
}
