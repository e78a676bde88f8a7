package engine

import (
	"math"
	"strings"

	"github.com/prismdb/prismdb/internal/errs"
	"github.com/prismdb/prismdb/internal/storage"
)

// evalScalarFunc dispatches the scalar function calls. NULL arguments
// propagate to a NULL result; a non-text argument to a string
// function is a type error.
func evalScalarFunc(fc *FuncCall, sc scope) (storage.Value, error) {
	args := make([]storage.Value, len(fc.Args))
	for i, a := range fc.Args {
		v, err := eval(a, sc)
		if err != nil {
			return storage.Value{}, err
		}
		args[i] = v
	}

	switch fc.Name {
	case "UPPER":
		return stringFunc(fc.Name, args, strings.ToUpper)
	case "LOWER":
		return stringFunc(fc.Name, args, strings.ToLower)
	case "TRIM":
		return stringFunc(fc.Name, args, strings.TrimSpace)
	case "LTRIM":
		return stringFunc(fc.Name, args, func(s string) string {
			return strings.TrimLeft(s, " \t\n\r")
		})
	case "RTRIM":
		return stringFunc(fc.Name, args, func(s string) string {
			return strings.TrimRight(s, " \t\n\r")
		})
	case "REVERSE":
		return stringFunc(fc.Name, args, reverseString)
	case "LEFT":
		return takeFunc(fc.Name, args, true)
	case "RIGHT":
		return takeFunc(fc.Name, args, false)
	case "LENGTH":
		if err := arity(fc.Name, args, 1); err != nil {
			return storage.Value{}, err
		}
		if args[0].IsNull() {
			return storage.Null(), nil
		}
		s, err := textArg(fc.Name, args[0])
		if err != nil {
			return storage.Value{}, err
		}
		return storage.Integer(int64(len([]rune(s)))), nil
	case "CONCAT":
		if len(args) == 0 {
			return storage.Value{}, errs.New(errs.Syntax, "CONCAT needs at least one argument")
		}
		var b strings.Builder
		for _, a := range args {
			if a.IsNull() {
				return storage.Null(), nil
			}
			s, err := textArg(fc.Name, a)
			if err != nil {
				return storage.Value{}, err
			}
			b.WriteString(s)
		}
		return storage.Text(b.String()), nil
	case "ABS":
		if err := arity(fc.Name, args, 1); err != nil {
			return storage.Value{}, err
		}
		switch args[0].Kind {
		case storage.KindNull:
			return storage.Null(), nil
		case storage.KindInteger:
			if args[0].Int < 0 {
				return storage.Integer(-args[0].Int), nil
			}
			return args[0], nil
		case storage.KindDouble:
			return storage.Double(math.Abs(args[0].Float)), nil
		}
		return storage.Value{}, errs.New(errs.TypeMismatch, "ABS requires a numeric argument")
	case "ROUND":
		return roundFunc(args)
	}
	return storage.Value{}, errs.Newf(errs.Syntax, "unknown function %s", fc.Name)
}

func arity(name string, args []storage.Value, n int) error {
	if len(args) != n {
		return errs.Newf(errs.Syntax, "%s takes %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func textArg(name string, v storage.Value) (string, error) {
	if v.Kind != storage.KindText {
		return "", errs.Newf(errs.TypeMismatch, "%s requires a TEXT argument", name)
	}
	return v.Str, nil
}

func stringFunc(name string, args []storage.Value, fn func(string) string) (storage.Value, error) {
	if err := arity(name, args, 1); err != nil {
		return storage.Value{}, err
	}
	if args[0].IsNull() {
		return storage.Null(), nil
	}
	s, err := textArg(name, args[0])
	if err != nil {
		return storage.Value{}, err
	}
	return storage.Text(fn(s)), nil
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// takeFunc implements LEFT and RIGHT. A negative count is an error; a
// count past the end clamps to the whole string. Counts are runes.
func takeFunc(name string, args []storage.Value, fromLeft bool) (storage.Value, error) {
	if err := arity(name, args, 2); err != nil {
		return storage.Value{}, err
	}
	if args[0].IsNull() || args[1].IsNull() {
		return storage.Null(), nil
	}
	s, err := textArg(name, args[0])
	if err != nil {
		return storage.Value{}, err
	}
	if args[1].Kind != storage.KindInteger {
		return storage.Value{}, errs.Newf(errs.TypeMismatch, "%s count must be INTEGER", name)
	}
	n := args[1].Int
	if n < 0 {
		return storage.Value{}, errs.Newf(errs.Value, "%s count must not be negative", name)
	}
	runes := []rune(s)
	if n >= int64(len(runes)) {
		return storage.Text(s), nil
	}
	if fromLeft {
		return storage.Text(string(runes[:n])), nil
	}
	return storage.Text(string(runes[int64(len(runes))-n:])), nil
}

func roundFunc(args []storage.Value) (storage.Value, error) {
	if len(args) != 1 && len(args) != 2 {
		return storage.Value{}, errs.Newf(errs.Syntax, "ROUND takes 1 or 2 arguments, got %d", len(args))
	}
	if args[0].IsNull() {
		return storage.Null(), nil
	}
	f, ok := args[0].AsDouble()
	if !ok {
		return storage.Value{}, errs.New(errs.TypeMismatch, "ROUND requires a numeric argument")
	}
	digits := int64(0)
	if len(args) == 2 {
		if args[1].IsNull() {
			return storage.Null(), nil
		}
		if args[1].Kind != storage.KindInteger {
			return storage.Value{}, errs.New(errs.TypeMismatch, "ROUND digits must be INTEGER")
		}
		digits = args[1].Int
	}
	if digits == 0 && args[0].Kind == storage.KindInteger {
		return args[0], nil
	}
	scale := math.Pow(10, float64(digits))
	return storage.Double(math.Round(f*scale) / scale), nil
}
