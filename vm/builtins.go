package vm

import (
	"math"
	"strconv"
)

// callBuiltin dispatches one of bytecode.BuiltinNames by name, grounded on
// hir.builtinReturnTypes' catalogue of built-in call signatures.
func (vm *VM) callBuiltin(name string, args []Value) (Value, error) {
	switch name {
	case "print", "say":
		for _, a := range args {
			vm.Stdout.Write([]byte(a.String()))
		}
		vm.Stdout.Write([]byte("\n"))
		return Empty(), nil

	case "type":
		if len(args) != 1 {
			return Empty(), newError("type", "expects 1 argument, got %d", len(args))
		}
		return Str(args[0].Kind.String()), nil

	case "len":
		if len(args) != 1 {
			return Empty(), newError("len", "expects 1 argument, got %d", len(args))
		}
		switch args[0].Kind {
		case KString, KURL:
			return Int(int64(len([]rune(args[0].S)))), nil
		default:
			return Empty(), newError("len", "no length for %s", args[0].Kind)
		}

	case "str":
		if len(args) != 1 {
			return Empty(), newError("str", "expects 1 argument, got %d", len(args))
		}
		return Str(args[0].String()), nil

	case "int":
		if len(args) != 1 {
			return Empty(), newError("int", "expects 1 argument, got %d", len(args))
		}
		return toInt(args[0])

	case "float":
		if len(args) != 1 {
			return Empty(), newError("float", "expects 1 argument, got %d", len(args))
		}
		return toFloat(args[0])

	case "bool":
		if len(args) != 1 {
			return Empty(), newError("bool", "expects 1 argument, got %d", len(args))
		}
		return Bool(args[0].Truthy()), nil

	case "abs":
		if len(args) != 1 {
			return Empty(), newError("abs", "expects 1 argument, got %d", len(args))
		}
		switch args[0].Kind {
		case KInt:
			v := args[0].I
			if v < 0 {
				v = -v
			}
			return Int(v), nil
		case KFloat:
			return Float(math.Abs(args[0].F)), nil
		default:
			return Empty(), newError("abs", "not a number: %s", args[0].Kind)
		}

	case "min":
		return reduceNumeric("min", args, func(a, b float64) bool { return a < b })

	case "max":
		return reduceNumeric("max", args, func(a, b float64) bool { return a > b })

	case "is_empty":
		if len(args) != 1 {
			return Empty(), newError("is_empty", "expects 1 argument, got %d", len(args))
		}
		v := args[0]
		switch v.Kind {
		case KEmpty:
			return Bool(true), nil
		case KString, KURL:
			return Bool(v.S == ""), nil
		default:
			return Bool(false), nil
		}

	case "round":
		if len(args) < 1 || len(args) > 2 {
			return Empty(), newError("round", "expects 1 or 2 arguments, got %d", len(args))
		}
		f, ok := args[0].asFloat()
		if !ok {
			return Empty(), newError("round", "not a number: %s", args[0].Kind)
		}
		if len(args) == 1 {
			return Int(int64(math.Round(f))), nil
		}
		ndigits := args[1].I
		scale := math.Pow(10, float64(ndigits))
		return Float(math.Round(f*scale) / scale), nil

	default:
		return Empty(), newError("CALL", "unknown built-in %q", name)
	}
}

func toInt(v Value) (Value, error) {
	switch v.Kind {
	case KInt:
		return v, nil
	case KFloat:
		return Int(int64(v.F)), nil
	case KBool:
		return Int(v.I), nil
	case KString:
		n, err := strconv.ParseInt(v.S, 10, 64)
		if err != nil {
			return Empty(), newError("int", "cannot convert %q to Int", v.S)
		}
		return Int(n), nil
	default:
		return Empty(), newError("int", "cannot convert %s to Int", v.Kind)
	}
}

func toFloat(v Value) (Value, error) {
	switch v.Kind {
	case KFloat:
		return v, nil
	case KInt:
		return Float(float64(v.I)), nil
	case KBool:
		return Float(float64(v.I)), nil
	case KString:
		f, err := strconv.ParseFloat(v.S, 64)
		if err != nil {
			return Empty(), newError("float", "cannot convert %q to Float", v.S)
		}
		return Float(f), nil
	default:
		return Empty(), newError("float", "cannot convert %s to Float", v.Kind)
	}
}

func reduceNumeric(op string, args []Value, better func(candidate, current float64) bool) (Value, error) {
	if len(args) == 0 {
		return Empty(), newError(op, "expects at least 1 argument")
	}
	best := args[0]
	bestF, ok := best.asFloat()
	if !ok {
		return Empty(), newError(op, "not a number: %s", best.Kind)
	}
	for _, a := range args[1:] {
		f, ok := a.asFloat()
		if !ok {
			return Empty(), newError(op, "not a number: %s", a.Kind)
		}
		if better(f, bestF) {
			best, bestF = a, f
		}
	}
	return best, nil
}
