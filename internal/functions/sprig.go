package functions

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/Masterminds/sprig/v3"

	"rehearse/internal/message"
)

// SprigPrefix addresses the sprig function library.
const SprigPrefix = "sprig"

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Sprig adapts sprig's generic function map. String arguments are converted
// to the parameter types each function declares.
func Sprig() *Library {
	lib := NewLibrary(SprigPrefix)
	for name, fn := range sprig.GenericFuncMap() {
		v := reflect.ValueOf(fn)
		if v.Kind() != reflect.Func {
			continue
		}
		lib.Register(name, reflectFunc(name, v))
	}
	return lib
}

func reflectFunc(name string, fn reflect.Value) Func {
	t := fn.Type()
	return func(args []string) (string, error) {
		in, err := convertArgs(t, args)
		if err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}

		out := fn.Call(in)
		if len(out) == 0 {
			return "", nil
		}
		if last := out[len(out)-1]; last.Type().Implements(errorType) && !last.IsNil() {
			return "", last.Interface().(error)
		}
		if out[0].Type().Implements(errorType) {
			return "", nil
		}
		return message.ValueString(out[0].Interface()), nil
	}
}

func convertArgs(t reflect.Type, args []string) ([]reflect.Value, error) {
	fixed := t.NumIn()
	if t.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("expects at least %d arguments, got %d", fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("expects %d arguments, got %d", fixed, len(args))
	}

	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		var pt reflect.Type
		if i < fixed {
			pt = t.In(i)
		} else {
			pt = t.In(fixed).Elem()
		}
		v, err := convertArg(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		in = append(in, v)
	}
	return in, nil
}

func convertArg(arg string, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(arg).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("'%s' is not an integer", arg)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("'%s' is not an unsigned integer", arg)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("'%s' is not a number", arg)
		}
		return reflect.ValueOf(f).Convert(t), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(arg)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("'%s' is not a boolean", arg)
		}
		return reflect.ValueOf(b), nil
	case reflect.Interface:
		return reflect.ValueOf(arg), nil
	default:
		return reflect.Value{}, fmt.Errorf("unsupported parameter type %s", t)
	}
}
