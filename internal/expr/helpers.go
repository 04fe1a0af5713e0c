package expr

import (
	"fmt"
	"math"
)

// evalCall dispatches a function call to the fixed helper allow-list:
// len, min, max, abs, round, sum, any, all, int, float, str, bool.
// No other callable is reachable from expression text.
func evalCall(c call, vars map[string]any) (any, error) {
	args := make([]any, len(c.args))
	for i, a := range c.args {
		v, err := EvalNode(a, vars)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch c.name {
	case "len":
		return helperLen(args)
	case "min":
		return helperMinMax(args, false)
	case "max":
		return helperMinMax(args, true)
	case "abs":
		return helperAbs(args)
	case "round":
		return helperRound(args)
	case "sum":
		return helperSum(args)
	case "any":
		return helperAny(args)
	case "all":
		return helperAll(args)
	case "int":
		return helperInt(args)
	case "float":
		return helperFloat(args)
	case "str":
		return helperStr(args)
	case "bool":
		return helperBool(args)
	default:
		return nil, fmt.Errorf("unknown function: %s", c.name)
	}
}

func helperLen(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("len() takes exactly one argument")
	}
	switch v := args[0].(type) {
	case string:
		return float64(len([]rune(v))), nil
	case []any:
		return float64(len(v)), nil
	case map[string]any:
		return float64(len(v)), nil
	default:
		return nil, fmt.Errorf("len() unsupported for %T", args[0])
	}
}

func asNumericList(args []any) ([]float64, error) {
	var values []any
	if len(args) == 1 {
		if list, ok := args[0].([]any); ok {
			values = list
		} else {
			values = args
		}
	} else {
		values = args
	}
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		n, ok := toNumber(v)
		if !ok {
			return nil, fmt.Errorf("expected numeric values")
		}
		nums = append(nums, n)
	}
	return nums, nil
}

func helperMinMax(args []any, wantMax bool) (any, error) {
	nums, err := asNumericList(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, fmt.Errorf("min/max() requires at least one value")
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if (wantMax && n > best) || (!wantMax && n < best) {
			best = n
		}
	}
	return best, nil
}

func helperAbs(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("abs() takes exactly one argument")
	}
	n, ok := toNumber(args[0])
	if !ok {
		return nil, fmt.Errorf("abs() requires a numeric argument")
	}
	return math.Abs(n), nil
}

func helperRound(args []any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("round() takes one or two arguments")
	}
	n, ok := toNumber(args[0])
	if !ok {
		return nil, fmt.Errorf("round() requires a numeric argument")
	}
	digits := 0
	if len(args) == 2 {
		d, ok := toNumber(args[1])
		if !ok {
			return nil, fmt.Errorf("round() digits must be numeric")
		}
		digits = int(d)
	}
	mult := math.Pow(10, float64(digits))
	return math.Round(n*mult) / mult, nil
}

func helperSum(args []any) (any, error) {
	nums, err := asNumericList(args)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total, nil
}

func asList(args []any) ([]any, error) {
	if len(args) == 1 {
		if list, ok := args[0].([]any); ok {
			return list, nil
		}
		return nil, fmt.Errorf("expected a list argument")
	}
	return args, nil
}

func helperAny(args []any) (any, error) {
	list, err := asList(args)
	if err != nil {
		return nil, err
	}
	for _, v := range list {
		if truthy(v) {
			return true, nil
		}
	}
	return false, nil
}

func helperAll(args []any) (any, error) {
	list, err := asList(args)
	if err != nil {
		return nil, err
	}
	for _, v := range list {
		if !truthy(v) {
			return false, nil
		}
	}
	return true, nil
}

func helperInt(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("int() takes exactly one argument")
	}
	n, ok := toNumber(args[0])
	if !ok {
		return nil, fmt.Errorf("int() requires a convertible argument")
	}
	return math.Trunc(n), nil
}

func helperFloat(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("float() takes exactly one argument")
	}
	n, ok := toNumber(args[0])
	if !ok {
		return nil, fmt.Errorf("float() requires a convertible argument")
	}
	return n, nil
}

func helperStr(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("str() takes exactly one argument")
	}
	if s, ok := args[0].(string); ok {
		return s, nil
	}
	return fmt.Sprint(args[0]), nil
}

func helperBool(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("bool() takes exactly one argument")
	}
	return truthy(args[0]), nil
}
