package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownToken means a formula referenced a name that is neither in
	// the context nor a numeric literal.
	ErrUnknownToken = errors.New("formula: unknown token")
	// ErrDivideByZero is returned when a chain divides by an operand of 0.
	ErrDivideByZero = errors.New("formula: division by zero")
)

// FormulaResult is the value of an evaluated formula plus the resolved value
// of every term that contributed to it.
type FormulaResult struct {
	Value   float64
	Details map[string]float64
}

// Evaluate computes formula against ctx. Two forms are understood:
// SUM(term, ...) where a term is a name or an inclusive range such as J4:J10,
// and a chain of + - * / applied strictly left to right.
func Evaluate(formula string, ctx map[string]float64) (FormulaResult, error) {
	expr := strings.TrimSpace(formula)
	res := FormulaResult{Details: make(map[string]float64)}

	upper := strings.ToUpper(expr)
	if strings.HasPrefix(upper, "SUM(") && strings.HasSuffix(expr, ")") {
		inner := expr[len("SUM(") : len(expr)-1]
		for _, raw := range strings.Split(inner, ",") {
			term := strings.TrimSpace(raw)
			if term == "" {
				continue
			}
			if strings.Contains(term, ":") {
				if err := sumRange(term, ctx, &res); err != nil {
					return FormulaResult{}, err
				}
				continue
			}
			v, err := resolveToken(term, ctx)
			if err != nil {
				return FormulaResult{}, err
			}
			res.Details[term] = v
			res.Value += v
		}
		return res, nil
	}

	operands, operators := splitChain(expr)
	acc, err := resolveToken(operands[0], ctx)
	if err != nil {
		return FormulaResult{}, err
	}
	res.Details[operands[0]] = acc

	for i, op := range operators {
		name := operands[i+1]
		v, err := resolveToken(name, ctx)
		if err != nil {
			return FormulaResult{}, err
		}
		res.Details[name] = v

		switch op {
		case '+':
			acc += v
		case '-':
			acc -= v
		case '*':
			acc *= v
		case '/':
			if v == 0 {
				return FormulaResult{}, fmt.Errorf("%w: %s", ErrDivideByZero, expr)
			}
			acc /= v
		}
	}
	res.Value = acc
	return res, nil
}

// sumRange expands start:end down start's column. end only contributes its
// row number, read after a prefix as long as start's, so J4:K10 sums J4..J10.
// Members missing from ctx count as 0.
func sumRange(term string, ctx map[string]float64, res *FormulaResult) error {
	start, end, _ := strings.Cut(term, ":")
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)

	prefix, startIdx, ok := splitCellRef(start)
	if !ok {
		return fmt.Errorf("%w: bad range %q", ErrUnknownToken, term)
	}
	if len(end) <= len(prefix) {
		return fmt.Errorf("%w: bad range %q", ErrUnknownToken, term)
	}
	endIdx, err := strconv.Atoi(end[len(prefix):])
	if err != nil {
		return fmt.Errorf("%w: bad range %q", ErrUnknownToken, term)
	}

	for i := startIdx; i <= endIdx; i++ {
		key := prefix + strconv.Itoa(i)
		v := ctx[key]
		res.Details[key] = v
		res.Value += v
	}
	return nil
}

// splitCellRef splits "J14" into ("J", 14).
func splitCellRef(ref string) (string, int, bool) {
	cut := len(ref)
	for cut > 0 && ref[cut-1] >= '0' && ref[cut-1] <= '9' {
		cut--
	}
	if cut == len(ref) {
		return "", 0, false
	}
	idx, err := strconv.Atoi(ref[cut:])
	if err != nil {
		return "", 0, false
	}
	return ref[:cut], idx, true
}

func splitChain(expr string) ([]string, []byte) {
	var operands []string
	var operators []byte
	last := 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '+', '-', '*', '/':
			operands = append(operands, strings.TrimSpace(expr[last:i]))
			operators = append(operators, expr[i])
			last = i + 1
		}
	}
	operands = append(operands, strings.TrimSpace(expr[last:]))
	return operands, operators
}

func resolveToken(token string, ctx map[string]float64) (float64, error) {
	if v, ok := ctx[token]; ok {
		return v, nil
	}
	if v, err := strconv.ParseFloat(token, 64); err == nil {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownToken, token)
}
