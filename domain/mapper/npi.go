package mapper

import (
	"errors"

	"github.com/artpar/reportgate/domain/schema"
)

// IfNPI tests whether the dependency value is a valid NPI. A valid NPI
// returns the second argument, an invalid one the optional third.
//
//	ifNPI(ordering_provider_id, NPI, U)
type IfNPI struct{}

func (IfNPI) Name() string { return "ifNPI" }

func (IfNPI) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, errors.New("ifNPI expects an element name, a true value, and an optional false value")
	}
	return args[:1], nil
}

func (IfNPI) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) != 1 {
		return schema.Result("")
	}
	if IsValidNPI(values[0].Value) {
		return schema.Result(args[1])
	}
	if len(args) == 3 {
		return schema.Result(args[2])
	}
	return schema.Result("")
}

// IsValidNPI reports whether a value is a well-formed NPI: ten digits whose
// check digit satisfies the Luhn algorithm over the 80840-prefixed number.
func IsValidNPI(value string) bool {
	if len(value) != 10 {
		return false
	}
	digits := make([]int, 10)
	for i, r := range value {
		if r < '0' || r > '9' {
			return false
		}
		digits[i] = int(r - '0')
	}
	// The 80840 prefix contributes a constant 24 to the Luhn sum.
	sum := 24
	double := true
	for i := 8; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	check := (10 - sum%10) % 10
	return check == digits[9]
}
