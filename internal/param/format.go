package param

import (
	"strconv"

	"github.com/roach88/sushid/internal/control"
)

// Format renders a raw value the way the engine reports it as a string:
// booleans as "True"/"False", integers in decimal, floats with six
// decimals.
func Format(t control.ParameterType, raw float64) string {
	switch t {
	case control.TypeBool:
		if raw >= 0.5 {
			return "True"
		}
		return "False"
	case control.TypeInt:
		return strconv.FormatInt(int64(raw), 10)
	default:
		return strconv.FormatFloat(raw, 'f', 6, 64)
	}
}
