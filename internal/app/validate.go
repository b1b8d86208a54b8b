package app

import (
	"math"
	"strconv"

	"github.com/VedalAI/swarm-control-sub000/internal/config"
	"github.com/VedalAI/swarm-control-sub000/internal/domain"
)

// validateCart checks a cart against the current config snapshot. The args
// map may be normalized in place (omitted booleans become false, oversized
// vectors are trimmed), which is why validation runs before the cart is
// frozen into an order.
func validateCart(snap config.Snapshot, cart domain.Cart) error {
	if cart.ConfigVersion != snap.Version {
		return domain.ErrVersionMismatch
	}

	redeem, ok := snap.Redeems[cart.RedeemID]
	if !ok {
		return domain.ErrRedeemNotFound
	}
	if redeem.Disabled || redeem.Hidden {
		return domain.ErrRedeemDisabled
	}
	if redeem.SKU != cart.SKU {
		return domain.ErrSKUMismatch
	}

	return validateArgs(redeem, snap.Enums, cart.Args)
}

func validateArgs(redeem domain.Redeem, enums map[string][]string, args map[string]any) error {
	for _, p := range redeem.Args {
		raw, present := args[p.Name]
		if !present || raw == nil {
			// HTML-style checkbox omission: an absent boolean means false.
			if p.Type == domain.ParamTypeBoolean {
				if args != nil {
					args[p.Name] = false
				}
				continue
			}
			if p.Required {
				return domain.Validationf(p.Name, "required argument missing")
			}
			continue
		}

		switch p.Type {
		case domain.ParamTypeString:
			s, ok := raw.(string)
			if !ok {
				return domain.Validationf(p.Name, "expected a string")
			}
			if p.Min != nil && float64(len(s)) < *p.Min {
				return domain.Validationf(p.Name, "shorter than %v characters", *p.Min)
			}
			if p.Max != nil && float64(len(s)) > *p.Max {
				return domain.Validationf(p.Name, "longer than %v characters", *p.Max)
			}

		case domain.ParamTypeInteger:
			f, ok := parseNumber(raw)
			if !ok {
				return domain.Validationf(p.Name, "expected an integer")
			}
			if math.Trunc(f) != f {
				return domain.Validationf(p.Name, "expected an integer, got a fraction")
			}
			if err := checkRange(p, f); err != nil {
				return err
			}

		case domain.ParamTypeFloat:
			f, ok := parseNumber(raw)
			if !ok {
				return domain.Validationf(p.Name, "expected a number")
			}
			if err := checkRange(p, f); err != nil {
				return err
			}

		case domain.ParamTypeBoolean:
			if _, ok := parseBool(raw); !ok {
				return domain.Validationf(p.Name, "expected a boolean")
			}

		case domain.ParamTypeVector3:
			vec, ok := parseVector3(raw)
			if !ok {
				return domain.Validationf(p.Name, "expected a vector of at least 3 numbers")
			}
			args[p.Name] = vec

		default:
			// Any other type names an enum list; the value is an index
			// into it.
			values, ok := enums[string(p.Type)]
			if !ok {
				return domain.Validationf(p.Name, "unknown enum type %q", p.Type)
			}
			f, numOK := parseNumber(raw)
			if !numOK || math.Trunc(f) != f {
				return domain.Validationf(p.Name, "expected an enum index")
			}
			idx := int(f)
			if idx < 0 || idx >= len(values) {
				return domain.Validationf(p.Name, "enum index %d out of range", idx)
			}
			if domain.EnumValueDisabled(values[idx]) {
				return domain.Validationf(p.Name, "option %q is disabled", values[idx])
			}
		}
	}
	return nil
}

func checkRange(p domain.Param, f float64) error {
	if p.Min != nil && f < *p.Min {
		return domain.Validationf(p.Name, "below minimum %v", *p.Min)
	}
	if p.Max != nil && f > *p.Max {
		return domain.Validationf(p.Name, "above maximum %v", *p.Max)
	}
	return nil
}

// parseNumber accepts JSON numbers and their string renderings, since args
// arrive from HTML form inputs as strings.
func parseNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func parseBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch v {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// parseVector3 accepts an array of at least 3 parseable numbers and honors
// only the last 3 elements.
func parseVector3(raw any) ([]float64, bool) {
	arr, ok := raw.([]any)
	if !ok || len(arr) < 3 {
		return nil, false
	}
	floats := make([]float64, 0, len(arr))
	for _, el := range arr {
		f, ok := parseNumber(el)
		if !ok {
			return nil, false
		}
		floats = append(floats, f)
	}
	return floats[len(floats)-3:], true
}
