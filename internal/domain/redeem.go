package domain

import "strings"

type ParamType string

const (
	ParamTypeString  ParamType = "string"
	ParamTypeInteger ParamType = "integer"
	ParamTypeFloat   ParamType = "float"
	ParamTypeBoolean ParamType = "boolean"
	ParamTypeVector3 ParamType = "vector3"
)

// Param describes one argument a redeem accepts. Types outside the fixed
// set above name an enum list in the config document. Min/Max bound the
// value for numeric types and the length for strings.
type Param struct {
	Name     string    `json:"name"`
	Title    string    `json:"title,omitempty"`
	Type     ParamType `json:"type"`
	Required bool      `json:"required,omitempty"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
}

// Redeem is a purchasable action definition executed by the game process.
type Redeem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	SKU      string  `json:"sku"`
	Args     []Param `json:"args"`
	Announce bool    `json:"announce"`
	Disabled bool    `json:"disabled,omitempty"`
	Hidden   bool    `json:"hidden,omitempty"`
}

const disabledEnumMarker = "[DISABLED]"

// EnumValueDisabled reports whether an enum list entry is flagged as not
// currently purchasable.
func EnumValueDisabled(value string) bool {
	return strings.HasPrefix(value, disabledEnumMarker)
}
