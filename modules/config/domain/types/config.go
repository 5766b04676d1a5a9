package types

import "time"

// Definition is one entry of the append-only config registry. Keys are
// never deleted while referenced; only display metadata and the
// default may change.
type Definition struct {
	Key            string `json:"config_key" yaml:"key"`
	DisplayName    string `json:"display_name" yaml:"display_name"`
	Description    string `json:"description,omitempty" yaml:"description"`
	DefaultValue   string `json:"default_value" yaml:"default"`
	ValidationExpr string `json:"validation_expr,omitempty" yaml:"validation_expr"`
}

// SourceLevel names which level of the hierarchy supplied a resolved
// value.
type SourceLevel string

const (
	SourceLocation SourceLevel = "location"
	SourceClinic   SourceLevel = "clinic"
	SourceProgram  SourceLevel = "program"
	SourceDefault  SourceLevel = "default"
)

// Scope identifies exactly one node of the hierarchy a value row is
// attached to. Level decides which IDs are meaningful: program scope
// carries only ProgramID, clinic scope carries ProgramID+ClinicID,
// location scope carries all three.
type Scope struct {
	Level      SourceLevel `json:"level"`
	ProgramID  string      `json:"program_id"`
	ClinicID   string      `json:"clinic_id,omitempty"`
	LocationID string      `json:"location_id,omitempty"`
}

// Value is a stored override. Value==nil means the row exists but is
// explicitly unset: resolution treats it the same as "row absent" and
// falls through, but audit history keeps the distinction.
type Value struct {
	ID        string    `json:"value_id"`
	Key       string    `json:"config_key"`
	Scope     Scope     `json:"scope"`
	Value     *string   `json:"value"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChainLevel is one step of the inheritance chain, for display and
// audit composition only; the effective value comes from Resolution.
type ChainLevel struct {
	Level       SourceLevel `json:"level"`
	Value       *string     `json:"value"`
	IsEffective bool        `json:"is_effective"`
	IsOverride  bool        `json:"is_override"`
}

type Resolution struct {
	Key    string       `json:"config_key"`
	Value  string       `json:"value"`
	Source SourceLevel  `json:"source_level"`
	Chain  []ChainLevel `json:"inheritance_chain,omitempty"`
}

// IsSet reports whether the stored cell carries a real value. Empty
// string and nil both read as "not set" and fall through to the next
// level.
func (v *Value) IsSet() bool {
	return v != nil && v.Value != nil && *v.Value != ""
}
