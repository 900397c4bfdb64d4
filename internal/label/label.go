// Package label translates free-form predicted_status literals into the
// canonical status labels used throughout the analysis.
package label

import (
	"strings"
)

// Label is a canonical segment status.
type Label string

const (
	SteadyState Label = "steady_state"
	Stabilizing Label = "stabilizing"
	Transient   Label = "transient"
	Unknown     Label = ""
)

// DefaultAliases maps source spellings that do not fold to a canonical label.
var DefaultAliases = map[string]Label{
	"steady":      SteadyState,
	"stable":      SteadyState,
	"stabilising": Stabilizing,
}

// Translator folds raw literals into canonical labels.
type Translator struct {
	aliases map[string]Label
}

// NewTranslator builds a translator. Alias keys are folded the same way as
// incoming literals, so "Steady State" and "steady_state" address one entry.
func NewTranslator(aliases map[string]string) *Translator {
	t := &Translator{aliases: make(map[string]Label, len(DefaultAliases)+len(aliases))}
	for k, v := range DefaultAliases {
		t.aliases[fold(k)] = v
	}
	for k, v := range aliases {
		t.aliases[fold(k)] = Label(fold(v))
	}
	return t
}

// Parse returns the canonical label for raw. Blank input yields Unknown.
func (t *Translator) Parse(raw string) Label {
	key := fold(raw)
	if key == "" {
		return Unknown
	}
	if t != nil {
		if l, ok := t.aliases[key]; ok {
			return l
		}
	}
	return Label(key)
}

// IsSteadyState reports whether l is the steady state label.
func (l Label) IsSteadyState() bool {
	return l == SteadyState
}

func (l Label) String() string {
	return string(l)
}

// fold lower-cases and joins words with underscores: "Steady State" -> "steady_state".
func fold(raw string) string {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(raw)), func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '\t'
	})
	return strings.Join(fields, "_")
}
