package arc

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the ownership kind of a slot.
type Kind byte

// This block defines all known slot kinds.
const (
	Strong Kind = iota
	Weak
	Unowned
)

// ErrInvalidKind is returned when a string can't be parsed as a Kind.
var ErrInvalidKind = errors.New("invalid slot kind")

// String implements fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case Strong:
		return "strong"
	case Weak:
		return "weak"
	case Unowned:
		return "unowned"
	default:
		return "INVALID"
	}
}

// IsValid checks if k is a well defined slot kind.
func (k Kind) IsValid() bool {
	return k <= Unowned
}

// KindFromString returns slot kind from string, case-insensitive.
func KindFromString(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "strong":
		return Strong, nil
	case "weak":
		return Weak, nil
	case "unowned":
		return Unowned, nil
	default:
		return 0xFF, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// MarshalYAML implements the yaml.Marshaler interface.
func (k Kind) MarshalYAML() (any, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, k)
	}
	return k.String(), nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (k *Kind) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	kind, err := KindFromString(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}
