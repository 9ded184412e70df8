package model

import "fmt"

// CardType is the closed set of disciplinary card kinds. Card semantics
// branch on this enum, never on display strings.
type CardType uint8

const (
	CardYellow CardType = iota
	CardYellowSecond
	CardRed
	CardCancelled
)

var cardNames = map[CardType]string{
	CardYellow:       "yellow",
	CardYellowSecond: "yellow_second",
	CardRed:          "red",
	CardCancelled:    "cancelled",
}

// String returns the wire name of the card type.
func (c CardType) String() string {
	if name, ok := cardNames[c]; ok {
		return name
	}
	return fmt.Sprintf("card(%d)", uint8(c))
}

// ParseCardType converts a wire name back to a CardType.
func ParseCardType(s string) (CardType, error) {
	for c, name := range cardNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown card type %q", s)
}

// MarshalText implements encoding.TextMarshaler for JSON round-trips.
func (c CardType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CardType) UnmarshalText(text []byte) error {
	parsed, err := ParseCardType(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
