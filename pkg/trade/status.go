package trade

import (
	"fmt"
	"strings"
)

// Status values use the contract's enum ordinals.
type Status uint8

const (
	StatusPending Status = iota
	StatusAccepted
	StatusCancelled
	StatusExpired
	StatusDeclined
)

var statusNames = map[Status]string{
	StatusPending:   "pending",
	StatusAccepted:  "accepted",
	StatusCancelled: "cancelled",
	StatusExpired:   "expired",
	StatusDeclined:  "declined",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s Status) IsTerminal() bool {
	return s != StatusPending
}

func ParseStatus(s string) (Status, error) {
	lower := strings.ToLower(strings.TrimSpace(s))
	for status, name := range statusNames {
		if name == lower {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown trade status %q", s)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
