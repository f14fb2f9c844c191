package frame

import (
	"errors"
	"fmt"
	"strings"
)

// AddrLen is the length of a link-layer address in bytes.
const AddrLen = 6

// Addr is a 6-byte link-layer address identifying a node.
type Addr [AddrLen]byte

// BroadcastAddr is the reserved address denoting every reachable node.
var BroadcastAddr = Addr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// ErrInvalidAddr is returned when parsing a malformed address string.
var ErrInvalidAddr = errors.New("frame: invalid address")

// IsBroadcast reports whether a is the broadcast address.
func (a Addr) IsBroadcast() bool {
	return a == BroadcastAddr
}

// IsZero reports whether a is the all-zero address.
func (a Addr) IsZero() bool {
	return a == Addr{}
}

func (a Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// AddrFromBytes copies b into an Addr. b must be exactly AddrLen bytes.
func AddrFromBytes(b []byte) (Addr, error) {
	var a Addr
	if len(b) != AddrLen {
		return a, ErrInvalidAddr
	}
	copy(a[:], b)
	return a, nil
}

// ParseAddr parses a colon-separated hex address of the form aa:bb:cc:dd:ee:ff.
func ParseAddr(s string) (Addr, error) {
	var a Addr
	parts := strings.Split(s, ":")
	if len(parts) != AddrLen {
		return a, ErrInvalidAddr
	}
	for i, p := range parts {
		var v byte
		if _, err := fmt.Sscanf(p, "%02x", &v); err != nil {
			return a, ErrInvalidAddr
		}
		a[i] = v
	}
	return a, nil
}

// MarshalText implements encoding.TextMarshaler so addresses render
// human-readable in JSON configs and API responses.
func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Addr) UnmarshalText(text []byte) error {
	parsed, err := ParseAddr(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
