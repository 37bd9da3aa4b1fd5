package netaddr

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ErrMalformedAddress is returned when an address representation has the
// wrong shape: raw forms must be exactly 4 bytes, text must be a dotted quad.
var ErrMalformedAddress = errors.New("MALFORMED_ADDRESS")

// ByteOrder selects how raw stack bytes map onto the dotted-quad octets.
type ByteOrder int

const (
	// BigEndian stores the first dotted octet in raw[0] (network order).
	BigEndian ByteOrder = iota
	// LittleEndian stores the first dotted octet in raw[3].
	LittleEndian
)

func (o ByteOrder) String() string {
	switch o {
	case BigEndian:
		return "big"
	case LittleEndian:
		return "little"
	default:
		return fmt.Sprintf("ByteOrder(%d)", int(o))
	}
}

// ParseByteOrder accepts "big"/"little" (and the long "-endian" forms).
// An empty string selects BigEndian.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "big", "big-endian", "bigendian":
		return BigEndian, nil
	case "little", "little-endian", "littleendian":
		return LittleEndian, nil
	}
	return BigEndian, fmt.Errorf("unknown byte order %q", s)
}

// Address4 is an IPv4 address in dotted order: Address4{192, 168, 0, 1}.
type Address4 [4]byte

// Unspecified is 0.0.0.0.
var Unspecified Address4

// Decode interprets 4 raw bytes laid out in the given order. Any byte value is
// a valid octet; only a wrong length is an error.
func Decode(raw []byte, order ByteOrder) (Address4, error) {
	var a Address4
	if len(raw) != len(a) {
		return a, fmt.Errorf("%w: raw address must be %d bytes, got %d", ErrMalformedAddress, len(a), len(raw))
	}
	switch order {
	case LittleEndian:
		a[0], a[1], a[2], a[3] = raw[3], raw[2], raw[1], raw[0]
	default:
		copy(a[:], raw)
	}
	return a, nil
}

// Encode is the inverse of Decode: Decode(Encode(a, o), o) == a.
func Encode(a Address4, order ByteOrder) []byte {
	raw := make([]byte, len(a))
	switch order {
	case LittleEndian:
		raw[0], raw[1], raw[2], raw[3] = a[3], a[2], a[1], a[0]
	default:
		copy(raw, a[:])
	}
	return raw
}

// Parse reads a dotted-quad string such as "192.168.0.1".
func Parse(s string) (Address4, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || !addr.Is4() {
		return Address4{}, fmt.Errorf("%w: %q is not a dotted-quad IPv4 address", ErrMalformedAddress, s)
	}
	return Address4(addr.As4()), nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(s string) Address4 {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromIP converts a net.IP holding an IPv4 (or IPv4-mapped) address.
func FromIP(ip net.IP) (Address4, error) {
	v4 := ip.To4()
	if v4 == nil {
		return Address4{}, fmt.Errorf("%w: %v is not an IPv4 address", ErrMalformedAddress, ip)
	}
	var a Address4
	copy(a[:], v4)
	return a, nil
}

func (a Address4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// IsUnspecified reports whether a is 0.0.0.0.
func (a Address4) IsUnspecified() bool {
	return a == Unspecified
}

// IP returns a freshly allocated 4-byte net.IP.
func (a Address4) IP() net.IP {
	return net.IPv4(a[0], a[1], a[2], a[3]).To4()
}

// Addr returns the netip form.
func (a Address4) Addr() netip.Addr {
	return netip.AddrFrom4(a)
}

// Mask interprets a as a netmask.
func (a Address4) Mask() net.IPMask {
	return net.IPv4Mask(a[0], a[1], a[2], a[3])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address4) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address4) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
