package capture

import (
	"fmt"
	"net"
)

const MACLen = 6

// MAC is a raw 6-byte hardware address. Equality is over the bytes only.
type MAC [MACLen]byte

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

func (m MAC) HardwareAddr() net.HardwareAddr {
	out := make(net.HardwareAddr, MACLen)
	copy(out, m[:])

	return out
}

// ParseMAC accepts any 6-byte form understood by net.ParseMAC.
func ParseMAC(raw string) (MAC, error) {
	hw, err := net.ParseMAC(raw)
	if err != nil {
		return MAC{}, fmt.Errorf("parse mac %q: %w", raw, err)
	}
	if len(hw) != MACLen {
		return MAC{}, fmt.Errorf("parse mac %q: want %d bytes, got %d", raw, MACLen, len(hw))
	}

	var m MAC
	copy(m[:], hw)

	return m, nil
}

// MACFromBytes copies the first six bytes of b.
func MACFromBytes(b []byte) (MAC, bool) {
	var m MAC
	if len(b) < MACLen {
		return m, false
	}
	copy(m[:], b[:MACLen])

	return m, true
}
