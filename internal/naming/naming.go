// Package naming provides infrastructure-level naming conventions for
// oVirt resources: generated VM names, search queries and the address
// shape accepted as "the VM has an IP".
package naming

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/netip"
)

// VMNameBytes is the number of random bytes in a generated VM name.
// Hex encoding doubles it: 4 bytes → 8 characters.
const VMNameBytes = 4

// RandomVMName returns a fresh VM name of 8 lowercase hex characters drawn
// from crypto/rand.
//
// Example: "3fa94c0e"
func RandomVMName() (string, error) {
	return VMNameFrom(rand.Reader)
}

// VMNameFrom is RandomVMName with an explicit entropy source.
func VMNameFrom(r io.Reader) (string, error) {
	b := make([]byte, VMNameBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("failed to generate VM name: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// SearchByID returns the oVirt search expression matching a single VM id.
//
// Example: "abc123" → "id=abc123"
func SearchByID(id string) string {
	return fmt.Sprintf("id=%s", id)
}

// IsIPv4 reports whether s is a dotted-quad IPv4 address. IPv4-mapped IPv6
// forms ("::ffff:10.0.0.5") and zones are rejected.
func IsIPv4(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Is4()
}

// FirstIPv4 returns the first entry of addrs that IsIPv4 accepts, or "".
func FirstIPv4(addrs []string) string {
	for _, a := range addrs {
		if IsIPv4(a) {
			return a
		}
	}
	return ""
}
