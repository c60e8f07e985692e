// Package netaddr provides IPv4 CIDR arithmetic used to build containment
// hierarchies: parsing, subnet enumeration, range containment and ordering.
//
// All functions are pure. Address math is done on uint64 so that /0 and /32
// boundaries never overflow.
package netaddr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// HostBits is the prefix length of a single IPv4 host.
const HostBits = 32

// MaxSubnets bounds the number of prefixes Subnets will enumerate in one call.
const MaxSubnets = 1 << 20

var (
	// ErrInvalidCIDR is returned for malformed addresses or prefixes and for
	// suffix ordering violations.
	ErrInvalidCIDR = errors.New("invalid CIDR")
	// ErrTooManySubnets is returned when an enumeration would exceed MaxSubnets.
	ErrTooManySubnets = errors.New("too many subnets")
	// ErrOverflow is returned when an increment leaves the IPv4 space.
	ErrOverflow = errors.New("address overflow")
)

// Parse parses an IPv4 CIDR such as "10.0.0.0/24". A bare address is read as
// a /32. The returned prefix is masked to its network address.
func Parse(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Prefix{}, fmt.Errorf("%w: empty string", ErrInvalidCIDR)
	}
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil || !addr.Is4() {
			return netip.Prefix{}, fmt.Errorf("%w: %q", ErrInvalidCIDR, s)
		}
		return netip.PrefixFrom(addr, HostBits), nil
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %q: %v", ErrInvalidCIDR, s, err)
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("%w: %q is not IPv4", ErrInvalidCIDR, s)
	}
	return p.Masked(), nil
}

// MustParse is Parse for static values; it panics on error.
func MustParse(s string) netip.Prefix {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PrefixLength returns the suffix after the slash.
func PrefixLength(cidr string) (int, error) {
	idx := strings.LastIndexByte(cidr, '/')
	if idx < 0 {
		return 0, fmt.Errorf("%w: %q has no suffix", ErrInvalidCIDR, cidr)
	}
	n, err := strconv.Atoi(cidr[idx+1:])
	if err != nil || n < 0 || n > HostBits {
		return 0, fmt.Errorf("%w: bad suffix in %q", ErrInvalidCIDR, cidr)
	}
	return n, nil
}

// Uint32 converts an IPv4 address to its numeric form.
func Uint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:])
}

// FromUint32 converts a numeric address back to netip.Addr.
func FromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

// Range returns the inclusive numeric bounds of p.
func Range(p netip.Prefix) (first, last uint64) {
	first = uint64(Uint32(p.Masked().Addr()))
	size := uint64(1) << (HostBits - p.Bits())
	return first, first + size - 1
}

// Size returns the number of addresses covered by p.
func Size(p netip.Prefix) uint64 {
	return uint64(1) << (HostBits - p.Bits())
}

// Contains reports whether child's range lies entirely within parent's range.
// Equal prefixes contain each other.
func Contains(child, parent netip.Prefix) bool {
	cf, cl := Range(child)
	pf, pl := Range(parent)
	return cf >= pf && cl <= pl
}

// StrictlyContains is Contains without equality.
func StrictlyContains(child, parent netip.Prefix) bool {
	return child.Bits() > parent.Bits() && Contains(child, parent)
}

// Overlaps reports whether the two ranges share any address.
func Overlaps(a, b netip.Prefix) bool {
	af, al := Range(a)
	bf, bl := Range(b)
	return af <= bl && bf <= al
}

// Increment adds n to addr.
func Increment(addr netip.Addr, n uint64) (netip.Addr, error) {
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %s is not IPv4", ErrInvalidCIDR, addr)
	}
	v := uint64(Uint32(addr)) + n
	if v > 0xFFFFFFFF {
		return netip.Addr{}, fmt.Errorf("%w: %s + %d", ErrOverflow, addr, n)
	}
	return FromUint32(uint32(v)), nil
}

// Subnets returns every subnet of p with the given prefix length, in address
// order. The i-th subnet starts at first(p) + i*2^(32-target).
func Subnets(p netip.Prefix, target int) ([]netip.Prefix, error) {
	if target < p.Bits() {
		return nil, fmt.Errorf("%w: suffix %d is shorter than /%d", ErrInvalidCIDR, target, p.Bits())
	}
	if target > HostBits {
		return nil, fmt.Errorf("%w: suffix %d exceeds /%d", ErrInvalidCIDR, target, HostBits)
	}
	count := uint64(1) << (target - p.Bits())
	if count > MaxSubnets {
		return nil, fmt.Errorf("%w: %s to /%d yields %d", ErrTooManySubnets, p, target, count)
	}

	start := p.Masked().Addr()
	step := uint64(1) << (HostBits - target)
	out := make([]netip.Prefix, 0, count)
	for i := uint64(0); i < count; i++ {
		addr, err := Increment(start, i*step)
		if err != nil {
			return nil, err
		}
		out = append(out, netip.PrefixFrom(addr, target))
	}
	return out, nil
}

// Halves splits p into its two subnets one bit longer. It returns false for a /32.
func Halves(p netip.Prefix) (lo, hi netip.Prefix, ok bool) {
	if p.Bits() >= HostBits {
		return netip.Prefix{}, netip.Prefix{}, false
	}
	subs, err := Subnets(p, p.Bits()+1)
	if err != nil {
		return netip.Prefix{}, netip.Prefix{}, false
	}
	return subs[0], subs[1], true
}

// Compare orders prefixes by prefix length, then by network address.
func Compare(a, b netip.Prefix) int {
	if a.Bits() != b.Bits() {
		if a.Bits() < b.Bits() {
			return -1
		}
		return 1
	}
	av, bv := Uint32(a.Masked().Addr()), Uint32(b.Masked().Addr())
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	}
	return 0
}
