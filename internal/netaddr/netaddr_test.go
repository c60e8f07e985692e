package netaddr

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "network", input: "10.0.0.0/24", want: "10.0.0.0/24"},
		{name: "masks host bits", input: "10.0.0.77/24", want: "10.0.0.0/24"},
		{name: "bare address is host", input: "192.168.1.5", want: "192.168.1.5/32"},
		{name: "host prefix", input: "192.168.1.5/32", want: "192.168.1.5/32"},
		{name: "whitespace trimmed", input: "  10.1.0.0/16 ", want: "10.1.0.0/16"},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "not-an-ip", wantErr: true},
		{name: "suffix too long", input: "10.0.0.0/33", wantErr: true},
		{name: "ipv6 rejected", input: "2001:db8::/32", wantErr: true},
		{name: "bad octet", input: "10.0.0.256/24", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidCIDR))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestPrefixLength(t *testing.T) {
	n, err := PrefixLength("147.251.96.0/23")
	require.NoError(t, err)
	assert.Equal(t, 23, n)

	_, err = PrefixLength("147.251.96.0")
	assert.ErrorIs(t, err, ErrInvalidCIDR)

	_, err = PrefixLength("10.0.0.0/x")
	assert.ErrorIs(t, err, ErrInvalidCIDR)
}

func TestSubnets(t *testing.T) {
	t.Run("splits /30 into /31s", func(t *testing.T) {
		subs, err := Subnets(MustParse("10.0.0.0/30"), 31)
		require.NoError(t, err)
		assert.Equal(t, []netip.Prefix{
			MustParse("10.0.0.0/31"),
			MustParse("10.0.0.2/31"),
		}, subs)
	})

	t.Run("same suffix returns the prefix", func(t *testing.T) {
		subs, err := Subnets(MustParse("10.0.0.0/24"), 24)
		require.NoError(t, err)
		assert.Equal(t, []netip.Prefix{MustParse("10.0.0.0/24")}, subs)
	})

	t.Run("count is a power of two", func(t *testing.T) {
		subs, err := Subnets(MustParse("147.251.96.0/23"), 26)
		require.NoError(t, err)
		require.Len(t, subs, 8)
		assert.Equal(t, "147.251.96.0/26", subs[0].String())
		assert.Equal(t, "147.251.97.192/26", subs[7].String())
	})

	t.Run("host granularity at the top of the space", func(t *testing.T) {
		subs, err := Subnets(MustParse("255.255.255.252/30"), 32)
		require.NoError(t, err)
		require.Len(t, subs, 4)
		assert.Equal(t, "255.255.255.255/32", subs[3].String())
	})

	t.Run("shorter target is invalid", func(t *testing.T) {
		_, err := Subnets(MustParse("10.0.0.0/24"), 16)
		assert.ErrorIs(t, err, ErrInvalidCIDR)
	})

	t.Run("target beyond host bits is invalid", func(t *testing.T) {
		_, err := Subnets(MustParse("10.0.0.0/24"), 33)
		assert.ErrorIs(t, err, ErrInvalidCIDR)
	})

	t.Run("enumeration is bounded", func(t *testing.T) {
		_, err := Subnets(MustParse("0.0.0.0/0"), 32)
		assert.ErrorIs(t, err, ErrTooManySubnets)
	})
}

func TestContains(t *testing.T) {
	tests := []struct {
		child, parent string
		want          bool
	}{
		{"10.0.0.1/32", "10.0.0.0/30", true},
		{"10.0.0.0/30", "10.0.0.0/30", true},
		{"10.0.0.4/32", "10.0.0.0/30", false},
		{"10.0.0.0/24", "10.0.0.0/30", false},
		{"255.255.255.255/32", "0.0.0.0/0", true},
		{"147.251.97.0/24", "147.251.96.0/23", true},
	}

	for _, tt := range tests {
		t.Run(tt.child+" in "+tt.parent, func(t *testing.T) {
			assert.Equal(t, tt.want, Contains(MustParse(tt.child), MustParse(tt.parent)))
		})
	}

	assert.False(t, StrictlyContains(MustParse("10.0.0.0/30"), MustParse("10.0.0.0/30")))
	assert.True(t, StrictlyContains(MustParse("10.0.0.0/31"), MustParse("10.0.0.0/30")))
}

func TestIncrement(t *testing.T) {
	addr, err := Increment(netip.MustParseAddr("10.0.0.255"), 1)
	require.NoError(t, err)
	assert.Equal(t, "10.0.1.0", addr.String())

	_, err = Increment(netip.MustParseAddr("255.255.255.255"), 1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestRangeBoundaries(t *testing.T) {
	first, last := Range(MustParse("0.0.0.0/0"))
	assert.Equal(t, uint64(0), first)
	assert.Equal(t, uint64(0xFFFFFFFF), last)

	first, last = Range(MustParse("10.0.0.1/32"))
	assert.Equal(t, first, last)

	assert.Equal(t, uint64(2), Size(MustParse("10.0.0.0/31")))
}

func TestHalves(t *testing.T) {
	lo, hi, ok := Halves(MustParse("10.0.0.0/31"))
	require.True(t, ok)
	assert.Equal(t, "10.0.0.0/32", lo.String())
	assert.Equal(t, "10.0.0.1/32", hi.String())

	_, _, ok = Halves(MustParse("10.0.0.1/32"))
	assert.False(t, ok)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(MustParse("10.0.0.0/24"), MustParse("10.0.0.0/25")))
	assert.Equal(t, 1, Compare(MustParse("10.0.1.0/24"), MustParse("10.0.0.0/24")))
	assert.Equal(t, 0, Compare(MustParse("10.0.0.9/24"), MustParse("10.0.0.0/24")))
	assert.True(t, Overlaps(MustParse("10.0.0.0/24"), MustParse("10.0.0.128/25")))
	assert.False(t, Overlaps(MustParse("10.0.0.0/25"), MustParse("10.0.0.128/25")))
}
