package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatterZeroExponent(t *testing.T) {
	f := NewFormatter("KRW", 0)
	require.Equal(t, "24000", f.Format(24000))
	require.Equal(t, Amount{Minor: 24000, Display: "24000", Currency: "KRW"}, f.Amount(24000))
	require.Equal(t, float64(24000), f.Float(24000))
}

func TestFormatterCents(t *testing.T) {
	f := NewFormatter("USD", 2)
	require.Equal(t, "15.00", f.Format(1500))
	require.Equal(t, "0.05", f.Format(5))
	require.Equal(t, "-1.25", f.Format(-125))
	require.InDelta(t, 12.34, f.Float(1234), 0.0001)
}

func TestNegativeExponentClamped(t *testing.T) {
	f := NewFormatter("KRW", -3)
	require.Equal(t, "7", f.Format(7))
}
