package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	v, err := Parse("1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 1, Minor: 2, Patch: 3}, v)
	assert.Equal(t, "1.2.3", v.String())
}

func TestParseRejectsMalformedInput(t *testing.T) {
	for _, s := range []string{"1.2", "1.2.3.4", "a.b.c", "1.-2.3", ""} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrInvalidFormat, "input %q should be rejected", s)
	}
}

func TestCompareAndGreaterThan(t *testing.T) {
	v1 := Version{Major: 1, Minor: 2, Patch: 3}
	v2 := Version{Major: 1, Minor: 3, Patch: 0}

	assert.Equal(t, -1, v1.Compare(v2))
	assert.Equal(t, 1, v2.Compare(v1))
	assert.Equal(t, 0, v1.Compare(v1))
	assert.True(t, v2.GreaterThan(v1))
	assert.False(t, v1.GreaterThan(v2))
}

func TestCompareOrdersByMajorFirst(t *testing.T) {
	older := Version{Major: 1, Minor: 9, Patch: 9}
	newer := Version{Major: 2, Minor: 0, Patch: 0}
	assert.True(t, newer.GreaterThan(older))
}
