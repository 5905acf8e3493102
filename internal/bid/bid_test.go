package bid

import (
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for _, text := range []string{
		"3be232f9-a4b9-4af6-984c-5d3f87d5c107",
		"00000000-0000-0000-0000-000000000000",
		"ffffffff-ffff-ffff-ffff-ffffffffffff",
	} {
		b, err := FromText(text)
		require.NoError(t, err)

		got, err := ToText(b[:])
		require.NoError(t, err)
		assert.Equal(t, text, got)
	}
}

func TestRoundTrip_Generated(t *testing.T) {
	for range 100 {
		id := New()
		text := id.String()

		back, err := FromText(text)
		require.NoError(t, err)
		assert.Equal(t, id, back)
	}
}

func TestNormalize(t *testing.T) {
	const canonical = "3be232f9-a4b9-4af6-984c-5d3f87d5c107"

	for _, in := range []string{
		canonical,
		strings.ToUpper(canonical),
		"{" + canonical + "}",
		"urn:uuid:" + canonical,
		"3be232f9a4b94af6984c5d3f87d5c107",
	} {
		got, err := Normalize(in)
		require.NoError(t, err, in)
		assert.Equal(t, canonical, got, in)

		b, err := FromText(in)
		require.NoError(t, err)
		text, err := ToText(b[:])
		require.NoError(t, err)
		assert.Equal(t, canonical, text)
	}
}

func TestFromText_Invalid(t *testing.T) {
	for _, in := range []string{"", "not-a-uuid", "3be232f9-a4b9-4af6-984c"} {
		_, err := FromText(in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalid))
	}
}

func TestToText_WrongLength(t *testing.T) {
	_, err := ToText([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestIsNil(t *testing.T) {
	assert.True(t, Nil.IsNil())
	assert.False(t, New().IsNil())
}
