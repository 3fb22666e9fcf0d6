package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOctalUnmarshalText(t *testing.T) {
	var o Octal
	require.NoError(t, o.UnmarshalText([]byte("755")))
	assert.Equal(t, Octal(0o755), o)
}

func TestOctalMarshalText(t *testing.T) {
	o := Octal(0o644)
	text, err := o.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "644", string(text))
}

func TestOctalRoundTrip(t *testing.T) {
	orig := Octal(0o750)
	text, err := orig.MarshalText()
	require.NoError(t, err)

	var got Octal
	require.NoError(t, got.UnmarshalText(text))
	assert.Equal(t, orig, got)
}

func TestOctalUnmarshalTextRejectsInvalid(t *testing.T) {
	var o Octal
	assert.Error(t, o.UnmarshalText([]byte("not-octal")))
}
