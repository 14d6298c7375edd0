// SPDX-License-Identifier: MIT

package lineio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineRingKeepsLastLines(t *testing.T) {
	r := NewLineRing(3)
	for _, line := range []string{"one", "two", "three", "four"} {
		_, err := r.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"two", "three", "four"}, r.LastN(3))
	assert.Equal(t, []string{"four"}, r.LastN(1))
}

func TestLineRingIgnoresBlankLines(t *testing.T) {
	r := NewLineRing(4)
	_, err := r.Write([]byte("a\n\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.LastN(4))
}
