package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Sum(nil))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Sum([]byte("abc")))
}

func TestSumParts(t *testing.T) {
	assert.Equal(t, Sum([]byte("a\x1fb")), SumParts("\x1f", "a", "b"))
	assert.NotEqual(t, SumParts("\x1f", "ab", ""), SumParts("\x1f", "a", "b"))
}
