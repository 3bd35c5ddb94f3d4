package textfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1,234", Int(1234))
	assert.Equal(t, "12", Int(12))
	assert.Equal(t, "1,234,567.89", Float(1234567.891, 2))
	assert.Equal(t, "$510.00", Money(510))
	assert.Equal(t, "40.0%", Percent(40, 1))
}
