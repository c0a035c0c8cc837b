package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetters(t *testing.T) {
	t.Setenv("RDV_STR", "value")
	t.Setenv("RDV_INT", "42")
	t.Setenv("RDV_BAD_INT", "forty-two")
	t.Setenv("RDV_BOOL", "true")
	t.Setenv("RDV_FLOAT", "0.25")
	t.Setenv("RDV_DURATION", "45s")
	t.Setenv("RDV_LIST", "a, b,,c")

	assert.Equal(t, "value", GetString("RDV_STR", "x"))
	assert.Equal(t, "x", GetString("RDV_MISSING", "x"))
	assert.Equal(t, 42, GetInt("RDV_INT", 1))
	assert.Equal(t, 1, GetInt("RDV_BAD_INT", 1))
	assert.True(t, GetBool("RDV_BOOL", false))
	assert.InDelta(t, 0.25, GetFloat("RDV_FLOAT", 1), 1e-9)
	assert.Equal(t, 45*time.Second, GetDuration("RDV_DURATION", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, GetStrings("RDV_LIST", nil))
	assert.Equal(t, []string{"d"}, GetStrings("RDV_MISSING", []string{"d"}))
}
