package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetters(t *testing.T) {
	t.Setenv("CFG_STR", "  value ")
	t.Setenv("CFG_INT", "42")
	t.Setenv("CFG_BAD_INT", "forty")
	t.Setenv("CFG_BOOL", "true")
	t.Setenv("CFG_DUR", "250ms")
	t.Setenv("CFG_BAD_DUR", "soon")

	assert.Equal(t, "value", GetEnv("CFG_STR", "x"))
	assert.Equal(t, "x", GetEnv("CFG_MISSING", "x"))
	assert.Equal(t, 42, GetInt("CFG_INT", 1))
	assert.Equal(t, 1, GetInt("CFG_BAD_INT", 1))
	assert.True(t, GetBool("CFG_BOOL", false))
	assert.Equal(t, 250*time.Millisecond, GetDuration("CFG_DUR", time.Second))
	assert.Equal(t, time.Second, GetDuration("CFG_BAD_DUR", time.Second))
}
