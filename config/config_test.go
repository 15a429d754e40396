package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{" yes ", true},
		{"false", false},
		{"0", false},
		{"", false},
		{"nonsense", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_FLAG", tt.value)
			assert.Equal(t, tt.want, Bool("TEST_FLAG"))
		})
	}
}

func TestIntOr(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	assert.Equal(t, 42, IntOr("TEST_INT", 7))

	t.Setenv("TEST_INT", "not a number")
	assert.Equal(t, 7, IntOr("TEST_INT", 7))
}

func TestDurationOr(t *testing.T) {
	t.Setenv("TEST_DUR", "1500ms")
	assert.Equal(t, 1500*time.Millisecond, DurationOr("TEST_DUR", time.Second))

	t.Setenv("TEST_DUR", "")
	assert.Equal(t, time.Second, DurationOr("TEST_DUR", time.Second))
}

func TestList(t *testing.T) {
	t.Setenv("TEST_LIST", "golang, rust ,, zig ")
	assert.Equal(t, []string{"golang", "rust", "zig"}, List("TEST_LIST"))

	t.Setenv("TEST_LIST", "")
	assert.Nil(t, List("TEST_LIST"))
}
