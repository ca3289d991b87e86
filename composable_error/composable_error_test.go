package composable_error

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormat(t *testing.T) {
	err := New("CACHE_READERR", "redis unavailable")
	assert.Equal(t, "[CACHE_READERR] redis unavailable", err.Error())
	assert.Equal(t, "CACHE_READERR", GetCode(err))
}

func TestGetCodePlainError(t *testing.T) {
	assert.Equal(t, "DEFAULT", GetCode(errors.New("boom")))
}

func TestComposeWithPrefixes(t *testing.T) {
	err := Newf("JSON_MARSHAL_FAILED", "bad payload: %d", 7)
	composed := ComposeWith(err, "AGGREGATE", "could not build the cache identity")
	assert.Equal(t, "AGGREGATE_JSON_MARSHAL_FAILED", GetCode(composed))
	assert.Contains(t, composed.Error(), "could not build the cache identity, bad payload: 7")
}

func TestComposeWithPassesPlainErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, plain, ComposeWith(plain, "AGGREGATE", "context"))
}
