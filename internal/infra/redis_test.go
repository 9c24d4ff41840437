package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedis_BadURL(t *testing.T) {
	_, err := NewRedis("not a url")
	assert.Error(t, err)
}

func TestNewOptionalRedis_Unavailable(t *testing.T) {
	assert.Nil(t, NewOptionalRedis(""))
	// nothing listens on port 1
	assert.Nil(t, NewOptionalRedis("redis://127.0.0.1:1/0"))
}
