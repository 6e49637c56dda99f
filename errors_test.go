package dht

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateClientParamsRejectsNonPositive(t *testing.T) {
	assert.Error(t, validateClientParams(0, 1, 1, 1))
	assert.Error(t, validateClientParams(1, 0, 1, 1))
	assert.Error(t, validateClientParams(1, 1, 0, 1))
	assert.Error(t, validateClientParams(1, 1, 1, 0))
	assert.NoError(t, validateClientParams(1, 1, 1, 1))
}

func TestNewNodeRejectsInvalidParams(t *testing.T) {
	net := NewNetwork(Config{})
	_, err := NewNode(1, net, 0, 1, 1, 1)
	assert.Error(t, err)
}
