package eth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialEthClient_HTTP(t *testing.T) {
	// ethclient.Dial does not connect for http endpoints until the first call.
	client, err := DialEthClient("http://localhost:8545")
	assert.NoError(t, err)
	assert.NotNil(t, client)
	client.Close()
}

func TestDialEthClient_EmptyURL(t *testing.T) {
	client, err := DialEthClient("")
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "RPC url is not set")
}

func TestDialEthClient_InvalidURL(t *testing.T) {
	client, err := DialEthClient("invalid://url")
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to configure Ethereum client")
}
