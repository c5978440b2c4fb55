package utils

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/projecteru2/barge/types"
)

func TestGetHTTPClient(t *testing.T) {
	assert.NotNil(t, GetHTTPClient())
}

func TestGetHTTPSClient(t *testing.T) {
	ctx := context.Background()
	client, err := GetHTTPSClient(ctx, "", "abc", "", "", "")
	assert.NoError(t, err)
	assert.Equal(t, GetHTTPClient(), client)

	client, err = GetHTTPSClient(ctx, os.TempDir(), "abc", "1", "2", "3")
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestCheckRedirect(t *testing.T) {
	get := &http.Request{Method: http.MethodGet}
	assert.NoError(t, checkRedirect(get, []*http.Request{get}))

	via := make([]*http.Request, maxRedirects)
	for i := range via {
		via[i] = get
	}
	assert.Equal(t, http.ErrUseLastResponse, checkRedirect(get, via))

	post := &http.Request{Method: http.MethodPost}
	assert.Equal(t, types.ErrUnexpectedRedirect, checkRedirect(get, []*http.Request{post}))
}
