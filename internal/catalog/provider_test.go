package catalog

import (
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/fwd/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider(t *testing.T) {
	assert.True(t, provider.IsRegistered(ProviderName))

	rt, err := provider.New(provider.Config{
		Type:   ProviderName,
		Params: map[string]any{"path": filepath.Join("testdata", "java.yaml"), "name": "renamed"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "renamed", rt.(*Runtime).Name())
	assert.False(t, rt.Started())
}

func TestProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		wantMsg string
	}{
		{name: "missing path", params: nil, wantMsg: "catalog path not specified"},
		{name: "unknown param", params: map[string]any{"path": "x", "jar": "y"}, wantMsg: "invalid runtime params"},
		{name: "missing file", params: map[string]any{"path": filepath.Join(t.TempDir(), "none.yaml")}, wantMsg: "failed to read catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.New(provider.Config{Type: ProviderName, Params: tt.params}, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
