package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-media/internal/config"
	"report-media/internal/shared/objstore"
	"report-media/internal/shared/objstore/memory"
	"report-media/pkg/logging"
)

func TestNew_Memory(t *testing.T) {
	store, err := New(context.Background(), config.StorageConfig{Provider: "Memory"}, "http://localhost/blobs",
		objstore.WithLogger(logging.Discard()))
	require.NoError(t, err)
	assert.Equal(t, ProviderMemory, store.Provider())
}

func TestNewBackend_Memory(t *testing.T) {
	b, err := NewBackend(context.Background(), config.StorageConfig{Provider: ProviderMemory}, "http://x")
	require.NoError(t, err)
	_, ok := b.(*memory.Backend)
	assert.True(t, ok)
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := NewBackend(context.Background(), config.StorageConfig{Provider: "dropbox"}, "")
	assert.ErrorContains(t, err, "unknown storage provider")
}

func TestNewBackend_MissingSettings(t *testing.T) {
	ctx := context.Background()

	_, err := NewBackend(ctx, config.StorageConfig{Provider: ProviderAWS}, "")
	assert.Error(t, err, "aws without bucket")

	_, err = NewBackend(ctx, config.StorageConfig{Provider: ProviderGCP, GCP: config.GCPConfig{Bucket: "b"}}, "")
	assert.Error(t, err, "gcp without signing key")

	_, err = NewBackend(ctx, config.StorageConfig{Provider: ProviderAzure}, "")
	assert.Error(t, err, "azure without account")

	_, err = NewBackend(ctx, config.StorageConfig{
		Provider: ProviderGCP,
		GCP:      config.GCPConfig{Bucket: "b", ClientEmail: "a@b", PrivateKey: "k", CredentialsFile: "/nonexistent/creds.json"},
	}, "")
	assert.ErrorContains(t, err, "read gcp credentials file")
}
