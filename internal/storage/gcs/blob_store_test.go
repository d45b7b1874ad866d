package gcs

import (
	"testing"

	gcstorage "cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
)

// TestNewValidatesInputs rejects missing clients and buckets.
func TestNewValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "concepts"})
	require.Error(t, err)

	_, err = New(&gcstorage.Client{}, Config{})
	require.Error(t, err)

	store, err := New(&gcstorage.Client{}, Config{Bucket: "concepts"})
	require.NoError(t, err)
	require.Equal(t, "concepts", store.bucket)
}
