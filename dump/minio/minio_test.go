package minio

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouroheap/ouro"
	"github.com/ouroheap/ouro/dump"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-ouro"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		require.NoError(t, err)
	}

	store := NewStore(client, bucket, "test-prefix/")

	// Test Put and Open
	data := []byte("hello minio world")
	err = store.Put(ctx, "raw.bin", data)
	require.NoError(t, err)

	rc, err := store.Open(ctx, "raw.bin")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, data, got)
	require.NoError(t, rc.Close())

	// Test a full dump round trip through the store
	snap := ouro.Snapshot{
		TakenAt: time.Unix(0, 1724580000000000000),
		Passes:  3,
		Objects: []ouro.ObjectInfo{
			{ID: 1<<32 | 0, Type: "*main.node", Strong: 2, Internal: 1, Refs: []ouro.ID{1<<32 | 1}},
			{ID: 1<<32 | 1, Type: "*main.node", Strong: 1, Weak: 1, Internal: 1},
		},
	}
	err = dump.WriteTo(ctx, store, "heap-001.dump", snap)
	require.NoError(t, err)

	back, err := dump.ReadFrom(ctx, store, "heap-001.dump")
	require.NoError(t, err)
	assert.Equal(t, snap, back)

	// Test List
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "raw.bin")
	assert.Contains(t, names, "heap-001.dump")

	// Test Delete
	err = store.Delete(ctx, "raw.bin")
	require.NoError(t, err)
	err = store.Delete(ctx, "raw.bin")
	require.NoError(t, err)

	// Verify deleted
	_, err = store.Open(ctx, "raw.bin")
	require.ErrorIs(t, err, dump.ErrNotFound)

	// Test Create (streaming)
	w, err := store.Create(ctx, "heap-002.dump")
	require.NoError(t, err)
	err = dump.Write(ctx, w, snap)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	back2, err := dump.ReadFrom(ctx, store, "heap-002.dump")
	require.NoError(t, err)
	assert.Equal(t, snap, back2)

	// Cleanup
	_ = store.Delete(ctx, "heap-001.dump")
	_ = store.Delete(ctx, "heap-002.dump")
}
