// Package minio provides a dump.Store implementation using the MinIO client.
//
// MinIO is a high-performance, S3-compatible object storage system. This
// package uses the official MinIO Go client library and works with any
// S3-compatible backend (MinIO, Ceph, SeaweedFS, Garage).
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := miniodump.NewStore(client, "diagnostics", "heapdumps/")
//	if err := dump.WriteTo(ctx, store, "heap-001.dump", heap.Snapshot()); err != nil {
//	    log.Fatal(err)
//	}
//
// Large dumps can bypass the in-memory staging that WriteTo implies by
// streaming through Create:
//
//	w, _ := store.Create(ctx, "heap-002.dump")
//	err = dump.Write(ctx, w, heap.Snapshot())
//	cerr := w.Close()
package minio
