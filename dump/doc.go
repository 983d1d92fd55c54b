// Package dump serializes heap snapshots into a compact binary container
// for offline inspection and archival.
//
// # Format
//
// A dump is a fixed little-endian header (magic "ORH1", format version,
// compression codec, object count, pass counter, capture time), a
// length-prefixed body of object records, and a CRC32 (IEEE) trailer
// computed over the on-wire body. The body is optionally LZ4 or zstd
// compressed; bodies the codec cannot shrink are stored raw under the same
// codec marker.
//
// # Stores
//
// A Store archives encoded dumps by name. DirStore keeps them as files
// under one directory with atomic replace semantics, MemoryStore keeps them
// in process memory, and the minio subpackage archives them in any
// S3-compatible object store.
//
// # Writing and Reading
//
//	snap := heap.Snapshot()
//	store := dump.NewDirStore("/var/dumps")
//	if err := dump.WriteTo(ctx, store, "heap-001.dump", snap); err != nil {
//	    log.Fatal(err)
//	}
//
//	snap, err := dump.ReadFrom(ctx, store, "heap-001.dump")
//
// Dumps are advisory diagnostics: reading one reconstructs the object graph
// description, not the objects themselves.
package dump
