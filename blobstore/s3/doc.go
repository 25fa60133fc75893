// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("graphs/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	node.Snapshot(ctx, store, "region.snap")
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads for streamed snapshots
//   - CRC32C checksums on single-shot puts
//   - Paginated listing
package s3
