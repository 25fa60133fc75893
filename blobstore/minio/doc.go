// Package minio provides a BlobStore backed by MinIO or any S3-compatible
// object store (Ceph, Garage, SeaweedFS).
//
// # Basic Usage
//
//	store, err := minio.New(ctx, minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "rgraph",
//	    Prefix:    "prod/",
//	})
//
//	node.Snapshot(ctx, store, "region.snap")
//
// NewStore wraps an already configured *minio.Client.
package minio
