// Package resource provides a Controller for process-wide limits shared by
// memory nodes.
//
//   - Memory: a budget for mapped regions (non-blocking, fail-fast)
//   - Load workers: a cap on concurrent bulk-load goroutines
//   - IO: a token bucket for snapshot transfers and the TCP responder
//
// # Usage
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   8 << 30,
//	    MaxLoadWorkers:     16,
//	    IOLimitBytesPerSec: 200 << 20,
//	})
//
//	if err := rc.AcquireMemory(regionSize); err != nil {
//	    return err // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(regionSize)
//
//	w := resource.NewRateLimitedWriter(ctx, blob, rc)
//
// # Nil Safety
//
// All methods accept a nil Controller and then do nothing.
package resource
