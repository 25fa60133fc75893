// Package arena provides bounded views and allocators over the flat memory
// region that a memory node registers for one-sided access.
//
// # Building blocks
//
//   - Region: a bounds-checked window into the flat buffer. Sub-regions carry
//     their absolute base offset so layouts can be published as offsets.
//   - Bump: a lock-free CAS bump allocator. Ranges are append-only and never
//     reused, which is what makes remote readers safe without coordination.
//   - Ptr: a (size, offset) pair packed into one uint64 for on-wire records.
//
// # Safety
//
// All accessors return ErrOutOfBounds instead of panicking. Allocation
// failure is reported as ErrArenaFull.
package arena
