// Package cache implements the multi-tier page cache. Each Tier is one
// physical backend (process memory, StoragePath/<key>.json files, Redis) that
// stores opaque JSON bytes. Manager composes the enabled tiers in configured
// order: reads return the first hit, writes and deletes fan out to every tier
// and aggregate per-tier failures instead of aborting siblings.
package cache
