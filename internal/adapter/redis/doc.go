// Package redis implements the Redis-backed parts of the insight pipeline.
//
// Provides SnapshotCache (latest InsightChange per industry), SweepLock (one sweeping instance),
// and UpdateRelay (pub/sub fan-out of broadcasts across instances). Every client carries a
// circuit breaker and metrics hook.
package redis
