/*
Package health implements the Indexer Health Monitor: per-backend
probe contracts (prowlarr, jackett, generic) and a bounded-concurrency
Monitor loop that classifies each probe result, records it to the
catalog, and drives circuit-breaker failover/recovery transitions.

# Probe contracts

	prowlarr: GET /api/v1/system/status, GET /api/v1/indexer
	          (X-Api-Key header), both expected HTTP 200
	jackett:  GET /api/v2.0/server/config, GET /api/v2.0/indexers,
	          a no-op torznab search, all expected HTTP 200
	generic:  GET base_url, any of 200/301/302

# Classification

Each probe's pass/fail, the indexer's current consecutive-failure
streak, and its 24h success rate are combined into one of healthy,
degraded, down, or recovering. A run of failures past the configured
threshold triggers a failover event; a subsequent healthy probe that
itself re-confirms resets the breaker and emits a recovery event,
throttled to a bounded number of attempts per rolling hour per
indexer so a flapping backend can't be probed for recovery
indefinitely.

The HTTPChecker/TCPChecker/Checker primitives in this package remain
general-purpose building blocks; Probe composes them per indexer type
rather than embedding HTTP logic directly.
*/
package health
