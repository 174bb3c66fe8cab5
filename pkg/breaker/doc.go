/*
Package breaker implements the Circuit Breaker + Load Balancer (B): a
per-indexer three-state breaker (CLOSED/OPEN/HALF_OPEN) plus the five
selection strategies the Download Queue Engine and Indexer Health
Monitor use to pick which indexer serves the next request.

Breaker and per-indexer statistics (response-time ring buffer,
success/failure counts, in-flight request counter) live only in
process memory; Registry is the single place that owns them. Nothing
is persisted or restored: after a restart every breaker starts CLOSED
with empty statistics, and the registry is not rebuilt from
indexer_health samples.
*/
package breaker
