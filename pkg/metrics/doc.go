/*
Package metrics defines and registers FolioFox's Prometheus metrics and
the process health/readiness/liveness HTTP handlers.

Metrics are grouped by component: catalog (books/indexers gauges),
breaker (state/trips/selector outcomes), health (probe counts and
failover/recovery events), queue (active/completed/failed downloads,
scheduling latency, bandwidth), dedup (scan duration, match/merge
counts), and maintenance (task duration and status by kind). All are
registered at package init and exposed via Handler() for scraping.

Timer is a small helper for observing operation duration into a
histogram without repeating time.Since bookkeeping at each call site.
*/
package metrics
