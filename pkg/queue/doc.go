/*
Package queue implements the Download Queue Engine: a scheduler that
admits pending and retry-eligible download_queue rows as bounded
concurrent tasks, each of which streams a file to disk with bandwidth
throttling and progress tracking, verifies its size, and commits the
outcome to the catalog.

# Scheduling loop

Scheduler.Run ticks on a configurable interval. Each tick: checks host
resource pressure (CPU/memory/disk) and skips admission if any exceeds
its threshold; computes available task slots from max_concurrent minus
active tasks; admits pending items ordered by priority and age;
admits retry-eligible items whose per-reason cooldown has elapsed and
which pass the smart-retry filter; reclaims downloads stuck in
"downloading" past a staleness threshold; and rebalances priority
across the whole pending set. A tick with no free slot only reclaims
stale downloads.

# Per-download task

Task.Run claims an item with a compare-and-set, streams its URL to a
temp file in chunks (each chunk gated by a bandwidth token bucket),
verifies the downloaded size against Content-Length when the server
reports one, and renames the temp file into its final sanitized
location. The temp file is removed on every exit path that doesn't end
in a successful rename.

# Retry policy

RetryDelay computes the backoff before a failed item becomes
retry-eligible again: an exponential schedule with jitter, except for
a handful of reasons (rate limiting, server errors, file corruption)
that use a fixed delay regardless of retry count. SmartRetrySkip adds
an additional filter that refuses to retry against a consistently
failing indexer or a message that signals a permanent resource.
*/
package queue
