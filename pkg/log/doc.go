/*
Package log provides structured logging for FolioFox using zerolog.

A single package-level Logger is initialized once via Init and shared
by every component. Component loggers are created with WithComponent
and the entity-scoped helpers (WithIndexerID, WithDownloadID,
WithTaskID) so that every log line from a subsystem carries enough
context to be queried without string parsing.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	queueLog := log.WithComponent("queue")
	queueLog.Info().Str("download_id", id).Msg("download started")
*/
package log
