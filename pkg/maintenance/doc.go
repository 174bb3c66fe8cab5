// Package maintenance implements the Maintenance Orchestrator (§4.6):
// idempotent, individually invocable database upkeep tasks
// (integrity_check, cleanup, analyze, reindex, vacuum, backup) driven
// through a dependency graph that skips downstream tasks once an
// upstream one fails to complete cleanly.
package maintenance
