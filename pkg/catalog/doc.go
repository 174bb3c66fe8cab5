/*
Package catalog is the Catalog Store (A): the single relational
database every other component reads and writes through. It wraps
modernc.org/sqlite in WAL mode with foreign keys enforced, applies
numbered, checksummed schema migrations at startup, and exposes a
small transactional API (WithTx, Exclusive) that the queue, health,
dedup, and maintenance packages build on instead of touching *sql.DB
directly.

Schema changes live as embedded .sql files under migrations/, applied
in filename order inside one transaction each. Every applied migration
is recorded in schema_versions along with a sha256 checksum of its
file content; on every subsequent startup the checksum is recomputed
and compared, and a mismatch refuses to proceed rather than risk
running against a schema nobody can account for.
*/
package catalog
