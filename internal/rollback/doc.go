// Package rollback orchestrates backup and restore of a live configuration
// against the snapshot store.
//
// [Engine.Backup] reads the live configuration through a [LiveConfig] and
// records it as a new versioned snapshot. [Engine.Restore] resolves a
// snapshot (latest or an exact version), re-validates it, and atomically
// replaces the live configuration, returning a [RestoreResult] naming the
// version now in effect. Both directions use the same atomic write
// discipline, so neither a failed backup nor a failed restore can leave a
// partially written file behind.
//
// The store is the only durable state the engine manages; the live resource
// belongs to its owner and is only read and atomically replaced.
package rollback
