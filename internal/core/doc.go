// Package core provides the business logic for bridge-inspection tracking.
//
// This package holds all domain logic independent of any transport or
// storage engine. Web handlers, the bridgectl CLI and tests all drive the
// same [Service].
//
// # Architecture
//
//   - Bridge: the inspection record keyed by BIN. Its Status is derived on
//     every read and never stored.
//   - Fields: the allow-list of writable record fields. API payloads and
//     spreadsheet columns are both resolved through it.
//   - Store: keyed persistence. [NewMemoryStore] lives here; sqlite and
//     postgres implementations live under internal/storage.
//   - Service: serializes mutations behind one mutex and hands every
//     successful change to a [Notifier].
//
// # Mutations and events
//
// Each successful Create, Patch or Delete emits exactly one [Event]. A bulk
// [Service.Import] emits one bulk_imported event after the run instead of
// one per row. Events are handed to the notifier while the mutation lock is
// held, so observers see them in mutation order.
//
// # Bulk import
//
// Import consumes a lazy iter.Seq2 of [Row] values. Columns are matched
// through [LookupColumn] ignoring case and surrounding whitespace. Blank
// cells never overwrite stored values, and unparsable coordinates fall back
// to 0.0 instead of failing the row.
//
// # Error Handling
//
// Failures carry one of four kinds: [ErrValidation], [ErrNotFound],
// [ErrConflict] or [ErrStoreUnavailable]. [MapError] turns any error into a
// [UserMessage] with a support code:
//
//   - VAL001: invalid input
//   - BRG001-BRG002: missing or duplicate bridge
//   - DB001: storage unavailable
//   - IMP001-IMP005: import failures
//   - RATE001: throttled
package core
