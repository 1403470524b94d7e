// Package core provides the nutrition ingestion pipeline.
//
// This package holds all domain logic independent of storage engine or
// transport. The HTTP server, the one-shot CLI and tests all drive it through
// [Service] or [Pipeline] directly.
//
// # Data flow
//
//	CSV line -> RawRecord -> Food -> chunk buffer -> transactional upsert
//
//  1. A [SourceOpener] yields a forward-only [RecordSource]. [FileSource]
//     reads a UTF-8 CSV, skips the header line and picks fields by position
//     according to a [Layout].
//  2. The [Transformer] turns each [RawRecord] into a [Food]. Numeric tokens
//     go through the [Sanitizer]; unparseable tokens become 0 and are reported
//     to a [Reporter] instead of failing the run.
//  3. The [Pipeline] buffers up to ChunkSize foods and hands each full chunk to
//     a [Sink], which commits it in one storage transaction keyed by food code.
//
// # Runs
//
// Every run has a caller-supplied id. A [RunRepository] accepts an id once;
// reuse fails with [ErrDuplicateRun] before the source is opened. A run moves
// NOT_STARTED -> RUNNING -> COMPLETED or FAILED and never leaves a terminal
// state. The first chunk that fails to commit ends the run; chunks committed
// before it stay committed. Cancellation is observed only between chunks.
//
// # Error Handling
//
// Technical errors are mapped to operator-facing messages using [MapError]:
//
//   - SRC001: source unavailable
//   - DB001-DB003: chunk write failures
//   - RUN001-RUN004: run lifecycle (duplicate, busy, cancelled, not found)
package core
