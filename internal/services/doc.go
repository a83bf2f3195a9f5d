// Package services defines shared utilities consumed by the pipeline stages,
// the query path, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp lecture IDs, analysis IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and KindOf which sorts a
//     failure into input, backend, transport, or pipeline errors.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
