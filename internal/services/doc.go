// Package services defines shared utilities consumed by the pipeline stages
// and the external integrations that sit behind them.
//
// Key responsibilities:
//   - Context helpers that stamp the media reference, stage name, and cycle
//     request identifier for logging.
//   - Structured error markers plus the Wrap helper so every failure carries
//     its stage and operation while staying matchable with errors.Is.
//
// Integration clients live in subpackages (llm, pixelfed) and stay free of
// pipeline semantics.
package services
