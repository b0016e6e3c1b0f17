// Package storage provides the optional run journal.
//
// It records:
//   - One summary entry per dispatched batch (counts and timing, no
//     per-recipient delivery state)
//   - Which dataset files the watch mode has already processed, so a
//     restart does not send the same batch twice
package storage
