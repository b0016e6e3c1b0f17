// Package logx configures venuemail's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller) on stderr,
//     so stdout stays free for the operator report
//   - File output JSON-structured
package logx
