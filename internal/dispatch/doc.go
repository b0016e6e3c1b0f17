// Package dispatch sends rendered notifications one at a time.
//
// Every message gets its own relay session (dial, STARTTLS, auth, submit,
// quit). A failure is recorded against that one message and the loop moves
// on; nothing is retried. Attachments are shared by every message of a
// batch and are rewound after each use.
package dispatch
