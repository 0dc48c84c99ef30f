// Package terminal provides interactive shell channels and the output
// normalizer that turns their raw byte streams into readable text.
//
// A Channel is a live shell whose output is collected in the background
// into a circular Buffer; callers write a line and poll ReadAvailable
// until the stream goes quiet. Two dialers produce channels:
//
//   - SSHDialer: golang.org/x/crypto/ssh with password and
//     keyboard-interactive auth, a "dumb" PTY with echo disabled, optional
//     known_hosts verification and ssh_config alias resolution
//   - LocalDialer: a shell on this machine behind creack/pty
//
// Normalize strips escape sequences, control bytes, the echoed command,
// blank lines and trailing prompts. It performs no I/O.
package terminal
