// Package terminal owns the playback terminal session on top of tcell.
//
// Features:
//   - Alternate screen and raw mode for the lifetime of a session
//   - Whole-frame painting of composited text, clipped to the window
//   - Non-blocking key polling fed by a background event pump
//   - SIGWINCH handling via full resync on the next poll
//   - Clean terminal restoration on exit/panic
package terminal
