// Package ui provides kit's terminal output and interactive prompts.
//
// Status lines go to ui.Out (stderr by default) so stdout stays clean for
// command results:
//   - Info:    → cyan arrow
//   - Success: ✔ green check
//   - Fail:    ✘ red cross
//   - Warn:    ○ yellow circle
//
// Select runs a bubbletea list for picking a commit message, and
// ReadSecret reads a hidden value from the terminal.
package ui
