// Package rpa drives the remote library system's browser UI to search
// readers and issue or return book items. The remote system exposes no API,
// so every operation replays the clicks and keystrokes a desk librarian
// would perform, and reads the outcome from a mix of intercepted network
// responses and visible page text.
//
// # Architecture
//
// The package is built around four cooperating pieces:
//
//  1. Driver: owns the single persistent browser session (one context, one
//     page) and the mutex that serializes every UI-driving operation.
//  2. Login handling: detects redirects to the login boundary and performs
//     automated credential submission, or reports that manual login is
//     required.
//  3. Reader resolution: finds and unambiguously selects a reader record in
//     the workspace UI, verifying the selection through the details panel.
//  4. Action execution: the issue/return sequence (tab, reader, barcode, due
//     date, confirm) with outcome classification.
//
// # Session lifecycle
//
// The browser context is persistent and backed by an on-disk profile
// directory so login cookies survive restarts. Start is idempotent and rolls
// back partially created resources on failure; Stop is safe to call at any
// time. If the page is lost mid-flight a fresh one is created from the
// existing context.
//
// # Selector resilience
//
// The remote UI's selectors are not contractually stable. Controls are
// located through ordered fallback chains of (strategy, pattern) pairs; the
// first candidate that is genuinely visible within a short per-strategy
// timeout wins. Chains can be overridden from a YAML file without a rebuild
// when the remote markup drifts.
//
// # Concurrency
//
// One mutex guards initialization, login, search, issue and return, so at
// most one browser interaction sequence runs at a time system-wide. Callers
// may invoke operations concurrently; they serialize without any ordering
// guarantee beyond mutual exclusion.
package rpa
