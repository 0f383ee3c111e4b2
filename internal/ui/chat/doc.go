// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the interactive chat screen.
//
// The Model owns a session.Session. Submitting a prompt runs the turn on a
// worker goroutine; the splitter writes into the session transcript and a
// coalescing observer asks the program to redraw. The viewport always
// renders the transcript itself, so what is shown is exactly what history
// reconstruction reads back.
//
// Lines starting with "/" are commands (see /help). Their output goes to a
// panel above the input and never into the transcript.
package chat
