// Package transcript reads and writes golden conversation transcripts.
//
// A transcript is a line-oriented text file. The first three lines are the
// header (locale, encoded initial state, encoded entity hints). Every turn
// follows as a labeled input line, then either an output count with that many
// labeled output lines (and an optional snapshot line), or a single
// Exception line:
//
//	en-us
//	{}
//	[]
//	FromUser:"Hi"
//	1
//	ToUserText:"Please enter text"
//	State:{}
//	FromUser:"quit"
//	Exception:"Form quit."
//
// All payloads are canonically encoded with package ir, which guarantees
// that a payload never spans more than one line.
package transcript
