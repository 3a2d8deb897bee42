// Package harness records and verifies golden transcripts of multi-turn
// bot conversations.
//
// A Script names the bot configuration (locale, initial state, entity
// hints, options) and the ordered user inputs. Record drives a fresh bot
// through the inputs and writes everything it says to a transcript file;
// Verify drives another fresh bot through the same inputs and checks each
// turn against that file.
//
// # Verification
//
// The verifier walks the transcript as a small state machine:
//
//	header -> input -> outputs [-> state] -> input -> ... -> done
//
// and stops at the first disagreement with a *Failure:
//
//   - HEADER_MISMATCH: locale, initial state or entity hints differ
//   - SCRIPT_DRIFT: the recorded input differs from the scripted one, or
//     the turn counts differ
//   - OUTPUT_MISMATCH: count, order, kind or content of outputs differ
//   - TURN_FAILURE: the bot failed unexpectedly or with another message
//   - TRANSCRIPT_IO: the file could not be read or written
//
// Comparison is ordered and exact on canonical encodings; there is no
// partial credit.
//
// # Recovery
//
// VerifyOrRecord wraps Verify. On failure it re-records the original
// script to a sibling file (SimpleForm.script -> SimpleForm-new.script),
// then returns the original failure. Replacing the golden file with the
// sibling is left to the developer.
//
// # Usage
//
//	h := harness.New(formbot.Factory(form), harness.WithSnapshot(true))
//	script := harness.Script{Name: "simple", Locale: "en-us", Inputs: []string{"Hi", "some text here"}}
//	if err := h.VerifyOrRecord(ctx, "testdata/simple.script", script, nil); err != nil {
//	    log.Fatal(err)
//	}
package harness
