// Package session owns one conversation with a bot under test.
//
// A Session is created per script run from a Factory, holds the bot and its
// Outbox for the lifetime of the run, and must be closed on every exit path.
// Turns are driven one at a time through RunTurn:
//
//	s, err := session.Open(ctx, factory, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	res, err := s.RunTurn(ctx, "Hi")
//
// The bot runs on a dedicated worker goroutine. RunTurn hands the input to
// that goroutine and does not return until the bot's Post has returned, so
// the Outbox always holds the complete output of the turn when it is drained.
package session
