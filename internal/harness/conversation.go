package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/convoscript/internal/ir"
	"github.com/roach88/convoscript/internal/session"
)

// Step is one exchange of an inline conversation: the user input and the
// replies expected for it, in order. Text replies are compared verbatim;
// structured replies by their canonical encoding.
type Step struct {
	Input  string
	Expect []string
}

// Say builds a Step.
func Say(input string, expect ...string) Step {
	return Step{Input: input, Expect: expect}
}

// AssertConversation drives a fresh bot through steps without a transcript
// file and fails on the first turn whose replies differ. A bot failure is
// matched by a single expected reply equal to the failure message.
func AssertConversation(ctx context.Context, factory session.Factory, cfg session.Config, logger *slog.Logger, steps ...Step) error {
	codec := ir.Canonical{}
	return session.With(ctx, factory, cfg, logger, func(s *session.Session) error {
		for i, step := range steps {
			res, err := s.RunTurn(ctx, step.Input)
			if err != nil {
				return fmt.Errorf("turn %d: %w", i, err)
			}

			var got []string
			if res.Failed() {
				got = []string{res.Message()}
			} else {
				got = make([]string, 0, len(res.Outputs))
				for _, o := range res.Outputs {
					if o.Kind == session.KindText {
						got = append(got, o.Text)
						continue
					}
					enc, err := codec.Encode(o.Payload)
					if err != nil {
						return fmt.Errorf("turn %d: %w", i, err)
					}
					got = append(got, enc)
				}
			}

			want := step.Expect
			if want == nil {
				want = []string{}
			}
			if diff := cmp.Diff(want, got); diff != "" {
				code := CodeOutputMismatch
				if res.Failed() {
					code = CodeTurnFailure
				}
				return &Failure{
					Code:    code,
					Message: fmt.Sprintf("replies to %q differ", step.Input),
					Turn:    i,
					Diff:    diff,
				}
			}
		}
		return nil
	})
}
