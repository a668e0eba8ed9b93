// Package arbiter implements the human arbitration oracle: a blocking
// stdin prompt asked whenever a trade's obligations are disputed, naming
// which side (maker or taker) the coordinator should sign the script-path
// payout towards.
//
// Grounded on the teacher's pkg/logging.Gate usage convention (a
// process-wide atomic flag quiescing background log output around a
// blocking foreground operation) — the prompt loop itself is new, since
// the teacher has no equivalent human-in-the-loop decision point.
package arbiter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/taptrade/coordinatord/pkg/logging"
)

// Winner names which side the arbiter decided a disputed trade for.
type Winner string

const (
	WinnerMaker Winner = "maker"
	WinnerTaker Winner = "taker"
)

// Oracle prompts an operator at a terminal to decide a disputed trade.
type Oracle struct {
	in  *bufio.Reader
	out io.Writer
	log *logging.Logger
}

// New constructs an Oracle reading from in and prompting on out.
func New(in io.Reader, out io.Writer) *Oracle {
	return &Oracle{
		in:  bufio.NewReader(in),
		out: out,
		log: logging.GetDefault().Component("arbiter"),
	}
}

// Decide blocks on an "M"/"T" prompt for offerID, re-prompting on any
// other input, and returns the winner the operator chose. Background log
// output is quiesced for the prompt's duration via logging.PauseForPrompt
// so it does not interleave with the prompt text.
func (o *Oracle) Decide(ctx context.Context, offerID string) (Winner, error) {
	logging.PauseForPrompt()
	defer logging.ResumeAfterPrompt()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		fmt.Fprintf(o.out, "Arbitration required for offer %s: maker or taker? [M/T] ", offerID)

		line, err := o.in.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("arbiter: reading decision: %w", err)
		}

		switch strings.ToUpper(strings.TrimSpace(line)) {
		case "M":
			o.log.Info("arbitration decided", "offer_id", offerID, "winner", WinnerMaker)
			return WinnerMaker, nil
		case "T":
			o.log.Info("arbitration decided", "offer_id", offerID, "winner", WinnerTaker)
			return WinnerTaker, nil
		default:
			fmt.Fprintln(o.out, "unrecognized input, enter M or T")
		}
	}
}
