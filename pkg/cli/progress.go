package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"mercator-hq/rulebook/pkg/ruleset"
)

const progressBarWidth = 24

// BatchProgress shows the progress of a run over several rule sets on a
// single, rewritten line: the sets done so far, the set executing now and
// the running rule totals.
type BatchProgress struct {
	mu      sync.Mutex
	w       io.Writer
	total   int
	done    int
	current string

	attempted int
	excluded  int
	stopped   int
	started   time.Time
}

// NewBatchProgress creates a reporter for total sets writing to w, or to
// stderr when w is nil so progress never mixes with command output.
func NewBatchProgress(w io.Writer, total int) *BatchProgress {
	if w == nil {
		w = os.Stderr
	}
	return &BatchProgress{w: w, total: total, started: time.Now()}
}

// Begin marks set as executing.
func (p *BatchProgress) Begin(set string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = set
	p.render()
}

// Done accounts for a finished batch.
func (p *BatchProgress) Done(report *ruleset.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.current = ""
	if report != nil {
		p.attempted += report.Attempted
		p.excluded += len(report.Excluded)
		if report.Outcome == ruleset.OutcomeStopped {
			p.stopped++
		}
	}
	p.render()
}

// Finish replaces the progress line with a summary.
func (p *BatchProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "\r%s\r✓ %d set(s), %d rule(s) attempted, %d excluded, %d stopped in %s\n",
		strings.Repeat(" ", p.lineWidth()), p.done, p.attempted, p.excluded, p.stopped,
		formatDuration(time.Since(p.started)))
}

// Abort ends the progress line with err.
func (p *BatchProgress) Abort(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "\n✗ interrupted after %d of %d set(s): %v\n", p.done, p.total, err)
}

func (p *BatchProgress) render() {
	if p.total == 0 {
		return
	}

	filled := min(p.done*progressBarWidth/p.total, progressBarWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)

	line := fmt.Sprintf("[%s] %d/%d sets", bar, p.done, p.total)
	if p.current != "" {
		line += ", running " + p.current
	}
	fmt.Fprintf(p.w, "\r%-*s", p.lineWidth(), line)
}

// lineWidth pads the progress line so a shorter line fully overwrites a
// longer one.
func (p *BatchProgress) lineWidth() int {
	return progressBarWidth + 64
}
