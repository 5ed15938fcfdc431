package faithfulness

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
)

// TerminalOutput returns stderr when it is a terminal and nil otherwise, so
// progress bars never end up in redirected output.
func TerminalOutput() io.Writer {
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return os.Stderr
	}
	return nil
}

// Progress draws a single-line question counter. A nil writer disables it.
type Progress struct {
	out   io.Writer
	label string
	bar   progress.Model

	mu    sync.Mutex
	total int
	done  int
}

// NewProgress creates a bar for total questions.
func NewProgress(out io.Writer, label string, total int) *Progress {
	return &Progress{
		out:   out,
		label: label,
		total: total,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
	}
}

// Increment marks one more question finished and redraws.
func (p *Progress) Increment() {
	if p == nil || p.out == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.draw()
}

// Finish terminates the progress line.
func (p *Progress) Finish() {
	if p == nil || p.out == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
}

func (p *Progress) draw() {
	frac := 1.0
	if p.total > 0 {
		frac = float64(p.done) / float64(p.total)
	}
	fmt.Fprintf(p.out, "\r%s %s %d/%d", p.label, p.bar.ViewAs(frac), p.done, p.total)
}
