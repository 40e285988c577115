package main

import (
	"os"

	"github.com/cheggaaa/pb"
	"golang.org/x/term"
)

// progress shows a progress bar over points on stderr, when stderr is a
// terminal.
type progress struct {
	bar *pb.ProgressBar
}

func runningOnTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func newProgress(total int) *progress {
	p := &progress{}
	if runningOnTerminal() {
		p.bar = pb.New(total)
		p.bar.Output = os.Stderr
		p.bar.ShowSpeed = true
		p.bar.Start()
	}
	return p
}

// AddBar implements laz.Progress.
func (p *progress) AddBar(count int) {
	if p.bar != nil {
		p.bar.Add(count)
	}
}

// Shutdown stops the progress bar.
func (p *progress) Shutdown() {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}
