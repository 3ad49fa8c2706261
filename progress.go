package main

import (
	"os"

	"stmtbench/bench"

	"github.com/cheggaaa/pb/v3"
)

type progressTracker struct {
	bar *pb.ProgressBar
}

func newProgressTracker() bench.Tracker {
	return &progressTracker{}
}

func (p *progressTracker) Start(label string, total int) {
	p.bar = pb.New(total).Set("prefix", label+" ").SetWriter(os.Stderr).Start()
}

func (p *progressTracker) Increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *progressTracker) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
