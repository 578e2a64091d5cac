package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// progressPrinter redraws a single status line while a batch runs.
type progressPrinter struct {
	out      io.Writer
	total    int
	name     string
	mu       sync.Mutex
	ok       int
	fail     int
	duration float64
	updates  chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newProgressPrinter(out io.Writer, total int, name string) *progressPrinter {
	if total <= 0 {
		total = 1
	}
	return &progressPrinter{
		out:     out,
		total:   total,
		name:    name,
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	go p.loop()
}

func (p *progressPrinter) Increment(success bool, duration float64) {
	p.mu.Lock()
	if success {
		p.ok++
	} else {
		p.fail++
	}
	p.duration += duration
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}

// Stop halts the redraw loop and prints the final line. Start must have been
// called.
func (p *progressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		<-p.stopped
		fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", 80))
		p.print()
		fmt.Fprintln(p.out)
	})
}

func (p *progressPrinter) loop() {
	defer close(p.stopped)
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.updates:
			p.print()
		case <-ticker.C:
			p.print()
		case <-p.done:
			return
		}
	}
}

func (p *progressPrinter) print() {
	p.mu.Lock()
	ok := p.ok
	fail := p.fail
	dur := p.duration
	p.mu.Unlock()

	completed := ok + fail
	total := max(p.total, completed)

	percent := (float64(completed) / float64(total)) * 100
	avg := 0.0
	if completed > 0 {
		avg = dur / float64(completed)
	}

	fmt.Fprintf(p.out, "\r[%s] Progress: %d/%d (%.1f%%) OK:%d Fail:%d Avg:%.2fs",
		p.name, completed, total, percent, ok, fail, avg)
}
