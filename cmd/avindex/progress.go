package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/meigma/avindex"
)

var descLength = 28

// newExecutor returns a progress bar executor when stderr is a terminal.
func newExecutor() avindex.Executor {
	if noProgress || !isTerminal() {
		return avindex.InlineExecutor()
	}
	return avindex.ExecutorFunc(runWithBar)
}

// runWithBar runs task while rendering its progress on stderr.
func runWithBar(ctx context.Context, title string, task avindex.Task) error {
	container := mpb.NewWithContext(ctx,
		mpb.WithOutput(os.Stderr),
		mpb.WithWidth(64),
		mpb.WithRefreshRate(100*time.Millisecond),
	)
	s := &barSink{ctx: ctx, title: title}
	s.bar = container.New(0,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				return s.description()
			}, decor.WC{W: descLength, C: decor.DindentRight}),
			decor.Name("  "),
			decor.CountersNoUnit("%d/%d", decor.WC{C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
		),
	)

	err := task(ctx, s)
	if err != nil {
		s.bar.Abort(false)
	} else {
		s.bar.SetTotal(-1, true)
	}
	container.Wait()
	return err
}

// barSink feeds a ProgressSink into an mpb bar.
type barSink struct {
	ctx context.Context
	bar *mpb.Bar

	mu      sync.Mutex
	title   string
	message string
}

func (s *barSink) description() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	desc := s.title
	if s.message != "" {
		desc = fmt.Sprintf("%s: %s", s.title, s.message)
	}
	if len(desc) > descLength {
		return desc[:descLength-2] + ".."
	}
	return desc
}

func (s *barSink) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

func (s *barSink) SetMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = msg
}

func (s *barSink) SetIndeterminate() {
	s.bar.SetTotal(0, false)
	s.bar.SetCurrent(0)
}

func (s *barSink) SetProgress(done, total int64) {
	s.bar.SetTotal(total, false)
	s.bar.SetCurrent(done)
}

func (s *barSink) IsCancelled() bool {
	return s.ctx.Err() != nil
}

// isTerminal checks if stderr is a terminal (TTY)
func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd())) //nolint:gosec // file descriptors fit in int
}
