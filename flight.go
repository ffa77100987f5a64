package avindex

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/avindex/internal/index"
)

// builds shares concurrent index builds of the same file and options
// within the process.
var builds = &flightGroup{flights: make(map[string]*flight)}

// flightGroup tracks in-progress index builds. A build runs detached from
// the Opens waiting on it and is cancelled once the last of them has left,
// so each waiter can give up on its own without failing the others.
type flightGroup struct {
	sf singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
	gen     uint64
}

// flight is one running build. name is unique per build so an Open never
// joins a build that is already being torn down.
type flight struct {
	name     string
	ctx      context.Context
	cancel   context.CancelFunc
	watchers map[*watcher]struct{}
}

// watcher is one Open waiting on a flight. It mirrors the build's progress
// to its own sink.
type watcher struct {
	sink ProgressSink
	oc   *openConfig
	path string
	quit chan struct{}

	mu   sync.Mutex
	left bool
}

func newWatcher(sink ProgressSink, oc *openConfig, path string) *watcher {
	return &watcher{sink: sink, oc: oc, path: path, quit: make(chan struct{}, 1)}
}

// deliver runs fn unless the watcher has left. Nothing reaches the sink or
// the progress callback after leave returns.
func (w *watcher) deliver(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.left {
		fn()
	}
}

func (w *watcher) progress(done, total int64) {
	w.deliver(func() {
		if w.sink.IsCancelled() {
			w.stop()
			return
		}
		w.sink.SetProgress(done, total)
		w.oc.emit(ProgressEvent{Stage: StageIndexing, Path: w.path, UnitsDone: done, UnitsTotal: total})
	})
}

func (w *watcher) stop() {
	select {
	case w.quit <- struct{}{}:
	default:
	}
}

// join attaches w to the build for key, starting one with run when none is
// in progress. ctx only seeds the values of a new build's context; the
// build is not cancelled with it. The caller must leave the flight.
func (g *flightGroup) join(ctx context.Context, key string, w *watcher, run func(*flight) (*index.Index, error)) (*flight, <-chan singleflight.Result, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	fl, joined := g.flights[key]
	if !joined {
		g.gen++
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{
			name:     key + "#" + strconv.FormatUint(g.gen, 10),
			ctx:      fctx,
			cancel:   cancel,
			watchers: make(map[*watcher]struct{}),
		}
		g.flights[key] = fl
	}
	fl.watchers[w] = struct{}{}

	ch := g.sf.DoChan(fl.name, func() (any, error) {
		idx, err := run(fl)
		g.mu.Lock()
		if g.flights[key] == fl {
			delete(g.flights, key)
		}
		g.mu.Unlock()
		return idx, err
	})
	return fl, ch, joined
}

// leave detaches w from fl. The build is cancelled when nobody waits on it
// any longer.
func (g *flightGroup) leave(key string, fl *flight, w *watcher) {
	g.mu.Lock()
	delete(fl.watchers, w)
	if len(fl.watchers) == 0 {
		fl.cancel()
		if g.flights[key] == fl {
			delete(g.flights, key)
		}
	}
	g.mu.Unlock()

	w.mu.Lock()
	w.left = true
	w.mu.Unlock()
}

// each calls fn for every current watcher of fl, outside the lock.
func (g *flightGroup) each(fl *flight, fn func(*watcher)) {
	g.mu.Lock()
	ws := make([]*watcher, 0, len(fl.watchers))
	for w := range fl.watchers {
		ws = append(ws, w)
	}
	g.mu.Unlock()

	for _, w := range ws {
		fn(w)
	}
}

// waiting returns the number of Opens waiting on a build of path.
func (g *flightGroup) waiting(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, fl := range g.flights {
		for w := range fl.watchers {
			if w.path == path {
				n++
			}
		}
	}
	return n
}
