package gitsync

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Phase names a clone stage.
type Phase string

const (
	PhaseCounting    Phase = "counting objects"
	PhaseCompressing Phase = "compressing objects"
	PhaseReceiving   Phase = "receiving objects"
	PhaseResolving   Phase = "resolving deltas"
	PhaseDone        Phase = "done"
)

// Progress is an overall completion percentage (0-100) and the current phase.
type Progress struct {
	Percent int
	Phase   Phase
}

// phaseSpans maps each phase onto a slice of the overall percentage. Phases
// arrive in this order; 100 is reserved for PhaseDone.
var phaseSpans = []struct {
	phase    Phase
	from, to int
}{
	{PhaseCounting, 0, 5},
	{PhaseCompressing, 5, 15},
	{PhaseReceiving, 15, 90},
	{PhaseResolving, 90, 99},
}

var progressRe = regexp.MustCompile(`(?i)(counting objects|compressing objects|receiving objects|resolving deltas):\s+(\d{1,3})%`)

// progressWriter parses `git clone --progress` stderr into Progress updates.
// Percentages never decrease and phases never go backwards.
type progressWriter struct {
	mu       sync.Mutex
	buf      []byte
	phaseIdx int
	last     Progress
	started  bool
	emit     func(Progress)
}

func newProgressWriter(emit func(Progress)) *progressWriter {
	return &progressWriter{emit: emit, phaseIdx: -1}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		w.line(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush parses any trailing partial line.
func (w *progressWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.line(string(w.buf))
		w.buf = nil
	}
}

func (w *progressWriter) line(s string) {
	m := progressRe.FindStringSubmatch(s)
	if m == nil {
		return
	}
	phase := Phase(strings.ToLower(m[1]))
	pct, err := strconv.Atoi(m[2])
	if err != nil || pct > 100 {
		return
	}

	idx := -1
	for i, span := range phaseSpans {
		if span.phase == phase {
			idx = i
			break
		}
	}
	if idx < w.phaseIdx {
		return
	}
	span := phaseSpans[idx]
	overall := span.from + pct*(span.to-span.from)/100
	if overall < w.last.Percent {
		overall = w.last.Percent
	}

	next := Progress{Percent: overall, Phase: phase}
	if w.started && next == w.last {
		return
	}
	w.phaseIdx = idx
	w.last = next
	w.started = true
	if w.emit != nil {
		w.emit(next)
	}
}
