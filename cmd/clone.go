package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/marcus/geoedit/internal/gitsync"
	"github.com/marcus/geoedit/internal/output"
	"github.com/marcus/geoedit/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Clone the configured repository into the working copy",
	Long: `Clone the configured remote into local_path.

The destination must not exist or be an empty directory. Press Ctrl-C to
cancel: the transfer finishes, then the clone is discarded.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openConfigured(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		reporter := newCloneReporter(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
		unsub := a.ctrl.Subscribe(reporter.handle)
		defer unsub()

		t, err := a.ctrl.StartClone(cmd.Context())
		if err != nil {
			return err
		}

		interrupts := make(chan os.Signal, 1)
		signal.Notify(interrupts, os.Interrupt)
		defer signal.Stop(interrupts)

		var r session.Result
	wait:
		for {
			select {
			case <-interrupts:
				t.Cancel()
				reporter.note("cancelling, the clone is discarded once the transfer ends")
			case <-t.Done():
				r = t.Wait()
				break wait
			}
		}

		switch r.Status {
		case session.StatusSucceeded:
			output.Success("%s", r.Message)
			return nil
		case session.StatusCancelled:
			output.Warning("clone cancelled")
			return nil
		}
		return r.Err
	},
}

// cloneReporter renders clone progress on w: a bar on terminals, one line
// per phase otherwise.
type cloneReporter struct {
	mu    sync.Mutex
	w     io.Writer
	tty   bool
	bar   progress.Model
	phase gitsync.Phase
	drawn bool
}

func newCloneReporter(w io.Writer, tty bool) *cloneReporter {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	return &cloneReporter{w: w, tty: tty, bar: bar}
}

func (r *cloneReporter) handle(ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case session.EventCloneStarted:
		fmt.Fprintln(r.w, ev.Message)
	case session.EventCloneProgress:
		p := ev.Progress
		if r.tty {
			fmt.Fprintf(r.w, "\r%s %-20s", r.bar.ViewAs(float64(p.Percent)/100), p.Phase)
			r.drawn = true
			return
		}
		if p.Phase != r.phase {
			r.phase = p.Phase
			fmt.Fprintf(r.w, "%3d%% %s\n", p.Percent, p.Phase)
		}
	case session.EventCloneFinished:
		if r.drawn {
			fmt.Fprintln(r.w)
			r.drawn = false
		}
	}
}

func (r *cloneReporter) note(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drawn {
		fmt.Fprintln(r.w)
		r.drawn = false
	}
	fmt.Fprintln(r.w, msg)
}

func init() {
	rootCmd.AddCommand(cloneCmd)
}
