// Package repl drives a mounted journey engine from line-oriented input.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/journey-platform/internal/journey"
	"github.com/example/journey-platform/internal/journey/engine"
	"github.com/example/journey-platform/internal/journey/paywall"
	"github.com/example/journey-platform/services/player/internal/content"
)

// FlushTimeout bounds the remote write issued on quit.
const FlushTimeout = 5 * time.Second

var errQuit = errors.New("quit")

type Session struct {
	eng     *engine.Engine
	journey content.Journey
	out     io.Writer
	log     *zap.Logger
}

func New(eng *engine.Engine, j content.Journey, out io.Writer, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{eng: eng, journey: j, out: out, log: log}
}

// Run reads commands until quit, EOF or ctx is done. The engine is flushed
// and closed before Run returns.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	defer s.shutdown()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop:
				return
			}
		}
		scanErr <- sc.Err()
		close(lines)
	}()

	s.printStatus()
	s.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if err := s.Exec(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
			s.prompt()
		}
	}
}

func (s *Session) prompt() {
	fmt.Fprint(s.out, "> ")
}

func (s *Session) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
	defer cancel()
	if err := s.eng.SaveProgressNow(ctx, ""); err != nil {
		s.log.Warn("final progress save failed", zap.Error(err))
	}
	s.eng.Close()
}

// Exec runs one command line.
func (s *Session) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "next", "n":
		if !s.eng.Next() {
			s.explainBlockedNext()
			return nil
		}
	case "prev", "p":
		if !s.eng.Prev() {
			fmt.Fprintln(s.out, "already at the first item")
			return nil
		}
	case "goto", "g":
		if len(args) != 1 {
			return errors.New("usage: goto <position>")
		}
		pos, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[0])
		}
		// Positions are shown 1-based.
		if !s.eng.GoTo(pos - 1) {
			fmt.Fprintf(s.out, "cannot jump to %d\n", pos)
			return nil
		}
	case "done", "d":
		return s.done(ctx, args)
	case "unlock", "buy":
		fmt.Fprintln(s.out, "processing purchase...")
		if err := s.eng.UnlockPaywall(ctx); err != nil {
			return fmt.Errorf("unlock: %w", err)
		}
		fmt.Fprintln(s.out, "full journey unlocked")
	case "pause":
		s.eng.Pause()
	case "resume":
		s.eng.Resume()
	case "save":
		if err := s.eng.SaveProgressNow(ctx, ""); err != nil {
			return fmt.Errorf("save: %w", err)
		}
		fmt.Fprintln(s.out, "progress saved")
		return nil
	case "status", "s":
	case "list", "ls":
		s.printList()
		return nil
	case "help", "h", "?":
		s.printHelp()
		return nil
	case "quit", "exit", "q":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	s.printStatus()
	return nil
}

// done completes an item. On the last item the completion is saved
// immediately instead of waiting for the debounce window.
func (s *Session) done(ctx context.Context, args []string) error {
	id := ""
	if len(args) > 0 {
		id = args[0]
	} else if it, ok := s.eng.CurrentItem(); ok {
		id = it.ID
	}
	if id == "" {
		return errors.New("nothing to complete")
	}
	if s.eng.IsLastItem() {
		if err := s.eng.SaveProgressNow(ctx, id); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	} else if !s.eng.MarkComplete(id) {
		fmt.Fprintf(s.out, "%s was not marked complete\n", id)
		return nil
	}
	s.printStatus()
	return nil
}

func (s *Session) explainBlockedNext() {
	switch {
	case s.eng.IsAtPaywall():
		fmt.Fprintln(s.out, "the rest of this journey is locked, type unlock to continue")
	case s.eng.IsLastItem():
		fmt.Fprintln(s.out, "this is the last item")
	default:
		fmt.Fprintln(s.out, "the next item is behind the paywall, type unlock to continue")
	}
}

func (s *Session) printStatus() {
	fmt.Fprintln(s.out, Status(s.eng.State(), s.journey, s.eng.Gate()))
}

func (s *Session) printList() {
	st := s.eng.State()
	for i, it := range st.Items {
		mark := " "
		switch {
		case i == st.SafeIndex():
			mark = ">"
		case st.Completed.Has(it.ID):
			mark = "x"
		}
		lock := ""
		if it.IsPremium && !st.HasPremiumAccess {
			lock = " (locked)"
		}
		fmt.Fprintf(s.out, "%s %2d. %s [%s]%s\n", mark, i+1, s.journey.ItemTitle(it.ID), it.Kind, lock)
	}
}

func (s *Session) printHelp() {
	fmt.Fprint(s.out, `commands:
  next, n          advance one item
  prev, p          go back one item
  goto N           jump to position N
  done [id]        mark the current item (or id) complete
  unlock           purchase access past the paywall
  pause, resume    toggle playback
  save             write progress now
  list             show all items
  status           show the current position
  quit             save and exit
`)
}

// Status renders a one-line summary of st.
func Status(st journey.State, j content.Journey, gate paywall.Status) string {
	it, ok := st.CurrentItem()
	if !ok {
		return "empty journey"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%d/%d] %s (%s) | %d%% complete", st.SafeIndex()+1, len(st.Items), j.ItemTitle(it.ID), it.Kind, st.ProgressPercent())
	if st.Completed.Has(it.ID) {
		b.WriteString(" | done")
	}
	if st.IsPaused {
		b.WriteString(" | paused")
	}
	if st.HasPaywall {
		fmt.Fprintf(&b, " | paywall %s", gate)
	}
	if st.IsComplete() {
		b.WriteString(" | journey finished")
	}
	return b.String()
}
