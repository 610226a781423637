package cmds

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/go-go-golems/loopdash/pkg/ansistyle"
	"github.com/go-go-golems/loopdash/pkg/connection"
	"github.com/go-go-golems/loopdash/pkg/logfilter"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	gray   = color.New(color.FgHiBlack)
)

// statusf writes one decorated status line. Status lines go to stderr so that
// stdout stays pipeable log text.
func statusf(w io.Writer, c *color.Color, mark, format string, a ...any) {
	_, _ = fmt.Fprintf(w, c.Sprint(mark)+" "+format+"\n", a...)
}

func infof(w io.Writer, format string, a ...any)  { statusf(w, cyan, "→", format, a...) }
func okf(w io.Writer, format string, a ...any)    { statusf(w, green, "✓", format, a...) }
func warnf(w io.Writer, format string, a ...any)  { statusf(w, yellow, "⚠", format, a...) }
func errorf(w io.Writer, format string, a ...any) { statusf(w, red, "✗", format, a...) }

func connectionStatus(w io.Writer, s connection.State, attempt int) {
	switch s {
	case connection.StateSubscribed:
		okf(w, "push channel %s", s)
	case connection.StateReconnecting:
		warnf(w, "push channel %s (attempt %d, retry in %s)", s, attempt,
			connection.ReconnectDelay(connection.DefaultSchedule, max(0, attempt-1)))
	case connection.StateDisconnected, connection.StateClosed:
		warnf(w, "push channel %s", s)
	default:
		_, _ = gray.Fprintf(w, "· push channel %s\n", s)
	}
}

// linePrinter streams the tail of an append-only text through a filter
// engine. Text is always line-complete at chunk boundaries: a chunk that does
// not continue a line starts with the newline that ends the previous one.
type linePrinter struct {
	mu     sync.Mutex
	w      io.Writer
	engine *logfilter.Engine
	strip  bool

	offset int
	open   bool
}

func newLinePrinter(w io.Writer, engine *logfilter.Engine, strip bool) *linePrinter {
	return &linePrinter{w: w, engine: engine, strip: strip}
}

// Feed prints whatever text has grown since the last call.
func (p *linePrinter) Feed(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// callers may race to read the buffer; an older, shorter read has
	// nothing new in it
	if len(text) <= p.offset {
		return nil
	}
	fresh := text[p.offset:]
	p.offset = len(text)

	if p.open {
		fresh = strings.TrimPrefix(fresh, "\n")
	}
	if fresh == "" {
		p.open = false
		return nil
	}
	p.open = !strings.HasSuffix(fresh, "\n")
	fresh = strings.TrimSuffix(fresh, "\n")

	for _, line := range strings.Split(fresh, "\n") {
		if err := p.writeLine(line); err != nil {
			return err
		}
	}
	return nil
}

func (p *linePrinter) writeLine(line string) error {
	if p.engine != nil && !p.engine.Keep(line) {
		return nil
	}
	if p.strip {
		line = ansistyle.Strip(line)
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}
