// Package progress owns elixir's stderr: human-facing run progress during `elixir update`,
// styled with the same charmbracelet/lipgloss pairing the teacher's internal/ui package uses
// for anything rendered for a person, falling back to plain lines when stderr is not a
// terminal so redirected logs stay grep-able (spec §6: "progress is written to standard
// error; standard output is reserved for machine-readable tag-completion lines").
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/untoldecay/elixir/internal/types"
	"github.com/untoldecay/elixir/internal/xrefdb"
)

var (
	colorAccent = lipgloss.Color("39")
	colorPass   = lipgloss.Color("42")
	colorWarn   = lipgloss.Color("178")
	colorMuted  = lipgloss.Color("243")
)

// Reporter writes human progress to stderr and a durable run log.
type Reporter struct {
	out       io.Writer
	log       io.Writer
	styled    bool
	tagStyle  lipgloss.Style
	okStyle   lipgloss.Style
	warnStyle lipgloss.Style
	dimStyle  lipgloss.Style
}

// New builds a Reporter writing to stderr, styled only if stderr is attached to a terminal,
// and to a rotating log file under dataDir/logs/update.log (the same lumberjack-backed
// pattern the teacher uses for its own daemon log).
func New(dataDir string) *Reporter {
	styled := term.IsTerminal(int(os.Stderr.Fd())) && termenv.NewOutput(os.Stderr).Profile != termenv.Ascii
	logFile := &lumberjack.Logger{
		Filename:   dataDir + "/logs/update.log",
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	return &Reporter{
		out:       os.Stderr,
		log:       logFile,
		styled:    styled,
		tagStyle:  lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		okStyle:   lipgloss.NewStyle().Foreground(colorPass),
		warnStyle: lipgloss.NewStyle().Foreground(colorWarn),
		dimStyle:  lipgloss.NewStyle().Foreground(colorMuted),
	}
}

func (r *Reporter) render(style lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return style.Render(text)
}

// TagStarted reports that runID has begun indexing tag.
func (r *Reporter) TagStarted(runID, tag string) {
	line := fmt.Sprintf("[%s] %s indexing", runID[:8], r.render(r.tagStyle, tag))
	fmt.Fprintln(r.out, line)
	fmt.Fprintf(r.log, "%s run=%s tag=%s event=start\n", time.Now().Format(time.RFC3339), runID, tag)
}

// TagCompleted reports that tag finished with newBlobs freshly interned in elapsed time.
func (r *Reporter) TagCompleted(runID, tag string, newBlobs int, elapsed time.Duration) {
	line := fmt.Sprintf("[%s] %s %s (%s new blobs, %s)",
		runID[:8], r.render(r.tagStyle, tag), r.render(r.okStyle, "done"),
		humanize.Comma(int64(newBlobs)), elapsed.Round(time.Millisecond))
	fmt.Fprintln(r.out, line)
	fmt.Fprintf(r.log, "%s run=%s tag=%s event=done new_blobs=%d elapsed=%s\n",
		time.Now().Format(time.RFC3339), runID, tag, newBlobs, elapsed)
}

// BlobFailed reports a per-blob extraction failure; the blob is marked partial and retried
// next run (spec §7), so this is a warning, not a fatal error.
func (r *Reporter) BlobFailed(runID, tag string, num types.BlobNumber, pass xrefdb.Pass, err error) {
	line := fmt.Sprintf("[%s] %s %s blob %d (%s): %s",
		runID[:8], tag, r.render(r.warnStyle, "partial"), num, pass, err)
	fmt.Fprintln(r.out, line)
	fmt.Fprintf(r.log, "%s run=%s tag=%s event=partial blob=%d pass=%s err=%q\n",
		time.Now().Format(time.RFC3339), runID, tag, num, pass, err)
}

// Close flushes and closes the run log.
func (r *Reporter) Close() error {
	if closer, ok := r.log.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
