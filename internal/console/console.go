// Package console is the line-oriented terminal shell of the wizard.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"shiftplan/internal/apperror"
	"shiftplan/internal/config"
	"shiftplan/internal/dates"
	appLog "shiftplan/internal/log"
	"shiftplan/internal/model"
	"shiftplan/internal/session"
	"shiftplan/internal/wizard"
)

// errQuit ends Run without an error.
var errQuit = errors.New("quit")

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Terminal reads command lines and writes replies. Prompts and menus are
// only written when it is interactive, so piped input yields plain output.
type Terminal struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func NewTerminal(in io.Reader, out io.Writer, interactive bool) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out, interactive: interactive}
}

// ReadLine returns the next trimmed input line. io.EOF is returned once
// the input is exhausted.
func (t *Terminal) ReadLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Prompt writes only in interactive mode.
func (t *Terminal) Prompt(format string, args ...any) {
	if t.interactive {
		fmt.Fprintf(t.out, format, args...)
	}
}

func (t *Terminal) Printf(format string, args ...any) {
	fmt.Fprintf(t.out, format, args...)
}

// Shell drives a Session from a Terminal.
type Shell struct {
	sess *session.Session
	term *Terminal

	// writeFile stores exports; replaced in tests.
	writeFile func(path string, data []byte) error
}

func NewShell(sess *session.Session, t *Terminal) *Shell {
	return &Shell{sess: sess, term: t, writeFile: config.WriteFileAtomic}
}

// Run reads commands until q, end of input or ctx is done.
func (sh *Shell) Run(ctx context.Context) error {
	appLog.Info("console shell started", "interactive", sh.term.interactive)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		sh.menu()

		line, err := sh.term.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		if err := sh.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			sh.term.Printf("error: %s\n", apperror.SafeMessage(err))
			if apperror.SafeCode(err) >= 500 {
				appLog.Error("console command failed", err, "command", line)
			}
		}
	}
}

func (sh *Shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	if n, err := strconv.Atoi(cmd); err == nil {
		return sh.pick(n)
	}

	switch cmd {
	case "q":
		return errQuit
	case "r":
		if len(args) != 2 {
			return apperror.NewValidation("usage: r START END (YYYY-MM-DD)")
		}
		start, err := dates.ParseDay(args[0])
		if err != nil {
			return apperror.NewValidation("invalid start date " + args[0])
		}
		end, err := dates.ParseDay(args[1])
		if err != nil {
			return apperror.NewValidation("invalid end date " + args[1])
		}
		return sh.dispatch(wizard.SelectRange{Range: dates.NewRange(start, end)})
	case "s":
		_, err := sh.sess.Enter("")
		return err
	case "u":
		return sh.dispatch(wizard.Undo{})
	case "e":
		if len(args) != 1 {
			return apperror.NewValidation("usage: e N")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return apperror.NewValidation("invalid entry number " + args[0])
		}
		return sh.dispatch(wizard.EditShift{Index: n - 1})
	case "d":
		return sh.dispatch(wizard.DiscardAll{})
	case "i":
		return sh.importAll(ctx)
	case "x":
		if len(args) != 1 {
			return apperror.NewValidation("usage: x FILE")
		}
		return sh.export(args[0])
	default:
		return apperror.NewValidation("unknown command " + cmd)
	}
}

// pick chooses preset n while selecting a range and template n otherwise.
func (sh *Shell) pick(n int) error {
	if _, ok := sh.sess.State().(wizard.SelectingDateRange); ok {
		presets, err := sh.sess.Presets()
		if err != nil {
			return err
		}
		if n < 1 || n > len(presets) {
			return apperror.NewValidation(fmt.Sprintf("no preset %d", n))
		}
		return sh.dispatch(wizard.SelectRange{Range: presets[n-1]})
	}

	templates := sh.sess.Templates()
	if n < 1 || n > len(templates) {
		return apperror.NewValidation(fmt.Sprintf("no template %d", n))
	}
	_, err := sh.sess.Enter(templates[n-1].ID)
	return err
}

func (sh *Shell) dispatch(a wizard.Action) error {
	_, err := sh.sess.Dispatch(a)
	return err
}

func (sh *Shell) importAll(ctx context.Context) error {
	res, _, err := sh.sess.Import(ctx)
	if err != nil && !apperror.Is(err, apperror.TypePartialImport) {
		return err
	}
	if err != nil {
		sh.term.Printf("warning: %s\n", apperror.SafeMessage(err))
		for _, ev := range res.FailedEvents {
			sh.term.Printf("  not imported: %s %s\n", dates.DayOf(ev.Start), ev.Summary)
		}
		return nil
	}
	sh.term.Printf("imported %d shifts\n", res.Imported)
	return nil
}

func (sh *Shell) export(path string) error {
	body, err := sh.sess.Export()
	if err != nil {
		return err
	}
	if err := sh.writeFile(path, []byte(body)); err != nil {
		return apperror.NewInternal(err)
	}
	sh.term.Printf("exported to %s\n", path)
	return nil
}

// menu prompts for the next command of the current state.
func (sh *Shell) menu() {
	if !sh.term.interactive {
		return
	}
	switch st := sh.sess.State().(type) {
	case wizard.SelectingDateRange:
		sh.term.Prompt("\nSelect the days to fill in:\n")
		if presets, err := sh.sess.Presets(); err == nil {
			for i, r := range presets {
				sh.term.Prompt("  %d) %s %d  %s .. %s\n", i+1, r.Start.Month, r.Start.Year, r.Start, r.End)
			}
		}
		sh.term.Prompt("  r START END) custom range\n  q) quit\n> ")

	case wizard.EnteringShifts:
		d := st.CurrentDate()
		sh.term.Prompt("\n%s %s (%d left)\n", d.Weekday(), d, st.DateRange.Len())
		sh.templateMenu()
		sh.term.Prompt("  s) skip  u) undo  d) discard\n> ")

	case wizard.EditingShift:
		d := st.CurrentDate()
		sh.term.Prompt("\nChange %s %s (now: %s)\n", d.Weekday(), d, label(st.ToEdit))
		sh.templateMenu()
		sh.term.Prompt("  s) no shift  u) keep  d) discard\n> ")

	case wizard.Reviewing:
		sh.term.Prompt("\nReview:\n")
		for i, ev := range st.Entered {
			sh.term.Prompt("  %2d) %s %s  %s\n", i+1, ev.Date.Weekday().String()[:3], ev.Date, label(ev))
		}
		sh.term.Prompt("  e N) edit  i) import  x FILE) export  d) discard\n> ")
	}
}

func (sh *Shell) templateMenu() {
	for i, t := range sh.sess.Templates() {
		sh.term.Prompt("  %d) %s\n", i+1, describeTemplate(t))
	}
}

func label(ev model.ShiftEvent) string {
	if ev.Template == nil {
		return "-"
	}
	return describeTemplate(*ev.Template)
}

func describeTemplate(t model.ShiftTemplate) string {
	if t.Times == nil {
		return t.Summary + " (all day)"
	}
	return fmt.Sprintf("%s (%s-%s)", t.Summary, t.Times.Start, t.Times.End)
}
