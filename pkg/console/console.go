package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"quicktranslator/pkg/controller"
	"quicktranslator/pkg/i18n"
	"quicktranslator/pkg/logger"
	"quicktranslator/pkg/runner"
)

// Commands understood by the console besides plain text.
const (
	CmdSwap   = ":swap"
	CmdCancel = ":cancel"
	CmdQuit   = ":quit"
)

// Console is the terminal presentation. Lines read from in are submitted for
// translation; results and notices are written to out.
type Console struct {
	app    *runner.App
	in     io.Reader
	out    io.Writer
	logger *logger.Logger
}

func New(a *runner.App, in io.Reader, out io.Writer) *Console {
	return &Console{
		app:    a,
		in:     in,
		out:    out,
		logger: a.Logger.Named("console"),
	}
}

// Run owns the controller until :quit, end of input or ctx ends. At end of
// input a request still in flight is awaited so its result is printed.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl := c.app.NewController(ctx, nil)
	defer ctrl.Close()

	lines := make(chan string)
	go c.readLines(ctx, lines)

	fmt.Fprintln(c.out, i18n.T("Type text and press Enter to translate. Commands: :swap, :cancel, :quit"))
	c.prompt(ctrl.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return nil

		case o := <-ctrl.Outcomes():
			ctrl.Deliver(o)
			c.report(ctrl.Snapshot())

		case line, ok := <-lines:
			if !ok {
				if ctrl.Await(ctx) {
					c.report(ctrl.Snapshot())
				}
				return nil
			}
			if quit := c.handle(ctrl, line); quit {
				return nil
			}
		}
	}
}

func (c *Console) readLines(ctx context.Context, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.logger.Errorf("reading input: %v", err)
	}
}

// handle reports whether the console should stop.
func (c *Console) handle(ctrl *controller.Controller, line string) bool {
	switch strings.TrimSpace(line) {
	case CmdQuit:
		ctrl.Cancel()
		return true
	case CmdSwap:
		ctrl.ToggleDirection()
		fmt.Fprintln(c.out, i18n.T("Direction: %s", runner.DirectionLabel(ctrl.Snapshot())))
		c.prompt(ctrl.Snapshot())
		return false
	case CmdCancel:
		ctrl.Cancel()
		return false
	}

	if ctrl.Submit(line) {
		return false
	}
	s := ctrl.Snapshot()
	if s.State == controller.InFlight {
		fmt.Fprintln(c.out, i18n.T("Busy, still translating."))
		return false
	}
	c.report(s)
	return false
}

// report prints the outcome of the last controller transition.
func (c *Console) report(s controller.Snapshot) {
	if msg := runner.NoticeText(s); msg != "" {
		fmt.Fprintln(c.out, "! "+msg)
	} else {
		fmt.Fprintln(c.out, s.Result)
	}
	c.prompt(s)
}

func (c *Console) prompt(s controller.Snapshot) {
	fmt.Fprintf(c.out, "[%s]> ", s.Direction)
}

// Once translates text with a fresh controller and waits for the outcome.
func Once(ctx context.Context, a *runner.App, text string) (string, error) {
	ctrl := a.NewController(ctx, nil)
	defer ctrl.Close()

	if !ctrl.Submit(text) {
		return "", ctrl.Snapshot().Err
	}
	if !ctrl.Await(ctx) {
		return "", ctx.Err()
	}
	s := ctrl.Snapshot()
	if s.Err != nil {
		return "", s.Err
	}
	return s.Result, nil
}
