// Package controller owns the translation direction and the submission state
// of the application.
//
// A Controller is not safe for concurrent use. Every method must be called
// from the single interaction goroutine that also receives from Outcomes and
// passes each value to Deliver. Background work never touches controller
// state: it only produces an Outcome on the channel.
package controller

import (
	"context"
	"errors"
	"strings"
	"time"

	"quicktranslator/pkg/logger"
	"quicktranslator/pkg/provider"
	"quicktranslator/pkg/translator"
)

// ErrEmptyText is reported when a submission holds only whitespace.
var ErrEmptyText = errors.New("nothing to translate")

// ErrInvalidDirection is reported when source and target are unusable.
var ErrInvalidDirection = translator.ErrInvalidDirection

// State is the submission state.
type State int

const (
	Idle State = iota
	InFlight
)

func (s State) String() string {
	if s == InFlight {
		return "in-flight"
	}
	return "idle"
}

// NoticeKind classifies the message shown next to the result.
type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	NoticeWarning
	NoticeError
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	}
	return "none"
}

// Snapshot is a read-only copy of the controller state for presentations.
type Snapshot struct {
	Direction   translator.Direction
	State       State
	Result      string
	Notice      string
	NoticeKind  NoticeKind
	Err         error
	LastRequest *translator.Request
	Completed   int
	Failed      int
}

// CanSubmit reports whether the submit control should be enabled.
func (s Snapshot) CanSubmit() bool { return s.State == Idle }

// Options configures a Controller.
type Options struct {
	// Retry is handed to every task. Defaults to translator.NoRetry.
	Retry translator.RetryPolicy
	// Timeout bounds each provider call. Zero means no limit.
	Timeout time.Duration
	// Wake is called from the worker goroutine after an outcome has been
	// queued, e.g. window.Invalidate. May be nil.
	Wake func()
}

// Controller mediates between user input, submission state and display.
type Controller struct {
	ctx      context.Context
	provider provider.Provider
	opts     Options
	logger   *logger.Logger

	direction translator.Direction
	state     State
	result    string
	notice    string
	kind      NoticeKind
	err       error
	inflight  *translator.Request
	cancel    context.CancelFunc
	last      *translator.Request
	completed int
	failed    int

	outcomes    chan translator.Outcome
	subscribers []func(Snapshot)
}

// New creates an idle controller. ctx bounds every task the controller
// starts; cancelling it cancels the in-flight request.
func New(ctx context.Context, p provider.Provider, d translator.Direction, opts Options, log *logger.Logger) *Controller {
	if opts.Retry == nil {
		opts.Retry = translator.NoRetry{}
	}
	return &Controller{
		ctx:       ctx,
		provider:  p,
		opts:      opts,
		logger:    log.Named("controller"),
		direction: d,
		// at most one task is in flight, so the worker never blocks on send
		outcomes: make(chan translator.Outcome, 1),
	}
}

// Outcomes is the event queue the interaction goroutine must drain into
// Deliver.
func (c *Controller) Outcomes() <-chan translator.Outcome {
	return c.outcomes
}

// Subscribe registers fn to be called, on the interaction goroutine, after
// every state change.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.subscribers = append(c.subscribers, fn)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Direction:  c.direction,
		State:      c.state,
		Result:     c.result,
		Notice:     c.notice,
		NoticeKind: c.kind,
		Err:        c.err,
		Completed:  c.completed,
		Failed:     c.failed,
	}
	if c.last != nil {
		req := *c.last
		s.LastRequest = &req
	}
	return s
}

// Direction returns the current direction.
func (c *Controller) Direction() translator.Direction { return c.direction }

// State returns the submission state.
func (c *Controller) State() State { return c.state }

// Result returns the last successfully translated text.
func (c *Controller) Result() string { return c.result }

// Submit starts a translation of text in the current direction. It returns
// false without any effect while a request is in flight, and false with a
// warning notice when the text is blank or the direction is invalid.
func (c *Controller) Submit(text string) bool {
	if c.state == InFlight {
		c.logger.Debugf("submit ignored: request %s still in flight", c.inflight.ID)
		return false
	}
	if err := c.direction.Validate(); err != nil {
		c.warn(err)
		return false
	}
	if strings.TrimSpace(text) == "" {
		c.warn(ErrEmptyText)
		return false
	}

	req := translator.NewRequest(text, c.direction)
	ctx, cancel := context.WithCancel(c.ctx)
	c.inflight = &req
	c.last = &req
	c.cancel = cancel
	c.state = InFlight
	c.clearNotice()

	c.logger.Infof("request %s: %s, %d chars", req.ID, req.Direction, len([]rune(text)))
	translator.Start(ctx, translator.Task{
		Provider: c.provider,
		Request:  req,
		Retry:    c.opts.Retry,
		Timeout:  c.opts.Timeout,
		Logger:   c.logger,
	}, c.enqueue, c.opts.Wake)

	c.notify()
	return true
}

// enqueue runs on the worker goroutine and only touches the channel.
func (c *Controller) enqueue(o translator.Outcome) {
	c.outcomes <- o
}

// Deliver applies an outcome received from Outcomes.
func (c *Controller) Deliver(o translator.Outcome) {
	if c.inflight == nil || o.Request.ID != c.inflight.ID {
		c.logger.Warnf("dropping outcome for request %s: not in flight", o.Request.ID)
		return
	}
	c.cancel()
	c.cancel = nil
	c.inflight = nil

	if o.OK() {
		c.onTranslationCompleted(o)
	} else {
		c.onTranslationFailed(o)
	}
}

func (c *Controller) onTranslationCompleted(o translator.Outcome) {
	c.result = o.Text
	c.state = Idle
	c.completed++
	c.clearNotice()
	c.logger.Infof("request %s done in %v (%d attempt(s))", o.Request.ID, o.Elapsed.Round(time.Millisecond), o.Attempts)
	c.notify()
}

func (c *Controller) onTranslationFailed(o translator.Outcome) {
	c.state = Idle
	c.failed++
	c.err = o.Err
	if errors.Is(o.Err, context.Canceled) {
		c.kind = NoticeWarning
		c.notice = "translation cancelled"
		c.logger.Infof("request %s cancelled", o.Request.ID)
	} else {
		c.kind = NoticeError
		c.notice = o.Err.Error()
		c.logger.Errorf("request %s failed after %d attempt(s): %v", o.Request.ID, o.Attempts, o.Err)
	}
	c.notify()
}

// Await blocks until the in-flight outcome arrives and delivers it. It
// returns false when nothing is in flight or ctx ends first.
func (c *Controller) Await(ctx context.Context) bool {
	if c.state != InFlight {
		return false
	}
	select {
	case o := <-c.outcomes:
		c.Deliver(o)
		return true
	case <-ctx.Done():
		return false
	}
}

// ToggleDirection swaps source and target. An in-flight request keeps the
// direction it was submitted with.
func (c *Controller) ToggleDirection() {
	c.direction = c.direction.Swap()
	c.logger.Debugf("direction now %s", c.direction)
	c.notify()
}

// Cancel aborts the in-flight request. Its outcome still arrives through
// Outcomes and reports the cancellation.
func (c *Controller) Cancel() bool {
	if c.state != InFlight {
		return false
	}
	c.cancel()
	return true
}

// Close cancels any in-flight request. The controller must not be used
// afterwards.
func (c *Controller) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Controller) warn(err error) {
	c.kind = NoticeWarning
	c.notice = err.Error()
	c.err = err
	c.logger.Warnf("submit rejected: %v", err)
	c.notify()
}

func (c *Controller) clearNotice() {
	c.kind = NoticeNone
	c.notice = ""
	c.err = nil
}

func (c *Controller) notify() {
	if len(c.subscribers) == 0 {
		return
	}
	s := c.Snapshot()
	for _, fn := range c.subscribers {
		fn(s)
	}
}
