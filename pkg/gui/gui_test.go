package gui

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gioui.org/x/notify"

	"quicktranslator/pkg/controller"
	"quicktranslator/pkg/logger"
	"quicktranslator/pkg/provider"
	"quicktranslator/pkg/translator"
)

func TestStateFollowsController(t *testing.T) {
	p := provider.Func{ID: "echo", Fn: func(ctx context.Context, text, source, target string) (string, error) {
		return target + ":" + text, nil
	}}
	var woke int32
	wake := func() { atomic.AddInt32(&woke, 1) }
	c := controller.New(context.Background(), p, translator.Direction{Source: "en", Target: "zh"},
		controller.Options{Wake: wake}, logger.NewLoggerTo(io.Discard, 10))
	defer c.Close()

	s := newState(c, wake, logger.NewLoggerTo(io.Discard, 10))
	if !s.snapshot.CanSubmit() {
		t.Fatal("initial snapshot not idle")
	}

	c.Submit("hi")
	if s.snapshot.State != controller.InFlight {
		t.Fatalf("state = %v, want in flight", s.snapshot.State)
	}

	// 模拟界面线程被唤醒后的处理
	deadline := time.Now().Add(3 * time.Second)
	for s.snapshot.State == controller.InFlight && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
		s.drainOutcomes()
	}
	if s.snapshot.Result != "zh:hi" {
		t.Errorf("result = %q", s.snapshot.Result)
	}
	if atomic.LoadInt32(&woke) == 0 {
		t.Error("invalidate never called")
	}
}

func TestDrainOutcomes_Empty(t *testing.T) {
	c := controller.New(context.Background(), provider.Func{}, translator.Direction{Source: "en", Target: "zh"},
		controller.Options{}, logger.NewLoggerTo(io.Discard, 10))
	defer c.Close()

	s := newState(c, func() {}, logger.NewLoggerTo(io.Discard, 10))
	s.drainOutcomes()
	if s.snapshot.State != controller.Idle {
		t.Errorf("state = %v", s.snapshot.State)
	}
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
}

type fakeNotification struct{}

func (fakeNotification) Cancel() error { return nil }

func (f *fakeNotifier) CreateNotification(title, text string) (notify.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return fakeNotification{}, nil
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func TestNotifyDone(t *testing.T) {
	n := &fakeNotifier{}
	s := &guiState{notifier: n, focused: true, logger: logger.NewLoggerTo(io.Discard, 10)}
	busy := controller.Snapshot{State: controller.InFlight}
	done := controller.Snapshot{State: controller.Idle, Result: "你好"}

	s.notifyDone(busy, done)
	s.focused = false
	s.notifyDone(done, done)
	s.notifyDone(busy, controller.Snapshot{State: controller.Idle, Err: errors.New("boom")})
	s.notifyDone(busy, done)

	deadline := time.Now().Add(time.Second)
	for len(n.sent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	if got := n.sent(); len(got) != 1 || got[0] != "你好" {
		t.Errorf("notifications = %v, want only the background success", got)
	}
}
