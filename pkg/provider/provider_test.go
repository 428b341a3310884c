package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"quicktranslator/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLoggerTo(io.Discard, 50)
}

// ---------------------------------------------------------------------------
// MyMemory
// ---------------------------------------------------------------------------

func TestMyMemory_Success(t *testing.T) {
	var gotQuery, gotPair, gotEmail string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get" {
			t.Errorf("path = %q, want /get", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("q")
		gotPair = r.URL.Query().Get("langpair")
		gotEmail = r.URL.Query().Get("de")
		fmt.Fprint(w, `{"responseData":{"translatedText":"你好 &amp; 再见"},"responseStatus":200,"responseDetails":""}`)
	}))
	defer srv.Close()

	m := NewMyMemory(MyMemoryConfig{BaseURL: srv.URL + "/", Email: "me@example.com"}, testLogger())
	got, err := m.Translate(context.Background(), "hello & bye", "en", "zh")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "你好 & 再见" {
		t.Errorf("got %q, want unescaped text", got)
	}
	if gotQuery != "hello & bye" || gotPair != "en|zh" || gotEmail != "me@example.com" {
		t.Errorf("query = %q pair = %q email = %q", gotQuery, gotPair, gotEmail)
	}
}

func TestMyMemory_Errors(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		wantUnsupported bool
		wantEmpty       bool
	}{
		{
			name:            "invalid target language",
			status:          http.StatusOK,
			body:            `{"responseData":{"translatedText":"'XX' IS AN INVALID TARGET LANGUAGE"},"responseStatus":"403","responseDetails":"'XX' IS AN INVALID TARGET LANGUAGE . EXAMPLE: LANGPAIR=EN|IT"}`,
			wantUnsupported: true,
		},
		{
			name:   "quota",
			status: http.StatusOK,
			body:   `{"responseData":{"translatedText":""},"responseStatus":429,"responseDetails":"MYMEMORY WARNING: YOU USED ALL AVAILABLE FREE TRANSLATIONS FOR TODAY"}`,
		},
		{
			name:      "empty translation",
			status:    http.StatusOK,
			body:      `{"responseData":{"translatedText":"  "},"responseStatus":200}`,
			wantEmpty: true,
		},
		{
			name:   "http failure",
			status: http.StatusBadGateway,
			body:   "upstream down",
		},
		{
			name:   "garbage",
			status: http.StatusOK,
			body:   "<html>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			m := NewMyMemory(MyMemoryConfig{BaseURL: srv.URL}, testLogger())
			_, err := m.Translate(context.Background(), "x", "en", "xx")
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *ProviderError
			if !errors.As(err, &pe) || pe.Provider != "mymemory" {
				t.Errorf("error %v is not a mymemory ProviderError", err)
			}
			if got := errors.Is(err, ErrUnsupportedLanguage); got != tt.wantUnsupported {
				t.Errorf("Is(ErrUnsupportedLanguage) = %v, want %v (%v)", got, tt.wantUnsupported, err)
			}
			if got := errors.Is(err, ErrEmptyResult); got != tt.wantEmpty {
				t.Errorf("Is(ErrEmptyResult) = %v, want %v", got, tt.wantEmpty)
			}
		})
	}
}

func TestMyMemory_QueryTooLong(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	m := NewMyMemory(MyMemoryConfig{BaseURL: srv.URL}, testLogger())
	_, err := m.Translate(context.Background(), strings.Repeat("a", myMemoryMaxQuery+1), "en", "zh")
	if err == nil || !strings.Contains(err.Error(), "limit") {
		t.Fatalf("error = %v, want size limit error", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("oversized query reached the server")
	}
}

func TestMyMemory_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	m := NewMyMemory(MyMemoryConfig{BaseURL: srv.URL}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := m.Translate(ctx, "x", "en", "zh")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if !Permanent(err) {
		t.Error("cancellation should be permanent")
	}
}

// ---------------------------------------------------------------------------
// LLM
// ---------------------------------------------------------------------------

func TestLLM_Success(t *testing.T) {
	var system, user, model string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		model = req.Model
		for _, m := range req.Messages {
			switch m.Role {
			case "system":
				system = m.Content
			case "user":
				user = m.Content
			}
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" 你好 \n"}}]}`)
	}))
	defer srv.Close()

	p := NewLLM(LLMConfig{
		BaseURL: srv.URL + "/v1",
		APIKey:  "sk-test",
		Model:   "qwen-flash",
		Prompt:  "Translate {source} to {target}.",
	}, testLogger())

	got, err := p.Translate(context.Background(), "hello", "en", "zh")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "你好" {
		t.Errorf("got %q, want 你好", got)
	}
	if system != "Translate en to zh." {
		t.Errorf("system prompt = %q", system)
	}
	if user != "hello" || model != "qwen-flash" {
		t.Errorf("user = %q model = %q", user, model)
	}
}

func TestLLM_MissingKey(t *testing.T) {
	p := NewLLM(LLMConfig{BaseURL: "http://127.0.0.1:1/v1", Model: "m"}, testLogger())
	_, err := p.Translate(context.Background(), "hello", "en", "zh")
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Fatalf("error = %v, want missing key", err)
	}
}

func TestLLM_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	}))
	defer srv.Close()

	p := NewLLM(LLMConfig{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "m"}, testLogger())
	_, err := p.Translate(context.Background(), "hello", "en", "zh")
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("error = %v, want ErrEmptyResult", err)
	}
}

// ---------------------------------------------------------------------------
// Cached
// ---------------------------------------------------------------------------

func countingProvider(calls *int32, fail bool) Func {
	return Func{ID: "counting", Fn: func(ctx context.Context, text, source, target string) (string, error) {
		atomic.AddInt32(calls, 1)
		if fail {
			return "", errors.New("boom")
		}
		return source + ">" + target + ":" + text, nil
	}}
}

func TestCached_HitsAndKeys(t *testing.T) {
	var calls int32
	c := NewCached(countingProvider(&calls, false), 10, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.Translate(ctx, "hello", "en", "zh")
		if err != nil || got != "en>zh:hello" {
			t.Fatalf("Translate = %q, %v", got, err)
		}
	}
	if calls != 1 {
		t.Errorf("wrapped called %d times, want 1", calls)
	}

	// the reversed direction is a different key
	if got, _ := c.Translate(ctx, "hello", "zh", "en"); got != "zh>en:hello" {
		t.Errorf("reversed = %q", got)
	}
	if calls != 2 {
		t.Errorf("wrapped called %d times, want 2", calls)
	}
	if c.Name() != "cached(counting)" {
		t.Errorf("Name() = %q", c.Name())
	}
}

func TestVerbatim_SkipsUntranslatable(t *testing.T) {
	var calls int32
	v := NewVerbatim(countingProvider(&calls, false))
	ctx := context.Background()

	for _, text := range []string{"42", "3.14 %", "(+1) 555-0100", "→ ★"} {
		got, err := v.Translate(ctx, text, "en", "zh")
		if err != nil || got != text {
			t.Errorf("Translate(%q) = %q, %v", text, got, err)
		}
	}
	if calls != 0 {
		t.Errorf("wrapped called %d times for verbatim text", calls)
	}

	if got, _ := v.Translate(ctx, "2 apples", "en", "zh"); got != "en>zh:2 apples" {
		t.Errorf("Translate = %q", got)
	}
	if calls != 1 || v.Name() != "verbatim(counting)" {
		t.Errorf("calls = %d name = %q", calls, v.Name())
	}
}

func TestCached_DoesNotCacheFailures(t *testing.T) {
	var calls int32
	c := NewCached(countingProvider(&calls, true), 10, testLogger())
	for i := 0; i < 2; i++ {
		if _, err := c.Translate(context.Background(), "x", "en", "zh"); err == nil {
			t.Fatal("expected error")
		}
	}
	if calls != 2 || c.Len() != 0 {
		t.Errorf("calls = %d len = %d", calls, c.Len())
	}
}

func TestCached_EvictsLeastRecentlyUsed(t *testing.T) {
	var calls int32
	c := NewCached(countingProvider(&calls, false), 2, testLogger())
	ctx := context.Background()

	c.Translate(ctx, "a", "en", "zh")
	c.Translate(ctx, "b", "en", "zh")
	c.Translate(ctx, "a", "en", "zh") // a is now most recent
	c.Translate(ctx, "c", "en", "zh") // evicts b

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	before := atomic.LoadInt32(&calls)
	c.Translate(ctx, "a", "en", "zh")
	if atomic.LoadInt32(&calls) != before {
		t.Error("a should still be cached")
	}
	c.Translate(ctx, "b", "en", "zh")
	if atomic.LoadInt32(&calls) != before+1 {
		t.Error("b should have been evicted")
	}
}

// ---------------------------------------------------------------------------
// Pool
// ---------------------------------------------------------------------------

func staticProvider(name, result string, err error, delay time.Duration) Func {
	return Func{ID: name, Fn: func(ctx context.Context, text, source, target string) (string, error) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return result, err
	}}
}

func TestPool_FallbackUsesFirstSuccess(t *testing.T) {
	p := NewPool(Fallback, testLogger(),
		staticProvider("a", "", errors.New("down"), 0),
		staticProvider("b", "from b", nil, 0),
		staticProvider("c", "from c", nil, 0),
	)
	got, err := p.Translate(context.Background(), "x", "en", "zh")
	if err != nil || got != "from b" {
		t.Fatalf("got %q, %v; want from b", got, err)
	}
	if p.Name() != "pool(a,b,c)" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestPool_AllFail(t *testing.T) {
	p := NewPool(Fallback, testLogger(),
		staticProvider("a", "", errors.New("down"), 0),
		staticProvider("b", "", fmt.Errorf("b: %w", ErrUnsupportedLanguage), 0),
	)
	_, err := p.Translate(context.Background(), "x", "en", "zh")
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("error = %v", err)
	}
	if errors.Is(err, ErrUnsupportedLanguage) {
		t.Error("mixed failures must not be reported as unsupported language")
	}

	p = NewPool(Race, testLogger(),
		staticProvider("a", "", fmt.Errorf("a: %w", ErrUnsupportedLanguage), 0),
		staticProvider("b", "", fmt.Errorf("b: %w", ErrUnsupportedLanguage), 0),
	)
	_, err = p.Translate(context.Background(), "x", "en", "zz")
	if !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("error = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestPool_RaceReturnsFastest(t *testing.T) {
	p := NewPool(Race, testLogger(),
		staticProvider("slow", "slow", nil, 2*time.Second),
		staticProvider("fast", "fast", nil, 10*time.Millisecond),
	)
	start := time.Now()
	got, err := p.Translate(context.Background(), "x", "en", "zh")
	if err != nil || got != "fast" {
		t.Fatalf("got %q, %v; want fast", got, err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("race waited %v for the slow member", elapsed)
	}
}

func TestPool_RaceCancelsLosers(t *testing.T) {
	cancelled := make(chan struct{})
	loser := Func{ID: "loser", Fn: func(ctx context.Context, text, source, target string) (string, error) {
		<-ctx.Done()
		close(cancelled)
		return "", ctx.Err()
	}}
	p := NewPool(Race, testLogger(), loser, staticProvider("winner", "won", nil, 0))

	got, err := p.Translate(context.Background(), "x", "en", "zh")
	if err != nil || got != "won" {
		t.Fatalf("got %q, %v; want won", got, err)
	}
	select {
	case <-cancelled:
	default:
		t.Error("losing member was not cancelled")
	}
}

func TestPool_Empty(t *testing.T) {
	_, err := NewPool(Fallback, testLogger()).Translate(context.Background(), "x", "en", "zh")
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("error = %v, want ErrNoProvider", err)
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy("RACE"); err != nil || s != Race {
		t.Errorf("RACE = %v, %v", s, err)
	}
	if s, err := ParseStrategy(""); err != nil || s != Fallback {
		t.Errorf("empty = %v, %v", s, err)
	}
	if _, err := ParseStrategy("random"); err == nil {
		t.Error("expected error for random")
	}
}
