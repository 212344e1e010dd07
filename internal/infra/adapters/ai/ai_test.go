//go:build !integration

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/ports/adapter"
)

type stubLLM struct {
	name      string
	text      string
	err       error
	calls     int32
	lastModel string
	mu        sync.Mutex
}

func (s *stubLLM) Complete(_ context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	s.lastModel = req.Model
	s.mu.Unlock()
	if s.err != nil {
		return adapter.Completion{}, s.err
	}
	return adapter.Completion{Text: s.text, Model: s.name + "-model", Provider: s.name}, nil
}

func (s *stubLLM) n() int { return int(atomic.LoadInt32(&s.calls)) }

func TestMultiLLM_Routing(t *testing.T) {
	ctx := context.Background()
	open := &stubLLM{name: ProviderOpenAI, text: "ok"}
	gem := &stubLLM{name: ProviderGemini, text: "ok"}
	m := NewMultiLLM(ProviderOpenAI,
		map[string]adapter.LLMClient{ProviderOpenAI: open, ProviderGemini: gem},
		map[string]string{"custom-x": ProviderGemini}, nil)

	cases := []struct {
		model    string
		wantOpen int
		wantGem  int
	}{
		{"custom-x", 0, 1},
		{"gpt-4o-mini", 1, 0},
		{"gemini-2.0-flash", 0, 1},
		{"unknown", 1, 0},
	}
	for _, c := range cases {
		open.calls, gem.calls = 0, 0
		if _, err := m.Complete(ctx, adapter.CompletionRequest{Prompt: "hola", Model: c.model}); err != nil {
			t.Fatalf("%s: %v", c.model, err)
		}
		if open.n() != c.wantOpen || gem.n() != c.wantGem {
			t.Fatalf("%s routed open:%d gem:%d", c.model, open.n(), gem.n())
		}
	}
}

func TestMultiLLM_Failover(t *testing.T) {
	ctx := context.Background()

	t.Run("quota fails over with provider default model", func(t *testing.T) {
		open := &stubLLM{name: ProviderOpenAI, err: domain.ErrLLMQuota}
		gem := &stubLLM{name: ProviderGemini, text: "respuesta"}
		m := NewMultiLLM(ProviderOpenAI, map[string]adapter.LLMClient{ProviderOpenAI: open, ProviderGemini: gem}, nil, nil)

		comp, err := m.Complete(ctx, adapter.CompletionRequest{Prompt: "hola", Model: "gpt-4o-mini"})
		if err != nil {
			t.Fatal(err)
		}
		if comp.Provider != ProviderGemini || comp.Text != "respuesta" {
			t.Fatalf("got %+v", comp)
		}
		if gem.lastModel != "" {
			t.Fatalf("failover must not pass the openai model along, got %q", gem.lastModel)
		}
	})

	t.Run("timeout is not retried", func(t *testing.T) {
		open := &stubLLM{name: ProviderOpenAI, err: domain.ErrLLMTimeout}
		gem := &stubLLM{name: ProviderGemini, text: "respuesta"}
		m := NewMultiLLM(ProviderOpenAI, map[string]adapter.LLMClient{ProviderOpenAI: open, ProviderGemini: gem}, nil, nil)

		_, err := m.Complete(ctx, adapter.CompletionRequest{Prompt: "hola"})
		if !errors.Is(err, domain.ErrLLMTimeout) {
			t.Fatalf("want timeout, got %v", err)
		}
		if gem.n() != 0 {
			t.Fatal("gemini must not be called after a timeout")
		}
	})

	t.Run("raw errors are classified", func(t *testing.T) {
		open := &stubLLM{name: ProviderOpenAI, err: errors.New("dial tcp: connection refused")}
		m := NewMultiLLM(ProviderOpenAI, map[string]adapter.LLMClient{ProviderOpenAI: open}, nil, nil)
		_, err := m.Complete(ctx, adapter.CompletionRequest{Prompt: "hola"})
		if !errors.Is(err, domain.ErrLLMUnavailable) {
			t.Fatalf("want unavailable, got %v", err)
		}
	})

	t.Run("no providers", func(t *testing.T) {
		m := NewMultiLLM("none", nil, nil, nil)
		_, err := m.Complete(ctx, adapter.CompletionRequest{Prompt: "hola"})
		if !errors.Is(err, domain.ErrLLMUnavailable) {
			t.Fatalf("want unavailable, got %v", err)
		}
	})
}

type blockingLLM struct {
	inFlight int32
	peak     int32
	release  chan struct{}
}

func (b *blockingLLM) Complete(ctx context.Context, _ adapter.CompletionRequest) (adapter.Completion, error) {
	n := atomic.AddInt32(&b.inFlight, 1)
	for {
		p := atomic.LoadInt32(&b.peak)
		if n <= p || atomic.CompareAndSwapInt32(&b.peak, p, n) {
			break
		}
	}
	defer atomic.AddInt32(&b.inFlight, -1)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return adapter.Completion{Text: "ok"}, nil
}

func TestLimitedLLM(t *testing.T) {
	inner := &blockingLLM{release: make(chan struct{})}
	l := NewLimitedLLM(inner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Complete(context.Background(), adapter.CompletionRequest{})
		}()
	}
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Complete(ctx, adapter.CompletionRequest{}); !errors.Is(err, domain.ErrLLMTimeout) {
		t.Fatalf("waiting caller must time out, got %v", err)
	}

	close(inner.release)
	wg.Wait()
	if p := atomic.LoadInt32(&inner.peak); p > 2 {
		t.Fatalf("peak concurrency %d exceeds limit", p)
	}

	if NewLimitedLLM(inner, 0) != adapter.LLMClient(inner) {
		t.Fatal("non-positive limit must return inner unchanged")
	}
}

type memStore struct {
	mu     sync.Mutex
	data   map[string]adapter.Completion
	getErr error
}

func (m *memStore) Get(_ context.Context, fp string) (adapter.Completion, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return adapter.Completion{}, false, m.getErr
	}
	c, ok := m.data[fp]
	return c, ok, nil
}

func (m *memStore) Put(_ context.Context, fp string, c adapter.Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[fp] = c
	return nil
}

func TestCachedLLM(t *testing.T) {
	ctx := context.Background()
	inner := &stubLLM{name: ProviderOpenAI, text: "Enviamos a todo el país."}
	store := &memStore{data: map[string]adapter.Completion{}}
	c := NewCachedLLM(inner, store, nil)
	req := adapter.CompletionRequest{Prompt: "¿hacen envíos?", Model: "gpt-4o-mini", MaxTokens: 512}

	for i := 0; i < 3; i++ {
		comp, err := c.Complete(ctx, req)
		if err != nil || comp.Text != inner.text {
			t.Fatalf("call %d: %+v %v", i, comp, err)
		}
	}
	if inner.n() != 1 {
		t.Fatalf("inner called %d times, want 1", inner.n())
	}

	req.Temperature = 0.7
	if _, err := c.Complete(ctx, req); err != nil {
		t.Fatal(err)
	}
	if inner.n() != 2 {
		t.Fatal("a different temperature must not share the cache entry")
	}

	t.Run("empty replies are not cached", func(t *testing.T) {
		empty := &stubLLM{name: ProviderOpenAI, text: "  "}
		s := &memStore{data: map[string]adapter.Completion{}}
		_, _ = NewCachedLLM(empty, s, nil).Complete(ctx, req)
		if len(s.data) != 0 {
			t.Fatal("empty completion stored")
		}
	})

	t.Run("store failure degrades to a call", func(t *testing.T) {
		s := &memStore{data: map[string]adapter.Completion{}, getErr: errors.New("redis down")}
		comp, err := NewCachedLLM(inner, s, nil).Complete(ctx, req)
		if err != nil || comp.Text == "" {
			t.Fatalf("got %+v %v", comp, err)
		}
	})
}

func TestOpenAIAdapter(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		if strings.Contains(string(b), "agotado") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id":"chatcmpl-1","object":"chat.completion","created":1700000000,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Tenemos la Laptop Pro 14."}}],
			"usage":{"prompt_tokens":42,"completion_tokens":7,"total_tokens":49}
		}`)
	}))
	defer srv.Close()

	o, err := NewOpenAIAdapter("sk-test", srv.URL, "gpt-4o-mini", false)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("completion", func(t *testing.T) {
		comp, err := o.Complete(context.Background(), adapter.CompletionRequest{Prompt: "¿Qué laptops tienes?", MaxTokens: 256})
		if err != nil {
			t.Fatal(err)
		}
		if comp.Text != "Tenemos la Laptop Pro 14." || comp.Provider != ProviderOpenAI {
			t.Fatalf("got %+v", comp)
		}
		if comp.Usage.PromptTokens != 42 || comp.Usage.TotalTokens != 49 {
			t.Fatalf("usage %+v", comp.Usage)
		}
		if gotBody["model"] != "gpt-4o-mini" {
			t.Fatalf("model not sent: %v", gotBody["model"])
		}
	})

	t.Run("zero temperature is sent", func(t *testing.T) {
		gotBody = nil
		if _, err := o.Complete(context.Background(), adapter.CompletionRequest{Prompt: "hola", Temperature: 0}); err != nil {
			t.Fatal(err)
		}
		temp, ok := gotBody["temperature"]
		if !ok || temp != float64(0) {
			t.Fatalf("temperature = %v (present %v)", temp, ok)
		}
	})

	t.Run("429 is quota", func(t *testing.T) {
		_, err := o.Complete(context.Background(), adapter.CompletionRequest{Prompt: "agotado"})
		if !errors.Is(err, domain.ErrLLMQuota) {
			t.Fatalf("want quota, got %v", err)
		}
	})

	t.Run("deadline is timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)
		_, err := o.Complete(ctx, adapter.CompletionRequest{Prompt: "hola"})
		if !errors.Is(err, domain.ErrLLMTimeout) {
			t.Fatalf("want timeout, got %v", err)
		}
	})

	if _, err := NewOpenAIAdapter("", "", "", false); err == nil {
		t.Fatal("empty key must be rejected")
	}
}

func TestUnavailableLLM(t *testing.T) {
	_, err := UnavailableLLM{}.Complete(context.Background(), adapter.CompletionRequest{Prompt: "hola"})
	if !errors.Is(err, domain.ErrLLMUnavailable) {
		t.Fatalf("got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		want   error
	}{
		{context.DeadlineExceeded, 0, domain.ErrLLMTimeout},
		{errors.New("boom"), 429, domain.ErrLLMQuota},
		{errors.New("Error 429, Status: RESOURCE_EXHAUSTED"), 0, domain.ErrLLMQuota},
		{errors.New("500 internal"), 500, domain.ErrLLMUnavailable},
	}
	for _, c := range cases {
		if got := classify("p", c.status, c.err); !errors.Is(got, c.want) {
			t.Errorf("classify(%v,%d) = %v, want %v", c.err, c.status, got, c.want)
		}
	}
	if classify("p", 0, nil) != nil {
		t.Fatal("nil must stay nil")
	}
}
