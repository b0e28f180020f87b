package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/llm"
	llmmock "github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/llm/mock"
)

func TestLLM_PrimarySuccess(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "primary"}}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "secondary"}}

	l := NewLLM("primary", primary, BreakerConfig{MaxFailures: 3})
	l.AddFallback("secondary", secondary)

	resp, err := l.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "primary" {
		t.Fatalf("content = %q, want primary", resp.Content)
	}
	if len(secondary.Calls()) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.Calls()))
	}
}

func TestLLM_Failover(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "secondary"}}

	l := NewLLM("primary", primary, BreakerConfig{MaxFailures: 1})
	l.AddFallback("secondary", secondary)

	for range 2 {
		resp, err := l.Complete(context.Background(), llm.CompletionRequest{})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if resp.Content != "secondary" {
			t.Fatalf("content = %q, want secondary", resp.Content)
		}
	}
	// The second call must skip the open primary.
	if n := len(primary.Calls()); n != 1 {
		t.Errorf("primary called %d times, want 1", n)
	}
}

func TestLLM_AllFail(t *testing.T) {
	t.Parallel()

	errLast := errors.New("secondary down")
	l := NewLLM("primary", &llmmock.Provider{CompleteErr: errors.New("primary down")}, BreakerConfig{})
	l.AddFallback("secondary", &llmmock.Provider{CompleteErr: errLast})

	_, err := l.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if !errors.Is(err, errLast) {
		t.Errorf("err = %v, want it to wrap the last backend error", err)
	}
}

func TestLLM_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	primary := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			cancel()
			return nil, ctx.Err()
		},
	}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "secondary"}}

	l := NewLLM("primary", primary, BreakerConfig{})
	l.AddFallback("secondary", secondary)

	if _, err := l.Complete(ctx, llm.CompletionRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(secondary.Calls()) != 0 {
		t.Error("secondary must not be tried after cancellation")
	}
}

func TestLLM_Capabilities(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 42}}
	l := NewLLM("primary", primary, BreakerConfig{})
	l.AddFallback("secondary", &llmmock.Provider{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 7}})

	if got := l.Capabilities().ContextWindow; got != 42 {
		t.Errorf("ContextWindow = %d, want 42", got)
	}
}
