package resilience

import (
	"context"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/llm"
)

// LLM implements [llm.Provider] with ordered failover across backends.
type LLM struct {
	f *Failover[llm.Provider]
}

var _ llm.Provider = (*LLM)(nil)

// NewLLM returns an LLM that prefers primary.
func NewLLM(primaryName string, primary llm.Provider, cfg BreakerConfig) *LLM {
	return &LLM{f: NewFailover(primaryName, primary, cfg)}
}

// AddFallback registers another backend.
func (l *LLM) AddFallback(name string, p llm.Provider) {
	l.f.Add(name, p)
}

// Complete sends req to the first healthy backend.
func (l *LLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Call(ctx, l.f, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities reports the primary's capabilities.
func (l *LLM) Capabilities() llm.ModelCapabilities {
	return l.f.Primary().Capabilities()
}
