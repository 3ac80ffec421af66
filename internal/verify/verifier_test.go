package verify

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackzampolin/paperflow/internal/providers"
)

func newVerifier(llm providers.LLMClient) *Verifier {
	return &Verifier{
		LLM:    llm,
		Model:  "test-model",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestIsMeaningful(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"meaningful text", `{"is_garbage": false}`, true},
		{"garbage text", `{"is_garbage": true}`, false},
		{"missing field defaults to meaningful", `{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &providers.MockLLM{ResponseText: tt.response}
			got, err := newVerifier(mock).IsMeaningful(context.Background(), "Invoice #123 from Acme Corp")
			if err != nil {
				t.Fatalf("IsMeaningful: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsMeaningful = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsMeaningfulEmptyTextSkipsLLM(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t  \n"} {
		mock := providers.NewMockLLM()
		got, err := newVerifier(mock).IsMeaningful(context.Background(), text)
		if err != nil {
			t.Fatalf("IsMeaningful(%q): %v", text, err)
		}
		if got {
			t.Errorf("IsMeaningful(%q) = true, want false", text)
		}
		if mock.Calls() != 0 {
			t.Errorf("empty text must not reach the LLM, got %d calls", mock.Calls())
		}
	}
}

func TestIsMeaningfulUnparseableVerdictRejects(t *testing.T) {
	// The mock surfaces unparseable structured output as an error, same as
	// the real client; the verifier must treat it as rejection.
	mock := &providers.MockLLM{ResponseText: "I think this looks fine"}
	got, err := newVerifier(mock).IsMeaningful(context.Background(), "some text")
	if err == nil && got {
		t.Error("unparseable verdict must not pass verification")
	}
}

func TestIsMeaningfulTransportError(t *testing.T) {
	mock := &providers.MockLLM{ShouldFail: true}
	got, err := newVerifier(mock).IsMeaningful(context.Background(), "some text")
	if err == nil {
		t.Fatal("expected transport error to propagate")
	}
	if got {
		t.Error("errored verification must reject")
	}
}

func TestIsMeaningfulTruncatesExcerpt(t *testing.T) {
	var gotLen int
	mock := &providers.MockLLM{
		ResponseFunc: func(req *providers.ChatRequest) string {
			gotLen = len(req.Messages[len(req.Messages)-1].Content)
			return `{"is_garbage": false}`
		},
	}

	long := strings.Repeat("a", maxExcerptChars*3)
	if _, err := newVerifier(mock).IsMeaningful(context.Background(), long); err != nil {
		t.Fatalf("IsMeaningful: %v", err)
	}
	if gotLen != maxExcerptChars {
		t.Errorf("excerpt length = %d, want %d", gotLen, maxExcerptChars)
	}
}
