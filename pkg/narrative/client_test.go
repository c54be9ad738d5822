package narrative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fakeCompletionServer(t *testing.T, content string, capture *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestNewClient_RequiresConfig(t *testing.T) {
	_, err := NewClient(&Config{Model: "gpt-4o-mini"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewClient(&Config{BaseURL: "https://llm.example.com/v1"}, zap.NewNop())
	assert.Error(t, err)
}

func TestSummarizeUnitAudit(t *testing.T) {
	var captured openai.ChatCompletionRequest
	server := fakeCompletionServer(t, "  The Engineering Faculty meets the standard.  ", &captured)
	defer server.Close()

	client, err := NewClient(&Config{BaseURL: server.URL, Model: "gpt-4o-mini"}, zap.NewNop())
	require.NoError(t, err)

	summary, err := client.SummarizeUnitAudit(context.Background(), SummaryRequest{
		UnitName:        "Engineering Faculty",
		OverallScore:    3.42,
		Predicate:       "meets standard",
		InstrumentCount: 12,
		RejectedCount:   1,
	})
	require.NoError(t, err)

	assert.Equal(t, "The Engineering Faculty meets the standard.", summary)
	assert.Equal(t, "gpt-4o-mini", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, captured.Messages[0].Role)
	prompt := captured.Messages[1].Content
	assert.Contains(t, prompt, "Engineering Faculty")
	assert.Contains(t, prompt, "3.42")
	assert.Contains(t, prompt, "meets standard")
}

func TestSummarizeUnitAudit_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(&Config{BaseURL: server.URL, Model: "gpt-4o-mini"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.SummarizeUnitAudit(context.Background(), SummaryRequest{UnitName: "Engineering Faculty"})
	assert.Error(t, err)
}

func TestSummarizeUnitAudit_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{BaseURL: server.URL, Model: "gpt-4o-mini"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.SummarizeUnitAudit(context.Background(), SummaryRequest{UnitName: "Engineering Faculty"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no choices"))
}

func TestPlaceholderSummary(t *testing.T) {
	text := PlaceholderSummary("Engineering Faculty")
	assert.Contains(t, text, "Engineering Faculty")
	assert.Contains(t, text, "could not be generated")
}
