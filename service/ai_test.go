package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/effectmoe/contract-system/config"
	"github.com/effectmoe/contract-system/model"
)

func completionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req completionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "legal-model", req.Model)
		assert.NotEmpty(t, req.Messages)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestAIClient(url string) *AIClient {
	return NewAIClient(&config.AIConfig{
		BaseURL: url + "/v1",
		APIKey:  "sk-test",
		Model:   "legal-model",
		Timeout: 5 * time.Second,
	})
}

func TestAIClientAnalyzeContract(t *testing.T) {
	content := "```json\n" + `{"summary":"業務委託契約","keyTerms":["報酬","納期"],` +
		`"risks":[{"level":"HIGH","description":"損害賠償の上限なし"},{"level":"unknown","description":"曖昧な検収条件"}],` +
		`"recommendations":["上限額を定める"]}` + "\n```"
	server := completionServer(t, http.StatusOK, content)

	got, err := newTestAIClient(server.URL).AnalyzeContract(context.Background(), &model.Contract{Title: "業務委託", Content: "本文"})
	require.NoError(t, err)
	assert.Equal(t, "業務委託契約", got.Summary)
	assert.Equal(t, []string{"報酬", "納期"}, got.KeyTerms)
	require.Len(t, got.Risks, 2)
	assert.Equal(t, model.SeverityHigh, got.Risks[0].Level)
	assert.Equal(t, model.SeverityMedium, got.Risks[1].Level)
}

func TestAIClientErrorStatus(t *testing.T) {
	server := completionServer(t, http.StatusServiceUnavailable, "")

	_, err := newTestAIClient(server.URL).AnalyzeContract(context.Background(), &model.Contract{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestAIClientChat(t *testing.T) {
	server := completionServer(t, http.StatusOK, `{"response":"解除は30日前の通知で可能です。","references":["民法第651条"],"confidence":1.4}`)

	got, err := newTestAIClient(server.URL).Chat(context.Background(), ChatQuery{
		Message: "解除できますか？",
		History: []ChatMessage{{Role: "user", Content: "前の質問"}, {Role: "system", Content: "ignored"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "解除は30日前の通知で可能です。", got.Response)
	assert.Equal(t, []string{"民法第651条"}, got.References)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestAIClientChatPlainText(t *testing.T) {
	server := completionServer(t, http.StatusOK, "  契約書をご確認ください。 ")

	got, err := newTestAIClient(server.URL).Chat(context.Background(), ChatQuery{Message: "質問"})
	require.NoError(t, err)
	assert.Equal(t, "契約書をご確認ください。", got.Response)
	assert.Equal(t, 0.5, got.Confidence)
}
