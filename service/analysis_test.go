package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/pkg/apperr"
)

type fakeAnalyzer struct {
	analysis *model.AIAnalysis
	answer   *ChatAnswer
	err      error
	calls    int
	lastChat ChatQuery
}

func (f *fakeAnalyzer) AnalyzeContract(_ context.Context, _ *model.Contract) (*model.AIAnalysis, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	a := *f.analysis
	return &a, nil
}

func (f *fakeAnalyzer) Chat(_ context.Context, q ChatQuery) (*ChatAnswer, error) {
	f.calls++
	f.lastChat = q
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func newAnalysisFixture(t *testing.T, ai Analyzer) (*AnalysisService, *ContractRepository) {
	t.Helper()
	repo, _ := newTestRepo(t, &model.Contract{ID: "c-1", Title: "業務委託契約", Content: "第1条 ...", Status: model.StatusDraft})
	svc := NewAnalysisService(repo, ai, NewAuditAppender(repo, time.Second), "legal-model", time.Second)
	return svc, repo
}

func TestAnalyzeMergesResultAndAudits(t *testing.T) {
	ai := &fakeAnalyzer{analysis: &model.AIAnalysis{
		Summary:  "概要",
		KeyTerms: []string{"報酬", "秘密保持"},
		Risks: []model.RiskItem{
			{Level: model.SeverityHigh, Description: "無制限の損害賠償"},
			{Level: model.SeverityLow, Description: "通知方法"},
			{Level: model.SeverityMedium, Description: "検収期間"},
		},
	}}
	svc, repo := newAnalysisFixture(t, ai)
	ctx := context.Background()

	got, err := svc.Analyze(ctx, "c-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "概要", got.Summary)
	assert.False(t, got.AnalyzedAt.IsZero())

	stored, err := repo.Get(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, stored.AIAnalysis)
	assert.Equal(t, "概要", stored.AIAnalysis.Summary)
	assert.Equal(t, []string{"報酬", "秘密保持"}, stored.AITags)

	require.Len(t, stored.AuditLog, 1)
	entry := stored.AuditLog[0]
	assert.Equal(t, model.ActionAIAnalyzed, entry.Action)
	assert.Equal(t, "alice", entry.PerformedBy)
	assert.Equal(t, 3, entry.Details["risksFound"])
}

func TestAnalyzeContractNotFound(t *testing.T) {
	ai := &fakeAnalyzer{analysis: &model.AIAnalysis{}}
	svc, _ := newAnalysisFixture(t, ai)

	_, err := svc.Analyze(context.Background(), "missing", "alice")
	assert.True(t, apperr.IsNotFound(err))
	assert.False(t, apperr.IsUpstream(err, apperr.ServiceAI))
	assert.Equal(t, 0, ai.calls, "AI service must not be called for unknown contracts")
}

func TestAnalyzeAIFailureIsUpstream(t *testing.T) {
	ai := &fakeAnalyzer{err: errors.New("503 overloaded")}
	svc, repo := newAnalysisFixture(t, ai)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, "c-1", "alice")
	assert.True(t, apperr.IsUpstream(err, apperr.ServiceAI))
	assert.False(t, apperr.IsNotFound(err))

	stored, err := repo.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, stored.AIAnalysis)
	assert.Empty(t, stored.AuditLog, "no audit entry without a committed mutation")
}

func TestAnalyzePersistsAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ai := &cancellingAnalyzer{cancel: cancel}
	repo, _ := newTestRepo(t, &model.Contract{ID: "c-1"})
	svc := NewAnalysisService(repo, ai, NewAuditAppender(repo, time.Second), "m", time.Second)

	_, err := svc.Analyze(ctx, "c-1", "alice")
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), "c-1")
	require.NoError(t, err)
	assert.NotNil(t, stored.AIAnalysis)
	assert.Len(t, stored.AuditLog, 1)
}

// cancellingAnalyzer cancels the caller's context after answering, as if the
// client disconnected while the analysis was in flight.
type cancellingAnalyzer struct{ cancel context.CancelFunc }

func (c *cancellingAnalyzer) AnalyzeContract(context.Context, *model.Contract) (*model.AIAnalysis, error) {
	c.cancel()
	return &model.AIAnalysis{Summary: "done", Risks: []model.RiskItem{}}, nil
}

func (c *cancellingAnalyzer) Chat(context.Context, ChatQuery) (*ChatAnswer, error) {
	return nil, errors.New("unused")
}

func TestChat(t *testing.T) {
	ai := &fakeAnalyzer{answer: &ChatAnswer{Response: "回答", References: []string{"民法"}, Confidence: 0.8}}
	svc, _ := newAnalysisFixture(t, ai)
	ctx := context.Background()

	got, err := svc.Chat(ctx, ChatRequest{ContractID: "c-1", Message: "質問", ContractSpecific: true})
	require.NoError(t, err)
	assert.Equal(t, "回答", got.Response)
	require.NotNil(t, ai.lastChat.Contract)
	assert.Equal(t, "c-1", ai.lastChat.Contract.ID)

	_, err = svc.Chat(ctx, ChatRequest{ContractID: "c-1", Message: "一般的な質問"})
	require.NoError(t, err)
	assert.Nil(t, ai.lastChat.Contract)

	_, err = svc.Chat(ctx, ChatRequest{ContractID: "missing", Message: "質問"})
	assert.True(t, apperr.IsNotFound(err))
}

func TestChatFallbackOnAIError(t *testing.T) {
	ai := &fakeAnalyzer{err: errors.New("timeout")}
	svc, _ := newAnalysisFixture(t, ai)

	got, err := svc.Chat(context.Background(), ChatRequest{Message: "質問"})
	assert.True(t, apperr.IsUpstream(err, apperr.ServiceAI))
	require.NotNil(t, got)
	assert.Equal(t, ChatFallbackResponse, got.Response)
}
