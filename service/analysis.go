package service

import (
	"context"
	"time"

	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/pkg/apperr"
	"github.com/effectmoe/contract-system/pkg/logger"
	"github.com/effectmoe/contract-system/pkg/metrics"
)

// ChatFallbackResponse is returned to users when the chat service fails.
const ChatFallbackResponse = "申し訳ございません。現在 AI サービスに接続できません。しばらくしてから再度お試しいただくか、専門家にご相談ください。"

// AnalysisService runs contract analysis and legal chat against the
// external AI service.
type AnalysisService struct {
	repo    *ContractRepository
	ai      Analyzer
	audit   *AuditAppender
	model   string
	timeout time.Duration
	now     func() time.Time
}

// NewAnalysisService creates the AI analysis and legal chat service.
func NewAnalysisService(repo *ContractRepository, ai Analyzer, audit *AuditAppender, modelName string, timeout time.Duration) *AnalysisService {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AnalysisService{
		repo:    repo,
		ai:      ai,
		audit:   audit,
		model:   modelName,
		timeout: timeout,
		now:     time.Now,
	}
}

// Analyze sends the contract to the AI service, merges the result onto the
// stored contract and records an ai_analyzed audit entry.
func (s *AnalysisService) Analyze(ctx context.Context, contractID, actor string) (*model.AIAnalysis, error) {
	c, err := s.repo.Get(ctx, contractID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	start := time.Now()
	result, err := s.ai.AnalyzeContract(callCtx, c)
	cancel()
	metrics.ObserveUpstream(apperr.ServiceAI, start, err)
	if err != nil {
		logger.Error(ctx, "contract analysis failed", "contract_id", contractID, "error", err)
		return nil, apperr.Upstream(apperr.ServiceAI, err)
	}
	result.AnalyzedAt = s.now()

	// The analysis is paid for; keep it even if the caller went away.
	persistCtx := context.WithoutCancel(ctx)
	keyTerms := append([]string{}, result.KeyTerms...)
	// Only the write is serialised; the AI call runs unlocked.
	unlock := s.repo.Lock(contractID)
	updated, err := s.repo.Update(persistCtx, contractID, ContractPatch{
		AIAnalysis: result,
		AITags:     &keyTerms,
	})
	unlock()
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NotFound("")
	}

	s.audit.Append(persistCtx, contractID, model.AIAnalyzed{RisksFound: len(result.Risks), Model: s.model}, actor)
	logger.Info(ctx, "contract analyzed", "contract_id", contractID, "risks", len(result.Risks))
	return result, nil
}

// ChatRequest is a legal chat question.
type ChatRequest struct {
	ContractID       string
	Message          string
	History          []ChatMessage
	ContractSpecific bool
}

// Chat answers a legal question. On AI failure it returns the fallback
// answer together with an upstream error.
func (s *AnalysisService) Chat(ctx context.Context, req ChatRequest) (*ChatAnswer, error) {
	query := ChatQuery{Message: req.Message, History: req.History}
	if req.ContractID != "" {
		c, err := s.repo.Get(ctx, req.ContractID)
		if err != nil {
			return nil, err
		}
		if req.ContractSpecific {
			query.Contract = c
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	answer, err := s.ai.Chat(callCtx, query)
	metrics.ObserveUpstream(apperr.ServiceAI, start, err)
	if err != nil {
		logger.Error(ctx, "legal chat failed", "contract_id", req.ContractID, "error", err)
		return &ChatAnswer{Response: ChatFallbackResponse, References: []string{}, Confidence: 0}, apperr.Upstream(apperr.ServiceAI, err)
	}
	return answer, nil
}
