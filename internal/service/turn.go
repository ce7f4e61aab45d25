package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/store"
	"go.uber.org/zap"
)

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrMessageEmpty  = errors.New("message is required")
)

const (
	generateTimeout    = 60 * time.Second
	imageSearchTimeout = 10 * time.Second

	// maxSuggestedImages caps the image suggestion regardless of what the
	// generator asks for.
	maxSuggestedImages = 5

	exactResponseConfidence = 100
)

// TurnService is the per-turn decision pipeline: condition detection, rule
// matching, action execution, knowledge retrieval, confidence-gated response
// selection, and the decision trace.
type TurnService struct {
	agents    domain.AgentStore
	rules     domain.RuleStore
	traces    domain.TraceStore
	detector  *ConditionDetector
	matcher   *RuleMatcher
	knowledge *KnowledgeService
	generator domain.Generator
	images    domain.ImageSearcher
	logger    *zap.Logger
}

func NewTurnService(
	agents domain.AgentStore,
	rules domain.RuleStore,
	traces domain.TraceStore,
	detector *ConditionDetector,
	matcher *RuleMatcher,
	knowledge *KnowledgeService,
	generator domain.Generator,
	images domain.ImageSearcher,
	logger *zap.Logger,
) *TurnService {
	return &TurnService{
		agents:    agents,
		rules:     rules,
		traces:    traces,
		detector:  detector,
		matcher:   matcher,
		knowledge: knowledge,
		generator: generator,
		images:    images,
		logger:    logger,
	}
}

// ProcessTurn runs the full decision pipeline for one incoming message and
// records the outcome in a decision trace.
func (s *TurnService) ProcessTurn(ctx context.Context, agentID, sessionID uuid.UUID, message string) (*domain.TurnResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrMessageEmpty
	}

	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}

	tc, detections := s.detector.Detect(ctx, agentID, sessionID, message)

	ruleSet, err := s.rules.ListActiveByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	matched := s.matcher.Match(ctx, ruleSet, message, tc)
	constraint := BuildConstraint(matched)

	trace := &domain.DecisionTrace{
		AgentID:    agentID,
		SessionID:  sessionID,
		Message:    message,
		Detections: detections,
	}
	if matched != nil {
		trace.MatchedRuleID = &matched.ID
	}

	// A say-exact-message action short-circuits the whole pipeline: no
	// retrieval, no generation, no confidence gate.
	if constraint.ExactResponse != "" {
		trace.Response = constraint.ExactResponse
		trace.Confidence = exactResponseConfidence
		if err := s.traces.Create(ctx, trace); err != nil {
			return nil, fmt.Errorf("write trace: %w", err)
		}
		return s.result(trace), nil
	}

	results, err := s.knowledge.Query(ctx, agent, message, constraint.SourceFilter)
	if err != nil {
		return nil, s.abortTurn(ctx, trace, err)
	}
	for _, r := range results {
		trace.KBUsed = append(trace.KBUsed, r.Chunk.ID)
	}

	// Web grounding only when the knowledge base came up empty, nothing
	// forces knowledge-base-only answers, and no rule matched. A matched
	// rule supplies the authoritative framing and always suppresses search.
	webSearch := len(results) == 0 && !constraint.ForceKB && matched == nil

	history, err := s.traces.ListRecent(ctx, agentID, sessionID, agent.Settings.HistoryWindow)
	if err != nil {
		s.logger.Warn("history load failed", zap.Error(err))
		history = nil
	}

	prompt := buildGenerationPrompt(agent.Persona, constraint, results, history, message, webSearch)

	gctx, cancel := context.WithTimeout(ctx, generateTimeout)
	reply, err := s.generator.GenerateGrounded(gctx, prompt, webSearch)
	cancel()
	if err != nil {
		return nil, s.abortTurn(ctx, trace, &domain.UpstreamError{Collaborator: "generation", Fatal: true, Err: err})
	}

	assessment, status := parseAssessment(reply.Text)
	response := applyConfidenceGate(assessment)

	trace.LLMUsed = true
	trace.Confidence = assessment.Confidence
	trace.WebSearchUsed = webSearch && reply.GroundingUsed
	trace.Sources = reply.Sources
	if webSearch && len(reply.Sources) == 0 {
		response = stripCitations(response)
	}
	trace.Response = response
	trace.Images = s.suggestImages(ctx, assessment, status)

	if err := s.traces.Create(ctx, trace); err != nil {
		return nil, fmt.Errorf("write trace: %w", err)
	}
	return s.result(trace), nil
}

// suggestImages runs the image search when the assessment asks for it.
// Failures degrade to no images and never affect the textual response.
func (s *TurnService) suggestImages(ctx context.Context, a domain.Assessment, status assessmentStatus) []domain.ImageResult {
	if status != assessmentParsed || s.images == nil {
		return nil
	}
	if !a.ImagesNeeded || a.ImageCount <= 0 || a.ImageSearchQuery == "" {
		return nil
	}

	count := a.ImageCount
	if count > maxSuggestedImages {
		count = maxSuggestedImages
	}

	ictx, cancel := context.WithTimeout(ctx, imageSearchTimeout)
	defer cancel()

	images, err := s.images.SearchImages(ictx, a.ImageSearchQuery, count)
	if err != nil {
		s.logger.Warn("image search degraded", zap.Error(err))
		return nil
	}
	return images
}

// abortTurn writes an auditable error trace before surfacing a fatal
// upstream failure.
func (s *TurnService) abortTurn(ctx context.Context, trace *domain.DecisionTrace, cause error) error {
	trace.LLMUsed = false
	trace.Confidence = domain.ConfidenceUnparsed
	trace.Error = cause.Error()
	if err := s.traces.Create(ctx, trace); err != nil {
		s.logger.Error("error trace write failed", zap.Error(err))
	}
	return cause
}

// History returns the most recent traces for a session in chronological
// order.
func (s *TurnService) History(ctx context.Context, agentID, sessionID uuid.UUID, limit int) ([]domain.DecisionTrace, error) {
	if _, err := s.agents.GetByID(ctx, agentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}
	return s.traces.ListRecent(ctx, agentID, sessionID, limit)
}

func (s *TurnService) result(t *domain.DecisionTrace) *domain.TurnResult {
	kbUsed := t.KBUsed
	if kbUsed == nil {
		kbUsed = []uuid.UUID{}
	}
	return &domain.TurnResult{
		Response:      t.Response,
		Confidence:    t.Confidence,
		RuleMatched:   t.MatchedRuleID,
		KBUsed:        kbUsed,
		LLMUsed:       t.LLMUsed,
		WebSearchUsed: t.WebSearchUsed,
		Sources:       t.Sources,
		Images:        t.Images,
		TraceID:       t.ID,
	}
}
