package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parleyhq/parley/internal/domain"
	"go.uber.org/zap"
)

const classifyTimeout = 5 * time.Second

// ConditionDetector turns a raw message plus session state into a structured
// turn context. Classifier failures never fail the turn; the documented
// defaults apply instead.
type ConditionDetector struct {
	classifier domain.Classifier
	traces     domain.TraceStore
	logger     *zap.Logger
}

func NewConditionDetector(classifier domain.Classifier, traces domain.TraceStore, logger *zap.Logger) *ConditionDetector {
	return &ConditionDetector{
		classifier: classifier,
		traces:     traces,
		logger:     logger,
	}
}

// Detect classifies the message and reports the condition signals observed.
func (d *ConditionDetector) Detect(ctx context.Context, agentID, sessionID uuid.UUID, message string) (domain.TurnContext, []domain.Detection) {
	tc := domain.TurnContext{
		Intent:    "unknown",
		Sentiment: "neutral",
		Keywords:  tokenize(message),
	}

	if d.classifier != nil {
		cctx, cancel := context.WithTimeout(ctx, classifyTimeout)
		defer cancel()

		if intent, err := d.classifier.ClassifyIntent(cctx, message); err != nil {
			d.logger.Warn("intent classification degraded", zap.Error(err))
		} else {
			tc.Intent = intent.Intent
			tc.IntentConfidence = intent.Confidence
		}

		if sentiment, err := d.classifier.ClassifySentiment(cctx, message); err != nil {
			d.logger.Warn("sentiment classification degraded", zap.Error(err))
		} else {
			tc.Sentiment = sentiment.Sentiment
			tc.SentimentScore = sentiment.Score
		}
	}

	count, err := d.traces.CountBySession(ctx, agentID, sessionID)
	if err != nil {
		d.logger.Warn("session turn count failed", zap.Error(err))
	}
	tc.IsConversationStart = err == nil && count == 0

	detections := []domain.Detection{
		{Kind: "intent", Value: tc.Intent, Score: tc.IntentConfidence},
		{Kind: "sentiment", Value: tc.Sentiment, Score: tc.SentimentScore},
	}
	if tc.IsConversationStart {
		detections = append(detections, domain.Detection{Kind: "conversation-start"})
	}
	return tc, detections
}

// tokenize is the cheap local keyword split used as a weak fallback signal.
func tokenize(message string) []string {
	fields := strings.Fields(strings.ToLower(message))
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]")
		if f != "" {
			keywords = append(keywords, f)
		}
	}
	return keywords
}
