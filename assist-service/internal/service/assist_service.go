package service

import (
	"context"
	"errors"
	"time"

	"github.com/Hajira-org/hajira-chat/assist-service/internal/cache"
	"github.com/Hajira-org/hajira-chat/assist-service/internal/domain"
	"github.com/Hajira-org/hajira-chat/assist-service/internal/jobs"
	"github.com/Hajira-org/hajira-chat/assist-service/internal/llm"
	pkglog "github.com/Hajira-org/hajira-chat/pkg/log"
	"github.com/Hajira-org/hajira-chat/pkg/metrics"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"golang.org/x/sync/singleflight"
)

const (
	kindSuggest = "suggest"
	kindChat    = "chat"
)

type Models struct {
	Suggest string
	Assist  string
}

type assistServiceImpl struct {
	llm      llm.Completer
	jobs     jobs.Lister
	cache    cache.SummaryCache
	cacheTTL time.Duration
	models   Models
	sf       singleflight.Group
}

func NewAssistService(
	completer llm.Completer,
	lister jobs.Lister,
	summaryCache cache.SummaryCache,
	cacheTTL time.Duration,
	models Models,
) AssistService {
	if summaryCache == nil {
		summaryCache = cache.NoopSummaryCache{}
	}
	return &assistServiceImpl{
		llm:      completer,
		jobs:     lister,
		cache:    summaryCache,
		cacheTTL: cacheTTL,
		models:   models,
	}
}

func (s *assistServiceImpl) Suggest(ctx context.Context, req wire.SuggestRequest) (string, error) {
	return s.complete(ctx, kindSuggest, llm.Request{
		Model:       s.models.Suggest,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: suggestPrompt(req.Text, req.History)}},
		MaxTokens:   domain.SuggestMaxTokens,
		Temperature: domain.SuggestTemperature,
	})
}

func (s *assistServiceImpl) Chat(ctx context.Context, question string, history []domain.ChatTurn, authorization string) (string, error) {
	summary := s.JobSummary(ctx, authorization)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: assistSystemPrompt(summary)})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: wire.NormalizeRole(turn.Role), Content: turn.Text()})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	reply, err := s.complete(ctx, kindChat, llm.Request{
		Model:       s.models.Assist,
		Messages:    messages,
		MaxTokens:   domain.AssistMaxTokens,
		Temperature: domain.AssistTemperature,
	})
	if err != nil {
		return "", err
	}
	if reply == "" {
		return domain.NoReply, nil
	}
	return reply, nil
}

func (s *assistServiceImpl) complete(ctx context.Context, kind string, req llm.Request) (string, error) {
	start := time.Now()
	reply, err := s.llm.Complete(ctx, req)
	metrics.CompletionLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.CompletionRequests.WithLabelValues(kind, "error").Inc()
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str("kind", kind).Str("model", req.Model).Msg("completion failed")
		return "", err
	}
	metrics.CompletionRequests.WithLabelValues(kind, "ok").Inc()
	return reply, nil
}

func (s *assistServiceImpl) JobSummary(ctx context.Context, authorization string) string {
	key := s.cache.BuildKey(authorization)

	// Concurrent questions from the same caller share one lookup, which
	// outlives any one of them disconnecting. The jobs client bounds it.
	shared := context.WithoutCancel(ctx)
	result, _, _ := s.sf.Do(key, func() (interface{}, error) {
		return s.fetchSummary(shared, key, authorization), nil
	})
	summary, ok := result.(string)
	if !ok {
		return domain.NoJobsSummary
	}
	return summary
}

func (s *assistServiceImpl) fetchSummary(ctx context.Context, key, authorization string) string {
	l := pkglog.Ctx(ctx)

	cached, err := s.cache.Get(ctx, key)
	if err == nil {
		metrics.JobSummaryLookups.WithLabelValues("cache").Inc()
		return cached
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l.Warn().Err(err).Msg("cache get error")
	}

	list, err := s.jobs.Available(ctx, authorization)
	if err != nil {
		metrics.JobSummaryLookups.WithLabelValues("fallback").Inc()
		l.Warn().Err(err).Msg("could not fetch jobs")
		return domain.NoJobsSummary
	}
	metrics.JobSummaryLookups.WithLabelValues("api").Inc()

	summary := formatJobs(list)
	if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
		l.Warn().Err(err).Msg("cache set error")
	}
	return summary
}
