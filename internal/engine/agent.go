package engine

import (
	"context"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/forensicflow/forensicflow/internal/engine/telemetry"
	"github.com/forensicflow/forensicflow/internal/evidence"
)

var tracer = otel.Tracer("forensicflow/engine")

// Engine runs investigator queries over evidence snapshots. It is safe for
// concurrent use; per-session state lives in the Conversation the caller
// passes in.
type Engine struct {
	provider ReasoningProvider
	cache    Cache
	logger   *log.Logger
	opts     Options
}

// New builds an engine. provider may be nil, in which case every query
// takes the keyword fallback path. cache may be nil to disable caching.
func New(provider ReasoningProvider, cache Cache, logger *log.Logger, opts Options) *Engine {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{provider: provider, cache: cache, logger: logger, opts: opts.Normalize()}
}

// Options returns the engine's normalized options.
func (e *Engine) Options() Options { return e.opts }

// ProcessQuery answers one investigator query. It never returns an error:
// every failure degrades to the keyword fallback, and the result's Mode
// records which path produced the answer.
func (e *Engine) ProcessQuery(ctx context.Context, caseID, query string, items []evidence.Item, conv *Conversation) QueryResult {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "engine.ProcessQuery")
	span.SetAttributes(
		attribute.String("case_id", caseID),
		attribute.Int("evidence_count", len(items)),
	)
	defer span.End()

	result := e.process(ctx, caseID, query, items, conv)

	if conv != nil {
		conv.AddExchange(query, result.Summary, map[string]interface{}{
			"mode":       result.Mode,
			"confidence": result.Confidence,
		})
		if conv.ShouldOfferProactiveSummary() {
			result.Summary += "\n\n> " + conv.ProactiveSummarySuggestion()
		}
	}

	span.SetAttributes(attribute.String("mode", result.Mode))
	telemetry.QueriesTotal.WithLabelValues(result.Mode).Inc()
	telemetry.QueryDuration.Observe(time.Since(start).Seconds())
	e.logger.Printf("[ENGINE] query case=%s mode=%s confidence=%.2f elapsed=%s", caseID, result.Mode, result.Confidence, time.Since(start))
	return result
}

func (e *Engine) process(ctx context.Context, caseID, query string, items []evidence.Item, conv *Conversation) QueryResult {
	key := QueryCacheKey(caseID, query, items)
	if cached, found, err := e.cache.Get(ctx, key); err == nil && found {
		telemetry.CacheHits.Inc()
		cached.Mode = ModeCached
		return cached
	} else if err != nil {
		e.logger.Printf("[ENGINE] cache get failed: %v", err)
	}

	if IsAmbiguous(query, len(items)) {
		return QueryResult{
			Summary:    ClarificationMessage(query, len(items)),
			Confidence: 0.5,
			Mode:       ModeClarification,
		}
	}

	var result QueryResult
	if e.provider == nil {
		result = e.fallbackResult(query, items)
	} else {
		result = e.agentLoop(ctx, caseID, query, items, conv)
	}
	result.Suggestions = SuggestFollowups(items)

	if err := e.cache.Set(ctx, key, result, queryCacheTTL); err != nil {
		e.logger.Printf("[ENGINE] cache set failed: %v", err)
	}
	return result
}

// fallbackResult is the provider-free path: keyword relevance summary plus
// a visualization picked from query phrasing.
func (e *Engine) fallbackResult(query string, items []evidence.Item) QueryResult {
	summary, confidence := FallbackQuery(query, items)
	return QueryResult{
		Summary:    summary,
		Confidence: confidence,
		Mode:       ModeFallback,
		Embedded:   ChooseVisualization(query, items, e.opts.MaxGraphItems),
	}
}

// agentLoop runs the provider-backed path: one reasoning call with the
// tool schemas, bounded tool execution, then either a synthesis call over
// the tool results or a direct answer. Any provider failure degrades to
// the fallback path.
func (e *Engine) agentLoop(ctx context.Context, caseID, query string, items []evidence.Item, conv *Conversation) QueryResult {
	queryCtx, cancel := context.WithTimeout(ctx, e.opts.QueryTimeout)
	defer cancel()

	prompt := buildQueryPrompt(caseID, query, items, conv)
	reply, err := e.provider.Generate(queryCtx, prompt, ToolSchemas())
	if err != nil {
		telemetry.ProviderErrors.Inc()
		e.logger.Printf("[ENGINE] provider query call failed: %v", err)
		return e.fallbackResult(query, items)
	}

	if len(reply.ToolCalls) == 0 {
		summary := strings.TrimSpace(reply.Text)
		if summary == "" {
			return e.fallbackResult(query, items)
		}
		return QueryResult{
			Summary:    summary,
			Confidence: ScoreConfidence(summary, items),
			Mode:       ModeDirect,
			Embedded:   ChooseVisualization(query, items, e.opts.MaxGraphItems),
		}
	}

	registry := NewRegistry(caseID, items, e.opts, e.logger)
	calls := reply.ToolCalls
	if len(calls) > e.opts.MaxToolIterations {
		calls = calls[:e.opts.MaxToolIterations]
	}
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		res := registry.Execute(call.Name, call.Args)
		outcome := "success"
		if !res.Success {
			outcome = "error"
		}
		telemetry.ToolExecutions.WithLabelValues(call.Name, outcome).Inc()
		results = append(results, res)
	}

	synthCtx, cancelSynth := context.WithTimeout(ctx, e.opts.SynthesisTimeout)
	defer cancelSynth()
	synthesis, err := e.provider.Generate(synthCtx, buildSynthesisPrompt(query, results), nil)
	if err != nil || strings.TrimSpace(synthesis.Text) == "" {
		if err != nil {
			telemetry.ProviderErrors.Inc()
			e.logger.Printf("[ENGINE] synthesis call failed: %v", err)
		}
		fb := e.fallbackResult(query, items)
		fb.ToolResults = results
		if fb.Embedded == nil {
			fb.Embedded = embeddedFromToolResults(results)
		}
		return fb
	}

	return QueryResult{
		Summary:     strings.TrimSpace(synthesis.Text),
		Confidence:  0.9,
		Mode:        ModeSynthesized,
		Embedded:    embeddedFromToolResults(results),
		ToolResults: results,
	}
}

// embeddedFromToolResults promotes the first visualization-bearing tool
// result to the answer's embedded component.
func embeddedFromToolResults(results []ToolResult) *EmbeddedComponent {
	for _, res := range results {
		if !res.Success {
			continue
		}
		switch data := res.Data.(type) {
		case NetworkGraphData:
			if countOf(data.Nodes) > 0 {
				return &EmbeddedComponent{Type: ComponentNetwork, Data: data}
			}
		case TimelineData:
			if data.EventCount > 0 {
				return &EmbeddedComponent{Type: ComponentTimeline, Data: data}
			}
		}
	}
	return nil
}
