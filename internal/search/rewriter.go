package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/lang"
)

// QueryRewriter turns a raw query into a retrieval-ready RewrittenQuery.
//
// Single questions are expanded with domain synonyms. Multi-question
// queries are merged into one query by the fusion service. Either way the
// result is stemmed again for the lexical stream. The rewriter never fails:
// any error degrades to the original query.
type QueryRewriter struct {
	splitter *MultiQuestionSplitter
	expander *QueryExpander
	fusion   QueryFusionService
	logger   *slog.Logger
}

// RewriterOption configures a QueryRewriter.
type RewriterOption func(*QueryRewriter)

// WithFusionService sets the service used for multi-question queries.
func WithFusionService(f QueryFusionService) RewriterOption {
	return func(r *QueryRewriter) {
		r.fusion = f
	}
}

// WithExpander replaces the default query expander.
func WithExpander(e *QueryExpander) RewriterOption {
	return func(r *QueryRewriter) {
		if e != nil {
			r.expander = e
		}
	}
}

// WithRewriterLogger sets the logger used to report fallbacks.
func WithRewriterLogger(l *slog.Logger) RewriterOption {
	return func(r *QueryRewriter) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewQueryRewriter creates a rewriter. Without a fusion service every
// multi-question query takes the fallback path.
func NewQueryRewriter(opts ...RewriterOption) *QueryRewriter {
	r := &QueryRewriter{
		splitter: NewMultiQuestionSplitter(),
		expander: NewQueryExpander(),
		logger:   slog.Default().With("component", "rewriter"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite normalizes query. It always returns a usable result.
func (r *QueryRewriter) Rewrite(ctx context.Context, query string) *RewrittenQuery {
	rq, err := r.rewrite(ctx, query)
	if err != nil {
		r.logger.Warn("rewrite_fallback", append([]any{"query", query}, errors.FormatForLog(err)...)...)
		return Fallback(query)
	}
	return rq
}

// Fallback is the RewrittenQuery used when rewriting fails.
func Fallback(query string) *RewrittenQuery {
	return &RewrittenQuery{
		Original:        query,
		Refined:         query,
		Stemmed:         query,
		Questions:       []string{query},
		IsMultiQuestion: false,
		Language:        lang.Default,
	}
}

func (r *QueryRewriter) rewrite(ctx context.Context, query string) (rq *RewrittenQuery, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.InternalError(fmt.Sprintf("rewrite panicked: %v", p), nil)
		}
	}()

	questions := r.splitter.Split(query)
	isMulti := len(questions) > 1

	original, language := lang.StemQuery(query)

	var refined string
	if isMulti {
		refined, err = r.fuse(ctx, questions, language)
		if err != nil {
			return nil, err
		}
	} else {
		refined = r.expander.Expand(query, language)
	}
	refined = strings.TrimSpace(refined)
	if refined == "" {
		return nil, errors.InternalError("rewrite produced an empty query", nil)
	}

	stemmed := lang.Stem(refined, language).Joined()
	if stemmed == "" {
		stemmed = refined
	}

	return &RewrittenQuery{
		Original:        query,
		Refined:         refined,
		Stemmed:         stemmed,
		Questions:       questions,
		IsMultiQuestion: isMulti,
		Language:        language,
		Terms:           original.Terms,
		StemmedTerms:    original.StemmedTerms,
	}, nil
}

func (r *QueryRewriter) fuse(ctx context.Context, questions []string, language lang.Code) (string, error) {
	if r.fusion == nil {
		return "", errors.New(errors.ErrCodeFusionNotConfigured, "no query fusion service configured", nil)
	}

	refined, err := r.fusion.Rewrite(ctx, questions, language)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return "", err
		}
		return "", errors.ExternalServiceError("query fusion failed", err)
	}
	if strings.TrimSpace(refined) == "" {
		return "", errors.ExternalServiceError("query fusion returned no text", nil)
	}
	return refined, nil
}
