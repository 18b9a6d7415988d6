package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/roasbeef/smaart/internal/query"
)

// SummarizeTopicArgs are the arguments for the summarize_topic tool.
type SummarizeTopicArgs struct {
	// Query is the topic to summarize, or a passage of text to
	// summarize directly.
	Query string `json:"query" jsonschema:"Topic to summarize or raw text to summarize directly"`

	// Hours is the trailing content window.
	Hours int `json:"hours,omitempty" jsonschema:"Trailing content window in hours,default=24"`

	// Sources restricts which content sources may be consulted.
	Sources []string `json:"sources,omitempty" jsonschema:"Allowed content sources: twitter, duckduckgo, wikipedia"`

	// MaxLength is the requested maximum summary length in words.
	MaxLength int `json:"max_length,omitempty" jsonschema:"Maximum summary length in words,default=150"`
}

// SummarizeTopicResult is the result of the summarize_topic tool.
type SummarizeTopicResult struct {
	Query            string         `json:"query"`
	Summary          string         `json:"summary"`
	Sources          map[string]int `json:"sources"`
	Entities         []string       `json:"entities,omitempty"`
	Confidence       float64        `json:"confidence"`
	GeneratedAt      string         `json:"generated_at"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	FromCache        bool           `json:"from_cache"`
}

func (s *Server) handleSummarizeTopic(ctx context.Context,
	req *mcp.CallToolRequest, args SummarizeTopicArgs) (
	*mcp.CallToolResult, SummarizeTopicResult, error) {

	var opts []query.Option
	if args.Hours != 0 {
		opts = append(opts, query.WithHours(args.Hours))
	}
	if args.MaxLength != 0 {
		opts = append(opts, query.WithMaxLength(args.MaxLength))
	}
	if len(args.Sources) > 0 {
		opts = append(opts, query.WithSources(args.Sources))
	}

	q, err := query.New(args.Query, opts...)
	if err != nil {
		return nil, SummarizeTopicResult{}, err
	}

	rec, err := s.orch.Resolve(ctx, q)
	if err != nil {
		return nil, SummarizeTopicResult{}, err
	}

	return nil, SummarizeTopicResult{
		Query:            rec.Query,
		Summary:          rec.Summary,
		Sources:          rec.Sources,
		Entities:         rec.Entities,
		Confidence:       rec.Confidence,
		GeneratedAt:      rec.GeneratedAt.Format(time.RFC3339),
		ProcessingTimeMS: rec.ProcessingTimeMS,
		FromCache:        rec.FromCache,
	}, nil
}

// GetTrendingArgs are the arguments for the get_trending tool.
type GetTrendingArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of topics to return,default=10"`
	Hours int `json:"hours,omitempty" jsonschema:"Trailing window in hours,default=24"`
}

// GetTrendingResult is the result of the get_trending tool.
type GetTrendingResult struct {
	Topics []TrendingTopicResult `json:"topics"`
}

// TrendingTopicResult is one trending topic.
type TrendingTopicResult struct {
	Topic     string   `json:"topic"`
	Count     int      `json:"count"`
	Sentiment float64  `json:"sentiment"`
	Sources   []string `json:"sources"`
}

func (s *Server) handleGetTrending(ctx context.Context,
	req *mcp.CallToolRequest, args GetTrendingArgs) (
	*mcp.CallToolResult, GetTrendingResult, error) {

	if s.trender == nil {
		return nil, GetTrendingResult{},
			errors.New("trending storage is not configured")
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}
	hours := args.Hours
	if hours <= 0 {
		hours = query.DefaultHours
	}

	topics, err := s.trender.TopTopics(ctx, limit, hours)
	if err != nil {
		return nil, GetTrendingResult{}, err
	}

	result := GetTrendingResult{
		Topics: make([]TrendingTopicResult, 0, len(topics)),
	}
	for _, t := range topics {
		result.Topics = append(result.Topics, TrendingTopicResult{
			Topic:     t.Topic,
			Count:     t.Count,
			Sentiment: t.Sentiment,
			Sources:   t.Sources,
		})
	}

	return nil, result, nil
}
