package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProbeQuery is one expectation in a retrieval suite.
type ProbeQuery struct {
	Query       string `yaml:"query" json:"query"`
	Category    string `yaml:"category,omitempty" json:"category,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	ExpectPath  string `yaml:"expect_path,omitempty" json:"expect_path,omitempty"`
}

// ProbeSuite is a YAML-defined set of queries run against the store.
type ProbeSuite struct {
	Threshold float64      `yaml:"threshold" json:"threshold"`
	TopK      int          `yaml:"top_k" json:"top_k"`
	Queries   []ProbeQuery `yaml:"queries" json:"queries"`
}

// DefaultProbeSuite covers the main knowledge areas of the platform
// repository.
func DefaultProbeSuite() ProbeSuite {
	return ProbeSuite{
		Threshold: 0.70,
		TopK:      3,
		Queries: []ProbeQuery{
			{Query: "¿Cómo configurar Azure OpenAI en Dify?", Description: "Azure OpenAI configuration"},
			{Query: "Explica la arquitectura hub-spoke del proyecto", Category: "architecture", Description: "Hub-spoke architecture"},
			{Query: "¿Qué es el FinOps Optimizer y cómo funciona?", Category: "runbook", Description: "FinOps Optimizer functionality"},
			{Query: "Muestra código del componente DifyChatButton", Description: "DifyChatButton component code"},
			{Query: "¿Cómo se configura el drift detection?", Category: "documentation", Description: "Drift detection configuration"},
		},
	}
}

func LoadProbeSuite(path string) (ProbeSuite, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ProbeSuite{}, fmt.Errorf("read probe suite: %w", err)
	}
	var s ProbeSuite
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return ProbeSuite{}, fmt.Errorf("parse probe suite %s: %w", path, err)
	}
	if len(s.Queries) == 0 {
		return ProbeSuite{}, fmt.Errorf("probe suite %s has no queries", path)
	}
	for i, q := range s.Queries {
		if strings.TrimSpace(q.Query) == "" {
			return ProbeSuite{}, fmt.Errorf("probe suite %s: query %d is empty", path, i)
		}
	}
	return s, nil
}

type ProbeResult struct {
	ProbeQuery

	BestScore float64  `json:"best_score"`
	Returned  int      `json:"returned"`
	Hits      int      `json:"hits"`
	TopPaths  []string `json:"top_paths"`
	Found     bool     `json:"found"`
	Passed    bool     `json:"passed"`
	Error     string   `json:"error,omitempty"`
}

type ProbeReport struct {
	Threshold float64       `json:"threshold"`
	TopK      int           `json:"top_k"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Results   []ProbeResult `json:"results"`
}

// Probe runs each query without recording usage. A query passes when at
// least one result clears the threshold and, if ExpectPath is set, a
// clearing result comes from a path ending in it.
func (s *SearchService) Probe(ctx context.Context, suite ProbeSuite) (*ProbeReport, error) {
	norm := SearchRequest{Query: "probe", TopK: suite.TopK, Threshold: suite.Threshold}.normalized()
	rep := &ProbeReport{Threshold: norm.Threshold, TopK: norm.TopK}

	for _, q := range suite.Queries {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res := ProbeResult{ProbeQuery: q}
		all, err := s.lookup(ctx, SearchRequest{
			Query:    strings.TrimSpace(q.Query),
			TopK:     norm.TopK,
			Category: q.Category,
		})
		if err != nil {
			res.Error = err.Error()
			rep.Failed++
			rep.Results = append(rep.Results, res)
			continue
		}

		res.Returned = len(all)
		for _, r := range all {
			res.TopPaths = append(res.TopPaths, r.Chunk.FilePath)
			if r.Score > res.BestScore {
				res.BestScore = r.Score
			}
			if r.Score >= norm.Threshold {
				res.Hits++
				if q.ExpectPath != "" && strings.HasSuffix(r.Chunk.FilePath, q.ExpectPath) {
					res.Found = true
				}
			}
		}
		res.Passed = res.Hits > 0 && (q.ExpectPath == "" || res.Found)
		if res.Passed {
			rep.Passed++
		} else {
			rep.Failed++
		}
		rep.Results = append(rep.Results, res)
	}
	return rep, nil
}
