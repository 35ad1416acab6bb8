package service

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/llm"
	"alcyxob/coach-ai/internal/repository"
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"
)

const (
	ragCandidatePool = 50
	ragRatingFloor   = 2.0
)

// RagService retrieves similarity-ranked prior assistant responses and
// formats them as a prompt-appendable block. Retrieval is a quality
// enhancement, never a blocking dependency: any failure or timeout yields an
// empty result.
type RagService interface {
	Retrieve(ctx context.Context, query, feature, excludeSession string, limit int) []domain.RagContext
	FormatBlock(contexts []domain.RagContext) string
}

type ragService struct {
	embedder llm.Embedder
	messages repository.MessageRepository
	timeout  time.Duration
}

// NewRagService creates a new retrieval-augmented context service.
func NewRagService(embedder llm.Embedder, messages repository.MessageRepository, timeout time.Duration) RagService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ragService{embedder: embedder, messages: messages, timeout: timeout}
}

// Retrieve embeds the query, ranks stored assistant turns for the feature by
// cosine similarity, filters low-rated matches (keeping unrated ones) and
// returns the top survivors.
func (r *ragService) Retrieve(ctx context.Context, query, feature, excludeSession string, limit int) []domain.RagContext {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("WARN: rag embedding failed, continuing without context: %v", err)
		return nil
	}

	candidates, err := r.messages.GetEmbeddedByFeature(ctx, feature, excludeSession, ragCandidatePool)
	if err != nil {
		log.Printf("WARN: rag candidate lookup failed, continuing without context: %v", err)
		return nil
	}

	var ranked []domain.RagContext
	for _, msg := range candidates {
		if msg.Rating != nil && *msg.Rating < ragRatingFloor {
			continue
		}
		ranked = append(ranked, domain.RagContext{
			Content:    msg.Content,
			Feature:    msg.Feature,
			Similarity: cosineSimilarity(queryVec, msg.Embedding),
			Rating:     msg.Rating,
		})
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Similarity > ranked[b].Similarity
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// FormatBlock renders retrieved contexts for prompt injection. Empty input
// yields an empty string so prompts stay clean without retrieval.
func (r *ragService) FormatBlock(contexts []domain.RagContext) string {
	if len(contexts) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Relevant prior scenarios:\n")
	for i, c := range contexts {
		fmt.Fprintf(&sb, "%d. (similarity %.2f) %s\n", i+1, c.Similarity, c.Content)
	}
	return sb.String()
}

// cosineSimilarity returns 0 for mismatched or zero vectors, which sorts
// them to the bottom rather than erroring.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
