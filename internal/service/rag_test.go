package service

import (
	"alcyxob/coach-ai/internal/domain"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeMessageRepo struct {
	embedded []domain.ChatMessage
	err      error
}

func (f *fakeMessageRepo) Create(context.Context, *domain.ChatMessage) (primitive.ObjectID, error) {
	return primitive.NewObjectID(), nil
}

func (f *fakeMessageRepo) GetEmbeddedByFeature(ctx context.Context, _, _ string, _ int) ([]domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.embedded, f.err
}

func (f *fakeMessageRepo) BySession(context.Context, string) ([]domain.ChatMessage, error) {
	return nil, nil
}

func rating(v float64) *float64 { return &v }

func embeddedMsg(content string, vec []float32, r *float64) domain.ChatMessage {
	return domain.ChatMessage{
		Feature:   "chat_program",
		Role:      "assistant",
		Content:   content,
		Embedding: vec,
		Rating:    r,
	}
}

func TestRetrieveRanksBySimilarity(t *testing.T) {
	repo := &fakeMessageRepo{embedded: []domain.ChatMessage{
		embeddedMsg("orthogonal", []float32{0, 1, 0}, nil),
		embeddedMsg("identical", []float32{1, 0, 0}, nil),
		embeddedMsg("close", []float32{0.9, 0.1, 0}, nil),
	}}
	rag := NewRagService(&fakeEmbedder{vec: []float32{1, 0, 0}}, repo, time.Second)

	got := rag.Retrieve(context.Background(), "query", "chat_program", "", 2)

	require.Len(t, got, 2)
	assert.Equal(t, "identical", got[0].Content)
	assert.Equal(t, "close", got[1].Content)
}

func TestRetrieveFiltersLowRatedKeepsUnrated(t *testing.T) {
	repo := &fakeMessageRepo{embedded: []domain.ChatMessage{
		embeddedMsg("bad answer", []float32{1, 0, 0}, rating(1.0)),
		embeddedMsg("good answer", []float32{1, 0, 0}, rating(4.5)),
		embeddedMsg("unrated answer", []float32{1, 0, 0}, nil),
	}}
	rag := NewRagService(&fakeEmbedder{vec: []float32{1, 0, 0}}, repo, time.Second)

	got := rag.Retrieve(context.Background(), "query", "chat_program", "", 10)

	require.Len(t, got, 2)
	for _, c := range got {
		assert.NotEqual(t, "bad answer", c.Content)
	}
}

func TestRetrieveEmbedderFailureYieldsEmpty(t *testing.T) {
	rag := NewRagService(&fakeEmbedder{err: errors.New("provider down")}, &fakeMessageRepo{}, time.Second)

	got := rag.Retrieve(context.Background(), "query", "chat_program", "", 3)

	assert.Empty(t, got)
}

func TestRetrieveTimeoutYieldsEmpty(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}, delay: 500 * time.Millisecond}
	rag := NewRagService(embedder, &fakeMessageRepo{}, 20*time.Millisecond)

	start := time.Now()
	got := rag.Retrieve(context.Background(), "query", "chat_program", "", 3)

	assert.Empty(t, got)
	assert.Less(t, time.Since(start), 200*time.Millisecond, "retrieval must respect the hard timeout")
}

func TestRetrieveRepositoryFailureYieldsEmpty(t *testing.T) {
	repo := &fakeMessageRepo{err: errors.New("mongo down")}
	rag := NewRagService(&fakeEmbedder{vec: []float32{1, 0, 0}}, repo, time.Second)

	got := rag.Retrieve(context.Background(), "query", "chat_program", "", 3)

	assert.Empty(t, got)
}

func TestFormatBlockEmptyInput(t *testing.T) {
	rag := NewRagService(&fakeEmbedder{}, &fakeMessageRepo{}, time.Second)
	assert.Empty(t, rag.FormatBlock(nil))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}), "mismatched dimensions")
	assert.Zero(t, cosineSimilarity(nil, nil))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{0, 0}))
}
