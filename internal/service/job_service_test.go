package service

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/repository"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeJobRepo mimics the Mongo job repository's transition and append rules
// in memory.
type fakeJobRepo struct {
	jobs      map[primitive.ObjectID]*domain.AiJob
	chunks    map[primitive.ObjectID][]domain.AiJobChunk
	appendErr error
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		jobs:   make(map[primitive.ObjectID]*domain.AiJob),
		chunks: make(map[primitive.ObjectID][]domain.AiJobChunk),
	}
}

func (f *fakeJobRepo) Create(_ context.Context, job *domain.AiJob) (primitive.ObjectID, error) {
	id := primitive.NewObjectID()
	job.ID = id
	f.jobs[id] = job
	return id, nil
}

func (f *fakeJobRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.AiJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobRepo) MarkRunning(_ context.Context, id primitive.ObjectID, status domain.JobStatus) error {
	job, ok := f.jobs[id]
	if !ok || job.Status != domain.JobStatusPending {
		return repository.ErrUpdateFailed
	}
	job.Status = status
	return nil
}

func (f *fakeJobRepo) AppendChunk(_ context.Context, jobID primitive.ObjectID, chunkType domain.ChunkType, data map[string]any) (int, error) {
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	job, ok := f.jobs[jobID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if job.Status.Terminal() {
		return 0, repository.ErrJobTerminal
	}
	index := job.ChunkCount
	job.ChunkCount++
	f.chunks[jobID] = append(f.chunks[jobID], domain.AiJobChunk{
		JobID: jobID, Index: index, Type: chunkType, Data: data, CreatedAt: time.Now(),
	})
	return index, nil
}

func (f *fakeJobRepo) ListChunks(_ context.Context, jobID primitive.ObjectID, afterIndex int) ([]domain.AiJobChunk, error) {
	var out []domain.AiJobChunk
	for _, c := range f.chunks[jobID] {
		if c.Index > afterIndex {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) Complete(_ context.Context, id primitive.ObjectID, result map[string]any) error {
	job, ok := f.jobs[id]
	if !ok || job.Status.Terminal() {
		return repository.ErrUpdateFailed
	}
	job.Status = domain.JobStatusCompleted
	job.Result = result
	return nil
}

func (f *fakeJobRepo) Fail(_ context.Context, id primitive.ObjectID, errMsg string) error {
	job, ok := f.jobs[id]
	if !ok || job.Status.Terminal() {
		return repository.ErrUpdateFailed
	}
	job.Status = domain.JobStatusFailed
	job.Error = errMsg
	return nil
}

func pendingJob(repo *fakeJobRepo, userID string) *domain.AiJob {
	job := &domain.AiJob{
		Type:      domain.JobTypeChatProgram,
		Status:    domain.JobStatusPending,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	repo.Create(context.Background(), job)
	return job
}

func TestChunkEmitterIndexesAreGapless(t *testing.T) {
	repo := newFakeJobRepo()
	job := pendingJob(repo, "user-1")
	require.NoError(t, repo.MarkRunning(context.Background(), job.ID, domain.JobStatusStreaming))

	emitter := NewChunkEmitter(repo, job.ID)
	for i := 0; i < 5; i++ {
		require.NoError(t, emitter.Emit(context.Background(), domain.ChunkDelta, map[string]any{"text": "x"}))
	}
	require.NoError(t, emitter.Emit(context.Background(), domain.ChunkDone, nil))

	chunks, err := repo.ListChunks(context.Background(), job.ID, -1)
	require.NoError(t, err)
	require.Len(t, chunks, 6)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
	assert.Equal(t, domain.ChunkDone, chunks[5].Type)
}

func TestChunkEmitterStopsOnTerminalJob(t *testing.T) {
	repo := newFakeJobRepo()
	job := pendingJob(repo, "user-1")
	require.NoError(t, repo.MarkRunning(context.Background(), job.ID, domain.JobStatusStreaming))
	require.NoError(t, repo.Complete(context.Background(), job.ID, nil))

	emitter := NewChunkEmitter(repo, job.ID)
	err := emitter.Emit(context.Background(), domain.ChunkDelta, map[string]any{"text": "late"})

	assert.ErrorIs(t, err, repository.ErrJobTerminal)
	assert.Empty(t, repo.chunks[job.ID], "terminal jobs accept no further chunks")
}

func TestChunkEmitterSwallowsTransientErrors(t *testing.T) {
	repo := newFakeJobRepo()
	job := pendingJob(repo, "user-1")
	repo.appendErr = assert.AnError

	emitter := NewChunkEmitter(repo, job.ID)
	assert.NoError(t, emitter.Emit(context.Background(), domain.ChunkDelta, map[string]any{"text": "x"}),
		"a dropped chunk must not abort the producer")
}

func TestMarkRunningClaimsOnlyOnce(t *testing.T) {
	repo := newFakeJobRepo()
	job := pendingJob(repo, "user-1")

	require.NoError(t, repo.MarkRunning(context.Background(), job.ID, domain.JobStatusProcessing))
	assert.ErrorIs(t, repo.MarkRunning(context.Background(), job.ID, domain.JobStatusProcessing), repository.ErrUpdateFailed)
}

func TestGetJobEnforcesOwnership(t *testing.T) {
	repo := newFakeJobRepo()
	job := pendingJob(repo, "owner")
	svc := NewJobService(repo, nil)

	_, err := svc.GetJob(context.Background(), job.ID.Hex(), "owner")
	assert.NoError(t, err)

	_, err = svc.GetJob(context.Background(), job.ID.Hex(), "intruder")
	assert.ErrorIs(t, err, ErrJobAccessDenied)

	_, err = svc.GetJob(context.Background(), "not-a-hex-id", "owner")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestListChunksResumesAfterIndex(t *testing.T) {
	repo := newFakeJobRepo()
	job := pendingJob(repo, "owner")
	require.NoError(t, repo.MarkRunning(context.Background(), job.ID, domain.JobStatusStreaming))

	emitter := NewChunkEmitter(repo, job.ID)
	for i := 0; i < 4; i++ {
		require.NoError(t, emitter.Emit(context.Background(), domain.ChunkDelta, map[string]any{"n": i}))
	}

	svc := NewJobService(repo, nil)
	chunks, err := svc.ListChunks(context.Background(), job.ID.Hex(), "owner", 1)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 2, chunks[0].Index)
	assert.Equal(t, 3, chunks[1].Index)
}
