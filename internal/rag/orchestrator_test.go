package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docsearchd/internal/vectorstore"
)

const testCollection = "document_chunks"

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = embedText(text)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func embedText(text string) []float32 {
	v := make([]float32, 8)
	for i, r := range text {
		v[i%8] += float32(r%13) + 1
	}
	return v
}

type call struct{ system, user string }

type fakeCompleter struct {
	expandReply string
	answerReply string
	err         error
	calls       []call
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.calls = append(f.calls, call{system: system, user: user})
	if f.err != nil {
		return "", f.err
	}
	if system == expandSystemPrompt {
		return f.expandReply, nil
	}
	return f.answerReply, nil
}

func addPoint(t *testing.T, store *vectorstore.MemoryStore, fileID string, chunkIndex int, text, userID string) {
	t.Helper()
	payload := &vectorstore.Payload{
		Text:       text,
		ChunkIndex: chunkIndex,
		FileID:     fileID,
		UploadedBy: userID,
	}
	payload.Normalize()
	ok := store.Upsert(context.Background(), testCollection, [][]float32{embedText(text)}, []*vectorstore.Payload{payload})
	require.True(t, ok)
}

func TestAnswerGroundsOnRetrievedContext(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	addPoint(t, store, "f1", 0, "The deploy runs every Friday.", "u1")
	addPoint(t, store, "f1", 1, "Rollbacks use the previous image tag.", "u1")

	completer := &fakeCompleter{answerReply: "Deploys run on Fridays."}
	o := NewOrchestrator(store, &fakeEmbedder{}, completer, testCollection, false, nil)

	answer, err := o.Answer(ctx, "when do deploys run", vectorstore.Scope{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Deploys run on Fridays.", answer.Text)
	require.NotEmpty(t, answer.Contexts)
	assert.LessOrEqual(t, len(answer.Contexts), maxContexts)

	require.Len(t, completer.calls, 1)
	prompt := completer.calls[0]
	assert.Equal(t, answerSystemPrompt, prompt.system)
	assert.Contains(t, prompt.user, "The deploy runs every Friday.")
	assert.Contains(t, prompt.user, "Question: when do deploys run")
}

func TestAnswerWithEmptyStoreStillGenerates(t *testing.T) {
	completer := &fakeCompleter{answerReply: "I do not know."}
	o := NewOrchestrator(vectorstore.NewMemoryStore(), &fakeEmbedder{}, completer, testCollection, false, nil)

	answer, err := o.Answer(context.Background(), "anything", vectorstore.Scope{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, answer.Contexts)
	require.Len(t, completer.calls, 1)
	assert.Contains(t, completer.calls[0].user, "No context documents were found.")
}

func TestAnswerEmbeddingFailureDegradesToNoContext(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	addPoint(t, store, "f1", 0, "Unreachable context.", "u1")

	completer := &fakeCompleter{answerReply: "Low confidence answer."}
	o := NewOrchestrator(store, &fakeEmbedder{err: errors.New("provider down")}, completer, testCollection, false, nil)

	answer, err := o.Answer(context.Background(), "anything", vectorstore.Scope{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, answer.Contexts)
	assert.Equal(t, "Low confidence answer.", answer.Text)
}

func TestAnswerCompletionFailurePropagates(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("model down")}
	o := NewOrchestrator(vectorstore.NewMemoryStore(), &fakeEmbedder{}, completer, testCollection, false, nil)

	_, err := o.Answer(context.Background(), "anything", vectorstore.Scope{UserID: "u1"})
	assert.Error(t, err)
}

func TestAnswerQueryExpansionDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	addPoint(t, store, "f1", 0, "Incident reports live in the runbook.", "u1")

	completer := &fakeCompleter{
		expandReply: "where are incident reports stored\nrunbook location\n",
		answerReply: "In the runbook.",
	}
	o := NewOrchestrator(store, &fakeEmbedder{}, completer, testCollection, true, nil)

	answer, err := o.Answer(ctx, "incident reports", vectorstore.Scope{UserID: "u1"})
	require.NoError(t, err)

	// Three retrieval queries hit the same chunk; dedup keeps one context.
	require.Len(t, answer.Contexts, 1)
	assert.Equal(t, "f1", answer.Contexts[0].FileID)

	// One expansion call plus one generation call.
	require.Len(t, completer.calls, 2)
	assert.Equal(t, expandSystemPrompt, completer.calls[0].system)
	assert.Equal(t, answerSystemPrompt, completer.calls[1].system)
}

func TestMergeCandidates(t *testing.T) {
	p := func(fileID string, chunkIndex int) *vectorstore.Payload {
		return &vectorstore.Payload{FileID: fileID, ChunkIndex: chunkIndex}
	}
	candidates := []vectorstore.ScoredPoint{
		{ID: "a", Score: 0.5, Payload: p("f1", 0)},
		{ID: "b", Score: 0.9, Payload: p("f1", 0)},
		{ID: "c", Score: 0.7, Payload: p("f1", 1)},
		{ID: "d", Score: 0.6, Payload: p("", 0)},
		{ID: "d", Score: 0.4, Payload: p("", 0)},
	}

	merged := mergeCandidates(candidates, 10)
	require.Len(t, merged, 3, "same (file, chunk) and same point id collapse")
	assert.Equal(t, float32(0.9), merged[0].Score, "highest score of a group survives")
	assert.Equal(t, float32(0.7), merged[1].Score)
	assert.Equal(t, float32(0.6), merged[2].Score)

	truncated := mergeCandidates(candidates, 2)
	assert.Len(t, truncated, 2)
}
