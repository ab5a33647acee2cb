package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-career-coach/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

func analysisRow(id, hash string, score int, at time.Time) []any {
	return []any{id, "d1", "cv.pdf", "solid", []string{"go"}, "quantify", score, 70, 60, 80, 75, hash, at}
}

func TestAnalysisRepo_Create_NilKeywordsStoredEmpty(t *testing.T) {
	pool := &poolStub{}
	repo := postgres.NewAnalysisRepo(pool)

	rec, err := repo.Create(context.Background(), domain.AnalysisRecord{DocumentID: "d1", ContentHash: "h", Analysis: domain.Analysis{Score: 80, Summary: "ok"}})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	require.Len(t, pool.execs, 1)
	assert.Equal(t, []string{}, pool.execs[0].args[4])
	assert.Equal(t, 80, pool.execs[0].args[6])
}

func TestAnalysisRepo_Create_Error(t *testing.T) {
	repo := postgres.NewAnalysisRepo(&poolStub{execErr: errors.New("down")})
	_, err := repo.Create(context.Background(), domain.AnalysisRecord{DocumentID: "d1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=analysis.create")
}

func TestAnalysisRepo_LatestValidByHash(t *testing.T) {
	now := time.Now().UTC()
	pool := &poolStub{row: rowStub{scan: values(analysisRow("a1", "h1", 82, now)...)}}
	repo := postgres.NewAnalysisRepo(pool)

	rec, err := repo.LatestValidByHash(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "a1", rec.ID)
	assert.Equal(t, 82, rec.Analysis.Score)
	assert.Equal(t, domain.SubScores{Impact: 70, Brevity: 60, ATS: 80, Style: 75}, rec.Analysis.Details)
	require.Len(t, pool.queries, 1)
	assert.Contains(t, pool.queries[0].sql, "score > 0 AND summary <> ''")
}

func TestAnalysisRepo_LatestValidByHash_Miss(t *testing.T) {
	repo := postgres.NewAnalysisRepo(&poolStub{row: errRow(pgx.ErrNoRows)})
	_, err := repo.LatestValidByHash(context.Background(), "h1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnalysisRepo_ListByDocument(t *testing.T) {
	now := time.Now().UTC()
	pool := &poolStub{rows: &rowsStub{rows: [][]any{
		analysisRow("a2", "h", 90, now),
		analysisRow("a1", "h", 0, now.Add(-time.Hour)),
	}}}
	repo := postgres.NewAnalysisRepo(pool)

	out, err := repo.ListByDocument(context.Background(), "d1", 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a2", out[0].ID)
	assert.Equal(t, 50, pool.queries[0].args[1])
}

func TestAnalysisRepo_ListByDocument_Errors(t *testing.T) {
	repo := postgres.NewAnalysisRepo(&poolStub{queryErr: errors.New("boom")})
	_, err := repo.ListByDocument(context.Background(), "d1", 10)
	require.Error(t, err)

	repo = postgres.NewAnalysisRepo(&poolStub{rows: &rowsStub{err: errors.New("iter")}})
	_, err = repo.ListByDocument(context.Background(), "d1", 10)
	require.Error(t, err)
}
