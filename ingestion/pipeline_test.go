package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/poiesic/catalogit/ai"
	"github.com/poiesic/catalogit/ai/mock"
	"github.com/poiesic/catalogit/core"
	"github.com/poiesic/catalogit/embedding"
	"github.com/poiesic/catalogit/normalize"
	"github.com/poiesic/catalogit/source"
	"github.com/poiesic/catalogit/storage"
	"github.com/poiesic/catalogit/storage/badger"
	"github.com/poiesic/catalogit/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 8

const threeRows = `asin,title,description,brand,manufacturer,categories,final_price,rating,reviews_count
B001,Wireless Mouse,Ergonomic 2.4GHz mouse,Logi,,Electronics > Accessories,$19.99,4.6,"1,234"
B002,   ,Nothing to see,Acme,,Misc,5,3,10
B003,Mechanical Keyboard,,,KeyCo,"['Electronics', 'Keyboards']",$89.00,7.5,1.2K
`

type testEnv struct {
	store    storage.CatalogRepository
	src      *source.Source
	embedder *mock.MockEmbedder
	csvPath  string
}

func setupEnv(t *testing.T, csv string) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlite.NewStore(filepath.Join(dir, "catalog.db"), testDim)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	src, err := source.New()
	require.NoError(t, err)

	csvPath := filepath.Join(dir, "products.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0o600))

	return &testEnv{
		store:    store,
		src:      src,
		embedder: &mock.MockEmbedder{Dim: testDim},
		csvPath:  csvPath,
	}
}

func newTestPipeline(t *testing.T, env *testEnv, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(env.store, env.src, env.embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestNewPipelineRequiresDependencies(t *testing.T) {
	env := setupEnv(t, threeRows)

	_, err := NewPipeline(nil, env.src, env.embedder)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewPipeline(env.store, nil, env.embedder)
	assert.ErrorIs(t, err, ErrSourceRequired)

	_, err = NewPipeline(env.store, env.src, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewPipeline(env.store, env.src, env.embedder,
		WithBatcherOptions(embedding.WithBatchSize(0)))
	assert.ErrorIs(t, err, embedding.ErrInvalidBatchSize)
}

func TestRunEndToEnd(t *testing.T) {
	env := setupEnv(t, threeRows)
	p := newTestPipeline(t, env)
	ctx := context.Background()

	report, err := p.Run(ctx, env.csvPath)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 3, report.RowsRead)
	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 1, report.Dropped)
	assert.Equal(t, 1, report.Reasons[normalize.ReasonShortTitle])
	assert.Equal(t, StageDone, report.Stage)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, core.DigestContent([]byte(threeRows)), report.Digest)

	count, err := env.store.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, id := range []string{"B001", "B003"} {
		stored, err := env.store.GetRecord(ctx, id)
		require.NoError(t, err)
		for _, col := range core.VectorColumns {
			assert.Len(t, stored.Vector(col), testDim, "%s %s", id, col)
		}
	}

	keyboard, err := env.store.GetRecord(ctx, "B003")
	require.NoError(t, err)
	assert.Equal(t, "KeyCo", keyboard.Brand)
	assert.Equal(t, []string{"Electronics", "Keyboards"}, keyboard.Categories)
	require.NotNil(t, keyboard.Rating)
	assert.Equal(t, 5.0, *keyboard.Rating)
	assert.Equal(t, int64(1200), keyboard.ReviewCount)

	_, err = env.store.GetRecord(ctx, "B002")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunRepeatedIDCountsOnce(t *testing.T) {
	env := setupEnv(t, `asin,title,brand
B001,Wireless Mouse,Logi
B002,Steel Bottle,Hydra
B001,Wireless Mouse Gen 2,Logi
`)
	p := newTestPipeline(t, env)
	ctx := context.Background()

	report, err := p.Run(ctx, env.csvPath)
	require.NoError(t, err)

	assert.Equal(t, 3, report.RowsRead)
	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 1, report.Dropped)
	assert.Equal(t, 1, report.Reasons[normalize.ReasonDuplicateID])
	assert.Equal(t, 2, report.Processed)

	count, err := env.store.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.Processed, count)

	mouse, err := env.store.GetRecord(ctx, "B001")
	require.NoError(t, err)
	assert.Equal(t, "Wireless Mouse Gen 2", mouse.Title)
}

func TestRunIsRepeatable(t *testing.T) {
	env := setupEnv(t, threeRows)
	p := newTestPipeline(t, env)
	ctx := context.Background()

	_, err := p.Run(ctx, env.csvPath)
	require.NoError(t, err)
	report, err := p.Run(ctx, env.csvPath)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)

	count, err := env.store.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunVectorizationFailureIsAtomic(t *testing.T) {
	env := setupEnv(t, threeRows)
	boom := errors.New("model crashed")

	var calls atomic.Int64
	env.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 2 {
			return nil, boom
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.DeterministicVector(text, testDim)
		}
		return out, nil
	}

	p := newTestPipeline(t, env)
	report, err := p.Run(context.Background(), env.csvPath)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrVectorization)
	assert.ErrorIs(t, err, boom)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageEmbedded, stageErr.Stage)
	assert.Zero(t, report.Processed)

	count, err := env.store.CountRecords(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunLaterBatchFailureCommitsNothing(t *testing.T) {
	env := setupEnv(t, threeRows)

	var calls atomic.Int64
	env.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		// Batch size 1: calls 4-6 belong to the second batch.
		if calls.Add(1) == 5 {
			return nil, errors.New("timeout")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.DeterministicVector(text, testDim)
		}
		return out, nil
	}

	p := newTestPipeline(t, env, WithBatcherOptions(embedding.WithBatchSize(1)))
	_, err := p.Run(context.Background(), env.csvPath)
	assert.ErrorIs(t, err, ErrVectorization)

	count, err := env.store.CountRecords(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunDimensionMismatch(t *testing.T) {
	env := setupEnv(t, threeRows)
	env.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = make([]float32, testDim-1)
		}
		return out, nil
	}

	p := newTestPipeline(t, env)
	_, err := p.Run(context.Background(), env.csvPath)
	assert.ErrorIs(t, err, ErrVectorization)
	assert.ErrorIs(t, err, ai.ErrDimensionMismatch)
}

func TestRunModelNotReady(t *testing.T) {
	env := setupEnv(t, threeRows)
	env.embedder.HealthFunc = func(ctx context.Context) (*ai.Health, error) {
		return &ai.Health{Status: "loading"}, nil
	}

	p := newTestPipeline(t, env)
	report, err := p.Run(context.Background(), env.csvPath)
	assert.ErrorIs(t, err, ErrVectorization)
	assert.ErrorIs(t, err, ai.ErrModelNotReady)
	assert.Equal(t, StageConnectivityCheck, report.Stage)
	assert.Zero(t, env.embedder.CallCount())
}

func TestRunEmptyResult(t *testing.T) {
	env := setupEnv(t, "asin,title\nA1,ab\nA2,\nA3,nan\n")
	p := newTestPipeline(t, env)

	report, err := p.Run(context.Background(), env.csvPath)
	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.Equal(t, StageFiltered, report.Stage)
	assert.Equal(t, 3, report.Dropped)
	assert.Zero(t, env.embedder.CallCount())
}

func TestRunSourceUnavailable(t *testing.T) {
	env := setupEnv(t, threeRows)
	p := newTestPipeline(t, env)

	_, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, source.ErrFetch)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = p.Run(context.Background(), empty)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, source.ErrMissingHeader)
}

// fakeStore fails at a chosen point.
type fakeStore struct {
	connectErr error
	schemaErr  error
	upsertErr  error
	schemaRuns int
	upserts    int
}

func (f *fakeStore) TestConnectivity(ctx context.Context) error { return f.connectErr }

func (f *fakeStore) EnsureSchema(ctx context.Context) error {
	f.schemaRuns++
	return f.schemaErr
}

func (f *fakeStore) UpsertBatch(ctx context.Context, records ...*core.EmbeddedRecord) (int, error) {
	f.upserts++
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	return len(records), nil
}

func TestRunStoreFailures(t *testing.T) {
	env := setupEnv(t, threeRows)
	down := errors.New("connection refused")

	t.Run("connectivity", func(t *testing.T) {
		store := &fakeStore{connectErr: down}
		p, err := NewPipeline(store, env.src, env.embedder)
		require.NoError(t, err)
		defer p.Release()

		_, err = p.Run(context.Background(), env.csvPath)
		assert.ErrorIs(t, err, ErrConnectivity)
		assert.ErrorIs(t, err, down)
		assert.Zero(t, store.schemaRuns, "no side effects before connectivity passes")
	})

	t.Run("schema", func(t *testing.T) {
		store := &fakeStore{schemaErr: down}
		p, err := NewPipeline(store, env.src, env.embedder)
		require.NoError(t, err)
		defer p.Release()

		_, err = p.Run(context.Background(), env.csvPath)
		assert.ErrorIs(t, err, ErrPersistence)
		assert.Zero(t, store.upserts)
	})

	t.Run("write", func(t *testing.T) {
		store := &fakeStore{upsertErr: storage.ErrTransactionFailed}
		p, err := NewPipeline(store, env.src, env.embedder)
		require.NoError(t, err)
		defer p.Release()

		report, err := p.Run(context.Background(), env.csvPath)
		assert.ErrorIs(t, err, ErrPersistence)
		assert.ErrorIs(t, err, storage.ErrTransactionFailed)
		assert.Equal(t, StagePersisted, report.Stage)
		assert.Equal(t, 1, store.upserts, "one write per run")
	})
}

type recordingMonitor struct {
	mu       sync.Mutex
	stages   []Stage
	finished *Report
	err      error
}

func (m *recordingMonitor) Start(_, _ string) {}

func (m *recordingMonitor) Transition(stage Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
}

func (m *recordingMonitor) Progress(_ Stage, _, _ int) {}

func (m *recordingMonitor) Finish(report *Report, err error) {
	m.finished = report
	m.err = err
}

func TestRunMonitorSeesEveryStage(t *testing.T) {
	env := setupEnv(t, threeRows)
	monitor := &recordingMonitor{}
	p := newTestPipeline(t, env, WithMonitor(monitor))

	_, err := p.Run(context.Background(), env.csvPath)
	require.NoError(t, err)

	assert.Equal(t, []Stage{
		StageConnectivityCheck, StageSchemaReady, StageDownloaded, StageNormalized,
		StageFiltered, StageEmbedded, StagePersisted, StageDone,
	}, monitor.stages)
	require.NotNil(t, monitor.finished)
	assert.NoError(t, monitor.err)
}

func TestRunLedger(t *testing.T) {
	env := setupEnv(t, threeRows)
	runs, err := badger.NewMemoryRunRepository()
	require.NoError(t, err)
	defer runs.Close()

	p := newTestPipeline(t, env, WithRunRepository(runs))
	ctx := context.Background()

	ok, err := p.Run(ctx, env.csvPath)
	require.NoError(t, err)
	failed, err := p.Run(ctx, filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)

	stored, err := runs.GetRun(ctx, ok.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusSucceeded, stored.Status)
	assert.Equal(t, 2, stored.Persisted)
	assert.Equal(t, ok.Digest, stored.SourceDigest)
	assert.Equal(t, StageDone.String(), stored.Stage)

	stored, err = runs.GetRun(ctx, failed.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusFailed, stored.Status)
	assert.Equal(t, StageDownloaded.String(), stored.Stage)
	assert.NotEmpty(t, stored.Error)

	list, err := runs.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRunLedgerFailureIsNotFatal(t *testing.T) {
	env := setupEnv(t, threeRows)
	runs, err := badger.NewMemoryRunRepository()
	require.NoError(t, err)
	require.NoError(t, runs.Close())

	p := newTestPipeline(t, env, WithRunRepository(runs))
	report, err := p.Run(context.Background(), env.csvPath)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "connectivity_check", StageConnectivityCheck.String())
	assert.Equal(t, "done", StageDone.String())
	assert.Equal(t, "unknown", Stage(42).String())
}
