package intake

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-intake/internal/async"
	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/entity"
	"github.com/joseph-ayodele/order-intake/internal/ingest"
	"github.com/joseph-ayodele/order-intake/internal/pipeline"
	"github.com/joseph-ayodele/order-intake/internal/repository"
)

const vendorAHeader = "［伝票No］,［発注日］,［納品日］,［取引先名］,［自社管理商品コード］,［商品名］,［数量］,［単位］,［単価］,［金額］,［規格］"

func vendorA(rows ...string) []byte {
	return []byte("H,20250701\n" + vendorAHeader + "\n" + strings.Join(rows, "\n") + "\nF\n")
}

var (
	docA = pipeline.Document{Name: "a.csv", Content: vendorA(
		"D1,2025/07/01,2025/07/03,東京青果,P1,キャベツ,10,玉,120,1200,",
		"D1,2025/07/01,2025/07/03,東京青果,P2,トマト,2,箱,800,1600,",
	)}
	docB = pipeline.Document{Name: "b.csv", Content: vendorA(
		"D2,2025/07/01,2025/07/02,大阪青果,P1,キャベツ,5,玉,120,600,",
	)}
	docUnknown = pipeline.Document{Name: "list.csv", Content: []byte("name,qty\napple,1\n")}
)

func clock() time.Time { return time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC) }

func newRepo(t *testing.T) repository.OrderRepository {
	t.Helper()
	cfg := repository.Config{Driver: repository.DriverSQLite, DSN: filepath.Join(t.TempDir(), "orders.db")}
	require.NoError(t, repository.Migrate(cfg, nil))
	db, err := repository.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return repository.NewOrderRepository(db, nil, nil)
}

func newService(opts ...Option) *Service {
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewService(pipeline.NewRouter(nil, nil, nil), nil, opts...)
}

func TestService_Ingest(t *testing.T) {
	s := newService(WithWorkers(2))

	res, err := s.Ingest(context.Background(), IngestRequest{Documents: []pipeline.Document{docA, docUnknown, docB}})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, "a.csv", res.Outcomes[0].File)
	assert.True(t, res.Outcomes[1].Skipped)
	assert.Equal(t, "b.csv", res.Outcomes[2].File)
	assert.Nil(t, res.Batch)

	require.Len(t, res.Lines, 3)
	assert.Equal(t, "キャベツ", res.Lines[0].ProductName)
	assert.Equal(t, "b.csv", res.Lines[2].DataSource)

	require.Len(t, res.Messages(), 1)
	assert.Contains(t, res.Messages()[0], "list.csv")

	require.Len(t, res.Summary, 2)
	assert.Equal(t, entity.AggregationRow{ProductName: "キャベツ", Unit: "玉", QuantitySum: 15}, res.Summary[0])
}

func TestService_IngestAlreadyProcessed(t *testing.T) {
	tracker := ingest.NewTracker(time.Hour, nil)
	s := newService(WithTracker(tracker))
	ctx := context.Background()

	_, err := s.Ingest(ctx, IngestRequest{Documents: []pipeline.Document{docA}})
	require.NoError(t, err)

	res, err := s.Ingest(ctx, IngestRequest{Documents: []pipeline.Document{docA, docB}})
	require.NoError(t, err)
	assert.True(t, res.Outcomes[0].Skipped)
	assert.Equal(t, "a.csv: "+MessageAlreadyProcessed, res.Outcomes[0].Message)
	assert.Len(t, res.Lines, 1)
}

func TestService_IngestPersists(t *testing.T) {
	s := newService(WithRepository(newRepo(t)))
	ctx := context.Background()

	res, err := s.Ingest(ctx, IngestRequest{
		Documents: []pipeline.Document{docA, docB},
		Persist:   true,
		Batch:     entity.BatchMeta{Account: "shop-a"},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Batch)
	assert.Equal(t, "250701_0900", res.Batch.BatchID)
	assert.Equal(t, 3, res.Batch.LineCount)
	assert.Equal(t, "shop-a", res.Batch.Account)

	lines, summary, err := s.AggregateBatch(ctx, "250701_0900")
	require.NoError(t, err)
	assert.Equal(t, res.Lines, lines)
	assert.Equal(t, res.Summary, summary)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalBatches)

	_, _, err = s.AggregateBatch(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

type failingRepo struct{ repository.OrderRepository }

func (failingRepo) Persist(context.Context, []entity.OrderLine, entity.BatchMeta) (*entity.Batch, error) {
	return nil, common.PersistenceError("insert lines", errors.New("disk full"))
}

func TestService_PersistFailureReleasesFingerprints(t *testing.T) {
	tracker := ingest.NewTracker(time.Hour, nil)
	s := newService(WithTracker(tracker), WithRepository(failingRepo{}))

	res, err := s.Ingest(context.Background(), IngestRequest{Documents: []pipeline.Document{docA}, Persist: true})
	require.Error(t, err)
	assert.True(t, common.IsRetryable(err))
	require.NotNil(t, res)
	assert.Len(t, res.Lines, 2)
	assert.False(t, tracker.Seen(ingest.FingerprintOf(docA.Name, int64(len(docA.Content)))))
}

func TestService_IngestValidation(t *testing.T) {
	s := newService()
	ctx := context.Background()

	_, err := s.Ingest(ctx, IngestRequest{Batch: entity.BatchMeta{BatchID: "bad id!"}})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = s.Ingest(ctx, IngestRequest{ReferenceDate: "yesterday"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = s.Ingest(ctx, IngestRequest{Documents: []pipeline.Document{docA}, Persist: true})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = s.SubmitImage(ctx, ImageRequest{})
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "image")

	_, err = s.Batches(ctx)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestService_SubmitTextWithoutAssistant(t *testing.T) {
	res, err := newService().SubmitText(context.Background(), TextRequest{Customer: "佐藤", Message: "トマト5"})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Error(t, res.Outcomes[0].Err)
	assert.Empty(t, res.Lines)
}

func TestService_IngestDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.csv"), docA.Content, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "list.csv"), docUnknown.Content, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.md"), []byte("x"), 0o644))

	res, stats, err := newService().IngestDirectory(context.Background(), DirectoryRequest{Root: root, SkipHidden: true})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), stats.Matched)
	assert.Len(t, res.Lines, 2)
	assert.Len(t, res.Messages(), 1)

	_, _, err = newService().IngestDirectory(context.Background(), DirectoryRequest{Root: "  "})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestService_ProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.csv")
	require.NoError(t, os.WriteFile(path, docB.Content, 0o644))
	s := newService(WithRepository(newRepo(t)))
	ctx := context.Background()

	require.NoError(t, s.ProcessFile(ctx, async.Job{Path: path, TraceID: "0a1b2c3d-4e5f-6789-abcd-ef0123456789"}))

	batches, err := s.Batches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "250701_0900-0a1b2c3d", batches[0].BatchID)
	assert.Equal(t, "inbox:b.csv", batches[0].Note)
	assert.Equal(t, 1, batches[0].LineCount)

	assert.Error(t, s.ProcessFile(ctx, async.Job{Path: filepath.Join(t.TempDir(), "missing.csv")}))
}
