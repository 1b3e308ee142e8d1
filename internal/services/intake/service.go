// Package intake runs submitted documents through the decoders, persists the working set and
// aggregates it for the purchasing report.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/order-intake/internal/aggregate"
	"github.com/joseph-ayodele/order-intake/internal/async"
	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/entity"
	"github.com/joseph-ayodele/order-intake/internal/ingest"
	"github.com/joseph-ayodele/order-intake/internal/pipeline"
	"github.com/joseph-ayodele/order-intake/internal/repository"
)

// MessageAlreadyProcessed is reported for a file whose fingerprint was seen recently.
const MessageAlreadyProcessed = "already processed"

func errNoRepository() error {
	return common.NewAppError(common.CodeInvalidInput, "persistence is not configured", common.ErrInvalidInput)
}

// Service handles intake business logic.
type Service struct {
	router   *pipeline.Router
	repo     repository.OrderRepository
	tracker  *ingest.Tracker
	ingestor ingest.Ingestor
	workers  int
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithRepository enables persistence.
func WithRepository(r repository.OrderRepository) Option {
	return func(s *Service) { s.repo = r }
}

// WithTracker enables the double-processing guard.
func WithTracker(t *ingest.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// WithIngestor sets the filesystem reader used by directory and queue intake.
func WithIngestor(i ingest.Ingestor) Option {
	return func(s *Service) {
		if i != nil {
			s.ingestor = i
		}
	}
}

func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLocation sets the timezone batch ids are derived in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new intake service.
func NewService(router *pipeline.Router, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		router:   router,
		ingestor: ingest.NewFSIngestor(logger),
		workers:  4,
		loc:      time.UTC,
		logger:   logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// IngestRequest is one submission of documents.
type IngestRequest struct {
	Documents     []pipeline.Document
	ReferenceDate string
	Persist       bool
	Batch         entity.BatchMeta
}

// IngestResult carries per-file outcomes in submission order, the combined working set and its aggregation.
type IngestResult struct {
	Outcomes []pipeline.Outcome
	Lines    []entity.OrderLine
	Summary  []entity.AggregationRow
	Batch    *entity.Batch
}

// Messages lists the human-readable notes of skipped, failed and fallback files.
func (r *IngestResult) Messages() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Message != "" {
			out = append(out, o.Message)
		}
	}
	return out
}

func validate(referenceDate string, meta entity.BatchMeta) error {
	v := common.NewValidator().
		Field("reference_date", referenceDate, common.ReferenceDate).
		Field("batch_id", meta.BatchID, common.BatchID).
		Field("note", meta.Note, common.MaxLength(500)).
		Field("account", meta.Account, common.MaxLength(128))
	return v.Error()
}

// Ingest decodes every document, at most s.workers at a time. A failing file never aborts the
// others; only a persistence failure is returned as an error.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := validate(req.ReferenceDate, req.Batch); err != nil {
		s.logger.Warn("intake.invalid_request", "error", err)
		return nil, err
	}
	start := time.Now()

	outcomes := make([]pipeline.Outcome, len(req.Documents))
	var claimed []ingest.Fingerprint
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, doc := range req.Documents {
		fp := ingest.FingerprintOf(doc.Name, int64(len(doc.Content)))
		if s.tracker != nil {
			if !s.tracker.Claim(fp) {
				outcomes[i] = pipeline.Outcome{
					File:    doc.Name,
					Skipped: true,
					Message: fmt.Sprintf("%s: %s", doc.Name, MessageAlreadyProcessed),
				}
				continue
			}
			claimed = append(claimed, fp)
		}
		g.Go(func() error {
			outcomes[i] = s.router.Decode(gctx, doc, req.ReferenceDate)
			return nil
		})
	}
	_ = g.Wait()

	res := &IngestResult{Outcomes: outcomes}
	for _, o := range outcomes {
		res.Lines = append(res.Lines, o.Lines...)
	}
	res.Summary = aggregate.Summarize(res.Lines)

	if req.Persist {
		batch, err := s.persist(ctx, res.Lines, req.Batch)
		if err != nil {
			s.forget(claimed)
			return res, err
		}
		res.Batch = batch
	}

	s.logger.Info("intake.ingest.ok",
		"files", len(req.Documents),
		"lines", len(res.Lines),
		"messages", len(res.Messages()),
		"persisted", res.Batch != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (s *Service) forget(fps []ingest.Fingerprint) {
	for _, fp := range fps {
		s.tracker.Forget(fp)
	}
}

func (s *Service) persist(ctx context.Context, lines []entity.OrderLine, meta entity.BatchMeta) (*entity.Batch, error) {
	if s.repo == nil {
		return nil, errNoRepository()
	}
	if strings.TrimSpace(meta.BatchID) == "" {
		meta.BatchID = common.NewBatchID(s.now(), s.loc)
	}
	return s.repo.Persist(ctx, lines, meta)
}

// TextRequest is an order typed into a chat.
type TextRequest struct {
	Customer      string
	Message       string
	ReferenceDate string
	Persist       bool
	Batch         entity.BatchMeta
}

// SubmitText decodes a free-text order message.
func (s *Service) SubmitText(ctx context.Context, req TextRequest) (*IngestResult, error) {
	if err := validate(req.ReferenceDate, req.Batch); err != nil {
		return nil, err
	}
	out := s.router.FreeText(ctx, req.Customer, req.Message, req.ReferenceDate)
	return s.single(ctx, out, req.Persist, req.Batch)
}

// ImageRequest is a photographed order received through a chat channel.
type ImageRequest struct {
	Image         []byte
	Sender        string
	Message       string
	ReferenceDate string
	Persist       bool
	Batch         entity.BatchMeta
}

// SubmitImage decodes a chat image.
func (s *Service) SubmitImage(ctx context.Context, req ImageRequest) (*IngestResult, error) {
	if err := validate(req.ReferenceDate, req.Batch); err != nil {
		return nil, err
	}
	if err := common.NewValidator().Field("image", req.Image, common.Required).Error(); err != nil {
		return nil, err
	}
	out := s.router.ChatImage(ctx, req.Image, req.Sender, req.Message, req.ReferenceDate)
	return s.single(ctx, out, req.Persist, req.Batch)
}

func (s *Service) single(ctx context.Context, out pipeline.Outcome, persist bool, meta entity.BatchMeta) (*IngestResult, error) {
	res := &IngestResult{
		Outcomes: []pipeline.Outcome{out},
		Lines:    out.Lines,
		Summary:  aggregate.Summarize(out.Lines),
	}
	if persist && len(out.Lines) > 0 {
		batch, err := s.persist(ctx, out.Lines, meta)
		if err != nil {
			return res, err
		}
		res.Batch = batch
	}
	return res, nil
}

// DirectoryRequest selects the files under Root.
type DirectoryRequest struct {
	Root          string
	SkipHidden    bool
	ReferenceDate string
	Persist       bool
	Batch         entity.BatchMeta
}

// IngestDirectory reads every supported file under Root and ingests them as one submission.
// Unreadable files show up as failed outcomes.
func (s *Service) IngestDirectory(ctx context.Context, req DirectoryRequest) (*IngestResult, ingest.DirStats, error) {
	root := strings.TrimSpace(req.Root)
	if root == "" {
		return nil, ingest.DirStats{}, common.NewAppError(common.CodeInvalidInput, "root path is required", common.ErrInvalidInput)
	}
	results, stats, err := s.ingestor.IngestDirectory(ctx, root, req.SkipHidden)
	if err != nil {
		return nil, stats, err
	}

	var docs []pipeline.Document
	var unreadable []pipeline.Outcome
	for _, r := range results {
		if r.File == nil {
			unreadable = append(unreadable, pipeline.Outcome{
				File:    r.SourcePath,
				Err:     errors.New(r.Err),
				Message: fmt.Sprintf("%s: %s", r.SourcePath, r.Err),
			})
			continue
		}
		docs = append(docs, pipeline.Document{Name: r.File.Name, Content: r.File.Content})
	}

	res, err := s.Ingest(ctx, IngestRequest{
		Documents:     docs,
		ReferenceDate: req.ReferenceDate,
		Persist:       req.Persist,
		Batch:         req.Batch,
	})
	if res != nil {
		res.Outcomes = append(res.Outcomes, unreadable...)
	}
	return res, stats, err
}

// ProcessFile implements async.Processor for inbox files. Each file becomes its own batch.
func (s *Service) ProcessFile(ctx context.Context, job async.Job) error {
	r, err := s.ingestor.IngestPath(ctx, job.Path)
	if err != nil {
		return err
	}
	batchID := common.NewBatchID(s.now(), s.loc)
	if id := strings.ReplaceAll(job.TraceID, "-", ""); len(id) >= 8 {
		batchID += "-" + id[:8]
	}

	res, err := s.Ingest(ctx, IngestRequest{
		Documents: []pipeline.Document{{Name: r.File.Name, Content: r.File.Content}},
		Persist:   s.repo != nil,
		Batch:     entity.BatchMeta{BatchID: batchID, Note: "inbox:" + r.File.Name},
	})
	if err != nil {
		return err
	}
	for _, m := range res.Messages() {
		s.logger.Warn("intake.inbox.message", "path", job.Path, "message", m)
	}
	return nil
}

// Batches lists stored batches.
func (s *Service) Batches(ctx context.Context) ([]entity.Batch, error) {
	if s.repo == nil {
		return nil, errNoRepository()
	}
	return s.repo.ListBatches(ctx)
}

// LoadBatch returns the stored lines of batchID.
func (s *Service) LoadBatch(ctx context.Context, batchID string) ([]entity.PersistedRow, error) {
	if s.repo == nil {
		return nil, errNoRepository()
	}
	return s.repo.LoadBatch(ctx, batchID)
}

// AggregateBatch reloads batchID and rebuilds its aggregation table.
func (s *Service) AggregateBatch(ctx context.Context, batchID string) ([]entity.OrderLine, []entity.AggregationRow, error) {
	rows, err := s.LoadBatch(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	lines := Lines(rows)
	return lines, aggregate.Summarize(lines), nil
}

// Stats summarizes the store.
func (s *Service) Stats(ctx context.Context) (*entity.BatchStats, error) {
	if s.repo == nil {
		return nil, errNoRepository()
	}
	return s.repo.Stats(ctx)
}

// Lines strips storage metadata from persisted rows.
func Lines(rows []entity.PersistedRow) []entity.OrderLine {
	out := make([]entity.OrderLine, len(rows))
	for i, r := range rows {
		out[i] = r.OrderLine
	}
	return out
}
