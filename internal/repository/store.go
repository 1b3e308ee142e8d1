package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/entity"
)

const (
	tableBatches    = "batches"
	tableOrderLines = "order_lines"

	insertChunk = 200
)

var lineColumns = []string{
	"order_id", "order_date", "delivery_date", "partner_name", "product_code", "product_name", "size",
	"quantity", "unit", "unit_price", "amount", "remark", "data_source",
}

// HistoryFilter narrows a history query. Zero values are ignored.
type HistoryFilter struct {
	BatchID string
	Partner string // substring of partner_name
	From    time.Time
	To      time.Time // exclusive
	Limit   int
}

type OrderRepository interface {
	Persist(ctx context.Context, lines []entity.OrderLine, meta entity.BatchMeta) (*entity.Batch, error)
	ListBatches(ctx context.Context) ([]entity.Batch, error)
	LoadBatch(ctx context.Context, batchID string) ([]entity.PersistedRow, error)
	History(ctx context.Context, f HistoryFilter) ([]entity.PersistedRow, error)
	Stats(ctx context.Context) (*entity.BatchStats, error)
}

type orderRepository struct {
	db     *DB
	locker Locker
	logger *slog.Logger
	now    func() time.Time
}

// NewOrderRepository builds the store. A nil locker serializes writers within this process only.
func NewOrderRepository(db *DB, locker Locker, logger *slog.Logger) OrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = NewLocalLocker(0)
	}
	return &orderRepository{db: db, locker: locker, logger: logger, now: time.Now}
}

// Persist appends one row per line under meta.BatchID and creates the batch, or fills in its
// metadata. Identical lines are stored again: history is never deduplicated.
func (r *orderRepository) Persist(ctx context.Context, lines []entity.OrderLine, meta entity.BatchMeta) (*entity.Batch, error) {
	meta.BatchID = strings.TrimSpace(meta.BatchID)
	if meta.BatchID == "" {
		return nil, common.NewAppError(common.CodeInvalidInput, "batch id is required", common.ErrInvalidInput)
	}

	start := time.Now()
	release, err := r.locker.Acquire(ctx)
	if err != nil {
		r.logger.Warn("repository.persist.lock_timeout", "batch_id", meta.BatchID, "error", err)
		return nil, err
	}
	defer release()

	tx, err := r.db.Driver.Tx(ctx)
	if err != nil {
		return nil, common.PersistenceError("begin transaction", err)
	}
	now := r.now().UTC()

	batch, err := r.upsertBatch(ctx, tx, meta, now)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	for chunk := range slices.Chunk(lines, insertChunk) {
		if err := r.insertLines(ctx, tx, chunk, meta.BatchID, now); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
	}
	count, err := r.countLines(ctx, tx, meta.BatchID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, common.PersistenceError("commit", err)
	}
	batch.LineCount = count

	r.logger.Info("repository.persist.ok",
		"batch_id", meta.BatchID,
		"request_id", common.RequestIDFromContext(ctx),
		"lines", len(lines),
		"batch_lines", count,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return batch, nil
}

func (r *orderRepository) upsertBatch(ctx context.Context, tx dialect.Tx, meta entity.BatchMeta, now time.Time) (*entity.Batch, error) {
	b := r.db.builder()
	existing, err := scanBatches(ctx, tx, b.Select("batch_id", "created_at", "note", "account").
		From(b.Table(tableBatches)).
		Where(entsql.EQ("batch_id", meta.BatchID)), false)
	if err != nil {
		return nil, common.PersistenceError("load batch", err)
	}

	if len(existing) == 0 {
		q, args := b.Insert(tableBatches).
			Columns("batch_id", "created_at", "note", "account").
			Values(meta.BatchID, now, meta.Note, meta.Account).
			Query()
		var res sql.Result
		if err := tx.Exec(ctx, q, args, &res); err != nil {
			return nil, common.PersistenceError("insert batch", err)
		}
		return &entity.Batch{BatchID: meta.BatchID, CreatedAt: now, Note: meta.Note, Account: meta.Account}, nil
	}

	batch := existing[0]
	upd := b.Update(tableBatches).Where(entsql.EQ("batch_id", meta.BatchID))
	changed := false
	if meta.Note != "" && meta.Note != batch.Note {
		upd.Set("note", meta.Note)
		batch.Note, changed = meta.Note, true
	}
	if meta.Account != "" && meta.Account != batch.Account {
		upd.Set("account", meta.Account)
		batch.Account, changed = meta.Account, true
	}
	if changed {
		q, args := upd.Query()
		var res sql.Result
		if err := tx.Exec(ctx, q, args, &res); err != nil {
			return nil, common.PersistenceError("update batch metadata", err)
		}
		r.logger.Info("repository.batch.metadata_updated", "batch_id", meta.BatchID)
	}
	return &batch, nil
}

func (r *orderRepository) insertLines(ctx context.Context, tx dialect.Tx, lines []entity.OrderLine, batchID string, now time.Time) error {
	cols := append([]string{"batch_id"}, lineColumns...)
	cols = append(cols, "confidence", "row_hash", "created_at")
	ins := r.db.builder().Insert(tableOrderLines).Columns(cols...)
	for _, l := range lines {
		var confidence any
		if l.Confidence != nil {
			confidence = *l.Confidence
		}
		ins.Values(batchID,
			l.OrderID, l.OrderDate, l.DeliveryDate, l.PartnerName, l.ProductCode, l.ProductName, l.Size,
			l.Quantity, l.Unit, l.UnitPrice, l.Amount, l.Remark, l.DataSource,
			confidence, RowHash(l, batchID), now)
	}
	q, args := ins.Query()
	var res sql.Result
	if err := tx.Exec(ctx, q, args, &res); err != nil {
		return common.PersistenceError("insert order lines", err)
	}
	return nil
}

func (r *orderRepository) countLines(ctx context.Context, q dialect.ExecQuerier, batchID string) (int, error) {
	b := r.db.builder()
	query, args := b.Select(entsql.Count("*")).
		From(b.Table(tableOrderLines)).
		Where(entsql.EQ("batch_id", batchID)).
		Query()
	var rows entsql.Rows
	if err := q.Query(ctx, query, args, &rows); err != nil {
		return 0, common.PersistenceError("count order lines", err)
	}
	defer rows.Close()
	n := 0
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, common.PersistenceError("count order lines", err)
		}
	}
	return n, rows.Err()
}

func scanBatches(ctx context.Context, q dialect.ExecQuerier, sel *entsql.Selector, withCount bool) ([]entity.Batch, error) {
	query, args := sel.Query()
	var rows entsql.Rows
	if err := q.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Batch
	for rows.Next() {
		var b entity.Batch
		dest := []any{&b.BatchID, &b.CreatedAt, &b.Note, &b.Account}
		if withCount {
			dest = append(dest, &b.LineCount)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// batchesWithCounts selects batches newest first with their line counts.
func (r *orderRepository) batchesWithCounts(limit int) *entsql.Selector {
	b := r.db.builder()
	bt := b.Table(tableBatches).As("b")
	lt := b.Table(tableOrderLines).As("l")
	sel := b.Select(bt.C("batch_id"), bt.C("created_at"), bt.C("note"), bt.C("account"), entsql.Count(lt.C("id"))).
		From(bt).
		LeftJoin(lt).On(bt.C("batch_id"), lt.C("batch_id")).
		GroupBy(bt.C("batch_id"), bt.C("created_at"), bt.C("note"), bt.C("account")).
		OrderBy(entsql.Desc(bt.C("created_at")), entsql.Desc(bt.C("batch_id")))
	if limit > 0 {
		sel.Limit(limit)
	}
	return sel
}

func (r *orderRepository) ListBatches(ctx context.Context) ([]entity.Batch, error) {
	out, err := scanBatches(ctx, r.db.Driver, r.batchesWithCounts(0), true)
	if err != nil {
		r.logger.Error("failed to list batches", "error", err)
		return nil, common.PersistenceError("list batches", err)
	}
	return out, nil
}

func (r *orderRepository) LoadBatch(ctx context.Context, batchID string) ([]entity.PersistedRow, error) {
	b := r.db.builder()
	found, err := scanBatches(ctx, r.db.Driver, b.Select("batch_id", "created_at", "note", "account").
		From(b.Table(tableBatches)).
		Where(entsql.EQ("batch_id", batchID)), false)
	if err != nil {
		return nil, common.PersistenceError("load batch", err)
	}
	if len(found) == 0 {
		return nil, common.NewAppError(common.CodeNotFound, fmt.Sprintf("batch %q", batchID), common.ErrNotFound)
	}
	return r.History(ctx, HistoryFilter{BatchID: batchID})
}

// History returns persisted rows in insertion order.
func (r *orderRepository) History(ctx context.Context, f HistoryFilter) ([]entity.PersistedRow, error) {
	b := r.db.builder()
	cols := append([]string{"id", "batch_id"}, lineColumns...)
	cols = append(cols, "confidence", "row_hash", "created_at")
	sel := b.Select(cols...).From(b.Table(tableOrderLines))

	var preds []*entsql.Predicate
	if f.BatchID != "" {
		preds = append(preds, entsql.EQ("batch_id", f.BatchID))
	}
	if f.Partner != "" {
		preds = append(preds, entsql.Contains("partner_name", f.Partner))
	}
	if !f.From.IsZero() {
		preds = append(preds, entsql.GTE("created_at", f.From.UTC()))
	}
	if !f.To.IsZero() {
		preds = append(preds, entsql.LT("created_at", f.To.UTC()))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy("id")
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}

	query, args := sel.Query()
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		r.logger.Error("failed to query history", "error", err)
		return nil, common.PersistenceError("query history", err)
	}
	defer rows.Close()

	var out []entity.PersistedRow
	for rows.Next() {
		var (
			p          entity.PersistedRow
			confidence sql.NullFloat64
		)
		l := &p.OrderLine
		if err := rows.Scan(&p.ID, &p.BatchID,
			&l.OrderID, &l.OrderDate, &l.DeliveryDate, &l.PartnerName, &l.ProductCode, &l.ProductName, &l.Size,
			&l.Quantity, &l.Unit, &l.UnitPrice, &l.Amount, &l.Remark, &l.DataSource,
			&confidence, &p.RowHash, &p.CreatedAt,
		); err != nil {
			return nil, common.PersistenceError("scan history", err)
		}
		if confidence.Valid {
			l.Confidence = &confidence.Float64
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, common.PersistenceError("scan history", err)
	}
	return out, nil
}

func (r *orderRepository) Stats(ctx context.Context) (*entity.BatchStats, error) {
	b := r.db.builder()
	stats := &entity.BatchStats{}
	for table, dst := range map[string]*int{tableBatches: &stats.TotalBatches, tableOrderLines: &stats.TotalLines} {
		query, args := b.Select(entsql.Count("*")).From(b.Table(table)).Query()
		var rows entsql.Rows
		if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
			return nil, common.PersistenceError("count "+table, err)
		}
		if rows.Next() {
			if err := rows.Scan(dst); err != nil {
				rows.Close()
				return nil, common.PersistenceError("count "+table, err)
			}
		}
		rows.Close()
	}

	latest, err := scanBatches(ctx, r.db.Driver, r.batchesWithCounts(1), true)
	if err != nil {
		return nil, common.PersistenceError("latest batch", err)
	}
	if len(latest) > 0 {
		stats.LatestBatch = &latest[0]
	}
	return stats, nil
}
