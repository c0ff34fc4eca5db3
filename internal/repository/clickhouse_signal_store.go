package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TrendSentry/internal/domain/models"
	domrepo "TrendSentry/internal/domain/repository"
	pkgch "TrendSentry/pkg/clickhouse"
	applogger "TrendSentry/pkg/logger"
)

// CHSignalStore implements SignalStore backed by ClickHouse. The table is
// a ReplacingMergeTree keyed by signal id with a millisecond version
// column: status updates are versioned inserts, and reads go through FINAL
// so callers always see the latest row per signal.
type CHSignalStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHSignalStore(ch *pkgch.Client, table string) *CHSignalStore {
	if table == "" {
		table = "signals"
	}
	return &CHSignalStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHSignalStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSignalStore) Init(ctx context.Context) error {
	stmt := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id             String,
            symbol         LowCardinality(String),
            direction      LowCardinality(String),
            tier           LowCardinality(String),
            entry          Float64,
            stop_loss      Float64,
            take_profit    Float64,
            take_profit2   Float64,
            score          Float64,
            rationale      String,
            status         LowCardinality(String),
            created_at     DateTime64(3),
            exit_price     Float64,
            exit_reason    String,
            pnl_percent    Float64,
            pnl_absolute   Float64,
            closed_at      DateTime64(3),
            regime         LowCardinality(String),
            trend_strength Float64,
            rsi            Float64,
            atr            Float64,
            vwap           Float64,
            volume_ratio   Float64,
            flow_delta     Float64,
            version        UInt64
        ) ENGINE = ReplacingMergeTree(version)
        ORDER BY (symbol, id)
    `, s.table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("init signals schema: %w", err)
	}
	return nil
}

const signalColumns = `id, symbol, direction, tier, entry, stop_loss, take_profit, take_profit2,
        score, rationale, status, created_at, exit_price, exit_reason, pnl_percent, pnl_absolute,
        closed_at, regime, trend_strength, rsi, atr, vwap, volume_ratio, flow_delta`

func (s *CHSignalStore) Insert(ctx context.Context, sig *models.Signal) error {
	return s.insertVersion(ctx, sig, uint64(sig.CreatedAt.UnixMilli()))
}

func (s *CHSignalStore) insertVersion(ctx context.Context, sig *models.Signal, version uint64) error {
	q := fmt.Sprintf(`INSERT INTO %s (%s, version)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.table, signalColumns)
	_, err := s.db.ExecContext(ctx, q,
		sig.ID, sig.Symbol, string(sig.Direction), string(sig.Tier),
		sig.Entry, sig.StopLoss, sig.TakeProfit, sig.TakeProfit2,
		sig.Score, sig.Rationale, string(sig.Status), sig.CreatedAt,
		sig.ExitPrice, sig.ExitReason, sig.PnLPercent, sig.PnLAbsolute,
		closedOrZero(sig.ClosedAt),
		string(sig.Context.Regime), sig.Context.TrendStrength, sig.Context.RSI,
		sig.Context.ATR, sig.Context.VWAP, sig.Context.VolumeRatio, sig.Context.FlowDelta,
		version,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse signal insert error",
				applogger.String("id", sig.ID), applogger.Error(err))
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// UpdateStatus re-reads the current row, applies the transition and writes
// a new version. Transitions onto a row that already carries the target
// status are absorbed without a write.
func (s *CHSignalStore) UpdateStatus(ctx context.Context, t *models.Transition) error {
	sig, err := s.byID(ctx, t.SignalID)
	if err != nil {
		return err
	}
	if sig == nil {
		return fmt.Errorf("update status: signal %s not found", t.SignalID)
	}
	if sig.Status == t.To {
		return nil
	}

	sig.Status = t.To
	sig.ExitPrice = t.ExitPrice
	sig.ExitReason = t.ExitReason
	sig.PnLPercent = t.PnLPercent
	sig.PnLAbsolute = (t.ExitPrice - sig.Entry)
	if sig.Direction == models.Short {
		sig.PnLAbsolute = -sig.PnLAbsolute
	}
	if t.To.Terminal() {
		sig.ClosedAt = t.At
	}
	return s.insertVersion(ctx, sig, uint64(t.At.UnixMilli()))
}

func (s *CHSignalStore) byID(ctx context.Context, id string) (*models.Signal, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE id = ? LIMIT 1`, signalColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("signal by id: %w", err)
	}
	defer rows.Close()
	sigs, err := scanSignals(rows)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, nil
	}
	return sigs[0], nil
}

func (s *CHSignalStore) OpenSignals(ctx context.Context) ([]*models.Signal, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL
        WHERE status IN ('OPEN', 'HIT_TP1')
        ORDER BY created_at ASC`, signalColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("open signals: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

func (s *CHSignalStore) Query(ctx context.Context, symbol string, status models.SignalStatus, limit int) ([]*models.Signal, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE 1 = 1`, signalColumns, s.table)
	args := make([]interface{}, 0, 3)
	if symbol != "" {
		q += " AND symbol = ?"
		args = append(args, symbol)
	}
	if status != "" {
		q += " AND status = ?"
		args = append(args, string(status))
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

func (s *CHSignalStore) SignalsSince(ctx context.Context, since time.Time, limit int) ([]*models.Signal, error) {
	if limit <= 0 {
		limit = 500
	}
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL
        WHERE created_at >= ?
        ORDER BY created_at DESC LIMIT ?`, signalColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, since, limit)
	if err != nil {
		return nil, fmt.Errorf("signals since: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

func (s *CHSignalStore) LatestBySymbol(ctx context.Context, symbol string) (*models.Signal, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL
        WHERE symbol = ?
        ORDER BY created_at DESC LIMIT 1`, signalColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol)
	if err != nil {
		return nil, fmt.Errorf("latest by symbol: %w", err)
	}
	defer rows.Close()
	sigs, err := scanSignals(rows)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, nil
	}
	return sigs[0], nil
}

func (s *CHSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHSignalStore) Close() error {
	return nil // pool owned by pkg client
}

func scanSignals(rows *sql.Rows) ([]*models.Signal, error) {
	var out []*models.Signal
	for rows.Next() {
		var sig models.Signal
		var direction, tier, status, regime string
		if err := rows.Scan(
			&sig.ID, &sig.Symbol, &direction, &tier,
			&sig.Entry, &sig.StopLoss, &sig.TakeProfit, &sig.TakeProfit2,
			&sig.Score, &sig.Rationale, &status, &sig.CreatedAt,
			&sig.ExitPrice, &sig.ExitReason, &sig.PnLPercent, &sig.PnLAbsolute,
			&sig.ClosedAt, &regime, &sig.Context.TrendStrength, &sig.Context.RSI,
			&sig.Context.ATR, &sig.Context.VWAP, &sig.Context.VolumeRatio, &sig.Context.FlowDelta,
		); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Direction = models.Direction(direction)
		sig.Tier = models.Tier(tier)
		sig.Status = models.SignalStatus(status)
		sig.Context.Regime = models.Regime(regime)
		out = append(out, &sig)
	}
	return out, rows.Err()
}

func closedOrZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return t
}

var _ domrepo.SignalStore = (*CHSignalStore)(nil)
