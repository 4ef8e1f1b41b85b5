package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"marginledger/internal/domain"
	"marginledger/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store implements ports.PositionStore on SQLite. One row per trade; the
// close_profit columns are denormalized caches written at close time, never
// recomputed on read.
type Store struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite store.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewStore creates a new SQLite-backed position store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite store")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/ledger.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the fill path and readers.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{db: db, logger: cfg.Logger}
	if err := store.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite position store ready", map[string]interface{}{"path": dbPath})

	return store, nil
}

func (s *Store) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pair TEXT NOT NULL,
		exchange TEXT NOT NULL,
		direction TEXT NOT NULL,
		amount REAL NOT NULL DEFAULT 0,
		open_rate REAL NOT NULL DEFAULT 0,
		close_rate REAL DEFAULT NULL,
		stake_amount REAL NOT NULL,
		leverage REAL NOT NULL DEFAULT 1.0,
		borrowed REAL NOT NULL DEFAULT 0,
		fee_open REAL NOT NULL DEFAULT 0,
		fee_close REAL NOT NULL DEFAULT 0,
		interest_rate REAL NOT NULL DEFAULT 0,
		interest_mode TEXT NOT NULL DEFAULT 'NONE',
		open_date TIMESTAMP NOT NULL,
		close_date TIMESTAMP DEFAULT NULL,
		open_order_id TEXT DEFAULT NULL,
		stop_loss REAL NOT NULL DEFAULT 0,
		stop_loss_pct REAL NOT NULL DEFAULT 0,
		initial_stop_loss REAL NOT NULL DEFAULT 0,
		initial_stop_loss_pct REAL NOT NULL DEFAULT 0,
		max_rate REAL NOT NULL DEFAULT 0,
		min_rate REAL NOT NULL DEFAULT 0,
		liquidation_price REAL DEFAULT NULL,
		close_profit REAL DEFAULT NULL,
		close_profit_pct REAL DEFAULT NULL,
		is_open INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_trades_pair_is_open ON trades (pair, is_open);
	CREATE INDEX IF NOT EXISTS idx_trades_open_date ON trades (open_date);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		s.logger.Info(context.Background(), "Closing SQLite position store")
		return s.db.Close()
	}
	return nil
}

const tradeColumns = `id, pair, exchange, direction, amount, open_rate, close_rate,
	stake_amount, leverage, borrowed, fee_open, fee_close, interest_rate, interest_mode,
	open_date, close_date, open_order_id, stop_loss, stop_loss_pct,
	initial_stop_loss, initial_stop_loss_pct, max_rate, min_rate,
	liquidation_price, close_profit, close_profit_pct, is_open`

// Create saves a new trade and returns its assigned ID.
func (s *Store) Create(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trades (pair, exchange, direction, amount, open_rate, close_rate,
		stake_amount, leverage, borrowed, fee_open, fee_close, interest_rate, interest_mode,
		open_date, close_date, open_order_id, stop_loss, stop_loss_pct,
		initial_stop_loss, initial_stop_loss_pct, max_rate, min_rate,
		liquidation_price, close_profit, close_profit_pct, is_open)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query, tradeArgs(trade)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for pair %s: %w", trade.Pair, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", trade.Pair, err)
	}
	trade.ID = id
	s.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": id, "pair": trade.Pair})
	return id, nil
}

// Update commits all fields of an existing trade atomically.
func (s *Store) Update(ctx context.Context, trade *domain.Trade) error {
	const query = `
	UPDATE trades
	SET pair = ?, exchange = ?, direction = ?, amount = ?, open_rate = ?, close_rate = ?,
		stake_amount = ?, leverage = ?, borrowed = ?, fee_open = ?, fee_close = ?,
		interest_rate = ?, interest_mode = ?, open_date = ?, close_date = ?,
		open_order_id = ?, stop_loss = ?, stop_loss_pct = ?,
		initial_stop_loss = ?, initial_stop_loss_pct = ?, max_rate = ?, min_rate = ?,
		liquidation_price = ?, close_profit = ?, close_profit_pct = ?, is_open = ?
	WHERE id = ?`

	args := append(tradeArgs(trade), trade.ID)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: failed to update trade ID %d: %v", ports.ErrUpdateFailed, trade.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for trade ID %d: %w", trade.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade ID %d not found for update: %w", trade.ID, ports.ErrNotFound)
	}
	s.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": trade.ID, "pair": trade.Pair, "isOpen": trade.IsOpen})
	return nil
}

// FindByID retrieves a trade by its unique ID. Returns nil, nil if not found.
func (s *Store) FindByID(ctx context.Context, id int64) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)
	trade, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query trade by ID %d: %w", id, err)
	}
	return trade, nil
}

// GetOpenTrades retrieves all trades with is_open == true.
func (s *Store) GetOpenTrades(ctx context.Context) ([]*domain.Trade, error) {
	return s.queryTrades(ctx, `SELECT `+tradeColumns+` FROM trades WHERE is_open = 1 ORDER BY open_date`)
}

// GetClosedTrades retrieves all settled trades, newest first.
func (s *Store) GetClosedTrades(ctx context.Context) ([]*domain.Trade, error) {
	return s.queryTrades(ctx, `SELECT `+tradeColumns+` FROM trades WHERE is_open = 0 ORDER BY close_date DESC`)
}

func (s *Store) queryTrades(ctx context.Context, query string) ([]*domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// TotalOpenTradesStakes sums stake_amount over open trades.
func (s *Store) TotalOpenTradesStakes(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(stake_amount), 0) FROM trades WHERE is_open = 1`
	var total float64
	if err := s.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum open trade stakes: %w", err)
	}
	return total, nil
}

// GetBestPair returns the pair with the highest average close profit ratio
// over closed trades, or nil, nil when nothing has closed yet.
func (s *Store) GetBestPair(ctx context.Context) (*ports.PairPerformance, error) {
	const query = `
	SELECT pair, AVG(close_profit_pct) AS avg_profit
	FROM trades
	WHERE is_open = 0 AND close_profit_pct IS NOT NULL
	GROUP BY pair
	ORDER BY avg_profit DESC
	LIMIT 1`

	var perf ports.PairPerformance
	err := s.db.QueryRowContext(ctx, query).Scan(&perf.Pair, &perf.ProfitPct)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query best pair: %w", err)
	}
	return &perf, nil
}

// --- Helpers ---

func tradeArgs(t *domain.Trade) []interface{} {
	var closeRate sql.NullFloat64
	if t.CloseRate != 0 {
		closeRate = sql.NullFloat64{Float64: t.CloseRate, Valid: true}
	}
	var closeDate sql.NullTime
	if t.CloseDate != nil {
		closeDate = sql.NullTime{Time: *t.CloseDate, Valid: true}
	}
	var openOrderID sql.NullString
	if t.OpenOrderID != nil {
		openOrderID = sql.NullString{String: *t.OpenOrderID, Valid: true}
	}
	var liquidation, closeProfit, closeProfitPct sql.NullFloat64
	if t.LiquidationPrice != nil {
		liquidation = sql.NullFloat64{Float64: *t.LiquidationPrice, Valid: true}
	}
	if t.CloseProfit != nil {
		closeProfit = sql.NullFloat64{Float64: *t.CloseProfit, Valid: true}
	}
	if t.CloseProfitPct != nil {
		closeProfitPct = sql.NullFloat64{Float64: *t.CloseProfitPct, Valid: true}
	}

	return []interface{}{
		t.Pair, t.Exchange, t.Direction.String(), t.Amount, t.OpenRate, closeRate,
		t.StakeAmount, t.Leverage, t.Borrowed, t.FeeOpen, t.FeeClose,
		t.InterestRate, string(t.InterestMode), t.OpenDate, closeDate,
		openOrderID, t.StopLoss, t.StopLossPct,
		t.InitialStopLoss, t.InitialStopLossPct, t.MaxRate, t.MinRate,
		liquidation, closeProfit, closeProfitPct, t.IsOpen,
	}
}

// scanner is compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(sc scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var direction, interestMode string
	var closeRate, liquidation, closeProfit, closeProfitPct sql.NullFloat64
	var closeDate sql.NullTime
	var openOrderID sql.NullString
	err := sc.Scan(
		&t.ID, &t.Pair, &t.Exchange, &direction, &t.Amount, &t.OpenRate, &closeRate,
		&t.StakeAmount, &t.Leverage, &t.Borrowed, &t.FeeOpen, &t.FeeClose,
		&t.InterestRate, &interestMode, &t.OpenDate, &closeDate,
		&openOrderID, &t.StopLoss, &t.StopLossPct,
		&t.InitialStopLoss, &t.InitialStopLossPct, &t.MaxRate, &t.MinRate,
		&liquidation, &closeProfit, &closeProfitPct, &t.IsOpen)
	if err != nil {
		return nil, err // sql.ErrNoRows handled by the caller
	}

	d, ok := domain.ParseDirection(direction)
	if !ok {
		return nil, fmt.Errorf("%w: trade %d has direction %q", ports.ErrCorruptState, t.ID, direction)
	}
	t.Direction = d
	t.InterestMode = domain.InterestMode(interestMode)

	if closeRate.Valid {
		t.CloseRate = closeRate.Float64
	}
	if closeDate.Valid {
		cd := closeDate.Time
		t.CloseDate = &cd
	}
	if openOrderID.Valid {
		id := openOrderID.String
		t.OpenOrderID = &id
	}
	if liquidation.Valid {
		v := liquidation.Float64
		t.LiquidationPrice = &v
	}
	if closeProfit.Valid {
		v := closeProfit.Float64
		t.CloseProfit = &v
	}
	if closeProfitPct.Valid {
		v := closeProfitPct.Float64
		t.CloseProfitPct = &v
	}

	// A closed trade without a close_date would silently skew reporting.
	if !t.IsOpen && t.CloseDate == nil {
		return nil, fmt.Errorf("%w: trade %d is closed but has no close_date", ports.ErrCorruptState, t.ID)
	}
	return t, nil
}
