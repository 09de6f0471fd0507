package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/betbot/iqbot/internal/domain"
)

var log = logrus.WithField("component", "recorder")

// Recorder 把查询到的历史仓位归档到本地 SQLite，便于离线分析
// 同一仓位重复归档时按 ID 覆盖（INSERT OR REPLACE）
type Recorder struct {
	db *sql.DB
}

// Open 打开（或创建）归档数据库并执行建表
func Open(dbPath string) (*Recorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建归档目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	r := &Recorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS history_positions (
  id INTEGER PRIMARY KEY,
  account_id INTEGER NOT NULL,
  active_id INTEGER NOT NULL,
  instrument_type TEXT NOT NULL,
  status TEXT NOT NULL,
  close_reason TEXT NOT NULL,
  invest TEXT NOT NULL,
  pnl_net TEXT NOT NULL,
  close_profit TEXT NOT NULL,
  open_time TEXT,
  close_time TEXT,
  archived_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_history_positions_account ON history_positions(account_id, close_time);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ArchivePositions 归档一批历史仓位（实现 services.PositionArchiver）
func (r *Recorder) ArchivePositions(accountID int64, positions []domain.HistoryPosition) error {
	if len(positions) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Format(time.RFC3339Nano)
	for _, p := range positions {
		var openTime, closeTime string
		if p.OpenTimeMs > 0 {
			openTime = p.OpenTime().Format(time.RFC3339Nano)
		}
		if p.CloseTimeMs > 0 {
			closeTime = p.CloseTime().Format(time.RFC3339Nano)
		}
		_, err := tx.ExecContext(ctx, `
INSERT OR REPLACE INTO history_positions
  (id,account_id,active_id,instrument_type,status,close_reason,invest,pnl_net,close_profit,open_time,close_time,archived_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
`, p.ID, accountID, p.ActiveID, p.InstrumentType, p.Status, p.CloseReason,
			p.Invest.String(), p.PnlNet.String(), p.CloseProfit.String(), openTime, closeTime, now)
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.Debugf("已归档账户 %d 的 %d 条历史仓位", accountID, len(positions))
	return nil
}

// ListByAccount 按账户查询已归档的历史仓位（按平仓时间倒序）
func (r *Recorder) ListByAccount(accountID int64, limit int) ([]domain.HistoryPosition, error) {
	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
SELECT id,active_id,instrument_type,status,close_reason,invest,pnl_net,close_profit,open_time,close_time
FROM history_positions WHERE account_id=? ORDER BY close_time DESC LIMIT ?
`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HistoryPosition
	for rows.Next() {
		var p domain.HistoryPosition
		var invest, pnlNet, closeProfit, openTime, closeTime string
		if err := rows.Scan(&p.ID, &p.ActiveID, &p.InstrumentType, &p.Status, &p.CloseReason,
			&invest, &pnlNet, &closeProfit, &openTime, &closeTime); err != nil {
			return nil, err
		}
		p.Invest = mustDecimal(invest)
		p.PnlNet = mustDecimal(pnlNet)
		p.CloseProfit = mustDecimal(closeProfit)
		if t, err := time.Parse(time.RFC3339Nano, openTime); err == nil {
			p.OpenTimeMs = t.UnixMilli()
		}
		if t, err := time.Parse(time.RFC3339Nano, closeTime); err == nil {
			p.CloseTimeMs = t.UnixMilli()
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// mustDecimal 解析十进制字符串，失败时返回零值（归档数据由本进程写入，正常不会失败）
func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Close 关闭数据库
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
