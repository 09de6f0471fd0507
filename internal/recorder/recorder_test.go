package recorder

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/betbot/iqbot/internal/domain"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "positions.db"))
	if err != nil {
		t.Fatalf("打开归档数据库失败: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestArchiveAndList(t *testing.T) {
	r := openTestRecorder(t)

	positions := []domain.HistoryPosition{
		{
			ID:             101,
			ActiveID:       1,
			InstrumentType: "digital-option",
			Status:         "closed",
			CloseReason:    "expired",
			Invest:         decimal.NewFromInt(10),
			PnlNet:         decimal.NewFromFloat(8.7),
			CloseProfit:    decimal.NewFromFloat(18.7),
			OpenTimeMs:     1700000000000,
			CloseTimeMs:    1700000060000,
		},
		{
			ID:             102,
			ActiveID:       2,
			InstrumentType: "binary-option",
			Status:         "closed",
			CloseReason:    "expired",
			Invest:         decimal.NewFromInt(5),
			PnlNet:         decimal.NewFromInt(-5),
			OpenTimeMs:     1700000100000,
			CloseTimeMs:    1700000160000,
		},
	}

	if err := r.ArchivePositions(42, positions); err != nil {
		t.Fatalf("归档失败: %v", err)
	}

	got, err := r.ListByAccount(42, 10)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期望 2 条记录，得到 %d", len(got))
	}

	// 按平仓时间倒序
	if got[0].ID != 102 || got[1].ID != 101 {
		t.Errorf("排序错误: %d, %d", got[0].ID, got[1].ID)
	}
	if !got[1].PnlNet.Equal(decimal.NewFromFloat(8.7)) {
		t.Errorf("盈亏数值错误: %s", got[1].PnlNet)
	}
	if got[1].CloseTimeMs != 1700000060000 {
		t.Errorf("平仓时间错误: %d", got[1].CloseTimeMs)
	}
}

func TestArchive_ReplaceOnSameID(t *testing.T) {
	r := openTestRecorder(t)

	p := domain.HistoryPosition{ID: 7, InstrumentType: "crypto", Status: "closed", CloseTimeMs: 1700000000000}
	if err := r.ArchivePositions(1, []domain.HistoryPosition{p}); err != nil {
		t.Fatalf("归档失败: %v", err)
	}

	p.Status = "settled"
	if err := r.ArchivePositions(1, []domain.HistoryPosition{p}); err != nil {
		t.Fatalf("二次归档失败: %v", err)
	}

	got, err := r.ListByAccount(1, 10)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("重复归档应覆盖，期望 1 条，得到 %d", len(got))
	}
	if got[0].Status != "settled" {
		t.Errorf("覆盖后状态应为 settled，得到 %s", got[0].Status)
	}
}

func TestArchive_EmptyBatch(t *testing.T) {
	r := openTestRecorder(t)
	if err := r.ArchivePositions(1, nil); err != nil {
		t.Errorf("空批次不应报错: %v", err)
	}
}
