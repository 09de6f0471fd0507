package services

import (
	"fmt"
	"time"

	"github.com/betbot/iqbot/internal/domain"
	"github.com/betbot/iqbot/internal/protocol"
	"github.com/betbot/iqbot/pkg/persistence"
)

// 历史仓位查询默认值
const (
	defaultHistoryLimit  = 300
	defaultHistoryWindow = 24 * time.Hour
)

// HistoryPositionsByPage 分页查询当前账户的历史仓位
func (s *AccountService) HistoryPositionsByPage(instrumentTypes []string, limit, offset int) ([]domain.HistoryPosition, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasCurrent {
		return nil, fmt.Errorf("%w: 尚无活跃账户", ErrNoData)
	}

	req := protocol.HistoryPositionsByPage(instrumentTypes, s.currentID, limit, offset)
	return s.queryPositionsLocked(req)
}

// HistoryPositionsByTime 按时间区间查询当前账户的历史仓位
// end 为零值时取当前时间，start 为零值时取 end 前 24 小时
func (s *AccountService) HistoryPositionsByTime(instrumentTypes []string, start, end time.Time) ([]domain.HistoryPosition, error) {
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.Add(-defaultHistoryWindow)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasCurrent {
		return nil, fmt.Errorf("%w: 尚无活跃账户", ErrNoData)
	}

	req := protocol.HistoryPositionsByTime(instrumentTypes, s.currentID, start.Unix(), end.Unix())
	return s.queryPositionsLocked(req)
}

// queryPositionsLocked 必须持有 s.mu 调用
func (s *AccountService) queryPositionsLocked(req protocol.Request) ([]domain.HistoryPosition, error) {
	w := s.gw.Expect(protocol.NameHistoryPositions)
	if err := s.gw.Send(protocol.OuterSendMessage, req); err != nil {
		return nil, fmt.Errorf("发送历史仓位查询失败: %w", err)
	}

	env, ok := w.Wait(s.cfg.ResponseTimeout)
	if !ok {
		return nil, fmt.Errorf("等待历史仓位响应超时（%v）", s.cfg.ResponseTimeout)
	}

	positions, err := protocol.ParseHistoryPositions(env.Msg)
	if err != nil {
		return nil, err
	}

	// 归档到本地存储（可选，失败只记日志不影响查询结果）
	if s.recorder != nil && len(positions) > 0 {
		if err := s.recorder.ArchivePositions(s.currentID, positions); err != nil {
			log.Warnf("归档历史仓位失败: %v", err)
		}
	}

	return positions, nil
}

// FilteredPositionHistory 查询历史仓位并生成只含分析字段的摘要
func (s *AccountService) FilteredPositionHistory(instrumentTypes []string, limit, offset int) ([]domain.PositionSummary, error) {
	positions, err := s.HistoryPositionsByPage(instrumentTypes, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PositionSummary, 0, len(positions))
	for _, p := range positions {
		out = append(out, p.Summary())
	}
	return out, nil
}

// ExportPositionSummaries 查询历史仓位摘要并写入持久化存储
func (s *AccountService) ExportPositionSummaries(store persistence.Store, instrumentTypes []string, limit, offset int) error {
	summaries, err := s.FilteredPositionHistory(instrumentTypes, limit, offset)
	if err != nil {
		return err
	}
	if err := store.Save(summaries); err != nil {
		return fmt.Errorf("保存仓位摘要失败: %w", err)
	}
	log.Infof("已导出 %d 条仓位摘要", len(summaries))
	return nil
}
