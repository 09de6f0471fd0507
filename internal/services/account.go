// Package services 实现账户状态同步核心：
// 账户目录（全量余额快照）、默认账户选择、活跃账户切换与订阅换绑
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/iqbot/internal/domain"
	"github.com/betbot/iqbot/internal/protocol"
	"github.com/betbot/iqbot/pkg/iqws"
)

var log = logrus.WithField("component", "account_service")

const defaultRefillAmount = 10000

// Gateway 账户核心对传输层的全部要求：
// 即发即弃的发送，以及按消息名注册等待者（必须在发送前注册）
type Gateway interface {
	Send(outerName string, req protocol.Request) error
	Expect(messageName string) iqws.Response
}

// Config 账户服务配置（构造时显式传入，不依赖全局设置）
type Config struct {
	DefaultAccountType domain.AccountType // 启动时的默认账户类型（仅 real/demo）
	TournamentType     domain.AccountType // 锦标赛账户的类型编码
	ResponseTimeout    time.Duration      // 等待响应的超时时间
}

// AccountService 管理活跃账户状态
// 单写者约束：currentID 与快照只在持有 mu 时读写，
// refresh→swap→commit 全程持锁，两次 switch 不可能交错
type AccountService struct {
	gw  Gateway
	cfg Config

	mu         sync.Mutex
	currentID  int64
	hasCurrent bool
	snapshot   *domain.AccountSnapshot

	recorder PositionArchiver // 历史仓位归档（可选）
}

// PositionArchiver 历史仓位归档接口（由 recorder 包实现）
type PositionArchiver interface {
	ArchivePositions(accountID int64, positions []domain.HistoryPosition) error
}

// NewAccountService 创建账户服务
func NewAccountService(gw Gateway, cfg Config) *AccountService {
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 10 * time.Second
	}
	if cfg.TournamentType == 0 {
		cfg.TournamentType = domain.AccountTypeTournament
	}
	return &AccountService{gw: gw, cfg: cfg}
}

// SetPositionArchiver 设置历史仓位归档器
func (s *AccountService) SetPositionArchiver(r PositionArchiver) {
	s.recorder = r
}

// CurrentID 返回当前活跃账户 ID
func (s *AccountService) CurrentID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID, s.hasCurrent
}

// CurrentAccount 返回当前活跃账户在最新快照中的记录
func (s *AccountService) CurrentAccount() (domain.AccountRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCurrent {
		return domain.AccountRecord{}, false
	}
	return s.snapshot.FindByID(s.currentID)
}

// CurrentBalance 返回当前活跃账户的余额
// 没有活跃账户或快照中没有该账户时返回 false
func (s *AccountService) CurrentBalance() (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCurrent {
		return decimal.Zero, false
	}
	r, ok := s.snapshot.FindByID(s.currentID)
	if !ok {
		return decimal.Zero, false
	}
	return r.Amount, true
}

// BalanceOf 在最新快照中查找指定账户的余额；账户不存在时返回 false，不报错
func (s *AccountService) BalanceOf(accountID int64) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.snapshot.FindByID(accountID)
	if !ok {
		return decimal.Zero, false
	}
	return r.Amount, true
}

// Refresh 查询全量余额并整体替换缓存快照
// 超时后若有旧快照则降级返回旧快照，否则返回 ErrNoData
func (s *AccountService) Refresh() (*domain.AccountSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked()
}

// refreshLocked 必须持有 s.mu 调用
func (s *AccountService) refreshLocked() (*domain.AccountSnapshot, error) {
	w := s.gw.Expect(protocol.NameBalances)
	if err := s.gw.Send(protocol.OuterSendMessage, protocol.GetBalances()); err != nil {
		return nil, fmt.Errorf("发送余额查询失败: %w", err)
	}

	env, ok := w.Wait(s.cfg.ResponseTimeout)
	if !ok {
		if s.snapshot != nil {
			log.Warnf("余额查询超时（%v），降级使用缓存快照", s.cfg.ResponseTimeout)
			return s.snapshot, nil
		}
		return nil, fmt.Errorf("%w: 余额查询超时且无缓存", ErrNoData)
	}

	snap, err := protocol.ParseBalances(env.Msg)
	if err != nil {
		return nil, err
	}
	s.snapshot = snap
	return snap, nil
}

// TournamentAccounts 返回最新快照中的锦标赛账户
// 只读缓存，不触发网络查询；新鲜度由调用方通过 Refresh 控制
func (s *AccountService) TournamentAccounts() []domain.TournamentAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil
	}
	out := make([]domain.TournamentAccount, 0)
	for _, r := range s.snapshot.Records {
		if r.Type != s.cfg.TournamentType {
			continue
		}
		name := r.TournamentName
		if name == "" {
			name = r.Name
		}
		out = append(out, domain.TournamentAccount{ID: r.ID, Name: name, Balance: r.Amount})
	}
	return out
}

// Switch 切换活跃账户到指定类型（real/demo，大小写不敏感）
// 顺序保证：先刷新快照，换绑订阅完成后才提交新 ID
func (s *AccountService) Switch(accountType string) error {
	target, ok := domain.ParseAccountType(accountType)
	if !ok {
		return fmt.Errorf("%w: %q（只接受 real/demo）", ErrInvalidAccountType, accountType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 切换不允许基于过期数据：先取新快照
	snap, err := s.refreshLocked()
	if err != nil {
		return err
	}

	rec, ok := snap.FirstByType(target)
	if !ok {
		return fmt.Errorf("%w: 类型 %s", ErrAccountNotFound, target)
	}

	var oldID *int64
	if s.hasCurrent {
		id := s.currentID
		oldID = &id
	}

	if err := s.swapSubscriptions(oldID, rec.ID); err != nil {
		return err
	}

	// 换绑指令全部发出后才提交，避免中途崩溃留下指向无订阅账户的状态
	s.currentID = rec.ID
	s.hasCurrent = true

	fields := logrus.Fields{
		"new_id":  rec.ID,
		"type":    target.String(),
		"balance": rec.Amount,
	}
	if oldID != nil {
		fields["old_id"] = *oldID
	}
	log.WithFields(fields).Info("账户已切换")
	return nil
}

// Bootstrap 启动时选定默认账户并完成初次订阅（无旧 ID，只订阅不退订）
// 优先使用会话载荷中按类型区分的账户 ID，载荷缺失时回退到快照扫描
func (s *AccountService) Bootstrap(profile *protocol.Profile) error {
	target := s.cfg.DefaultAccountType
	if target != domain.AccountTypeReal && target != domain.AccountTypeDemo {
		return fmt.Errorf("%w: 默认账户类型必须是 real 或 demo", ErrConfiguration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, refreshErr := s.refreshLocked()

	id, ok := profile.AccountIDByType(target)
	if !ok {
		if refreshErr != nil {
			return refreshErr
		}
		rec, found := snap.FirstByType(target)
		if !found {
			return fmt.Errorf("%w: 会话载荷与快照中都没有 %s 账户", ErrConfiguration, target)
		}
		id = rec.ID
	}

	if err := s.swapSubscriptions(nil, id); err != nil {
		return err
	}

	s.currentID = id
	s.hasCurrent = true

	fields := logrus.Fields{"id": id, "type": target.String()}
	if r, found := s.snapshot.FindByID(id); found {
		fields["balance"] = r.Amount
	}
	log.WithFields(fields).Info("默认账户已就绪")
	return nil
}

// swapSubscriptions 按账户换绑持仓变更订阅
// 先整批退订旧账户再整批订阅新账户，避免同一产品类别同时挂在两个账户上
func (s *AccountService) swapSubscriptions(oldID *int64, newID int64) error {
	if oldID != nil {
		for _, class := range domain.AllInstrumentClasses() {
			req := protocol.PositionChanged(class, *oldID)
			if err := s.gw.Send(protocol.OuterUnsubscribe, req); err != nil {
				return fmt.Errorf("退订 %s 失败: %w", class, err)
			}
		}
	}
	for _, class := range domain.AllInstrumentClasses() {
		req := protocol.PositionChanged(class, newID)
		if err := s.gw.Send(protocol.OuterSubscribe, req); err != nil {
			return fmt.Errorf("订阅 %s 失败: %w", class, err)
		}
	}
	return nil
}

// RefillDemoBalance 重置模拟账户余额（amount <= 0 时使用默认 10000）
// 活跃账户不是模拟账户时返回 ErrNotDemoAccount，且不发送任何消息
func (s *AccountService) RefillDemoBalance(amount int64) error {
	if amount <= 0 {
		amount = defaultRefillAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasCurrent {
		return fmt.Errorf("%w: 尚无活跃账户", ErrNotDemoAccount)
	}
	rec, ok := s.snapshot.FindByID(s.currentID)
	if !ok || rec.Type != domain.AccountTypeDemo {
		return fmt.Errorf("%w: 当前账户 %d", ErrNotDemoAccount, s.currentID)
	}

	w := s.gw.Expect(protocol.NameTrainingBalanceReset)
	if err := s.gw.Send(protocol.OuterSendMessage, protocol.ResetTrainingBalance(amount, s.currentID)); err != nil {
		return fmt.Errorf("发送余额重置失败: %w", err)
	}

	env, ok := w.Wait(s.cfg.ResponseTimeout)
	if !ok {
		log.Warnf("余额重置响应超时（%v）", s.cfg.ResponseTimeout)
		return nil
	}

	switch env.Status {
	case 2000:
		log.Infof("模拟账户余额已重置为 %d", amount)
	case 4001:
		log.Warnf("余额重置被拒绝: %s", string(env.Msg))
	default:
		log.Infof("余额重置响应: status=%d", env.Status)
	}
	return nil
}
