package services

import "errors"

// 账户核心的错误分类：调用方按 errors.Is 区分，决定重试、提示或终止
var (
	// ErrInvalidAccountType switch/bootstrap 收到 real/demo 之外的账户类型
	ErrInvalidAccountType = errors.New("无效的账户类型")

	// ErrAccountNotFound 最新快照中没有请求类型的账户
	ErrAccountNotFound = errors.New("未找到请求类型的账户")

	// ErrConfiguration 默认账户类型配置非法，或无法解析出默认账户
	ErrConfiguration = errors.New("账户配置无效")

	// ErrNoData 余额查询未得到响应且没有可用缓存
	ErrNoData = errors.New("没有可用的余额数据")

	// ErrNotDemoAccount 活跃账户不是模拟账户时请求重置余额
	ErrNotDemoAccount = errors.New("活跃账户不是模拟账户")
)
