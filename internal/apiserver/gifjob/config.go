// Package gifjob GIF 合成任务编排配置
package gifjob

import "time"

// 默认值
const (
	DefaultDelayCentiseconds = 120
	DefaultWorkers           = 4
	DefaultStaleAfter        = 10 * time.Minute
	DefaultWaitTimeout       = 120 * time.Second

	// fetchConcurrency 延迟流程下载中间帧的并发数
	fetchConcurrency = 4
)

// Config 编排器配置
type Config struct {
	// DelayCentiseconds 帧间隔（1/100 秒）
	DelayCentiseconds int

	// Workers 同时执行合成的任务数上限
	Workers int

	// StaleAfter PROCESSING 超过该时长未更新时允许重新发起任务
	StaleAfter time.Duration

	// WaitTimeout 延迟流程中调用方的默认等待上限
	WaitTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DelayCentiseconds: DefaultDelayCentiseconds,
		Workers:           DefaultWorkers,
		StaleAfter:        DefaultStaleAfter,
		WaitTimeout:       DefaultWaitTimeout,
	}
}

// Validate 填充未设置的字段
func (c *Config) Validate() error {
	if c.DelayCentiseconds <= 0 {
		c.DelayCentiseconds = DefaultDelayCentiseconds
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	return nil
}
