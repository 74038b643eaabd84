package server

import (
	"sync/atomic"
)

// Metrics 进程级运行指标（用于监控与调试）
type Metrics struct {
	TickCount        int64 // 统计的 Tick 次数
	TotalTickNs      int64 // Tick 累计耗时（纳秒）
	InputsAccepted   int64 // 被接受的输入数
	OldSeqIgnored    int64 // 因旧序列被忽略的输入数
	InvalidDirection int64 // 方向向量越界被拒绝的输入数
	QueueOverflow    int64 // 待处理队列满而丢弃的最旧输入数
	DeltaSyncs       int64 // 增量同步次数
	FullSyncs        int64 // 强制全量同步次数
	DecodeErrors     int64 // 信封/载荷解析失败（连接保留）
	FramingErrors    int64 // 帧错误导致的断线
	SendErrors       int64 // 回包编码或入队失败（不含会话已关闭与队列溢出）
}

func (m *Metrics) IncAccepted()         { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *Metrics) IncOldSeqIgnored()    { atomic.AddInt64(&m.OldSeqIgnored, 1) }
func (m *Metrics) IncInvalidDirection() { atomic.AddInt64(&m.InvalidDirection, 1) }
func (m *Metrics) IncQueueOverflow()    { atomic.AddInt64(&m.QueueOverflow, 1) }
func (m *Metrics) IncDeltaSync()        { atomic.AddInt64(&m.DeltaSyncs, 1) }
func (m *Metrics) IncFullSync()         { atomic.AddInt64(&m.FullSyncs, 1) }
func (m *Metrics) IncDecodeError()      { atomic.AddInt64(&m.DecodeErrors, 1) }
func (m *Metrics) IncFramingError()     { atomic.AddInt64(&m.FramingErrors, 1) }
func (m *Metrics) IncSendError()        { atomic.AddInt64(&m.SendErrors, 1) }
func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":        tick,
		"avg_tick_ms":       avgMs,
		"inputs_accepted":   atomic.LoadInt64(&m.InputsAccepted),
		"old_seq_ignored":   atomic.LoadInt64(&m.OldSeqIgnored),
		"invalid_direction": atomic.LoadInt64(&m.InvalidDirection),
		"queue_overflow":    atomic.LoadInt64(&m.QueueOverflow),
		"delta_syncs":       atomic.LoadInt64(&m.DeltaSyncs),
		"full_syncs":        atomic.LoadInt64(&m.FullSyncs),
		"decode_errors":     atomic.LoadInt64(&m.DecodeErrors),
		"framing_errors":    atomic.LoadInt64(&m.FramingErrors),
		"send_errors":       atomic.LoadInt64(&m.SendErrors),
	}
}
