package server

import (
	"math"
	"sync"
	"time"
)

const (
	// 位移超过该值才算真正移动
	moveEpsilon = 1e-4
)

// sceneLoop 场景定时器的取消令牌。每次触发先检查令牌，取消后在途回调直接返回，不再续期。
type sceneLoop struct {
	stop chan struct{}
	once sync.Once
}

func newSceneLoop() *sceneLoop {
	return &sceneLoop{stop: make(chan struct{})}
}

// cancel 可重复调用，nil 安全
func (l *sceneLoop) cancel() {
	if l == nil {
		return
	}
	l.once.Do(func() { close(l.stop) })
}

func (l *sceneLoop) canceled() bool {
	if l == nil {
		return true
	}
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// StartGameLoop 为房间启动固定逻辑帧循环；已有循环会被替换
func (m *SceneManager) StartGameLoop(roomID uint32) bool {
	m.mu.Lock()
	scene, ok := m.scenes[roomID]
	if !ok {
		m.mu.Unlock()
		Log.Warnf("room %d has no scene, cannot start game loop", roomID)
		return false
	}
	old := scene.loop
	loop := newSceneLoop()
	scene.loop = loop
	scene.Tick = 0
	scene.SyncCredit = 0
	scene.TicksSinceFull = 0
	cfg := scene.Config
	m.mu.Unlock()

	old.cancel()

	dt := 1.0 / float64(max(cfg.TickRate, 1))
	go m.runLoop(roomID, loop, cfg.tickInterval(), dt)
	Log.Debugf("room %d game loop started, tick_rate=%d state_sync_rate=%d", roomID, cfg.TickRate, cfg.StateSyncRate)
	return true
}

// StopGameLoop 停止房间的逻辑帧循环（场景本身保留）
func (m *SceneManager) StopGameLoop(roomID uint32) {
	m.mu.Lock()
	var loop *sceneLoop
	if scene, ok := m.scenes[roomID]; ok {
		loop = scene.loop
		scene.loop = nil
	}
	m.mu.Unlock()

	loop.cancel()
}

// runLoop 单个场景的 Tick 协程
func (m *SceneManager) runLoop(roomID uint32, loop *sceneLoop, interval time.Duration, dt float64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-loop.stop:
			return
		case <-ticker.C:
		}
		if loop.canceled() {
			return
		}
		start := time.Now()
		if !m.processTick(roomID, loop, dt) {
			return
		}
		m.metrics.AddTick(time.Since(start).Nanoseconds())
	}
}

// processTick 推进一帧：锁内计算同步载荷，解锁后再发送。
// 场景已不存在或循环已被替换时返回 false。
func (m *SceneManager) processTick(roomID uint32, loop *sceneLoop, dt float64) bool {
	m.mu.Lock()
	scene, ok := m.scenes[roomID]
	if !ok || scene.loop != loop || loop.canceled() {
		m.mu.Unlock()
		return false
	}
	msg, targets := m.stepLocked(scene, dt)
	m.mu.Unlock()

	if msg != nil {
		broadcast(targets, MsgS2CGameStateSync, msg)
		if msg.FullSync {
			m.metrics.IncFullSync()
		} else {
			m.metrics.IncDeltaSync()
		}
	}
	return true
}

// stepLocked 每个有输入的玩家消费一条输入并积分移动，随后决定是否同步。
// 增量同步：每 tick_rate/state_sync_rate 帧（可为小数）一个同步时机，时机到且存在 dirty 玩家时只发 dirty 玩家；
// 另外每 FullSyncIntervalTicks 帧强制一次全量同步。
func (m *SceneManager) stepLocked(scene *Scene, dt float64) (*GameStateSync, []ConnRef) {
	cfg := scene.Config
	anyDirty := false

	for _, pid := range scene.order {
		rt := scene.Players[pid]
		if in, ok := rt.Pending.pop(); ok {
			applyInput(rt, in, cfg, dt)
			rt.Dirty = true
		}
		anyDirty = anyDirty || rt.Dirty
	}

	scene.Tick++
	scene.TicksSinceFull++

	step, threshold := cfg.syncCadence()
	scene.SyncCredit += step
	due := scene.SyncCredit >= threshold
	if due {
		scene.SyncCredit -= threshold
	}

	if cfg.FullSyncIntervalTicks > 0 && scene.TicksSinceFull >= cfg.FullSyncIntervalTicks {
		full := m.fullStateLocked(scene)
		for _, rt := range scene.Players {
			rt.Dirty = false
		}
		scene.TicksSinceFull = 0
		return &full, sceneTargets(scene)
	}

	if !due || !anyDirty {
		return nil, nil
	}

	delta := &GameStateSync{
		RoomID:       scene.RoomID,
		ServerTimeMs: m.now().UnixMilli(),
		Tick:         scene.Tick,
	}
	for _, pid := range scene.order {
		rt := scene.Players[pid]
		if !rt.Dirty {
			continue
		}
		delta.Players = append(delta.Players, rt.State)
		rt.Dirty = false
	}
	return delta, sceneTargets(scene)
}

// applyInput 归一化方向后按速度积分并裁剪到地图范围内，返回是否发生位移
func applyInput(rt *PlayerRuntime, in PendingInput, cfg SceneConfig, dt float64) bool {
	if in.Seq > rt.State.LastProcessedInputSeq {
		rt.State.LastProcessedInputSeq = in.Seq
	}

	lenSq := in.DirX*in.DirX + in.DirY*in.DirY
	if lenSq < directionEpsilonSq {
		return false
	}
	length := math.Sqrt(lenSq)
	dx := in.DirX / length
	dy := in.DirY / length

	speed := rt.State.MoveSpeed
	if speed <= 0 {
		speed = cfg.MoveSpeed
	}

	pos := &rt.State.Position
	nx := clamp(pos.X+dx*speed*dt, 0, cfg.Width)
	ny := clamp(pos.Y+dy*speed*dt, 0, cfg.Height)
	moved := math.Abs(nx-pos.X) > moveEpsilon || math.Abs(ny-pos.Y) > moveEpsilon

	pos.X = nx
	pos.Y = ny
	rt.State.Rotation = degreesFromDirection(dx, dy)
	return moved
}

func degreesFromDirection(x, y float64) float64 {
	if math.Abs(x) < 1e-6 && math.Abs(y) < 1e-6 {
		return 0
	}
	return math.Atan2(y, x) * 180 / math.Pi
}

func sceneTargets(scene *Scene) []ConnRef {
	targets := make([]ConnRef, 0, len(scene.order))
	for _, pid := range scene.order {
		targets = append(targets, scene.Players[pid].Conn)
	}
	return targets
}
