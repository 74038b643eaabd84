package server

import (
	"math"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// SpawnRadius 开局时玩家围绕地图中心排布的半径
const SpawnRadius = 120.0

// SceneConfig 场景配置，创建时确定，之后不可变
type SceneConfig struct {
	Width                 float64 `json:"map_width"`
	Height                float64 `json:"map_height"`
	TickRate              uint32  `json:"tick_rate"`
	StateSyncRate         uint32  `json:"state_sync_rate"`
	MoveSpeed             float64 `json:"move_speed"`
	FullSyncIntervalTicks uint32  `json:"full_sync_interval_ticks"`
}

// syncCadence 同步节奏的整数表示：每帧累加 step，累计达到 threshold 即到一个同步时机。
// 等价于以 tick_rate/state_sync_rate（至少 1）为间隔的小数累加器，不整除时不会超频。
func (c SceneConfig) syncCadence() (step, threshold uint32) {
	tick := max(c.TickRate, 1)
	sync := max(c.StateSyncRate, 1)
	return min(sync, tick), tick
}

func (c SceneConfig) tickInterval() time.Duration {
	return time.Second / time.Duration(max(c.TickRate, 1))
}

// Scene 一个房间的权威模拟实例
type Scene struct {
	RoomID         uint32
	Config         SceneConfig
	Players        map[uint32]*PlayerRuntime
	order          []uint32 // 稳定的遍历/同步顺序
	Tick           uint64
	SyncCredit     uint32 // 见 syncCadence
	TicksSinceFull uint32
	loop           *sceneLoop
}

// SceneStat 管理接口使用的场景概要
type SceneStat struct {
	RoomID  uint32 `json:"room_id"`
	Tick    uint64 `json:"tick"`
	Players int    `json:"players"`
	Running bool   `json:"running"`
}

// SceneManager 每个游戏中房间一个场景；持有 player→scene 索引。
// 与 RoomManager 相同：锁内只改内存并生成快照，网络发送在解锁后进行。
type SceneManager struct {
	mu          deadlock.Mutex
	defaults    SceneConfig
	scenes      map[uint32]*Scene
	playerScene map[uint32]uint32
	metrics     *Metrics
	now         func() time.Time
}

func NewSceneManager(defaults SceneConfig, metrics *Metrics) *SceneManager {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &SceneManager{
		defaults:    defaults,
		scenes:      make(map[uint32]*Scene),
		playerScene: make(map[uint32]uint32),
		metrics:     metrics,
		now:         time.Now,
	}
}

// Defaults 返回新场景将使用的配置
func (m *SceneManager) Defaults() SceneConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaults
}

// SetDefaults 更新之后创建的场景所用配置；运行中的场景不受影响
func (m *SceneManager) SetDefaults(cfg SceneConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults = cfg
}

// CreateScene 为房间创建场景；同房间已有场景先停掉并彻底清理
func (m *SceneManager) CreateScene(snapshot RoomSnapshot) SceneInfo {
	m.StopGameLoop(snapshot.RoomID)

	m.mu.Lock()
	var stale *sceneLoop
	if old, ok := m.scenes[snapshot.RoomID]; ok {
		for pid := range old.Players {
			if m.playerScene[pid] == snapshot.RoomID {
				delete(m.playerScene, pid)
			}
		}
		stale = old.loop
		delete(m.scenes, snapshot.RoomID)
	}

	scene := &Scene{
		RoomID:  snapshot.RoomID,
		Config:  m.defaults,
		Players: make(map[uint32]*PlayerRuntime, len(snapshot.Players)),
	}
	orphaned := m.placePlayersLocked(snapshot, scene)
	m.scenes[snapshot.RoomID] = scene

	info := SceneInfo{
		SceneID:       snapshot.RoomID,
		Width:         scene.Config.Width,
		Height:        scene.Config.Height,
		TickRate:      scene.Config.TickRate,
		StateSyncRate: scene.Config.StateSyncRate,
	}
	m.mu.Unlock()

	// 竞争窗口内重新挂上的旧定时器
	stale.cancel()
	for _, l := range orphaned {
		l.cancel()
	}
	Log.Infof("scene created: room=%d players=%d", snapshot.RoomID, len(snapshot.Players))
	return info
}

// placePlayersLocked 将玩家均匀排布在以地图中心为圆心的圆上。
// 返回因玩家被迁出而变空的其他场景的定时器，由调用方在锁外取消。
func (m *SceneManager) placePlayersLocked(snapshot RoomSnapshot, scene *Scene) []*sceneLoop {
	n := len(snapshot.Players)
	if n == 0 {
		return nil
	}
	var orphaned []*sceneLoop
	cx := scene.Config.Width * 0.5
	cy := scene.Config.Height * 0.5

	for i, p := range snapshot.Players {
		// 同一玩家只能在一个场景中
		if prev, ok := m.playerScene[p.PlayerID]; ok && prev != snapshot.RoomID {
			if l := m.detachLocked(p.PlayerID); l != nil {
				orphaned = append(orphaned, l)
			}
		}
		angle := 2 * math.Pi * float64(i) / float64(n)
		x := clamp(cx+math.Cos(angle)*SpawnRadius, 0, scene.Config.Width)
		y := clamp(cy+math.Sin(angle)*SpawnRadius, 0, scene.Config.Height)

		scene.Players[p.PlayerID] = &PlayerRuntime{
			State: newPlayerState(p.PlayerID, x, y, angle*180/math.Pi, scene.Config.MoveSpeed),
			Conn:  p.Conn,
		}
		scene.order = append(scene.order, p.PlayerID)
		m.playerScene[p.PlayerID] = snapshot.RoomID
	}
	return orphaned
}

// BuildFullState 全量快照：所有玩家状态 + 时间戳 + 当前帧号
func (m *SceneManager) BuildFullState(roomID uint32) (GameStateSync, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	scene, ok := m.scenes[roomID]
	if !ok {
		return GameStateSync{}, false
	}
	return m.fullStateLocked(scene), true
}

func (m *SceneManager) fullStateLocked(scene *Scene) GameStateSync {
	sync := GameStateSync{
		RoomID:       scene.RoomID,
		ServerTimeMs: m.now().UnixMilli(),
		Tick:         scene.Tick,
		FullSync:     true,
		Players:      make([]PlayerState, 0, len(scene.order)),
	}
	for _, pid := range scene.order {
		rt := scene.Players[pid]
		sync.Players = append(sync.Players, rt.State)
	}
	return sync
}

// HandlePlayerInput 校验并入队玩家输入；返回所在场景的房间 id 与是否接受
func (m *SceneManager) HandlePlayerInput(playerID uint32, input PlayerInput) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	scene, rt, ok := m.resolveLocked(playerID)
	if !ok {
		return 0, false
	}
	if scene.loop == nil {
		return 0, false
	}

	seq := input.InputSeq
	if seq != 0 && seq <= rt.LastInputSeq {
		m.metrics.IncOldSeqIgnored()
		return 0, false
	}
	if !validDirection(input.MoveDirection.X, input.MoveDirection.Y) {
		m.metrics.IncInvalidDirection()
		return 0, false
	}

	if rt.Pending.push(PendingInput{Seq: seq, DirX: input.MoveDirection.X, DirY: input.MoveDirection.Y, DeltaMs: input.DeltaMs}) {
		m.metrics.IncQueueOverflow()
	}
	if seq != 0 {
		rt.LastInputSeq = seq
	}
	m.metrics.IncAccepted()
	return scene.RoomID, true
}

// resolveLocked player → scene → runtime；索引不一致时自愈并视为未找到
func (m *SceneManager) resolveLocked(playerID uint32) (*Scene, *PlayerRuntime, bool) {
	roomID, ok := m.playerScene[playerID]
	if !ok {
		return nil, nil, false
	}
	scene, ok := m.scenes[roomID]
	if !ok {
		delete(m.playerScene, playerID)
		Log.Warnf("player %d indexed to missing scene %d, purged", playerID, roomID)
		return nil, nil, false
	}
	rt, ok := scene.Players[playerID]
	if !ok {
		delete(m.playerScene, playerID)
		Log.Warnf("player %d indexed to scene %d without runtime, purged", playerID, roomID)
		return nil, nil, false
	}
	return scene, rt, true
}

// RemovePlayer 玩家离开/断线；场景为空时彻底删除，定时器在锁外取消
func (m *SceneManager) RemovePlayer(playerID uint32) {
	m.mu.Lock()
	loop := m.detachLocked(playerID)
	m.mu.Unlock()

	loop.cancel()
}

// detachLocked 摘除玩家；若场景因此清空，返回待取消的定时器
func (m *SceneManager) detachLocked(playerID uint32) *sceneLoop {
	roomID, ok := m.playerScene[playerID]
	if !ok {
		return nil
	}
	delete(m.playerScene, playerID)

	scene, ok := m.scenes[roomID]
	if !ok {
		return nil
	}
	delete(scene.Players, playerID)
	for i, pid := range scene.order {
		if pid == playerID {
			scene.order = append(scene.order[:i], scene.order[i+1:]...)
			break
		}
	}
	if len(scene.Players) > 0 {
		return nil
	}

	loop := scene.loop
	scene.loop = nil
	delete(m.scenes, roomID)
	Log.Infof("scene %d destroyed (empty)", roomID)
	return loop
}

// PlayerScene 查询玩家所在场景
func (m *SceneManager) PlayerScene(playerID uint32) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.playerScene[playerID]
	return id, ok
}

// SceneStats 所有场景的概要，按房间 id 升序
func (m *SceneManager) SceneStats() []SceneStat {
	m.mu.Lock()
	stats := make([]SceneStat, 0, len(m.scenes))
	for _, s := range m.scenes {
		stats = append(stats, SceneStat{RoomID: s.RoomID, Tick: s.Tick, Players: len(s.Players), Running: s.loop != nil})
	}
	m.mu.Unlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].RoomID < stats[j].RoomID })
	return stats
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
