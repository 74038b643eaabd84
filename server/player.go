package server

// 玩家初始属性
const (
	DefaultMaxHealth = 100
	DefaultAttack    = 10
	DefaultExpToNext = 100
)

// PlayerState 广播给客户端的玩家完整状态
type PlayerState struct {
	PlayerID              uint32  `msgpack:"player_id"`
	Position              Vector2 `msgpack:"position"`
	Rotation              float64 `msgpack:"rotation"`
	Health                int32   `msgpack:"health"`
	MaxHealth             int32   `msgpack:"max_health"`
	Level                 uint32  `msgpack:"level"`
	Exp                   uint32  `msgpack:"exp"`
	ExpToNext             uint32  `msgpack:"exp_to_next"`
	IsAlive               bool    `msgpack:"is_alive"`
	Attack                uint32  `msgpack:"attack"`
	IsFriendly            bool    `msgpack:"is_friendly"`
	RoleID                uint32  `msgpack:"role_id"`
	CriticalHitRate       uint32  `msgpack:"critical_hit_rate"`
	HasBuff               bool    `msgpack:"has_buff"`
	BuffID                uint32  `msgpack:"buff_id"`
	AttackSpeed           uint32  `msgpack:"attack_speed"`
	MoveSpeed             float64 `msgpack:"move_speed"`
	LastProcessedInputSeq uint32  `msgpack:"last_processed_input_seq"`
}

func newPlayerState(playerID uint32, x, y, rotation, moveSpeed float64) PlayerState {
	return PlayerState{
		PlayerID:    playerID,
		Position:    Vector2{X: x, Y: y},
		Rotation:    rotation,
		Health:      DefaultMaxHealth,
		MaxHealth:   DefaultMaxHealth,
		Level:       1,
		ExpToNext:   DefaultExpToNext,
		IsAlive:     true,
		Attack:      DefaultAttack,
		IsFriendly:  true,
		AttackSpeed: 1,
		MoveSpeed:   moveSpeed,
	}
}

// PlayerRuntime 场景内玩家的服务端运行时状态
type PlayerRuntime struct {
	State        PlayerState
	LastInputSeq uint32 // 最近一次被接受的输入序号
	Pending      inputQueue
	Dirty        bool // 需要出现在下一次增量同步中
	Conn         ConnRef
}
