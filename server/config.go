package server

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pixil98/go-errors"
)

// Config 服务器整体配置（JSON 文件 + 环境变量覆盖），缺省时使用默认值
type Config struct {
	TCPPort               uint16  `json:"tcp_port"`
	HTTPAddr              string  `json:"http_addr"`
	MaxPlayersPerRoom     uint32  `json:"max_players_per_room"`
	TickRate              uint32  `json:"tick_rate"`
	StateSyncRate         uint32  `json:"state_sync_rate"`
	MapWidth              uint32  `json:"map_width"`
	MapHeight             uint32  `json:"map_height"`
	MoveSpeed             float64 `json:"move_speed"`
	FullSyncIntervalTicks uint32  `json:"full_sync_interval_ticks"`
	HeartbeatTimeoutSec   uint32  `json:"heartbeat_timeout_sec"`
	LogLevel              string  `json:"log_level"`
	LogFile               string  `json:"log_file"`
	LogConsole            bool    `json:"log_console"`
}

// DefaultConfigPaths 未显式指定时依次尝试的配置文件路径
var DefaultConfigPaths = []string{
	"config/server_config.json",
	"../config/server_config.json",
	"server/config/server_config.json",
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		TCPPort:               7777,
		HTTPAddr:              ":8080",
		MaxPlayersPerRoom:     4,
		TickRate:              60,
		StateSyncRate:         20,
		MapWidth:              2000,
		MapHeight:             2000,
		MoveSpeed:             200,
		FullSyncIntervalTicks: 300,
		HeartbeatTimeoutSec:   60,
		LogLevel:              "info",
		LogFile:               "app.log",
		LogConsole:            true,
	}
}

// LoadConfig 读取第一个存在的配置文件并叠加环境变量。
// 文件不存在不是错误（返回默认值）；文件存在但内容非法时回退默认值并返回错误，环境变量仍然生效。
func LoadConfig(paths ...string) (Config, string, error) {
	cfg := DefaultConfig()
	if len(paths) == 0 {
		paths = DefaultConfigPaths
	}

	el := errors.NewErrorList()
	var used string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		used = p
		fileCfg := cfg
		if err := json.Unmarshal(data, &fileCfg); err != nil {
			el.Add(fmt.Errorf("parsing config %s: %w", p, err))
			break
		}
		cfg = fileCfg
		break
	}

	// .env 可选
	_ = godotenv.Load()
	el.Add(cfg.applyEnv())
	return cfg, used, el.Err()
}

func (c *Config) applyEnv() error {
	el := errors.NewErrorList()

	if v := os.Getenv("ARENA_TCP_PORT"); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			el.Add(fmt.Errorf("ARENA_TCP_PORT: %w", err))
		} else {
			c.TCPPort = uint16(n)
		}
	}
	if v := os.Getenv("ARENA_HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("ARENA_TICK_RATE"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			el.Add(fmt.Errorf("ARENA_TICK_RATE: %w", err))
		} else {
			c.TickRate = uint32(n)
		}
	}
	if v := os.Getenv("ARENA_STATE_SYNC_RATE"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			el.Add(fmt.Errorf("ARENA_STATE_SYNC_RATE: %w", err))
		} else {
			c.StateSyncRate = uint32(n)
		}
	}
	if v := os.Getenv("ARENA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	return el.Err()
}

// Validate 校验配置取值
func (c Config) Validate() error {
	el := errors.NewErrorList()

	if c.TCPPort == 0 {
		el.Add(fmt.Errorf("tcp_port must be set to a positive integer"))
	}
	if c.MaxPlayersPerRoom == 0 {
		el.Add(fmt.Errorf("max_players_per_room must be at least 1"))
	}
	if c.TickRate == 0 {
		el.Add(fmt.Errorf("tick_rate must be at least 1"))
	}
	if c.StateSyncRate == 0 {
		el.Add(fmt.Errorf("state_sync_rate must be at least 1"))
	} else if c.StateSyncRate > c.TickRate {
		el.Add(fmt.Errorf("state_sync_rate (%d) must not exceed tick_rate (%d)", c.StateSyncRate, c.TickRate))
	}
	if c.MapWidth == 0 || c.MapHeight == 0 {
		el.Add(fmt.Errorf("map_width and map_height must be positive"))
	}
	if c.MoveSpeed <= 0 {
		el.Add(fmt.Errorf("move_speed must be positive"))
	}

	return el.Err()
}

// SceneConfig 由全局配置派生场景默认配置
func (c Config) SceneConfig() SceneConfig {
	return SceneConfig{
		Width:                 float64(c.MapWidth),
		Height:                float64(c.MapHeight),
		TickRate:              c.TickRate,
		StateSyncRate:         c.StateSyncRate,
		MoveSpeed:             c.MoveSpeed,
		FullSyncIntervalTicks: c.FullSyncIntervalTicks,
	}
}
