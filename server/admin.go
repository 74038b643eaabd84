package server

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/process"
)

// NewRouter 组装 HTTP 路由：WebSocket 接入 + 管理与监控接口
func (h *Hub) NewRouter() *gin.Engine {
	if parseLevel(h.cfg.LogLevel).String() == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/ws", gin.WrapF(h.HandleWS))
	r.GET("/healthz", h.handleHealth)
	r.GET("/metrics", h.handleMetrics)
	r.GET("/rooms", h.handleRooms)
	r.GET("/scenes", h.handleScenes)
	r.GET("/admin/config", h.handleGetConfig)
	r.POST("/admin/config", h.handleUpdateConfig)
	return r
}

// handleHealth 存活检查 + 进程内存
func (h *Hub) handleHealth(c *gin.Context) {
	payload := gin.H{
		"status":      "ok",
		"connections": h.Connections(),
		"sessions":    h.Sessions.Count(),
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := p.MemoryInfo(); err == nil {
			payload["rss_bytes"] = mem.RSS
		}
	}
	c.JSON(http.StatusOK, payload)
}

// handleMetrics GET /metrics
func (h *Hub) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics": h.Metrics.Snapshot(),
		"scenes":  len(h.Scenes.SceneStats()),
	})
}

func (h *Hub) handleRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Rooms.ListRooms()})
}

func (h *Hub) handleScenes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"scenes": h.Scenes.SceneStats()})
}

// handleGetConfig GET /admin/config 返回新场景默认配置
func (h *Hub) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.Scenes.Defaults())
}

// handleUpdateConfig POST /admin/config 以 JSON 载荷更新部分字段，仅影响之后创建的场景
func (h *Hub) handleUpdateConfig(c *gin.Context) {
	var body struct {
		MoveSpeed             *float64 `json:"move_speed,omitempty"`
		StateSyncRate         *uint32  `json:"state_sync_rate,omitempty"`
		FullSyncIntervalTicks *uint32  `json:"full_sync_interval_ticks,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	cfg := h.Scenes.Defaults()
	if body.MoveSpeed != nil {
		if *body.MoveSpeed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "move_speed must be positive"})
			return
		}
		cfg.MoveSpeed = *body.MoveSpeed
	}
	if body.StateSyncRate != nil {
		if *body.StateSyncRate == 0 || *body.StateSyncRate > cfg.TickRate {
			c.JSON(http.StatusBadRequest, gin.H{"error": "state_sync_rate must be within [1, tick_rate]"})
			return
		}
		cfg.StateSyncRate = *body.StateSyncRate
	}
	if body.FullSyncIntervalTicks != nil {
		cfg.FullSyncIntervalTicks = *body.FullSyncIntervalTicks
	}
	h.Scenes.SetDefaults(cfg)

	Log.Infof("config updated: move_speed=%.2f state_sync_rate=%d full_sync_interval_ticks=%d",
		cfg.MoveSpeed, cfg.StateSyncRate, cfg.FullSyncIntervalTicks)
	c.JSON(http.StatusOK, gin.H{"ok": true, "config": cfg})
}
