package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pixil98/go-testutil"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server_config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, used, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "used", used, "")
	testutil.AssertEqual(t, "config", cfg, DefaultConfig())
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `{"tcp_port": 9000, "tick_rate": 30, "state_sync_rate": 10, "move_speed": 150.5}`)

	cfg, used, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "used", used, path)
	testutil.AssertEqual(t, "tcp port", cfg.TCPPort, uint16(9000))
	testutil.AssertEqual(t, "tick rate", cfg.TickRate, uint32(30))
	testutil.AssertEqual(t, "sync rate", cfg.StateSyncRate, uint32(10))
	testutil.AssertEqual(t, "move speed", cfg.MoveSpeed, 150.5)
	testutil.AssertEqual(t, "untouched map width", cfg.MapWidth, uint32(2000))
}

func TestLoadConfig_FirstExistingPathWins(t *testing.T) {
	second := writeConfigFile(t, `{"tcp_port": 8001}`)
	third := writeConfigFile(t, `{"tcp_port": 8002}`)

	cfg, used, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"), second, third)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "used", used, second)
	testutil.AssertEqual(t, "tcp port", cfg.TCPPort, uint16(8001))
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, `{"tcp_port": `)

	cfg, _, err := LoadConfig(path)
	testutil.AssertErrorContains(t, err, "parsing config")
	testutil.AssertEqual(t, "falls back to defaults", cfg, DefaultConfig())
}

func TestLoadConfig_MalformedFileKeepsEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `{"tick_rate": 30, "tcp_port": `)
	t.Setenv("ARENA_TCP_PORT", "6100")
	t.Setenv("ARENA_LOG_LEVEL", "warn")

	cfg, used, err := LoadConfig(path)
	testutil.AssertErrorContains(t, err, "parsing config")
	testutil.AssertEqual(t, "used", used, path)
	testutil.AssertEqual(t, "tcp port from env", cfg.TCPPort, uint16(6100))
	testutil.AssertEqual(t, "log level from env", cfg.LogLevel, "warn")
	testutil.AssertEqual(t, "partial file ignored", cfg.TickRate, DefaultConfig().TickRate)
}

func TestLoadConfig_MalformedFileAndBadEnv(t *testing.T) {
	path := writeConfigFile(t, `not json`)
	t.Setenv("ARENA_TICK_RATE", "fast")

	_, _, err := LoadConfig(path)
	testutil.AssertErrorContains(t, err, "parsing config")
	testutil.AssertErrorContains(t, err, "ARENA_TICK_RATE")
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ARENA_TCP_PORT", "6000")
	t.Setenv("ARENA_TICK_RATE", "120")
	t.Setenv("ARENA_LOG_LEVEL", "debug")

	cfg, _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "tcp port", cfg.TCPPort, uint16(6000))
	testutil.AssertEqual(t, "tick rate", cfg.TickRate, uint32(120))
	testutil.AssertEqual(t, "log level", cfg.LogLevel, "debug")
}

func TestLoadConfig_BadEnvValues(t *testing.T) {
	t.Setenv("ARENA_TCP_PORT", "99999")
	t.Setenv("ARENA_STATE_SYNC_RATE", "fast")

	_, _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	testutil.AssertErrorContains(t, err, "ARENA_TCP_PORT")
	testutil.AssertErrorContains(t, err, "ARENA_STATE_SYNC_RATE")
}

func TestConfig_Validate(t *testing.T) {
	tests := map[string]struct {
		modify  func(c *Config)
		expErrs []string
	}{
		"defaults are valid": {
			modify: func(c *Config) {},
		},
		"zero rates": {
			modify: func(c *Config) {
				c.TickRate = 0
				c.StateSyncRate = 0
			},
			expErrs: []string{
				"tick_rate must be at least 1",
				"state_sync_rate must be at least 1",
			},
		},
		"sync faster than tick": {
			modify:  func(c *Config) { c.StateSyncRate = 120 },
			expErrs: []string{"must not exceed tick_rate"},
		},
		"everything broken": {
			modify: func(c *Config) {
				c.TCPPort = 0
				c.MaxPlayersPerRoom = 0
				c.MapWidth = 0
				c.MoveSpeed = -1
			},
			expErrs: []string{
				"tcp_port must be set",
				"max_players_per_room must be at least 1",
				"map_width and map_height must be positive",
				"move_speed must be positive",
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()

			if len(tt.expErrs) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("expected errors %v, got nil", tt.expErrs)
				return
			}
			errStr := err.Error()
			for _, e := range tt.expErrs {
				if !strings.Contains(errStr, e) {
					t.Errorf("error %q does not contain %q", errStr, e)
				}
			}
		})
	}
}

func TestConfig_SceneConfig(t *testing.T) {
	sc := DefaultConfig().SceneConfig()
	testutil.AssertEqual(t, "width", sc.Width, 2000.0)
	testutil.AssertEqual(t, "tick rate", sc.TickRate, uint32(60))
	testutil.AssertEqual(t, "sync rate", sc.StateSyncRate, uint32(20))
	testutil.AssertEqual(t, "full sync interval", sc.FullSyncIntervalTicks, uint32(300))
	step, threshold := sc.syncCadence()
	testutil.AssertEqual(t, "sync step", step, uint32(20))
	testutil.AssertEqual(t, "sync threshold", threshold, uint32(60))
}
