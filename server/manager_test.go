package server

import (
	"math/rand"
	"testing"

	"github.com/pixil98/go-testutil"
)

func assertRoomsConsistent(t *testing.T, m *RoomManager) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	for pid, rid := range m.playerRoom {
		room, ok := m.rooms[rid]
		if !ok {
			t.Fatalf("player %d indexed to missing room %d", pid, rid)
		}
		if room.indexOf(pid) < 0 {
			t.Fatalf("player %d indexed to room %d but not a member", pid, rid)
		}
	}
	members := 0
	for id, room := range m.rooms {
		if len(room.Players) == 0 {
			t.Fatalf("room %d is empty but still registered", id)
		}
		if uint32(len(room.Players)) > room.MaxPlayers {
			t.Fatalf("room %d over capacity: %d > %d", id, len(room.Players), room.MaxPlayers)
		}
		hosts := 0
		for _, p := range room.Players {
			if p.IsHost {
				hosts++
			}
			if m.playerRoom[p.PlayerID] != id {
				t.Fatalf("member %d of room %d has index %d", p.PlayerID, id, m.playerRoom[p.PlayerID])
			}
		}
		if hosts != 1 {
			t.Fatalf("room %d has %d hosts", id, hosts)
		}
		members += len(room.Players)
	}
	if members != len(m.playerRoom) {
		t.Fatalf("index has %d entries, rooms have %d members", len(m.playerRoom), members)
	}
}

func TestRoomManager_CreateJoinLeaveFlow(t *testing.T) {
	m := NewRoomManager(4)
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}

	created := m.CreateRoom(1, "A", a, CreateRoomRequest{RoomName: "Duel", MaxPlayers: 2})
	testutil.AssertEqual(t, "create success", created.Success, true)
	testutil.AssertEqual(t, "room id", created.RoomID, uint32(1))

	joined := m.JoinRoom(2, "B", b, JoinRoomRequest{RoomID: 1})
	testutil.AssertEqual(t, "join success", joined.Success, true)

	full := m.JoinRoom(3, "C", c, JoinRoomRequest{RoomID: 1})
	testutil.AssertEqual(t, "third join", full.Success, false)
	testutil.AssertEqual(t, "third join reason", full.Message, ReasonRoomFull)
	assertRoomsConsistent(t, m)

	b.reset()
	left := m.LeaveRoom(1)
	testutil.AssertEqual(t, "leave success", left.Success, true)

	update := lastOf[RoomUpdate](t, b, MsgS2CRoomUpdate)
	testutil.AssertEqual(t, "roster size", len(update.Players), 1)
	testutil.AssertEqual(t, "remaining player", update.Players[0].PlayerID, uint32(2))
	testutil.AssertEqual(t, "new host", update.Players[0].IsHost, true)
	assertRoomsConsistent(t, m)

	m.LeaveRoom(2)
	testutil.AssertEqual(t, "rooms after last leave", len(m.ListRooms()), 0)
	_, ok := m.PlayerRoom(2)
	testutil.AssertEqual(t, "index cleared", ok, false)
}

func TestRoomManager_RosterBroadcasts(t *testing.T) {
	m := NewRoomManager(4)
	a, b := &fakeConn{}, &fakeConn{}

	m.CreateRoom(1, "A", a, CreateRoomRequest{})
	testutil.AssertEqual(t, "updates after create", len(a.byType(MsgS2CRoomUpdate)), 1)

	m.JoinRoom(2, "B", b, JoinRoomRequest{RoomID: 1})
	testutil.AssertEqual(t, "host updates after join", len(a.byType(MsgS2CRoomUpdate)), 2)
	testutil.AssertEqual(t, "joiner updates", len(b.byType(MsgS2CRoomUpdate)), 1)

	update := lastOf[RoomUpdate](t, b, MsgS2CRoomUpdate)
	testutil.AssertEqual(t, "roster order first", update.Players[0].PlayerID, uint32(1))
	testutil.AssertEqual(t, "roster order second", update.Players[1].PlayerID, uint32(2))
	testutil.AssertEqual(t, "first is host", update.Players[0].IsHost, true)
	testutil.AssertEqual(t, "second not host", update.Players[1].IsHost, false)
}

func TestRoomManager_BroadcastSkipsDepartedConnections(t *testing.T) {
	m := NewRoomManager(4)
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	m.CreateRoom(1, "A", a, CreateRoomRequest{})
	m.JoinRoom(2, "B", b, JoinRoomRequest{RoomID: 1})

	b.disconnect()
	m.JoinRoom(3, "C", c, JoinRoomRequest{RoomID: 1})

	testutil.AssertEqual(t, "departed receives nothing new", len(b.byType(MsgS2CRoomUpdate)), 1)
	testutil.AssertEqual(t, "host still notified", len(a.byType(MsgS2CRoomUpdate)), 3)
}

func TestRoomManager_Defaults(t *testing.T) {
	m := NewRoomManager(8)

	m.CreateRoom(7, "", &fakeConn{}, CreateRoomRequest{})
	m.CreateRoom(8, "Bob", &fakeConn{}, CreateRoomRequest{MaxPlayers: 100})

	rooms := m.ListRooms()
	testutil.AssertEqual(t, "room count", len(rooms), 2)
	testutil.AssertEqual(t, "first id", rooms[0].RoomID, uint32(1))
	testutil.AssertEqual(t, "default name", rooms[0].RoomName, "Room1")
	testutil.AssertEqual(t, "default max players", rooms[0].MaxPlayers, uint32(DefaultMaxPlayers))
	testutil.AssertEqual(t, "second id", rooms[1].RoomID, uint32(2))
	testutil.AssertEqual(t, "clamped max players", rooms[1].MaxPlayers, uint32(8))

	snap, ok := m.RoomSnapshot(1)
	testutil.AssertEqual(t, "snapshot found", ok, true)
	testutil.AssertEqual(t, "default player name", snap.Players[0].PlayerName, "Player7")
}

func TestRoomManager_IDsNeverReused(t *testing.T) {
	m := NewRoomManager(4)
	first := m.CreateRoom(1, "A", &fakeConn{}, CreateRoomRequest{})
	m.LeaveRoom(1)
	second := m.CreateRoom(1, "A", &fakeConn{}, CreateRoomRequest{})

	testutil.AssertEqual(t, "first id", first.RoomID, uint32(1))
	testutil.AssertEqual(t, "second id", second.RoomID, uint32(2))
}

func TestRoomManager_Rejections(t *testing.T) {
	tests := map[string]struct {
		run     func(m *RoomManager) (bool, string)
		wantMsg string
	}{
		"create when not logged in": {
			run: func(m *RoomManager) (bool, string) {
				r := m.CreateRoom(0, "", &fakeConn{}, CreateRoomRequest{})
				return r.Success, r.Message
			},
			wantMsg: ReasonNotLoggedIn,
		},
		"create while in room": {
			run: func(m *RoomManager) (bool, string) {
				r := m.CreateRoom(1, "A", &fakeConn{}, CreateRoomRequest{})
				return r.Success, r.Message
			},
			wantMsg: ReasonLeaveCurrentFirst,
		},
		"join while in room": {
			run: func(m *RoomManager) (bool, string) {
				r := m.JoinRoom(1, "A", &fakeConn{}, JoinRoomRequest{RoomID: 1})
				return r.Success, r.Message
			},
			wantMsg: ReasonAlreadyInRoom,
		},
		"join missing room": {
			run: func(m *RoomManager) (bool, string) {
				r := m.JoinRoom(5, "E", &fakeConn{}, JoinRoomRequest{RoomID: 99})
				return r.Success, r.Message
			},
			wantMsg: ReasonRoomNotFound,
		},
		"leave when not in room": {
			run: func(m *RoomManager) (bool, string) {
				r := m.LeaveRoom(5)
				return r.Success, r.Message
			},
			wantMsg: ReasonNotInRoom,
		},
		"ready when not in room": {
			run: func(m *RoomManager) (bool, string) {
				r := m.SetReady(5, true)
				return r.Success, r.Message
			},
			wantMsg: ReasonNotInRoom,
		},
		"start by non-host": {
			run: func(m *RoomManager) (bool, string) {
				m.JoinRoom(2, "B", &fakeConn{}, JoinRoomRequest{RoomID: 1})
				r, _, _ := m.StartGame(2)
				return r.Success, r.Message
			},
			wantMsg: ReasonNotHost,
		},
		"start with unready member": {
			run: func(m *RoomManager) (bool, string) {
				m.JoinRoom(2, "B", &fakeConn{}, JoinRoomRequest{RoomID: 1})
				r, _, _ := m.StartGame(1)
				return r.Success, r.Message
			},
			wantMsg: ReasonNotAllReady,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m := NewRoomManager(4)
			m.CreateRoom(1, "A", &fakeConn{}, CreateRoomRequest{})

			ok, msg := tt.run(m)
			testutil.AssertEqual(t, "success", ok, false)
			testutil.AssertEqual(t, "message", msg, tt.wantMsg)
			assertRoomsConsistent(t, m)
		})
	}
}

func TestRoomManager_StartGame(t *testing.T) {
	m := NewRoomManager(4)
	a, b := &fakeConn{}, &fakeConn{}
	m.CreateRoom(1, "A", a, CreateRoomRequest{})
	m.JoinRoom(2, "B", b, JoinRoomRequest{RoomID: 1})

	ready := m.SetReady(2, true)
	testutil.AssertEqual(t, "ready success", ready.Success, true)
	update := lastOf[RoomUpdate](t, a, MsgS2CRoomUpdate)
	testutil.AssertEqual(t, "ready broadcast", update.Players[1].IsReady, true)

	res, snap, ok := m.StartGame(1)
	testutil.AssertEqual(t, "started", ok, true)
	testutil.AssertEqual(t, "result success", res.Success, true)
	testutil.AssertEqual(t, "snapshot room", snap.RoomID, uint32(1))
	testutil.AssertEqual(t, "snapshot size", len(snap.Players), 2)
	testutil.AssertEqual(t, "snapshot order", snap.Players[0].PlayerID, uint32(1))

	rooms := m.ListRooms()
	testutil.AssertEqual(t, "is playing", rooms[0].IsPlaying, true)

	late := m.JoinRoom(3, "C", &fakeConn{}, JoinRoomRequest{RoomID: 1})
	testutil.AssertEqual(t, "late join", late.Message, ReasonRoomPlaying)

	again, _, ok := m.StartGame(1)
	testutil.AssertEqual(t, "second start", ok, false)
	testutil.AssertEqual(t, "second start reason", again.Message, ReasonRoomPlaying)

	// 游戏中离开房间依旧生效，且 is_playing 不回退
	m.LeaveRoom(2)
	rooms = m.ListRooms()
	testutil.AssertEqual(t, "still playing", rooms[0].IsPlaying, true)
}

func TestRoomManager_SoloHostCanStart(t *testing.T) {
	m := NewRoomManager(4)
	m.CreateRoom(1, "A", &fakeConn{}, CreateRoomRequest{})
	res, _, ok := m.StartGame(1)
	testutil.AssertEqual(t, "started", ok, true)
	testutil.AssertEqual(t, "message", res.Message, ResultGameStarted)
}

func TestRoomManager_SelfHealsStaleIndex(t *testing.T) {
	m := NewRoomManager(4)
	m.CreateRoom(1, "A", &fakeConn{}, CreateRoomRequest{})

	m.mu.Lock()
	m.playerRoom[9] = 42
	m.mu.Unlock()

	res := m.LeaveRoom(9)
	testutil.AssertEqual(t, "leave stale", res.Message, ReasonNotInRoom)
	_, ok := m.PlayerRoom(9)
	testutil.AssertEqual(t, "stale entry dropped", ok, false)

	created := m.CreateRoom(9, "I", &fakeConn{}, CreateRoomRequest{})
	testutil.AssertEqual(t, "create after heal", created.Success, true)
}

func TestRoomManager_RandomOperationsKeepIndexConsistent(t *testing.T) {
	m := NewRoomManager(3)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		pid := uint32(rng.Intn(10) + 1)
		switch rng.Intn(5) {
		case 0:
			m.CreateRoom(pid, "", &fakeConn{}, CreateRoomRequest{MaxPlayers: uint32(rng.Intn(4))})
		case 1, 2:
			m.JoinRoom(pid, "", &fakeConn{}, JoinRoomRequest{RoomID: uint32(rng.Intn(int(m.nextRoomID)) + 1)})
		case 3:
			m.LeaveRoom(pid)
		case 4:
			m.RemovePlayer(pid)
		}
		assertRoomsConsistent(t, m)
	}
}
