package server

import (
	"sync"
	"testing"
)

// fakeConn 记录推送给它的所有消息，同时充当 ConnRef
type fakeConn struct {
	mu   sync.Mutex
	msgs []Envelope
	gone bool
}

func (f *fakeConn) Send(t MessageType, payload any) error {
	b, err := EncodeEnvelope(t, payload)
	if err != nil {
		return err
	}
	return f.SendEncoded(b)
}

func (f *fakeConn) SendEncoded(b []byte) error {
	env, err := DecodeEnvelope(b)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, env)
	return nil
}

func (f *fakeConn) Resolve() (Sender, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone {
		return nil, false
	}
	return f, true
}

func (f *fakeConn) disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gone = true
}

func (f *fakeConn) byType(t MessageType) []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Envelope
	for _, e := range f.msgs {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = nil
}

func decodeAll[T any](t *testing.T, envs []Envelope) []T {
	t.Helper()
	out := make([]T, 0, len(envs))
	for _, e := range envs {
		v, err := DecodePayload[T](e)
		if err != nil {
			t.Fatalf("decode %s: %v", e.Type, err)
		}
		out = append(out, v)
	}
	return out
}

func lastOf[T any](t *testing.T, f *fakeConn, typ MessageType) T {
	t.Helper()
	envs := f.byType(typ)
	if len(envs) == 0 {
		t.Fatalf("no %s received", typ)
	}
	return decodeAll[T](t, envs[len(envs)-1:])[0]
}
