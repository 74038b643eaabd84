package server

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformedPayload 载荷与消息类型不匹配；连接保留
var ErrMalformedPayload = errors.New("malformed payload")

// EncodeEnvelope 序列化载荷并包进信封（不含长度前缀）
func EncodeEnvelope(t MessageType, payload any) ([]byte, error) {
	if t == MsgUnknown {
		return nil, fmt.Errorf("trying to encode envelope with unknown type")
	}
	if payload == nil {
		return nil, fmt.Errorf("trying to encode nil payload for %s", t)
	}
	pb, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", t, err)
	}
	b, err := msgpack.Marshal(&Envelope{Type: t, Payload: pb})
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", t, err)
	}
	return b, nil
}

// DecodeEnvelope 解析信封；失败可恢复（帧边界依然可信）
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("decoding envelope: empty frame")
	}
	var e Envelope
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	return e, nil
}

// DecodePayload 将信封载荷解析为具体消息类型；空载荷视为零值消息
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 {
		return out, nil
	}
	if err := msgpack.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("decoding %s payload: %w: %w", env.Type, ErrMalformedPayload, err)
	}
	return out, nil
}
