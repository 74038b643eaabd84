package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxPacketSize 单个信封的最大字节数（64 KiB）
	MaxPacketSize = 64 * 1024
	frameHeaderSize = 4
)

var (
	ErrZeroLength     = errors.New("zero-length frame")
	ErrPacketTooLarge = errors.New("frame exceeds max packet size")
)

// ReadFrame 读取一帧：4 字节大端长度 + 信封字节。
// 长度为 0 或超过 MaxPacketSize 视为致命错误，调用方应断开连接。
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading frame length: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length == 0 {
		return nil, ErrZeroLength
	}
	if length > MaxPacketSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPacketTooLarge, length, MaxPacketSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading frame payload (%d bytes): %w", length, err)
	}
	return payload, nil
}

// AppendFrame 为信封字节加上长度前缀，返回可整体写出的一帧
func AppendFrame(dst, envelope []byte) ([]byte, error) {
	if len(envelope) == 0 {
		return nil, ErrZeroLength
	}
	if len(envelope) > MaxPacketSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPacketTooLarge, len(envelope), MaxPacketSize)
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(envelope)))
	return append(dst, envelope...), nil
}

// WriteFrame 写出一帧（单次 Write，保证帧不被拆散交错）
func WriteFrame(w io.Writer, envelope []byte) error {
	frame, err := AppendFrame(make([]byte, 0, frameHeaderSize+len(envelope)), envelope)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
