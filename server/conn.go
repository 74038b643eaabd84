package server

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"
)

// MaxOutboundQueue 单连接允许堆积的待发送帧数；超过即认为对端卡死
const MaxOutboundQueue = 4096

var (
	ErrSessionClosed    = errors.New("session closed")
	ErrOutboundOverflow = errors.New("outbound queue overflow")
)

// Transport 抽象一条有序的信封流（TCP 长度前缀帧或 WebSocket 二进制消息）
type Transport interface {
	// ReadEnvelope 阻塞读取下一条完整信封；任何错误都意味着连接不可再用
	ReadEnvelope() ([]byte, error)
	WriteEnvelope(b []byte) error
	SetReadDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// tcpTransport 基于 4 字节大端长度前缀的 TCP 传输
type tcpTransport struct {
	conn net.Conn
	r    *bufio.Reader
}

func NewTCPTransport(conn net.Conn) Transport {
	return &tcpTransport{conn: conn, r: bufio.NewReader(conn)}
}

func (t *tcpTransport) ReadEnvelope() ([]byte, error) { return ReadFrame(t.r) }

func (t *tcpTransport) WriteEnvelope(b []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return WriteFrame(t.conn, b)
}

func (t *tcpTransport) SetReadDeadline(d time.Time) error { return t.conn.SetReadDeadline(d) }

func (t *tcpTransport) RemoteAddr() string {
	if a := t.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

func (t *tcpTransport) Close() error { return t.conn.Close() }

// outboundQueue 无背压的 FIFO 发送队列，由唯一的写协程顺序取出
type outboundQueue struct {
	mu     sync.Mutex
	items  [][]byte
	closed bool
	notify chan struct{}
	limit  int
}

func newOutboundQueue(limit int) *outboundQueue {
	return &outboundQueue{notify: make(chan struct{}, 1), limit: limit}
}

func (q *outboundQueue) push(b []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrSessionClosed
	}
	if q.limit > 0 && len(q.items) >= q.limit {
		q.mu.Unlock()
		return ErrOutboundOverflow
	}
	q.items = append(q.items, b)
	q.mu.Unlock()

	q.wake()
	return nil
}

// take 取走当前全部待发帧
func (q *outboundQueue) take() ([][]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.items
	q.items = nil
	return batch, q.closed
}

func (q *outboundQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *outboundQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// writePump 独立协程：严格顺序写出，同一连接上永远只有一个写操作在进行
func (q *outboundQueue) writePump(t Transport) error {
	for {
		batch, closed := q.take()
		for _, b := range batch {
			if err := t.WriteEnvelope(b); err != nil {
				return err
			}
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return nil
		}
		<-q.notify
	}
}
