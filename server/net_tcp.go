package server

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Listener 接受 TCP 连接并为每条连接创建 Session
type Listener struct {
	hub  *Hub
	addr string
	ln   net.Listener
}

func NewListener(hub *Hub, port uint16) *Listener {
	return &Listener{hub: hub, addr: fmt.Sprintf(":%d", port)}
}

// Listen 绑定端口；端口为 0 时由系统分配，可通过 Addr 查询
func (l *Listener) Listen(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP listener on %s: %w", l.addr, err)
	}
	l.ln = ln
	Log.Infof("TCP listener started on %s", ln.Addr())
	return nil
}

func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Serve 循环接受连接，ctx 取消后返回 nil
func (l *Listener) Serve(ctx context.Context) error {
	if l.ln == nil {
		if err := l.Listen(ctx); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				Log.Info("TCP listener stopping")
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			Log.Errorf("failed to accept connection: %v", err)
			continue
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		s := l.hub.NewSession(NewTCPTransport(conn))
		go s.Run()
	}
}
