package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ChangeChannel is the NOTIFY channel written by the change-feed triggers.
const ChangeChannel = "pos_changes"

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// ListenConn is a connection that has issued LISTEN.
type ListenConn interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Connector opens a dedicated listening connection.
type Connector func(ctx context.Context) (ListenConn, error)

// PoolConnector takes a connection out of pool for good and runs LISTEN on
// it. A LISTEN connection must not go back to the pool.
func PoolConnector(pool *pgxpool.Pool, channel string) Connector {
	return func(ctx context.Context) (ListenConn, error) {
		pc, err := pool.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire: %w", err)
		}
		conn := pc.Hijack()
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
			_ = conn.Close(ctx)
			return nil, fmt.Errorf("listen %s: %w", channel, err)
		}
		return conn, nil
	}
}

// PGListener feeds store change notifications into a Bridge. After a lost
// connection it reconnects with backoff and resyncs every topic, since
// notifications sent while disconnected are gone.
type PGListener struct {
	connect Connector
	bridge  *Bridge
	logger  *zap.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewPGListener creates a listener.
func NewPGListener(connect Connector, bridge *Bridge, logger *zap.Logger) *PGListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PGListener{
		connect:    connect,
		bridge:     bridge,
		logger:     logger.Named("pglisten"),
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}
}

// Run listens until ctx is done. It only returns ctx.Err().
func (l *PGListener) Run(ctx context.Context) error {
	backoff := l.minBackoff
	connected := false

	for {
		conn, err := l.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("change feed connect failed", zap.Duration("retry_in", backoff), zap.Error(err))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, l.maxBackoff)
			continue
		}
		backoff = l.minBackoff

		if connected {
			l.bridge.Resync(ctx, ReasonReconnect)
		}
		connected = true
		l.logger.Info("listening for store changes", zap.String("channel", ChangeChannel))

		err = l.consume(ctx, conn)
		_ = conn.Close(context.WithoutCancel(ctx))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("change feed connection lost", zap.Error(err))
	}
}

func (l *PGListener) consume(ctx context.Context, conn ListenConn) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var ev ChangeEvent
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			l.logger.Warn("unreadable change payload, resyncing", zap.String("payload", n.Payload), zap.Error(err))
			l.bridge.Resync(ctx, ReasonChange)
			continue
		}
		l.logger.Debug("store change", zap.String("table", ev.Table), zap.String("op", ev.Op))
		l.bridge.HandleChange(ctx, ev)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
