package telemetry

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// MonitorRedis instruments a client with tracing, metrics and debug logging of every command.
func MonitorRedis(r redis.UniversalClient, name string) error {
	if err := redisotel.InstrumentTracing(r); err != nil {
		return err
	}
	if err := redisotel.InstrumentMetrics(r); err != nil {
		return err
	}
	r.AddHook(redisLog{name: name})
	return nil
}

type redisLog struct {
	name string
}

func (h redisLog) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			slog.WarnContext(ctx, "redis: dial failed", "client", h.name, "addr", addr, "error", err)
		} else {
			slog.DebugContext(ctx, "redis: dialed", "client", h.name, "addr", addr)
		}
		return conn, err
	}
}

func (h redisLog) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		slog.DebugContext(ctx, "redis: command",
			"client", h.name,
			"cmd", cmd.Name(),
			"duration", time.Since(start),
			"error", ignoreNil(err),
		)
		return err
	}
}

func (h redisLog) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		slog.DebugContext(ctx, "redis: pipeline",
			"client", h.name,
			"size", len(cmds),
			"duration", time.Since(start),
			"error", ignoreNil(err),
		)
		return err
	}
}

// redis.Nil is a cache miss, not a failure.
func ignoreNil(err error) error {
	if err == redis.Nil {
		return nil
	}
	return err
}
