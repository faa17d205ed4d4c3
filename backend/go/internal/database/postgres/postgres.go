package postgres

import (
	"PharmaChat/backend/go/internal/config"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

var (
	pool    *pgxpool.Pool
	once    sync.Once
	initErr error
)

// GetPool 使用单例模式创建 pgx 连接池，并确保 vector 扩展已启用。
func GetPool(ctx context.Context, cfg *config.PostgresConfig) (*pgxpool.Pool, error) {
	once.Do(func() {
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			initErr = fmt.Errorf("failed to parse connection string: %w", err)
			return
		}
		pc.MaxConns = cfg.MaxConns
		pc.MaxConnLifetime = time.Hour
		pc.MaxConnIdleTime = 30 * time.Minute

		p, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			initErr = fmt.Errorf("failed to create connection pool: %w", err)
			return
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			p.Close()
			initErr = fmt.Errorf("failed to ping database: %w", err)
			return
		}
		if _, err := p.Exec(pingCtx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
			p.Close()
			initErr = fmt.Errorf("failed to enable pgvector extension: %w", err)
			return
		}

		logrus.Info("成功连接到 PostgreSQL (pgvector)")
		pool = p
	})
	return pool, initErr
}

// Close 关闭连接池。
func Close() {
	if pool != nil {
		pool.Close()
	}
}
