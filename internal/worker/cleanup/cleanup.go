// Package cleanup は期限切れOTPの定期削除ジョブを提供する。
// 期限切れのコードは検証で既に拒否されるため、削除しても観測可能な振る舞いは変わらない。
// 保持期間を過ぎた行だけを消し、有効なコードには触れない。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/notekeeper/internal/metrics"
)

// DefaultRetention は期限切れOTPを残しておく期間のデフォルト値。
const DefaultRetention = 24 * time.Hour

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は保持期間を超過した期限切れOTPの削除ジョブ。
// 冪等であり、複数のワーカーが同時に実行しても問題ない。
type CleanupJob struct {
	db        Executor
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	Retention time.Duration // expires_atからの保持期間
}

// NewCleanupJob は新しいCleanupJobを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewCleanupJob(db Executor, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &CleanupJob{
		db:        db,
		logger:    logger,
		metrics:   collector,
		Retention: DefaultRetention,
	}
}

// Run はexpires_atが保持期間より古いOTPを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d seconds", int64(j.Retention/time.Second))

	query := `DELETE FROM otps WHERE expires_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.ErrorContext(ctx, "otp cleanup failed",
			slog.String("error", err.Error()),
			slog.Duration("retention", j.Retention),
		)
		return fmt.Errorf("failed to delete expired otps: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read deleted count: %w", err)
	}
	j.metrics.RecordOTPCleanup(deletedCount)

	j.logger.InfoContext(ctx, "otp cleanup completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("retention", j.Retention),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は指定間隔でRunを繰り返す。起動直後に1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("otp cleanup scheduler started", slog.Duration("interval", interval))

	// 失敗は次の周期で再試行する
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("otp cleanup scheduler stopped")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
