// Package scheduler runs the periodic cache clear in-process on a cron
// expression, replacing the external cron trigger the HTTP endpoint serves.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/notionnext/pagecache/internal/config"
	"github.com/notionnext/pagecache/internal/logging"
)

// Job 是一次定时执行的任务。
type Job func(ctx context.Context) error

// Scheduler 按 cron 表达式执行 Job；上一次未结束时跳过本次触发。
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	run     func()
	timeout time.Duration
	logger  *logrus.Logger
}

// New 解析 schedule 并注册 job；timeout > 0 时为每次执行设置超时。
func New(schedule string, timeout time.Duration, job Job, logger *logrus.Logger) (*Scheduler, error) {
	if strings.TrimSpace(schedule) == "" {
		return nil, errors.New("cron schedule required")
	}
	if job == nil {
		return nil, errors.New("job required")
	}
	logger = logging.OrDiscard(logger)
	adapter := cronLogger{logger: logger}

	s := &Scheduler{timeout: timeout, logger: logger}
	s.cron = cron.New(
		cron.WithParser(config.CronParser),
		cron.WithLogger(adapter),
	)

	wrapped := cron.NewChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)).Then(cron.FuncJob(func() {
		s.execute(job)
	}))
	s.run = wrapped.Run

	id, err := s.cron.AddJob(schedule, wrapped)
	if err != nil {
		return nil, fmt.Errorf("解析定时表达式失败: %w", err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) execute(job Job) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	began := time.Now()
	fields := logrus.Fields{"action": "scheduled_clear"}
	if err := job(ctx); err != nil {
		s.logger.WithFields(fields).WithField("elapsed_ms", time.Since(began).Milliseconds()).WithError(err).Warn("定时任务执行失败")
		return
	}
	s.logger.WithFields(fields).WithField("elapsed_ms", time.Since(began).Milliseconds()).Info("定时任务执行完成")
}

// Start 在后台启动调度。
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithFields(logrus.Fields{"action": "scheduler_start", "next": s.Next()}).Info("定时清理已启动")
}

// Stop 停止调度并等待正在执行的任务结束，ctx 到期时提前返回。
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next 返回下一次触发时间；调度未启动时为零值。
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunNow 立即同步执行一次任务，同样受跳过与恢复策略约束。
func (s *Scheduler) RunNow() {
	s.run()
}

// cronLogger 把 cron 内部日志转发到 logrus。
type cronLogger struct {
	logger *logrus.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{"component": "cron"}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
