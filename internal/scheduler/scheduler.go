// Package scheduler 提供定时任务调度
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/dumeirei/villa-booking-backend/internal/common/logger"
)

// DefaultTaskTimeout 单次任务执行超时
const DefaultTaskTimeout = 5 * time.Minute

// Scheduler 定时任务调度器，表达式带秒字段，按 UTC 解析
type Scheduler struct {
	cron    *cron.Cron
	tasks   map[string]*Task
	order   []string
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
}

// Task 定时任务
type Task struct {
	Name    string
	Spec    string
	Handler func(ctx context.Context) error
}

// NewScheduler 创建调度器
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		tasks:   make(map[string]*Task),
		timeout: DefaultTaskTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddTask 添加任务，表达式非法或名称重复时返回错误
func (s *Scheduler) AddTask(name, spec string, handler func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("task %q already registered", name)
	}

	task := &Task{Name: name, Spec: spec, Handler: handler}
	if _, err := s.cron.AddFunc(spec, func() { s.executeTask(task) }); err != nil {
		return fmt.Errorf("invalid spec for task %q: %w", name, err)
	}

	s.tasks[name] = task
	s.order = append(s.order, name)
	return nil
}

// Tasks 已注册的任务名称，按注册顺序
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Start 启动调度器
func (s *Scheduler) Start() {
	logger.Info("Scheduler starting", zap.Int("tasks", len(s.Tasks())))
	s.cron.Start()
}

// Stop 停止调度器，等待正在执行的任务结束
func (s *Scheduler) Stop() {
	logger.Info("Scheduler stopping")
	s.cancel()
	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped")
}

// RunNow 立即执行一次指定任务
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %q not found", name)
	}
	return s.executeTask(task)
}

// executeTask 执行任务
func (s *Scheduler) executeTask(task *Task) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := task.Handler(ctx)
	if err != nil {
		logger.Error("Scheduled task failed", zap.String("task", task.Name), zap.Error(err))
		return err
	}
	logger.Debug("Scheduled task completed", zap.String("task", task.Name), logger.Latency(time.Since(start)))
	return nil
}
