// Package inproc is the default in-process bus.Bus and bus.TaskBoard,
// grounded on the teacher's runtime/agent/hooks.Bus fan-out design and
// extended with the bounded-buffer back-pressure and optimistic task-claim
// semantics spec §4.12 requires.
package inproc

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rudi77/taskforge/internal/bus"
)

// DefaultBufferSize is the per-subscriber channel capacity used when none
// is supplied to New.
const DefaultBufferSize = 64

// Board is a combined bus.Bus + bus.TaskBoard backed by in-process maps. It
// is the default backend for single-process deployments; internal/bus/nats
// is the pluggable distributed alternative.
type Board struct {
	mu       sync.Mutex
	overflow bus.OverflowPolicy
	bufSize  int
	subs     map[string]map[*subscription]struct{}
	tasks    map[string]*bus.Task   // by id
	order    map[string][]string    // topic -> task ids in creation order
	seq      int64
}

// New returns a Board with the given overflow policy and per-subscriber
// buffer size (DefaultBufferSize if bufSize <= 0).
func New(overflow bus.OverflowPolicy, bufSize int) *Board {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Board{
		overflow: overflow,
		bufSize:  bufSize,
		subs:     make(map[string]map[*subscription]struct{}),
		tasks:    make(map[string]*bus.Task),
		order:    make(map[string][]string),
	}
}

var _ bus.Bus = (*Board)(nil)
var _ bus.TaskBoard = (*Board)(nil)

type subscription struct {
	topic string
	ch    chan bus.Event
	owner *Board
	once  sync.Once
}

func (s *subscription) Events() <-chan bus.Event { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.owner.mu.Lock()
		delete(s.owner.subs[s.topic], s)
		s.owner.mu.Unlock()
		close(s.ch)
	})
	return nil
}

// Publish implements bus.Bus.
func (b *Board) Publish(ctx context.Context, topic string, payload any) error {
	evt := bus.Event{Topic: topic, Payload: payload}

	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subs[topic]))
	for s := range b.subs[topic] {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if err := b.deliver(ctx, s, evt); err != nil {
			return err
		}
	}
	return nil
}

func (b *Board) deliver(ctx context.Context, s *subscription, evt bus.Event) error {
	switch b.overflow {
	case bus.OverflowDropOldest:
		select {
		case s.ch <- evt:
		default:
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- evt:
			default:
			}
		}
		return nil
	default: // OverflowBlock
		select {
		case s.ch <- evt:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Subscribe implements bus.Bus.
func (b *Board) Subscribe(_ context.Context, topic string) (bus.Subscription, error) {
	s := &subscription{topic: topic, ch: make(chan bus.Event, b.bufSize), owner: b}
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*subscription]struct{})
	}
	b.subs[topic][s] = struct{}{}
	b.mu.Unlock()
	return s, nil
}

// Clear implements both bus.Bus (drops buffered pub/sub events, a no-op
// here since events aren't retained once delivered) and bus.TaskBoard
// (drops all tasks on topic). Task semantics win when topic has tasks.
func (b *Board) Clear(topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.order[topic] {
		delete(b.tasks, id)
	}
	delete(b.order, topic)
	return nil
}

// PublishTask implements bus.TaskBoard.
func (b *Board) PublishTask(_ context.Context, topic string, task bus.Task) (bus.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := task.ID
	if id == "" {
		id = fmt.Sprintf("task-%d", atomic.AddInt64(&b.seq, 1))
	}
	task.ID = id
	task.Topic = topic
	if task.Status == "" {
		task.Status = bus.TaskPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	task.Version = 0
	b.tasks[id] = &task
	b.order[topic] = append(b.order[topic], id)
	return task, nil
}

// RequestTask implements bus.TaskBoard. Picks the highest-priority pending
// task matching allowedTypes, ties broken by age ascending (spec §4.12).
func (b *Board) RequestTask(_ context.Context, topic, workerID string, allowedTypes []string) (bus.Task, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[t] = true
	}

	var candidates []*bus.Task
	for _, id := range b.order[topic] {
		t := b.tasks[id]
		if t == nil || t.Status != bus.TaskPending {
			continue
		}
		if len(allowed) > 0 && !allowed[t.Type] {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return bus.Task{}, false, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	chosen := candidates[0]
	chosen.Status = bus.TaskInProgress
	chosen.WorkerID = workerID
	chosen.ClaimedAt = time.Now().UTC()
	chosen.Version++
	return *chosen, true, nil
}

// CompleteTask implements bus.TaskBoard.
func (b *Board) CompleteTask(_ context.Context, taskID string, version int, summary string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[taskID]
	if !ok {
		return bus.ErrTaskNotFound
	}
	if t.Version != version {
		return bus.ErrTaskVersionConflict
	}
	t.Status = bus.TaskCompleted
	t.Summary = summary
	t.Version++
	return nil
}

// FailTask implements bus.TaskBoard.
func (b *Board) FailTask(_ context.Context, taskID string, version int, errMsg string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[taskID]
	if !ok {
		return bus.ErrTaskNotFound
	}
	if t.Version != version {
		return bus.ErrTaskVersionConflict
	}
	t.Status = bus.TaskFailed
	t.Err = errMsg
	t.Version++
	return nil
}

// ListTasks implements bus.TaskBoard.
func (b *Board) ListTasks(_ context.Context, topic string) ([]bus.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]bus.Task, 0, len(b.order[topic]))
	for _, id := range b.order[topic] {
		if t := b.tasks[id]; t != nil {
			out = append(out, *t)
		}
	}
	return out, nil
}
