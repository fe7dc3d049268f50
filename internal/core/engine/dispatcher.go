package engine

import (
	"context"
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/dialoq/dialoq/internal/core"
	"github.com/dialoq/dialoq/internal/core/store"
	"github.com/dialoq/dialoq/internal/metrics"
	"github.com/dialoq/dialoq/internal/output"
)

// NoticeProcessingFailed is sent when a task fails; the queue keeps going.
const NoticeProcessingFailed = "Sorry, something went wrong while answering that. Please try again."

// AskFunc is the external completion call. It may block for an unspecified
// time; a stuck call stalls only the owning user's queue.
type AskFunc func(ctx context.Context, convo *core.Conversation, text string) (string, error)

// Dispatcher owns the per-user task queues and their drain workers. Enqueue
// appends in arrival order and starts a drain goroutine unless one is already
// consuming that user's queue; the Draining flag in UserState is the mutex.
// Queues for different users drain independently and concurrently.
type Dispatcher struct {
	Store     *store.Store
	Ask       AskFunc
	Heartbeat *HeartbeatEmitter
	Logger    *logging.Logger

	wg sync.WaitGroup
}

// Enqueue appends task to the user's queue, creating state as needed, and
// kicks off a drain worker when none is active for that user.
func (d *Dispatcher) Enqueue(id string, task *core.Task) {
	var begin bool
	d.Store.Update(id, func(st *core.UserState) {
		if st.Conversation == nil {
			st.Conversation = &core.Conversation{UserID: id}
		}
		if task.Convo == nil {
			task.Convo = st.Conversation
		}
		st.Queue = append(st.Queue, task)
		if !st.Draining {
			st.Draining = true
			begin = true
		}
	})

	metrics.RecordEnqueue(id)

	if begin {
		d.wg.Add(1)
		go d.drain(id, task.Signaler)
	}
}

// Wait blocks until every active drain worker has finished. Used by graceful
// shutdown and tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// drain sequentially consumes the user's queue. Strict per-user ordering:
// the next task is popped only after the previous completion call settled.
// The heartbeat spans the whole drain session, not individual tasks.
func (d *Dispatcher) drain(id string, sig core.ActivitySignaler) {
	defer d.wg.Done()

	metrics.DrainStarted()
	defer metrics.DrainFinished()

	d.Heartbeat.Start(id, sig)
	defer d.Heartbeat.Stop(id)

	for {
		var task *core.Task
		d.Store.Update(id, func(st *core.UserState) {
			if len(st.Queue) == 0 {
				// Remove the queue, not just empty it, so idle
				// users do not pin store capacity.
				st.Queue = nil
				st.Draining = false
				return
			}
			task = st.Queue[0]
			st.Queue = st.Queue[1:]
		})
		if task == nil {
			return
		}

		// Later tasks may come from a newer transport session than the
		// one that started the drain; follow the latest signaler.
		d.Heartbeat.Retarget(id, task.Signaler)

		d.execute(id, task)
	}
}

// execute runs one task. Failures are contained here: a failed or panicking
// task yields the generic notice and the loop continues with the next one.
func (d *Dispatcher) execute(id string, task *core.Task) {
	defer func() {
		if r := recover(); r != nil {
			if d.Logger != nil {
				d.Logger.Error("Task execution panicked",
					zap.String("user_id", id),
					zap.Any("panic", r))
			}
			metrics.RecordCompletionFailure("panic")
			d.sendNotice(id, task.Responder, NoticeProcessingFailed)
		}
	}()

	// No cancellation at this layer: a hung completion call stalls only
	// this user's queue.
	reply, err := d.Ask(context.Background(), task.Convo, task.Body)
	if err != nil {
		if d.Logger != nil {
			d.Logger.Warn("Completion call failed",
				zap.String("user_id", id),
				zap.Error(err))
		}
		metrics.RecordCompletionFailure("error")
		d.sendNotice(id, task.Responder, NoticeProcessingFailed)
		return
	}

	fragments := output.Fragments(reply)
	if len(fragments) == 0 {
		metrics.RecordCompletionFailure("empty")
		d.sendNotice(id, task.Responder, NoticeProcessingFailed)
		return
	}

	// Fire-and-forget tasks carry no responder: the reply lives on in
	// the transcript but is not delivered anywhere.
	if task.Responder == nil {
		return
	}

	if err := task.Responder.Send(fragments); err != nil && d.Logger != nil {
		d.Logger.Warn("Fragment delivery failed",
			zap.String("user_id", id),
			zap.Int("fragments", len(fragments)),
			zap.Error(err))
	}
}

func (d *Dispatcher) sendNotice(id string, responder core.Responder, body string) {
	if responder == nil {
		return
	}
	if err := responder.Send([]core.Fragment{{Body: body}}); err != nil && d.Logger != nil {
		d.Logger.Warn("Notice delivery failed",
			zap.String("user_id", id),
			zap.Error(err))
	}
}
