package push

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fathima-sithara/dm-service/internal/kafka"
	"go.uber.org/zap"
)

// KafkaQueue hands jobs to a push topic; a Worker on any node delivers them.
type KafkaQueue struct {
	prod *kafka.Producer
	log  *zap.SugaredLogger
}

// NewKafkaQueue expects an async producer so Submit never waits on brokers.
func NewKafkaQueue(prod *kafka.Producer, log *zap.SugaredLogger) *KafkaQueue {
	return &KafkaQueue{prod: prod, log: log}
}

func (q *KafkaQueue) Submit(job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return q.prod.Publish(ctx, job.UserID, b)
}

func (q *KafkaQueue) Close() error {
	return q.prod.Close()
}

type Worker struct {
	cons    *kafka.Consumer
	d       Dispatcher
	timeout time.Duration
	log     *zap.SugaredLogger
}

func NewWorker(cons *kafka.Consumer, d Dispatcher, timeout time.Duration, log *zap.SugaredLogger) *Worker {
	return &Worker{cons: cons, d: d, timeout: timeout, log: log}
}

func (w *Worker) Run(ctx context.Context) error {
	return w.cons.Start(ctx, w.Handle)
}

func (w *Worker) Handle(_ context.Context, _ []byte, value []byte) error {
	var job Job
	if err := json.Unmarshal(value, &job); err != nil {
		return err
	}
	Deliver(w.d, job, w.timeout, w.log)
	return nil
}
