/*
package hashing streams files through a fixed width digest, batch at a time, on a pool of workers.
*/
package hashing

import (
	"context"
	"runtime"
	"sync"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/batch"
	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/spf13/afero"
)

/* Group of hash workers fed from one channel, publishing in completion order. */
type Pool struct {
	work    chan batch.Batch
	results chan BatchResult
	wg      sync.WaitGroup
	once    sync.Once
}

// NewPool starts workers that hash until Close is called and the queue drains, or ctx is cancelled.
// Zero workers means one per usable CPU, a zero queueDepth queues one batch per worker.
func NewPool(ctx context.Context, fs afero.Fs, algo Algorithm, policy ErrorPolicy, workers int, queueDepth int) *Pool {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if queueDepth < 1 {
		queueDepth = workers
	}
	p := &Pool{
		work:    make(chan batch.Batch, queueDepth),
		results: make(chan BatchResult, workers),
	}
	for i := 0; i < workers; i++ {
		worker := &Worker{id: i, fs: fs, algo: algo, policy: policy, work: p.work, results: p.results}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			worker.Start(ctx)
		}()
	}
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
	return p
}

// Submit queues a batch, blocking while the queue is full.
func (p *Pool) Submit(ctx context.Context, b batch.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.work <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work. Results closes once every queued batch is finished.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.work) })
}

// Results yields one entry per submitted batch that completed or failed.
// Batches interrupted by cancellation produce nothing.
func (p *Pool) Results() <-chan BatchResult {
	return p.results
}

type Worker struct {
	id      int
	fs      afero.Fs
	algo    Algorithm
	policy  ErrorPolicy
	work    <-chan batch.Batch
	results chan<- BatchResult
}

func (worker *Worker) Start(ctx context.Context) {
	for {
		var b batch.Batch
		var ok bool
		select {
		case <-ctx.Done():
			return
		case b, ok = <-worker.work:
			if !ok {
				return
			}
		}
		res := HashBatch(ctx, worker.fs, b, worker.algo, worker.policy)
		if res.Cancelled() {
			st.Logger.Debug().Int("worker", worker.id).Str("batch", b.ID).Msg("dropping cancelled batch")
			continue
		}
		select {
		case worker.results <- res:
		case <-ctx.Done():
			return
		}
	}
}
