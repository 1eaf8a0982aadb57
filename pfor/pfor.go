// Package pfor is a bounded parallel-for over a serial item source: one
// goroutine pulls items in order, numThreads workers process them, and
// completed output buffers are handed to a serial consumer in the order
// the items were pulled.  A small reordering window of chunkSize items
// decouples the workers from the consumer.
package pfor

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"
)

// ProgressFunc is called about once a second with the number of items
// processed by the workers so far and the elapsed wall time.
type ProgressFunc func(itemsDone int, elapsed time.Duration)

type job[T any] struct {
	seq  int
	item T
}

type result struct {
	seq int
	buf *bytes.Buffer
}

// ParFor drains getItem until it reports done, processing items on
// numThreads workers and emitting buffers through outputChunk strictly
// in pull order.  The first error from processItem or outputChunk stops
// the pull loop, drains outstanding work, and is returned.
func ParFor[T any](
	numThreads, chunkSize int,
	getItem func() (T, bool),
	processItem func(item T, out *bytes.Buffer) error,
	outputChunk func(out *bytes.Buffer) error,
	progress ProgressFunc,
) error {
	if numThreads < 1 {
		numThreads = 1
	}
	if chunkSize < 1 {
		chunkSize = 10
	}

	var (
		firstErr error
		errOnce  sync.Once
		shutdown atomic.Bool
		done     atomic.Int64
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
		shutdown.Store(true)
	}

	work := make(chan job[T], numThreads)
	results := make(chan result, chunkSize)
	// the window semaphore bounds how far the puller may run ahead of
	// the consumer
	window := make(chan struct{}, chunkSize)

	var consumerWG sync.WaitGroup
	consumerWG.Add(1)
	go func() {
		defer consumerWG.Done()
		pending := make(map[int]*bytes.Buffer)
		next := 0
		for r := range results {
			pending[r.seq] = r.buf
			for {
				buf, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				if !shutdown.Load() {
					if err := outputChunk(buf); err != nil {
						fail(err)
					}
				}
				<-window
			}
		}
	}()

	var workerWG sync.WaitGroup
	for w := 0; w < numThreads; w++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for j := range work {
				buf := new(bytes.Buffer)
				if !shutdown.Load() {
					if err := processItem(j.item, buf); err != nil {
						fail(err)
					}
				}
				done.Add(1)
				results <- result{seq: j.seq, buf: buf}
			}
		}()
	}

	var progressDone chan struct{}
	start := time.Now()
	if progress != nil {
		progressDone = make(chan struct{})
		go func() {
			tick := time.NewTicker(time.Second)
			defer tick.Stop()
			for {
				select {
				case <-tick.C:
					progress(int(done.Load()), time.Since(start))
				case <-progressDone:
					return
				}
			}
		}()
	}

	// serial pull loop
	seq := 0
	for !shutdown.Load() {
		item, ok := getItem()
		if !ok {
			break
		}
		window <- struct{}{}
		work <- job[T]{seq: seq, item: item}
		seq++
	}
	close(work)
	workerWG.Wait()
	close(results)
	consumerWG.Wait()

	if progress != nil {
		close(progressDone)
		progress(int(done.Load()), time.Since(start))
	}
	return firstErr
}
