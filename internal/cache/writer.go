package cache

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/onboardqa/internal/agent"
)

// writeTimeout bounds one background write including its embedding.
const writeTimeout = 10 * time.Second

type putRequest struct {
	query      string
	response   string
	sources    []agent.Source
	department string
	confidence float64
}

// asyncWriter is the single background worker behind PutAsync. The
// queue is bounded; overflow drops the write and counts it.
type asyncWriter struct {
	store   *Store
	queue   chan putRequest
	drops   atomic.Uint64
	logger  *slog.Logger
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

func newAsyncWriter(store *Store, queueSize int, logger *slog.Logger) *asyncWriter {
	w := &asyncWriter{
		store:  store,
		queue:  make(chan putRequest, queueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for req := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := w.store.Put(ctx, req.query, req.response, req.sources, req.department, req.confidence); err != nil {
			w.logger.Warn("cache_async_write_failed",
				slog.String("error", err.Error()))
		}
		cancel()
	}
}

func (w *asyncWriter) enqueue(req putRequest) {
	w.closeMu.Lock()
	defer w.closeMu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- req:
	default:
		w.drops.Add(1)
		w.logger.Warn("cache_write_dropped",
			slog.Uint64("total_dropped", w.drops.Load()))
	}
}

func (w *asyncWriter) dropped() uint64 {
	return w.drops.Load()
}

// close stops accepting writes, drains the queue, and waits for the
// worker to finish.
func (w *asyncWriter) close() {
	w.closeMu.Lock()
	if w.closed {
		w.closeMu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.queue)
	w.closeMu.Unlock()
	<-w.done
}

// encodeVector packs a float32 vector as little-endian bytes for BLOB
// storage.
func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
