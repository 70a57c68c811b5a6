package archive

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/chat-bridge/internal/domain"
)

const (
	defaultBufferSize = 256
	writeTimeout      = 5 * time.Second
)

// Stats counts what happened to recorded turns
type Stats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

// Recorder writes turns to an archive from a single background goroutine so
// a slow backend never delays an exchange. Turns arriving while the buffer is
// full are dropped.
type Recorder struct {
	archive  domain.TurnArchive
	instance uuid.UUID
	queue    chan *domain.ArchivedTurn
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewRecorder starts the writer goroutine
func NewRecorder(archive domain.TurnArchive, instance uuid.UUID, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	r := &Recorder{
		archive:  archive,
		instance: instance,
		queue:    make(chan *domain.ArchivedTurn, bufferSize),
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues a turn accepted by the session store
func (r *Recorder) Record(transport domain.Transport, key domain.SessionKey, turn domain.Turn) {
	entry := &domain.ArchivedTurn{
		ID:         uuid.New(),
		InstanceID: r.instance,
		Transport:  transport,
		SessionKey: key.String(),
		Role:       turn.Role,
		Content:    turn.Content,
		CreatedAt:  r.now().UTC(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}

	select {
	case r.queue <- entry:
	default:
		r.dropped.Add(1)
		log.Warn().Str("session", entry.SessionKey).Msg("archive buffer full, dropping turn")
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		r.write(entry)
	}
}

func (r *Recorder) write(entry *domain.ArchivedTurn) {
	defer func() {
		if p := recover(); p != nil {
			r.failed.Add(1)
			log.Error().
				Interface("panic", p).
				Str("stack", string(debug.Stack())).
				Msg("archive writer panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.archive.Record(ctx, entry); err != nil {
		r.failed.Add(1)
		log.Warn().Err(err).Str("session", entry.SessionKey).Msg("failed to archive turn")
		return
	}
	r.written.Add(1)
}

// Stats returns the current counters
func (r *Recorder) Stats() Stats {
	return Stats{
		Written: r.written.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
	}
}

// Close drains queued turns and closes the archive. It gives up waiting when
// ctx ends.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		log.Warn().Int("pending", len(r.queue)).Msg("archive drain interrupted")
	}
	return r.archive.Close()
}
