package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/domains/session"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/Logger"
)

const flushTimeout = 2 * time.Second

// Recorder persists a controller's conversation whenever its transcript
// changes. Listen never blocks; saves happen on the Run goroutine and only
// the newest state of each conversation is written.
type Recorder struct {
	svc    ConversationService
	owner  uuid.UUID
	logger *Logger.Logger

	mu     sync.Mutex
	dirty  map[uuid.UUID]types.Conversation
	notify chan struct{}
}

func NewRecorder(svc ConversationService, owner uuid.UUID, logger *Logger.Logger) *Recorder {
	return &Recorder{
		svc:    svc,
		owner:  owner,
		logger: logger.Named("recorder"),
		dirty:  make(map[uuid.UUID]types.Conversation),
		notify: make(chan struct{}, 1),
	}
}

// Listen is a session.Listener.
func (r *Recorder) Listen(u session.Update) {
	if !u.Changes.Has(session.ChangedTranscript | session.ChangedConversation) {
		return
	}
	conv := u.Snapshot.Conversation(r.owner)
	if len(finalOnly(conv.Messages)) == 0 {
		return
	}
	r.mu.Lock()
	r.dirty[conv.ID] = conv
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Run saves pending conversations until ctx is done, then flushes once more.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			r.flush(fctx)
			cancel()
			return
		case <-r.notify:
			r.flush(ctx)
		}
	}
}

func (r *Recorder) flush(ctx context.Context) {
	r.mu.Lock()
	pending := r.dirty
	r.dirty = make(map[uuid.UUID]types.Conversation)
	r.mu.Unlock()

	for id, conv := range pending {
		if _, err := r.svc.Save(ctx, conv); err != nil && !errors.Is(err, ErrEmptyConversation) {
			r.logger.Warnf("saving conversation %s: %v", id, err)
		}
	}
}
