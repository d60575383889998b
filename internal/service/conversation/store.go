package conversation

import (
	"errors"
	"sync"
	"time"

	model "github.com/palona/shopchat/backend/internal/model/conversation"
)

// ErrBusy is returned by Begin while a previous dispatch is still awaiting a response.
var ErrBusy = errors.New("widget is awaiting a response")

// Store holds the transcript and loading flag of a single widget instance.
// Every mutation replaces the current snapshot with a new one.
type Store struct {
	mu      sync.RWMutex
	current model.Snapshot
	subs    map[int]chan model.Snapshot
	nextSub int
	closed  bool
	now     func() time.Time
}

// NewStore returns a store seeded with the bot greeting.
func NewStore(widgetID string) *Store {
	s := &Store{
		subs: make(map[int]chan model.Snapshot),
		now:  func() time.Time { return time.Now().UTC() },
	}
	s.current = model.Snapshot{
		WidgetID: widgetID,
		Messages: []model.Message{s.stamp(model.BotChat(model.Greeting))},
		Version:  1,
	}
	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Append adds entries to the transcript in order. Either all entries are
// appended or none is.
func (s *Store) Append(entries ...model.Message) error {
	if len(entries) == 0 {
		return nil
	}
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.next()
	next.Messages = s.appendStamped(next.Messages, entries)
	s.commit(next)
	return nil
}

// SetAwaiting flips the loading flag.
func (s *Store) SetAwaiting(awaiting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.IsAwaitingResponse == awaiting {
		return
	}
	next := s.next()
	next.IsAwaitingResponse = awaiting
	s.commit(next)
}

// SetDraft records the text currently typed in the input field.
func (s *Store) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.PendingInput == text {
		return
	}
	next := s.next()
	next.PendingInput = text
	s.commit(next)
}

// Begin appends the user's entry and raises the loading flag in one step.
// It fails with ErrBusy without touching the state when a response is
// already being awaited.
func (s *Store) Begin(entry model.Message, clearDraft bool) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.IsAwaitingResponse {
		return ErrBusy
	}
	next := s.next()
	next.Messages = s.appendStamped(next.Messages, []model.Message{entry})
	next.IsAwaitingResponse = true
	if clearDraft {
		next.PendingInput = ""
	}
	s.commit(next)
	return nil
}

// Finish appends the bot's entries and clears the loading flag in one step.
func (s *Store) Finish(entries ...model.Message) error {
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			s.SetAwaiting(false)
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.next()
	next.Messages = s.appendStamped(next.Messages, entries)
	next.IsAwaitingResponse = false
	s.commit(next)
	return nil
}

// Subscribe returns a channel that receives every new snapshot, starting with
// the current one. Slow readers only see the latest snapshot. The returned
// func releases the subscription.
func (s *Store) Subscribe() (<-chan model.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan model.Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.current.Clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// Subscribers reports how many subscriptions are open.
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Close ends all subscriptions. The store stays readable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) next() model.Snapshot {
	next := s.current
	next.Version++
	return next
}

// appendStamped never writes into the backing array of the current snapshot.
func (s *Store) appendStamped(messages []model.Message, entries []model.Message) []model.Message {
	out := make([]model.Message, len(messages), len(messages)+len(entries))
	copy(out, messages)
	for _, entry := range entries {
		out = append(out, s.stamp(entry))
	}
	return out
}

func (s *Store) stamp(msg model.Message) model.Message {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.Products = append([]model.Product(nil), msg.Products...)
	return msg
}

func (s *Store) commit(next model.Snapshot) {
	s.current = next
	for _, ch := range s.subs {
		publish(ch, next.Clone())
	}
}

func publish(ch chan model.Snapshot, snap model.Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	// Drop the stale snapshot the reader has not picked up yet.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
