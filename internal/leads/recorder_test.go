package leads

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zenoccaz/chatlead/internal/models"
	"github.com/zenoccaz/chatlead/internal/store"
)

// recordingStore wraps an in-memory store and records the sequence of
// operations issued against it.
type recordingStore struct {
	inner *store.InMemoryStore
	mu    sync.Mutex
	ops   []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{inner: store.NewInMemoryStore()}
}

func (s *recordingStore) CreateLead(ctx context.Context, lead models.Lead) error {
	s.mu.Lock()
	s.ops = append(s.ops, "create")
	s.mu.Unlock()
	return s.inner.CreateLead(ctx, lead)
}

func (s *recordingStore) UpdateLeadPayload(ctx context.Context, sessionID string, payload map[string]string) (int64, error) {
	s.mu.Lock()
	s.ops = append(s.ops, "update")
	s.mu.Unlock()
	return s.inner.UpdateLeadPayload(ctx, sessionID, payload)
}

func (s *recordingStore) GetLeadBySession(ctx context.Context, sessionID string) (*models.Lead, error) {
	return s.inner.GetLeadBySession(ctx, sessionID)
}

func (s *recordingStore) Close() error { return nil }

func (s *recordingStore) opSequence() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

// switchableProvider simulates a store that is unreachable until connected.
type switchableProvider struct {
	mu sync.Mutex
	st store.Store
}

func (p *switchableProvider) provide() store.Store {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st
}

func (p *switchableProvider) connect(st store.Store) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.st = st
}

func TestRecordAnswerMergesPayloads(t *testing.T) {
	st := newRecordingStore()
	r := NewRecorder("sess_1", func() store.Store { return st })
	defer r.Stop()

	r.BeginFlow(models.ModeSell)
	r.RecordChoice("sell")
	r.RecordAnswer(map[string]string{"a": "1"})
	r.RecordAnswer(map[string]string{"b": "2"})
	r.Wait()

	lead, err := st.GetLeadBySession(context.Background(), "sess_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead == nil {
		t.Fatal("lead not created")
	}
	if lead.Payload["a"] != "1" || lead.Payload["b"] != "2" {
		t.Errorf("expected merged payload {a:1,b:2}, got %v", lead.Payload)
	}
}

func TestOfflineBufferingFlushesCreateThenUpdate(t *testing.T) {
	st := newRecordingStore()
	provider := &switchableProvider{}
	r := NewRecorder("sess_2", provider.provide, WithPollInterval(5*time.Millisecond))
	defer r.Stop()

	r.BeginFlow(models.ModeSell)
	r.RecordChoice("sell")
	r.RecordAnswer(map[string]string{"model": "208"})

	// Nothing must reach the store while disconnected.
	if ops := st.opSequence(); len(ops) != 0 {
		t.Fatalf("unexpected store ops while offline: %v", ops)
	}

	provider.connect(st)

	deadline := time.Now().Add(2 * time.Second)
	for {
		r.Wait()
		lead, err := st.GetLeadBySession(context.Background(), "sess_2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lead != nil && lead.Payload["model"] == "208" {
			if lead.Choice != "sell" {
				t.Errorf("expected choice sell, got %q", lead.Choice)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("buffered lead ops were not flushed in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ops := st.opSequence()
	if len(ops) != 2 || ops[0] != "create" || ops[1] != "update" {
		t.Errorf("expected exactly [create update], got %v", ops)
	}
}

func TestBufferedUpdateLastWriteWins(t *testing.T) {
	st := newRecordingStore()
	provider := &switchableProvider{}
	r := NewRecorder("sess_3", provider.provide, WithPollInterval(5*time.Millisecond))
	defer r.Stop()

	r.BeginFlow(models.ModeBuy)
	r.RecordChoice("buy")
	r.RecordAnswer(map[string]string{"budget": "5000"})
	r.RecordAnswer(map[string]string{"budget": "8000", "type": "citadine"})

	provider.connect(st)

	deadline := time.Now().Add(2 * time.Second)
	for {
		r.Wait()
		lead, _ := st.GetLeadBySession(context.Background(), "sess_3")
		if lead != nil && lead.Payload["type"] == "citadine" {
			if lead.Payload["budget"] != "8000" {
				t.Errorf("expected last buffered update to win, got budget=%q", lead.Payload["budget"])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("buffered update was not flushed in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// One create plus exactly one flushed update despite two buffered merges.
	ops := st.opSequence()
	if len(ops) != 2 {
		t.Errorf("expected exactly 2 store ops, got %v", ops)
	}
}

func TestUpdateWithoutRowFallsBackToInsert(t *testing.T) {
	st := newRecordingStore()
	r := NewRecorder("sess_4", func() store.Store { return st })
	defer r.Stop()

	// No RecordChoice was ever issued for this session.
	r.RecordAnswer(map[string]string{"question": "combien ça coûte"})
	r.Wait()

	lead, err := st.GetLeadBySession(context.Background(), "sess_4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead == nil {
		t.Fatal("fallback insert did not happen")
	}
	if lead.Choice != "faq" {
		t.Errorf("expected default choice faq, got %q", lead.Choice)
	}
	if lead.Payload["question"] != "combien ça coûte" {
		t.Errorf("payload not preserved on fallback: %v", lead.Payload)
	}
}

func TestBeginFlowResetsAnswers(t *testing.T) {
	st := newRecordingStore()
	r := NewRecorder("sess_5", func() store.Store { return st })
	defer r.Stop()

	r.BeginFlow(models.ModeSell)
	r.RecordAnswer(map[string]string{"model": "208"})
	r.Wait()

	r.BeginFlow(models.ModeBuy)
	answers := r.Answers()
	if len(answers) != 0 {
		t.Errorf("expected answers reset on new flow, got %v", answers)
	}
	if r.Mode() != models.ModeBuy {
		t.Errorf("expected mode buy, got %q", r.Mode())
	}
}
