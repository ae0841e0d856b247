// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package kafkabridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/tomtom215/eventrec/internal/models"
)

type fakePublisher struct {
	mu      sync.Mutex
	actions []models.UserAction
	err     error
}

func (f *fakePublisher) PublishAction(_ context.Context, a models.UserAction) (models.UserAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return a, f.err
	}
	f.actions = append(f.actions, a)
	return a, nil
}

func (f *fakePublisher) published() []models.UserAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.UserAction(nil), f.actions...)
}

// fakeSource hands out queued batches, then blocks until ctx is canceled.
type fakeSource struct {
	mu        sync.Mutex
	batches   [][]*kgo.Record
	committed []*kgo.Record
	commitErr error
	closed    bool
}

func (f *fakeSource) PollRecords(ctx context.Context, _ int) kgo.Fetches {
	f.mu.Lock()
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return kgo.Fetches{{Topics: []kgo.FetchTopic{{
			Topic:      "stats.user-actions.v1",
			Partitions: []kgo.FetchPartition{{Partition: 0, Records: batch}},
		}}}}
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kgo.Fetches{}
}

func (f *fakeSource) CommitRecords(_ context.Context, rs ...*kgo.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = append(f.committed, rs...)
	return nil
}

func (f *fakeSource) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSource) committedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

func record(offset int64, value string) *kgo.Record {
	return &kgo.Record{
		Topic:     "stats.user-actions.v1",
		Partition: 0,
		Offset:    offset,
		Timestamp: time.Unix(1000+offset, 0),
		Value:     []byte(value),
	}
}

func newTestBridge(t *testing.T, src *fakeSource, pub *fakePublisher) *Bridge {
	t.Helper()
	b, err := newBridge(DefaultConfig(), pub, zerolog.Nop())
	if err != nil {
		t.Fatalf("newBridge() error = %v", err)
	}
	b.newSource = func() (recordSource, error) { return src, nil }
	return b
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBridgeForwardsAndCommits(t *testing.T) {
	t.Parallel()

	src := &fakeSource{batches: [][]*kgo.Record{{
		record(0, `{"user_id":1,"event_id":10,"action_type":"LIKE","timestamp":"2026-01-01T00:00:00Z"}`),
		record(1, `not json`),
		record(2, `{"user_id":1,"event_id":11,"action_type":"VIEW"}`),
	}}}
	pub := &fakePublisher{}
	b := newTestBridge(t, src, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	waitFor(t, "commit", func() bool { return src.committedCount() == 3 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v, want nil after cancel", err)
	}

	got := pub.published()
	if len(got) != 2 {
		t.Fatalf("published %d actions, want 2", len(got))
	}
	if got[0].EventID != 10 || got[0].Kind != models.ActionLike {
		t.Errorf("first action = %+v, want event 10 LIKE", got[0])
	}
	if got[1].EventID != 11 || !got[1].Timestamp.Equal(time.Unix(1002, 0)) {
		t.Errorf("second action = %+v, want event 11 at record timestamp", got[1])
	}

	stats := b.Stats()
	if stats.Forwarded != 2 || stats.Dropped != 1 || stats.Commits != 1 {
		t.Errorf("Stats() = %+v, want 2 forwarded, 1 dropped, 1 commit", stats)
	}
	if !src.closed {
		t.Error("source not closed after Run")
	}
}

func TestBridgePublishFailureSkipsCommit(t *testing.T) {
	t.Parallel()

	src := &fakeSource{batches: [][]*kgo.Record{{
		record(0, `{"user_id":1,"event_id":10,"action_type":"LIKE"}`),
	}}}
	pub := &fakePublisher{err: errors.New("circuit breaker is open")}
	b := newTestBridge(t, src, pub)

	if err := b.Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil, want publish error")
	}
	if n := src.committedCount(); n != 0 {
		t.Errorf("committed %d records, want 0", n)
	}
}

func TestBridgeCommitFailure(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		batches:   [][]*kgo.Record{{record(0, `{"user_id":1,"event_id":10,"action_type":"LIKE"}`)}},
		commitErr: errors.New("rebalance in progress"),
	}
	b := newTestBridge(t, src, &fakePublisher{})

	if err := b.Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil, want commit error")
	}
}

func TestDecodeRecord(t *testing.T) {
	t.Parallel()

	const id = "0f8fad5b-d9cb-469f-a165-70867728950e"

	tests := []struct {
		name     string
		value    string
		wantErr  bool
		wantID   string
		wantKind models.ActionKind
	}{
		{"explicit id", `{"action_id":"` + id + `","user_id":1,"event_id":2,"action_type":"register"}`, false, id, models.ActionRegister},
		{"unknown kind", `{"user_id":1,"event_id":2,"action_type":"SHARE"}`, false, "", models.ActionUnknown},
		{"invalid id replaced", `{"action_id":"x","user_id":1,"event_id":2,"action_type":"VIEW"}`, false, "", models.ActionView},
		{"zero user", `{"user_id":0,"event_id":2,"action_type":"LIKE"}`, true, "", 0},
		{"bad json", `{`, true, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := record(7, tt.value)
			got, err := decodeRecord(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			wantID := tt.wantID
			if wantID == "" {
				wantID = recordID(r).String()
			}
			if got.ID != wantID {
				t.Errorf("ID = %q, want %q", got.ID, wantID)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
		})
	}
}

func TestRecordIDStable(t *testing.T) {
	t.Parallel()

	a, b := recordID(record(3, "")), recordID(record(3, ""))
	if a != b {
		t.Errorf("recordID not stable: %v != %v", a, b)
	}
	if recordID(record(4, "")) == a {
		t.Error("recordID equal for different offsets")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no brokers", func(c *Config) { c.Brokers = nil }, true},
		{"no topic", func(c *Config) { c.Topic = "" }, true},
		{"no group", func(c *Config) { c.GroupID = "" }, true},
		{"zero poll", func(c *Config) { c.MaxPollRecords = 0 }, true},
		{"negative rate", func(c *Config) { c.ForwardRate = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRequiresPublisher(t *testing.T) {
	t.Parallel()

	if _, err := New(DefaultConfig(), nil, zerolog.Nop()); err == nil {
		t.Error("New(nil publisher) error = nil, want error")
	}
}
