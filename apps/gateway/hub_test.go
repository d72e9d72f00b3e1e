package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohort-labs/messaging-core/pkg/model"
)

// scriptedReader plays back a fixed sequence of reads, then blocks.
type scriptedReader struct {
	mu      sync.Mutex
	scripts []func() (kafka.Message, error)
	done    chan struct{}
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.scripts) > 0 {
		next := r.scripts[0]
		r.scripts = r.scripts[1:]
		r.mu.Unlock()
		return next()
	}
	r.mu.Unlock()
	<-r.done
	return kafka.Message{}, context.Canceled
}

func (r *scriptedReader) Close() error { return nil }

func testHub(client *Client) *Hub {
	return &Hub{
		clients:     map[string]map[*Client]bool{client.Scope: {client: true}},
		userClients: map[string]map[*Client]bool{client.ID: {client: true}},
	}
}

func marshalEvent(t *testing.T, ev model.Event) []byte {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	return payload
}

func TestFanoutKeepsDeliveringAfterReadError(t *testing.T) {
	old := fanoutRetryWait
	fanoutRetryWait = time.Millisecond
	defer func() { fanoutRetryWait = old }()

	payload := marshalEvent(t, model.Event{
		Type:  model.EventMessage,
		Scope: "dm:alice:bob",
		From:  "alice",
	})
	reader := &scriptedReader{
		done: make(chan struct{}),
		scripts: []func() (kafka.Message, error){
			func() (kafka.Message, error) { return kafka.Message{}, errors.New("broker unreachable") },
			func() (kafka.Message, error) { return kafka.Message{Value: payload}, nil },
		},
	}

	client := &Client{ID: "bob", Scope: "dm:alice:bob", send: make(chan []byte, 1)}
	go testHub(client).fanout(reader)

	select {
	case got := <-client.send:
		assert.JSONEq(t, string(payload), string(got))
	case <-time.After(time.Second):
		t.Fatal("fanout stopped after a read error")
	}
}

func TestFanoutSkipsMalformedEvents(t *testing.T) {
	payload := marshalEvent(t, model.Event{
		Type:  model.EventMessage,
		Scope: "dm:alice:bob",
		From:  "alice",
	})
	reader := &scriptedReader{
		done: make(chan struct{}),
		scripts: []func() (kafka.Message, error){
			func() (kafka.Message, error) { return kafka.Message{Value: []byte(`{"type":`)}, nil },
			func() (kafka.Message, error) { return kafka.Message{Value: payload}, nil },
		},
	}

	client := &Client{ID: "bob", Scope: "dm:alice:bob", send: make(chan []byte, 1)}
	go testHub(client).fanout(reader)

	select {
	case got := <-client.send:
		assert.JSONEq(t, string(payload), string(got))
	case <-time.After(time.Second):
		t.Fatal("fanout wedged on a malformed event")
	}
}
