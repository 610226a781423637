package events

import (
	"encoding/json"
	"testing"

	"github.com/go-go-golems/loopdash/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func logAppend(project, lines string) protocol.Envelope {
	data, _ := json.Marshal(protocol.LogAppend{Lines: lines})
	return protocol.Envelope{Type: protocol.EventLogAppend, Project: project, Data: data}
}

func TestRouter_DeliversInOrderWithSequencedChunks(t *testing.T) {
	r := NewRouter()
	var got []Event
	r.Subscribe(func(e Event) { got = append(got, e) })

	r.Dispatch(logAppend("a", "one"))
	r.Dispatch(protocol.Envelope{Type: protocol.EventStatusChanged, Project: "a", Data: json.RawMessage(`{"status":"running"}`)})
	r.Dispatch(logAppend("b", "two"))
	r.Dispatch(protocol.Envelope{Type: "mystery"})

	require.Len(t, got, 4)
	require.Equal(t, uint64(1), got[0].Chunk.SequenceID)
	require.Equal(t, "one", got[0].Chunk.Lines)
	require.Equal(t, "a", got[0].Chunk.Project)
	require.Nil(t, got[1].Chunk)
	require.Equal(t, uint64(2), got[2].Chunk.SequenceID)
	require.Equal(t, "b", got[2].Chunk.Project)
	require.Equal(t, protocol.EventType("mystery"), got[3].Envelope.Type)
}

func TestRouter_NonStringLinesGetNoChunk(t *testing.T) {
	r := NewRouter()
	var got []Event
	r.Subscribe(func(e Event) { got = append(got, e) })

	r.Dispatch(protocol.Envelope{Type: protocol.EventLogAppend, Data: json.RawMessage(`{"lines":42}`)})
	r.Dispatch(logAppend("a", "ok"))

	require.Len(t, got, 2)
	require.Nil(t, got[0].Chunk)
	require.Equal(t, uint64(1), got[1].Chunk.SequenceID)
}

func TestRouter_SingleSubscriberAndStaleUnsubscribe(t *testing.T) {
	r := NewRouter()
	var first, second int
	unsubFirst := r.Subscribe(func(Event) { first++ })
	r.Dispatch(protocol.Envelope{Type: protocol.EventPong})

	unsubSecond := r.Subscribe(func(Event) { second++ })
	unsubFirst()
	r.Dispatch(protocol.Envelope{Type: protocol.EventPong})
	require.Equal(t, 1, first)
	require.Equal(t, 1, second)

	unsubSecond()
	r.Dispatch(protocol.Envelope{Type: protocol.EventPong})
	require.Equal(t, 1, second)
}

func TestRouter_HandlerMayResubscribe(t *testing.T) {
	r := NewRouter()
	calls := 0
	var h Handler
	h = func(Event) {
		calls++
		r.Subscribe(h)
	}
	r.Subscribe(h)
	r.Dispatch(protocol.Envelope{Type: protocol.EventPong})
	r.Dispatch(protocol.Envelope{Type: protocol.EventPong})
	require.Equal(t, 2, calls)
}
