package chat

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestConnectionManager_ReplaceKeepsNewest(t *testing.T) {
	cm := NewConnectionManager()
	first := cm.AddClient("u1", nil)
	second := cm.AddClient("u1", nil)

	select {
	case <-first.Done:
	default:
		t.Fatal("replaced client should be closed")
	}

	// The old read loop exiting must not unregister the new connection.
	cm.RemoveClient(first)
	require.Same(t, second, cm.GetClient("u1"))

	cm.RemoveClient(second)
	require.False(t, cm.IsOnline("u1"))
	cm.RemoveClient(second)
}

func TestConnectionManager_Rooms(t *testing.T) {
	cm := NewConnectionManager()
	a := cm.AddClient("a", nil)
	b := cm.AddClient("b", nil)
	cm.JoinRoom("t1", "a")
	cm.JoinRoom("t1", "b")
	cm.JoinRoom("t1", "offline")
	cm.JoinRoom("t2", "a")

	require.ElementsMatch(t, []string{"a", "b", "offline"}, cm.RoomMembers("t1"))
	require.Equal(t, 2, cm.RoomCount())

	require.Equal(t, 1, cm.BroadcastToRoom("t1", "a", "ping"))
	require.Equal(t, "ping", <-b.Send)
	require.Empty(t, a.Send)

	require.Equal(t, 2, cm.BroadcastToRoom("t1", "", "all"))

	cm.RemoveClient(a)
	require.False(t, cm.InRoom("t1", "a"))
	require.Equal(t, 1, cm.RoomCount(), "t2 emptied and dropped")

	cm.LeaveRoom("t1", "b")
	cm.LeaveRoom("t1", "offline")
	require.Zero(t, cm.RoomCount())
	cm.LeaveRoom("missing", "b")
}

func TestConnectionManager_BroadcastToUser(t *testing.T) {
	cm := NewConnectionManager()
	require.Error(t, cm.BroadcastToUser("ghost", "x"))

	c := cm.AddClient("u", nil)
	for i := 0; i < cap(c.Send); i++ {
		require.NoError(t, cm.BroadcastToUser("u", i))
	}
	require.Error(t, cm.BroadcastToUser("u", "overflow"))
}

// gathered returns the value of every sample in reg keyed by metric name
// and label values.
func gathered(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			key := f.GetName()
			for _, l := range m.GetLabel() {
				key += "/" + l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func TestMetrics(t *testing.T) {
	cm := NewConnectionManager()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, cm)

	cm.AddClient("a", nil)
	cm.JoinRoom("t", "a")
	m.messageDelivered("direct")
	m.messageDelivered("direct")
	m.eventRejected("invalid")
	m.eventRateLimited()

	got := gathered(t, reg)
	require.Equal(t, 2.0, got["chat_messages_total/direct"])
	require.Equal(t, 1.0, got["chat_events_rejected_total/invalid"])
	require.Equal(t, 1.0, got["chat_events_rate_limited_total"])
	require.Equal(t, 1.0, got["chat_connected_clients"])
	require.Equal(t, 1.0, got["chat_active_rooms"])

	var nilMetrics *Metrics
	nilMetrics.messageDelivered("team")
	nilMetrics.eventRejected("x")
	nilMetrics.eventRateLimited()
}
