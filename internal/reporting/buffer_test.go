package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func svcUpdate(label string, state ServiceState) ManagedServiceUpdate {
	return NewManagedServiceUpdate(ServiceTypeBackend, label, state)
}

func TestOverflowPolicy(t *testing.T) {
	policy := NewOverflowPolicy(BufferActionDrop).Set(StateFailed, BufferActionEvictOldest)

	tests := []struct {
		state ServiceState
		want  BufferAction
	}{
		{StateFailed, BufferActionEvictOldest},
		{StateRunning, BufferActionDrop},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, policy.action(svcUpdate("backend", tt.state)))
		})
	}

	var none *OverflowPolicy
	assert.Equal(t, BufferActionDrop, none.action(svcUpdate("backend", StateFailed)))
}

func TestBufferedChannel_FullBuffer(t *testing.T) {
	tests := []struct {
		name      string
		action    BufferAction
		wantKept  bool
		wantStats ChannelStats
		wantFirst string
	}{
		{"drop keeps the queued update", BufferActionDrop, false, ChannelStats{Sent: 1, Dropped: 1}, "first"},
		{"evict replaces the queued update", BufferActionEvictOldest, true, ChannelStats{Sent: 2, Evicted: 1}, "second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := NewBufferedChannel(1, NewOverflowPolicy(tt.action))
			require.True(t, bc.Send(svcUpdate("first", StateRunning)))
			assert.Equal(t, tt.wantKept, bc.Send(svcUpdate("second", StateRunning)))
			assert.Equal(t, tt.wantStats, bc.Stats())

			bc.Close()
			got := <-bc.Channel()
			assert.Equal(t, tt.wantFirst, got.SourceLabel)
		})
	}
}

func TestBufferedChannel_BlockWaitsForConsumer(t *testing.T) {
	bc := NewBufferedChannel(1, NewOverflowPolicy(BufferActionBlock))
	defer bc.Close()
	require.True(t, bc.Send(svcUpdate("first", StateRunning)))

	go func() {
		time.Sleep(50 * time.Millisecond)
		<-bc.Channel()
	}()

	start := time.Now()
	assert.True(t, bc.Send(svcUpdate("second", StateRunning)))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, ChannelStats{Sent: 2, Blocked: 1}, bc.Stats())
}

func TestBufferedChannel_SendAfterClose(t *testing.T) {
	bc := NewBufferedChannel(1, NewOverflowPolicy(BufferActionBlock))
	bc.Close()
	bc.Close()

	assert.False(t, bc.Send(svcUpdate("orchestrator", StateStopped)))
	assert.Equal(t, int64(1), bc.Stats().Dropped)

	_, ok := <-bc.Channel()
	assert.False(t, ok)
}

func TestBufferAction_String(t *testing.T) {
	assert.Equal(t, "Drop", BufferActionDrop.String())
	assert.Equal(t, "Block", BufferActionBlock.String())
	assert.Equal(t, "EvictOldest", BufferActionEvictOldest.String())
	assert.Equal(t, "Unknown", BufferAction(999).String())
}

func TestChannelReporter_FailuresSurviveAFullBuffer(t *testing.T) {
	bc := NewBufferedChannel(2, NewOverflowPolicy(BufferActionDrop).Set(StateFailed, BufferActionEvictOldest))

	r := NewChannelReporter(bc)
	r.Report(ManagedServiceUpdate{SourceType: ServiceTypeBackend, SourceLabel: "backend", State: StateStarting})
	r.Report(ManagedServiceUpdate{SourceType: ServiceTypeBackend, SourceLabel: "backend", State: StateRunning})
	r.Report(ManagedServiceUpdate{SourceType: ServiceTypeFrontend, SourceLabel: "frontend", State: StateStarting})
	r.Report(ManagedServiceUpdate{SourceType: ServiceTypeFrontend, SourceLabel: "frontend", State: StateFailed})
	bc.Close()

	var got []ServiceState
	for u := range bc.Channel() {
		require.False(t, u.Timestamp.IsZero())
		got = append(got, u.State)
	}
	assert.Equal(t, []ServiceState{StateRunning, StateFailed}, got)
	assert.Equal(t, ChannelStats{Sent: 3, Dropped: 1, Evicted: 1}, bc.Stats())

	NewChannelReporter(nil).Report(ManagedServiceUpdate{})
}
