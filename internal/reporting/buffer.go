package reporting

import (
	"sync"
	"sync/atomic"
	"time"
)

// BufferAction is what Send does with an update that finds the buffer full.
type BufferAction int

const (
	BufferActionDrop BufferAction = iota
	BufferActionBlock
	BufferActionEvictOldest
)

// String makes BufferAction satisfy the fmt.Stringer interface
func (ba BufferAction) String() string {
	switch ba {
	case BufferActionDrop:
		return "Drop"
	case BufferActionBlock:
		return "Block"
	case BufferActionEvictOldest:
		return "EvictOldest"
	default:
		return "Unknown"
	}
}

// OverflowPolicy picks a BufferAction from the state an update carries, so
// that updates such as Failed survive a slow consumer.
type OverflowPolicy struct {
	Default BufferAction
	ByState map[ServiceState]BufferAction
}

// NewOverflowPolicy returns a policy applying def to every state.
func NewOverflowPolicy(def BufferAction) *OverflowPolicy {
	return &OverflowPolicy{Default: def, ByState: make(map[ServiceState]BufferAction)}
}

// Set overrides the action for one state.
func (p *OverflowPolicy) Set(state ServiceState, action BufferAction) *OverflowPolicy {
	p.ByState[state] = action
	return p
}

func (p *OverflowPolicy) action(update ManagedServiceUpdate) BufferAction {
	if p == nil {
		return BufferActionDrop
	}
	if a, ok := p.ByState[update.State]; ok {
		return a
	}
	return p.Default
}

// ChannelStats counts what happened to updates passed to Send.
type ChannelStats struct {
	Sent    int64
	Dropped int64
	Evicted int64
	Blocked int64
}

// BufferedChannel is a bounded queue of updates between the orchestrator and
// a consumer. Close ends the consumer's range loop; later sends are dropped.
type BufferedChannel struct {
	mu     sync.Mutex
	ch     chan ManagedServiceUpdate
	policy *OverflowPolicy
	closed bool

	sent, dropped, evicted, blocked atomic.Int64
}

// NewBufferedChannel creates a queue holding up to size updates. A nil policy
// drops updates when full.
func NewBufferedChannel(size int, policy *OverflowPolicy) *BufferedChannel {
	return &BufferedChannel{
		ch:     make(chan ManagedServiceUpdate, size),
		policy: policy,
	}
}

// Send enqueues update and reports whether it was kept.
func (bc *BufferedChannel) Send(update ManagedServiceUpdate) bool {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.closed {
		bc.dropped.Add(1)
		return false
	}

	select {
	case bc.ch <- update:
		bc.sent.Add(1)
		return true
	default:
	}

	switch bc.policy.action(update) {
	case BufferActionBlock:
		bc.blocked.Add(1)
	case BufferActionEvictOldest:
		select {
		case <-bc.ch:
			bc.evicted.Add(1)
		default:
		}
	default:
		bc.dropped.Add(1)
		return false
	}
	bc.ch <- update
	bc.sent.Add(1)
	return true
}

// Stats returns the counters so far.
func (bc *BufferedChannel) Stats() ChannelStats {
	return ChannelStats{
		Sent:    bc.sent.Load(),
		Dropped: bc.dropped.Load(),
		Evicted: bc.evicted.Load(),
		Blocked: bc.blocked.Load(),
	}
}

// Close closes the channel. It is safe to call more than once.
func (bc *BufferedChannel) Close() {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if !bc.closed {
		bc.closed = true
		close(bc.ch)
	}
}

// Channel is the receive side for the consumer.
func (bc *BufferedChannel) Channel() <-chan ManagedServiceUpdate {
	return bc.ch
}

// ChannelReporter forwards updates into a BufferedChannel so a consumer such
// as the presentation layer never slows down the orchestrator.
type ChannelReporter struct {
	bc *BufferedChannel
}

// NewChannelReporter creates a reporter writing into bc.
func NewChannelReporter(bc *BufferedChannel) *ChannelReporter {
	return &ChannelReporter{bc: bc}
}

// Report sends update, stamping it first if needed.
func (r *ChannelReporter) Report(update ManagedServiceUpdate) {
	if r.bc == nil {
		return
	}
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}
	r.bc.Send(update)
}
