package pools

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/searchktools/tmplserve/core/arena"
	"github.com/searchktools/tmplserve/core/http"
)

// NoSlot terminates the free list.
const NoSlot = -1

// Slot is one persistent worker's state: its arena and request context,
// the connection it is serving and the hand-off signal from the listener.
type Slot struct {
	Index int
	Arena *arena.Arena
	Ctx   *http.Context

	mu   sync.Mutex
	conn net.Conn
	peer net.Addr

	// wake has capacity one and acts as a binary semaphore.
	wake chan struct{}

	// guarded by SlotPool.mu
	next   int
	inFree bool

	active    atomic.Bool
	served    atomic.Uint64
	arenaPeak atomic.Int64
}

// Assign stores the connection the worker is about to serve.
func (s *Slot) Assign(conn net.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.peer = conn.RemoteAddr()
	s.mu.Unlock()
	s.active.Store(true)
}

// Conn returns the assigned connection and peer address.
func (s *Slot) Conn() (net.Conn, net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn, s.peer
}

// Detach clears the connection and returns it.
func (s *Slot) Detach() net.Conn {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.peer = nil
	s.mu.Unlock()
	s.active.Store(false)
	return conn
}

// Wake signals the worker that a connection is ready.
func (s *Slot) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until Wake or until quit is closed. It reports whether the
// slot was woken.
func (s *Slot) Wait(quit <-chan struct{}) bool {
	select {
	case <-s.wake:
		return true
	case <-quit:
		return false
	}
}

// Active reports whether the slot is serving a connection.
func (s *Slot) Active() bool {
	return s.active.Load()
}

// Served counts requests handled by this slot.
func (s *Slot) Served() uint64 {
	return s.served.Load()
}

// CountRequest increments Served and records the arena usage of the
// request just finished. Only the slot's worker may call it.
func (s *Slot) CountRequest() {
	s.served.Add(1)
	if hw := int64(s.Arena.HighWater()); hw > s.arenaPeak.Load() {
		s.arenaPeak.Store(hw)
	}
}

// SlotPool is a fixed set of slots with a free list threaded through
// Slot.next. Pop and Push are safe for concurrent use.
type SlotPool struct {
	mu    sync.Mutex
	slots []*Slot
	head  int
	nfree int
}

// NewSlotPool allocates n slots, each with an arena of arenaSize bytes.
// All slots start on the free list in index order.
func NewSlotPool(n, arenaSize int) *SlotPool {
	if n <= 0 {
		n = 1
	}

	p := &SlotPool{
		slots: make([]*Slot, n),
		head:  0,
		nfree: n,
	}

	for i := 0; i < n; i++ {
		a := arena.New(arenaSize)
		ctx := http.NewContext(a)
		ctx.Slot = i

		next := i + 1
		if next == n {
			next = NoSlot
		}
		p.slots[i] = &Slot{
			Index:  i,
			Arena:  a,
			Ctx:    ctx,
			wake:   make(chan struct{}, 1),
			next:   next,
			inFree: true,
		}
	}

	return p
}

// Pop takes a free slot, or reports false when every slot is busy.
func (p *SlotPool) Pop() (*Slot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.head == NoSlot {
		return nil, false
	}

	s := p.slots[p.head]
	p.head = s.next
	s.next = NoSlot
	s.inFree = false
	p.nfree--
	return s, true
}

// Push returns s to the free list. Pushing a slot that is already free
// is a no-op.
func (p *SlotPool) Push(s *Slot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s.inFree {
		return
	}
	s.next = p.head
	s.inFree = true
	p.head = s.Index
	p.nfree++
}

// Free returns the number of idle slots.
func (p *SlotPool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nfree
}

// Len returns the total number of slots.
func (p *SlotPool) Len() int {
	return len(p.slots)
}

// Slots returns every slot in index order.
func (p *SlotPool) Slots() []*Slot {
	return p.slots
}

// ActiveCount returns the number of slots currently serving a connection.
func (p *SlotPool) ActiveCount() int {
	n := 0
	for _, s := range p.slots {
		if s.Active() {
			n++
		}
	}
	return n
}

// ArenaHighWater returns the largest arena usage seen by any slot.
func (p *SlotPool) ArenaHighWater() int {
	var max int64
	for _, s := range p.slots {
		if hw := s.arenaPeak.Load(); hw > max {
			max = hw
		}
	}
	return int(max)
}

// CloseActive closes every assigned connection so blocked workers return.
func (p *SlotPool) CloseActive() {
	for _, s := range p.slots {
		if conn, _ := s.Conn(); conn != nil {
			conn.Close()
		}
	}
}
