package gateway

import (
	"sync"

	"github.com/can-bridge/udp2can/pkg/intfmap"
)

// LockTable holds one mutex per contended resource and direction.
// Entries whose resource is not shared get no mutex at all.
type LockTable struct {
	outbound []*sync.Mutex
	inbound  []*sync.Mutex
	size     map[intfmap.Direction]int
}

func NewLockTable(entries int, a *intfmap.Analysis) *LockTable {
	lt := &LockTable{
		outbound: make([]*sync.Mutex, entries),
		inbound:  make([]*sync.Mutex, entries),
		size:     map[intfmap.Direction]int{},
	}
	lt.fill(lt.outbound, a.Outbound)
	lt.fill(lt.inbound, a.Inbound)
	return lt
}

func (lt *LockTable) fill(locks []*sync.Mutex, p intfmap.Pass) {
	for _, g := range p.Groups {
		if !g.Contended() {
			continue
		}
		mu := &sync.Mutex{}
		for _, i := range g.Entries {
			locks[i] = mu
		}
		lt.size[p.Direction]++
	}
}

func (lt *LockTable) locks(dir intfmap.Direction) []*sync.Mutex {
	if dir == intfmap.Inbound {
		return lt.inbound
	}
	return lt.outbound
}

// Size is the number of mutexes allocated for dir.
func (lt *LockTable) Size(dir intfmap.Direction) int {
	return lt.size[dir]
}

// Acquire serializes the caller with every other worker using the same
// resource as entry index in direction dir. The returned func releases it.
func (lt *LockTable) Acquire(dir intfmap.Direction, index int) (release func()) {
	locks := lt.locks(dir)
	if index < 0 || index >= len(locks) || locks[index] == nil {
		return func() {}
	}
	mu := locks[index]
	mu.Lock()
	return mu.Unlock
}
