package intfmap

import (
	"fmt"
)

// Direction identifies one half of a mapping entry.
type Direction string

const (
	// Outbound is UDP->CAN; the contended resource is the CAN interface.
	Outbound Direction = "udp2can"
	// Inbound is CAN->UDP; the contended resource is the UDP ip:port.
	Inbound Direction = "can2udp"
)

// ResourceGroup is the set of entries sharing one resource key.
type ResourceGroup struct {
	Key     string `json:"key"`
	Entries []int  `json:"entries"`
}

// Contended reports whether more than one entry uses the resource.
func (g ResourceGroup) Contended() bool {
	return len(g.Entries) > 1
}

// Pass is the result of grouping one direction.
type Pass struct {
	Direction Direction `json:"direction"`
	// Count is the connection tally the forwarding pool is sized with:
	// 1 for a single entry, plus one per further entry.
	Count int `json:"count"`
	// DistinctKeys is the number of different resource keys.
	DistinctKeys int `json:"distinctKeys"`
	// Groups are ordered by first appearance of their key.
	Groups []ResourceGroup `json:"groups"`
}

// Contended returns the number of entries that need a mutex in this direction.
func (p Pass) Contended() int {
	n := 0
	for _, g := range p.Groups {
		if g.Contended() {
			n += len(g.Entries)
		}
	}
	return n
}

// Group returns the group holding key.
func (p Pass) Group(key string) (ResourceGroup, bool) {
	for _, g := range p.Groups {
		if g.Key == key {
			return g, true
		}
	}
	return ResourceGroup{}, false
}

type Analysis struct {
	Outbound Pass `json:"outbound"`
	Inbound  Pass `json:"inbound"`
}

// Pass returns the result for dir.
func (a *Analysis) Pass(dir Direction) Pass {
	if dir == Inbound {
		return a.Inbound
	}
	return a.Outbound
}

func (p Pass) clone() Pass {
	res := p
	res.Groups = nil
	for _, g := range p.Groups {
		res.Groups = append(res.Groups, ResourceGroup{
			Key:     g.Key,
			Entries: append([]int(nil), g.Entries...),
		})
	}
	return res
}

// Clone returns a deep copy of a.
func (a *Analysis) Clone() *Analysis {
	return &Analysis{
		Outbound: a.Outbound.clone(),
		Inbound:  a.Inbound.clone(),
	}
}

// OutboundKey is the resource an entry's UDP->CAN worker writes to.
func OutboundKey(e Entry) string {
	return e.ToCAN.CANInterfaceID
}

// InboundKey is the resource an entry's CAN->UDP worker sends to.
func InboundKey(e Entry) string {
	return fmt.Sprintf("%s:%d", e.FromCAN.IP, e.FromCAN.Port)
}

// Analyze sets NeedsMutex on both endpoints of every entry and groups the
// entries by shared resource. The result does not depend on entry order
// and running it again yields the same flags.
func Analyze(t Table) (*Analysis, error) {
	if len(t) == 0 {
		return nil, tableError(ErrEmptyTable, nil)
	}
	out := groupPass(t, Outbound, OutboundKey, func(e *Entry) *Endpoint { return &e.ToCAN })
	in := groupPass(t, Inbound, InboundKey, func(e *Entry) *Endpoint { return &e.FromCAN })
	return &Analysis{Outbound: out, Inbound: in}, nil
}

func groupPass(t Table, dir Direction, key func(Entry) string, endpoint func(*Entry) *Endpoint) Pass {
	keys := make([]string, len(t))
	for i := range t {
		keys[i] = key(t[i])
		endpoint(&t[i]).NeedsMutex = false
	}

	for i := 0; i < len(t); i++ {
		for j := i + 1; j < len(t); j++ {
			if keys[i] == keys[j] {
				endpoint(&t[i]).NeedsMutex = true
				endpoint(&t[j]).NeedsMutex = true
			}
		}
	}

	res := Pass{Direction: dir, Count: 1}
	if len(t) > 1 {
		res.Count += len(t) - 1
	}
	pos := map[string]int{}
	for i, k := range keys {
		gi, ok := pos[k]
		if !ok {
			gi = len(res.Groups)
			pos[k] = gi
			res.Groups = append(res.Groups, ResourceGroup{Key: k})
		}
		res.Groups[gi].Entries = append(res.Groups[gi].Entries, i)
	}
	res.DistinctKeys = len(res.Groups)
	return res
}
