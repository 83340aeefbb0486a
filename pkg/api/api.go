package api

import (
	"time"

	"github.com/can-bridge/udp2can/pkg/intfmap"
)

// Info describes the loaded interface map.
type Info struct {
	Source   string    `json:"source,omitempty"`
	LoadedAt time.Time `json:"loadedAt"`
	Entries  int       `json:"entries"`
	Version  string    `json:"version,omitempty"`
}

type Endpoint struct {
	IP             string `json:"ip"`
	Port           int    `json:"port"`
	CANInterfaceID string `json:"canInterfaceID"`
	CANProtocolID  int    `json:"canProtocolID"`
	NeedsMutex     bool   `json:"needsMutex"`
	Label          string `json:"label,omitempty"`
}

type Mapping struct {
	Index   int      `json:"index"`
	ToCAN   Endpoint `json:"toCAN"`
	FromCAN Endpoint `json:"fromCAN"`
}

type ResourceGroup struct {
	Key       string `json:"key"`
	Entries   []int  `json:"entries"`
	Contended bool   `json:"contended"`
}

type Pass struct {
	Direction    string          `json:"direction"`
	Count        int             `json:"count"`
	DistinctKeys int             `json:"distinctKeys"`
	Contended    int             `json:"contended"`
	Groups       []ResourceGroup `json:"groups"`
}

type Groups struct {
	Outbound Pass `json:"outbound"`
	Inbound  Pass `json:"inbound"`
}

type ErrorJSON struct {
	Message string `json:"message"`
}

func FromEndpoint(ep intfmap.Endpoint) Endpoint {
	return Endpoint{
		IP:             ep.IP,
		Port:           ep.Port,
		CANInterfaceID: ep.CANInterfaceID,
		CANProtocolID:  ep.CANProtocolID,
		NeedsMutex:     ep.NeedsMutex,
		Label:          ep.Label,
	}
}

func FromEntry(index int, e intfmap.Entry) Mapping {
	return Mapping{
		Index:   index,
		ToCAN:   FromEndpoint(e.ToCAN),
		FromCAN: FromEndpoint(e.FromCAN),
	}
}

func FromPass(p intfmap.Pass) Pass {
	res := Pass{
		Direction:    string(p.Direction),
		Count:        p.Count,
		DistinctKeys: p.DistinctKeys,
		Contended:    p.Contended(),
		Groups:       []ResourceGroup{},
	}
	for _, g := range p.Groups {
		res.Groups = append(res.Groups, ResourceGroup{
			Key:       g.Key,
			Entries:   append([]int(nil), g.Entries...),
			Contended: g.Contended(),
		})
	}
	return res
}

func FromAnalysis(a intfmap.Analysis) Groups {
	return Groups{
		Outbound: FromPass(a.Outbound),
		Inbound:  FromPass(a.Inbound),
	}
}
