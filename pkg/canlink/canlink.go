package canlink

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/can-bridge/udp2can/pkg/intfmap"
	"golang.org/x/sys/unix"
)

// LinkTypeCAN is the iproute2 link_type of both real and virtual CAN links.
const LinkTypeCAN = "can"

type LinkInfo struct {
	InfoKind string `json:"info_kind"`
}

type Link struct {
	IfIndex   int       `json:"ifindex"`
	IfName    string    `json:"ifname"`
	Flags     []string  `json:"flags"`
	Mtu       int       `json:"mtu"`
	Qdisc     string    `json:"qdisc"`
	Operstate string    `json:"operstate"`
	Group     string    `json:"group"`
	TxQLen    int       `json:"txqlen"`
	LinkType  string    `json:"link_type"`
	LinkInfo  *LinkInfo `json:"linkinfo,omitempty"`
}

// IsUp reports the administrative UP flag. vcan links stay in operstate
// UNKNOWN even when usable, so operstate is not consulted.
func (l Link) IsUp() bool {
	for _, f := range l.Flags {
		if f == "UP" {
			return true
		}
	}
	return false
}

// Kind is "can", "vcan", "vxcan", ... when iproute2 was run with -d.
func (l Link) Kind() string {
	if l.LinkInfo == nil {
		return ""
	}
	return l.LinkInfo.InfoKind
}

type Links = []Link

func UnmarshalLinks(jsonLinks []byte) (Links, error) {
	var links = Links{}

	err := json.Unmarshal(jsonLinks, &links)
	if err != nil {
		return nil, err
	}

	return links, nil
}

// CANLinks keeps only links whose link_type is can.
func CANLinks(links Links) Links {
	res := Links{}
	for _, l := range links {
		if l.LinkType == LinkTypeCAN {
			res = append(res, l)
		}
	}
	return res
}

// GetCANLinks lists the CAN links of the current network namespace.
func GetCANLinks(ctx context.Context) (Links, error) {
	ip, err := exec.LookPath("ip")
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, ip, "-j", "-d", "link", "show")
	cmd.SysProcAttr = &unix.SysProcAttr{
		Pdeathsig: unix.SIGTERM,
	}
	stdout, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to start %v: %w", cmd.Args, err)
	}

	links, err := UnmarshalLinks(stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse json: %w", err)
	}

	return CANLinks(links), nil
}

// Report is the outcome of matching table interface ids against links.
type Report struct {
	Missing []string
	Down    []string
	// Virtual lists ids backed by vcan or vxcan links. They carry no bus
	// traffic but are not an error.
	Virtual []string
}

// OK reports whether every interface id exists and is up.
func (r Report) OK() bool {
	return len(r.Missing) == 0 && len(r.Down) == 0
}

// Check matches every CAN interface id of t against links.
func Check(t intfmap.Table, links Links) Report {
	byName := map[string]Link{}
	for _, l := range links {
		byName[l.IfName] = l
	}
	var r Report
	for _, id := range t.InterfaceIDs() {
		l, ok := byName[id]
		if !ok {
			r.Missing = append(r.Missing, id)
			continue
		}
		if !l.IsUp() {
			r.Down = append(r.Down, id)
		}
		switch l.Kind() {
		case "vcan", "vxcan":
			r.Virtual = append(r.Virtual, id)
		}
	}
	return r
}

// Verify lists the CAN links and checks t against them.
func Verify(ctx context.Context, t intfmap.Table) (Report, error) {
	links, err := GetCANLinks(ctx)
	if err != nil {
		return Report{}, err
	}
	return Check(t, links), nil
}
