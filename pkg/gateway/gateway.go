package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/can-bridge/udp2can/pkg/api"
	"github.com/can-bridge/udp2can/pkg/intfmap"
	"github.com/sirupsen/logrus"
)

// Context owns the analyzed interface mapping table for the lifetime of the
// gateway. Everything it hands out is a copy or read-only, so forwarding
// workers may call it concurrently without further locking.
type Context struct {
	Source   string
	LoadedAt time.Time

	table    intfmap.Table
	analysis *intfmap.Analysis
	byIface  map[string][]int
	locks    *LockTable
}

// Open loads the mapping file at path and builds a Context from it.
func Open(path string, opts intfmap.LoadOptions) (*Context, error) {
	logger := logrus.WithFields(logrus.Fields{"path": path, "format": intfmap.FormatForPath(path).String()})
	logger.Info("Loading interface map")

	table, err := intfmap.LoadFile(path, opts)
	if err != nil {
		return nil, err
	}

	c, err := New(table)
	if err != nil {
		return nil, err
	}
	c.Source = path
	return c, nil
}

// New analyzes and labels table. The Context keeps its own copy.
func New(table intfmap.Table) (*Context, error) {
	table = table.Clone()
	analysis, err := intfmap.Analyze(table)
	if err != nil {
		return nil, err
	}
	intfmap.Label(table)

	byIface := map[string][]int{}
	for i, e := range table {
		id := e.ToCAN.CANInterfaceID
		byIface[id] = append(byIface[id], i)
	}

	c := &Context{
		LoadedAt: time.Now(),
		table:    table,
		analysis: analysis,
		byIface:  byIface,
		locks:    NewLockTable(len(table), analysis),
	}

	logrus.WithFields(logrus.Fields{
		"entries":            len(table),
		"udp2canConnections": analysis.Outbound.Count,
		"can2udpConnections": analysis.Inbound.Count,
	}).Info("Interface map loaded")
	for _, p := range []intfmap.Pass{analysis.Outbound, analysis.Inbound} {
		for _, g := range p.Groups {
			if g.Contended() {
				described := make([]string, 0, len(g.Entries))
				for _, i := range g.Entries {
					described = append(described, c.Describe(i))
				}
				logrus.Debugf("%s: %s is shared by %s, mutex is needed", p.Direction, g.Key, strings.Join(described, " "))
			}
		}
	}
	intfmap.LogTable(logrus.WithField("component", "intfmap"), table)

	return c, nil
}

func (c *Context) Len() int {
	return len(c.table)
}

// Mappings returns a copy of the whole table.
func (c *Context) Mappings() intfmap.Table {
	return c.table.Clone()
}

func (c *Context) Mapping(index int) (intfmap.Entry, bool) {
	if index < 0 || index >= len(c.table) {
		return intfmap.Entry{}, false
	}
	return c.table[index], true
}

// ByInterface returns the indexes of the entries bridged to CAN interface id.
func (c *Context) ByInterface(id string) []int {
	idx := c.byIface[id]
	if len(idx) == 0 {
		return nil
	}
	return append([]int(nil), idx...)
}

// Analysis returns a copy of the grouping result computed at load.
func (c *Context) Analysis() intfmap.Analysis {
	return *c.analysis.Clone()
}

func (c *Context) Info() api.Info {
	return api.Info{
		Source:   c.Source,
		LoadedAt: c.LoadedAt,
		Entries:  len(c.table),
	}
}

func (c *Context) Locks() *LockTable {
	return c.locks
}

// Describe renders one entry for log lines.
func (c *Context) Describe(index int) string {
	e, ok := c.Mapping(index)
	if !ok {
		return fmt.Sprintf("#%d(unknown)", index)
	}
	return fmt.Sprintf("#%d(%s, %s)", index, e.ToCAN.Label, e.FromCAN.Label)
}
