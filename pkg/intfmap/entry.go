package intfmap

// Endpoint is one direction of a mapping entry.
type Endpoint struct {
	IP             string `json:"ip"`
	Port           int    `json:"port"`
	CANInterfaceID string `json:"canInterfaceID"`
	CANProtocolID  int    `json:"canProtocolID"`

	// NeedsMutex is set by Analyze. It is meaningless before that.
	NeedsMutex bool `json:"needsMutex"`
	// Label is set by Label.
	Label string `json:"label,omitempty"`
}

// Entry pairs the UDP->CAN and CAN->UDP endpoints of one bridge.
// Both directions share the CAN interface id and protocol id.
type Entry struct {
	ToCAN   Endpoint `json:"toCAN"`
	FromCAN Endpoint `json:"fromCAN"`
}

// Table is the interface mapping table in configuration document order.
type Table []Entry

// InterfaceIDs returns the distinct CAN interface ids in first-seen order.
func (t Table) InterfaceIDs() []string {
	seen := map[string]struct{}{}
	res := []string{}
	for _, e := range t {
		id := e.ToCAN.CANInterfaceID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		res = append(res, id)
	}
	return res
}

// Clone returns a copy that does not share storage with t.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	res := make(Table, len(t))
	copy(res, t)
	return res
}
