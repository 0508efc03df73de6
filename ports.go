package goqsw

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate converts two octet counter readings into bytes per second. It returns
// 0 when either reading is unknown or no time has passed. The result is
// truncated toward zero and may be negative after a counter reset.
func Rate(cur, prev *int64, elapsed time.Duration) int64 {
	if cur == nil || prev == nil {
		return 0
	}
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return int64(float64(*cur-*prev) / secs)
}

// flexID is a port id that the device sends as either a string or a number.
// An unparsable id leaves it invalid instead of failing the whole list.
type flexID struct {
	value int
	valid bool
}

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if n, err := strconv.Atoi(s); err == nil {
		f.value = n
		f.valid = true
	}
	return nil
}

// portRecord is one {key, val} entry of a list-valued result.
type portRecord struct {
	Key flexID          `json:"key"`
	Val json.RawMessage `json:"val"`
}

func portRecords(resp *Response) ([]portRecord, error) {
	if resp == nil || len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil, fmt.Errorf("%w: missing result", ErrAPI)
	}
	var records []portRecord
	if err := json.Unmarshal(resp.Result, &records); err != nil {
		return nil, fmt.Errorf("%w: port records: %v", ErrInvalidResponse, err)
	}
	return records, nil
}

func equalBoundary(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// lacpMember is what the partitioning helper needs from a port entry.
type lacpMember interface {
	portID() int
	setLACPIndex(int)
}

// splitLACP partitions ports into the physical and link-aggregated views.
// A port is aggregated iff its id is at or above the boundary; aggregated
// ports are renumbered with a 1-based index that preserves ascending id
// order. Physical ports keep their id and a zero index.
func splitLACP[P lacpMember](ports map[int]P, boundary *int) (phy, lacp map[int]P) {
	base := 0
	haveLACP := false
	if boundary != nil {
		for id := range ports {
			if id >= *boundary && (!haveLACP || id < base+1) {
				base = id - 1
				haveLACP = true
			}
		}
	}

	phy = make(map[int]P, len(ports))
	lacp = make(map[int]P)
	for id, port := range ports {
		if haveLACP && id >= *boundary {
			lacpID := id - base
			port.setLACPIndex(lacpID)
			lacp[lacpID] = port
		} else {
			port.setLACPIndex(0)
			phy[id] = port
		}
	}
	return phy, lacp
}

// PortStatistics is the per-port statistics state kept across polls. Counter
// fields are nil until the device has reported them; a field absent from a
// poll means "unchanged", never "cleared".
type PortStatistics struct {
	id     int
	lacpID int

	FCSErrors    *int64
	RxErrors     *int64
	CurRxOctets  *int64
	CurTxOctets  *int64
	PrevRxOctets *int64
	PrevTxOctets *int64
	RxSpeed      int64
	TxSpeed      int64
}

type portStatisticsVal struct {
	FCSErrors *int64 `json:"FCSErrors"`
	RxErrors  *int64 `json:"RxErrors"`
	RxOctets  *int64 `json:"RxOctets"`
	TxOctets  *int64 `json:"TxOctets"`
}

// ID is the physical port id. It never changes.
func (p *PortStatistics) ID() int { return p.id }

// LACPID is the 1-based index within the aggregated view, 0 for physical
// ports.
func (p *PortStatistics) LACPID() int { return p.lacpID }

func (p *PortStatistics) portID() int        { return p.id }
func (p *PortStatistics) setLACPIndex(i int) { p.lacpID = i }

func (p *PortStatistics) update(val *portStatisticsVal) {
	p.PrevRxOctets = p.CurRxOctets
	p.PrevTxOctets = p.CurTxOctets
	if val == nil {
		return
	}
	if val.FCSErrors != nil {
		p.FCSErrors = val.FCSErrors
	}
	if val.RxErrors != nil {
		p.RxErrors = val.RxErrors
	}
	if val.RxOctets != nil {
		p.CurRxOctets = val.RxOctets
	}
	if val.TxOctets != nil {
		p.CurTxOctets = val.TxOctets
	}
}

func (p *PortStatistics) calc(elapsed time.Duration) {
	p.RxSpeed = Rate(p.CurRxOctets, p.PrevRxOctets, elapsed)
	p.TxSpeed = Rate(p.CurTxOctets, p.PrevTxOctets, elapsed)
}

func (p *PortStatistics) Data() map[string]any {
	data := map[string]any{}
	putInt64(data, DataFCSErrors, p.FCSErrors)
	id := p.id
	if p.lacpID != 0 {
		id = p.lacpID
	}
	data[DataID] = id
	putInt64(data, DataRxErrors, p.RxErrors)
	putInt64(data, DataRxOctets, p.CurRxOctets)
	data[DataRxSpeed] = p.RxSpeed
	putInt64(data, DataTxOctets, p.CurTxOctets)
	data[DataTxSpeed] = p.TxSpeed
	return data
}

// PortsStatistics is the stateful registry for the ports/statistics
// endpoint. Ports persist across polls; incoming records merge into them by
// id. The physical/aggregated partition is recomputed only on the first poll
// and when the aggregation boundary moves, so transient reads cannot make
// ports flicker between views.
type PortsStatistics struct {
	firstUpdate bool
	curTime     time.Time
	prevTime    time.Time
	lacpStart   *int

	ports     map[int]*PortStatistics
	phyPorts  map[int]*PortStatistics
	lacpPorts map[int]*PortStatistics

	FCSErrors *int64
	RxErrors  *int64
	RxOctets  *int64
	TxOctets  *int64
	RxSpeed   int64
	TxSpeed   int64
}

func NewPortsStatistics() *PortsStatistics {
	return &PortsStatistics{
		firstUpdate: true,
		ports:       map[int]*PortStatistics{},
		phyPorts:    map[int]*PortStatistics{},
		lacpPorts:   map[int]*PortStatistics{},
	}
}

func (ps *PortsStatistics) update(resp *Response, lacpStart *int, now time.Time) error {
	records, err := portRecords(resp)
	if err != nil {
		return err
	}

	ps.prevTime = ps.curTime
	ps.curTime = now

	for _, rec := range records {
		if !rec.Key.valid {
			// Malformed record; skipping it beats failing the poll.
			continue
		}
		id := rec.Key.value
		port := ps.ports[id]
		if port == nil {
			port = &PortStatistics{id: id}
			ps.ports[id] = port
		}
		var val *portStatisticsVal
		if len(rec.Val) > 0 {
			val = &portStatisticsVal{}
			if json.Unmarshal(rec.Val, val) != nil {
				val = nil
			}
		}
		port.update(val)
	}

	if ps.firstUpdate || !equalBoundary(lacpStart, ps.lacpStart) {
		ps.phyPorts, ps.lacpPorts = splitLACP(ps.ports, lacpStart)
		ps.lacpStart = lacpStart
	}

	ps.calc()
	ps.firstUpdate = false
	return nil
}

func (ps *PortsStatistics) calc() {
	var fcs, rxErr, rx, tx int64
	elapsed := ps.curTime.Sub(ps.prevTime)
	calcSpeeds := !ps.firstUpdate && elapsed > 0

	for _, port := range ps.ports {
		if port.FCSErrors != nil {
			fcs += *port.FCSErrors
		}
		if port.RxErrors != nil {
			rxErr += *port.RxErrors
		}
		if port.CurRxOctets != nil {
			rx += *port.CurRxOctets
		}
		if port.CurTxOctets != nil {
			tx += *port.CurTxOctets
		}
		if calcSpeeds {
			port.calc(elapsed)
		}
	}

	if calcSpeeds {
		// Aggregate speed comes from the summed counters, not from summing
		// per-port speeds, so truncation does not accumulate across ports.
		ps.RxSpeed = Rate(&rx, ps.RxOctets, elapsed)
		ps.TxSpeed = Rate(&tx, ps.TxOctets, elapsed)
	}
	ps.FCSErrors = &fcs
	ps.RxErrors = &rxErr
	ps.RxOctets = &rx
	ps.TxOctets = &tx
}

// Port returns the port with the given physical id, or nil.
func (ps *PortsStatistics) Port(id int) *PortStatistics { return ps.ports[id] }

// Ports is the full registry keyed by physical id.
func (ps *PortsStatistics) Ports() map[int]*PortStatistics { return ps.ports }

// PhysicalPorts is the view of ports below the aggregation boundary, keyed
// by physical id.
func (ps *PortsStatistics) PhysicalPorts() map[int]*PortStatistics { return ps.phyPorts }

// LACPPorts is the aggregated view, keyed by the 1-based LACP index.
func (ps *PortsStatistics) LACPPorts() map[int]*PortStatistics { return ps.lacpPorts }

// PollTime is the timestamp of the most recent merge.
func (ps *PortsStatistics) PollTime() time.Time { return ps.curTime }

func (ps *PortsStatistics) Data() map[string]any {
	data := map[string]any{}
	if !ps.curTime.IsZero() {
		data[DataDatetime] = ps.curTime.Format("2006/01/02 15:04:05")
	}
	putInt64(data, DataFCSErrors, ps.FCSErrors)
	data[DataLACPPortNum] = len(ps.lacpPorts)
	if len(ps.lacpPorts) > 0 {
		lacp := map[int]map[string]any{}
		for id, port := range ps.lacpPorts {
			lacp[id] = port.Data()
		}
		data[DataLACPPorts] = lacp
	}
	data[DataPortNum] = len(ps.phyPorts)
	if len(ps.phyPorts) > 0 {
		ports := map[int]map[string]any{}
		for id, port := range ps.phyPorts {
			ports[id] = port.Data()
		}
		data[DataPorts] = ports
	}
	putInt64(data, DataRxErrors, ps.RxErrors)
	putInt64(data, DataRxOctets, ps.RxOctets)
	data[DataRxSpeed] = ps.RxSpeed
	putInt64(data, DataTxOctets, ps.TxOctets)
	data[DataTxSpeed] = ps.TxSpeed
	return data
}

// PortStatus is the per-port status state kept across polls.
type PortStatus struct {
	id     int
	lacpID int

	FullDuplex *bool
	Link       *bool
	Speed      *int64
}

type portStatusVal struct {
	FullDuplex *bool  `json:"FullDuplexStatus"`
	Link       *bool  `json:"Link"`
	Speed      *int64 `json:"Speed"`
}

// ID is the physical port id. It never changes.
func (p *PortStatus) ID() int { return p.id }

// LACPID is the 1-based index within the aggregated view, 0 for physical
// ports.
func (p *PortStatus) LACPID() int { return p.lacpID }

func (p *PortStatus) portID() int        { return p.id }
func (p *PortStatus) setLACPIndex(i int) { p.lacpID = i }

func (p *PortStatus) update(val *portStatusVal) {
	if val == nil {
		return
	}
	if val.FullDuplex != nil {
		p.FullDuplex = val.FullDuplex
	}
	if val.Link != nil {
		p.Link = val.Link
	}
	if val.Speed != nil {
		p.Speed = val.Speed
	}
}

func (p *PortStatus) Data() map[string]any {
	data := map[string]any{}
	putBool(data, DataFullDuplex, p.FullDuplex)
	id := p.id
	if p.lacpID != 0 {
		id = p.lacpID
	}
	data[DataID] = id
	putBool(data, DataLink, p.Link)
	putInt64(data, DataSpeed, p.Speed)
	return data
}

// PortsStatus is the stateful registry for the ports/status endpoint, with
// the same merge and partition behavior as PortsStatistics.
type PortsStatus struct {
	firstUpdate bool
	lacpStart   *int
	linkCount   *int

	ports     map[int]*PortStatus
	phyPorts  map[int]*PortStatus
	lacpPorts map[int]*PortStatus
}

func NewPortsStatus() *PortsStatus {
	return &PortsStatus{
		firstUpdate: true,
		ports:       map[int]*PortStatus{},
		phyPorts:    map[int]*PortStatus{},
		lacpPorts:   map[int]*PortStatus{},
	}
}

func (ps *PortsStatus) update(resp *Response, lacpStart *int) error {
	records, err := portRecords(resp)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if !rec.Key.valid {
			continue
		}
		id := rec.Key.value
		port := ps.ports[id]
		if port == nil {
			port = &PortStatus{id: id}
			ps.ports[id] = port
		}
		var val *portStatusVal
		if len(rec.Val) > 0 {
			val = &portStatusVal{}
			if json.Unmarshal(rec.Val, val) != nil {
				val = nil
			}
		}
		port.update(val)
	}

	if ps.firstUpdate || !equalBoundary(lacpStart, ps.lacpStart) {
		ps.phyPorts, ps.lacpPorts = splitLACP(ps.ports, lacpStart)
		ps.lacpStart = lacpStart
	}

	ps.calc()
	ps.firstUpdate = false
	return nil
}

func (ps *PortsStatus) calc() {
	link := 0
	for _, port := range ps.ports {
		if port.Link != nil && *port.Link {
			link++
		}
	}
	ps.linkCount = &link
}

// LinkCount is the number of ports with an active link.
func (ps *PortsStatus) LinkCount() (int, bool) {
	if ps.linkCount == nil {
		return 0, false
	}
	return *ps.linkCount, true
}

// Port returns the port with the given physical id, or nil.
func (ps *PortsStatus) Port(id int) *PortStatus { return ps.ports[id] }

// Ports is the full registry keyed by physical id.
func (ps *PortsStatus) Ports() map[int]*PortStatus { return ps.ports }

// PhysicalPorts is the view of ports below the aggregation boundary, keyed
// by physical id.
func (ps *PortsStatus) PhysicalPorts() map[int]*PortStatus { return ps.phyPorts }

// LACPPorts is the aggregated view, keyed by the 1-based LACP index.
func (ps *PortsStatus) LACPPorts() map[int]*PortStatus { return ps.lacpPorts }

func (ps *PortsStatus) Data() map[string]any {
	data := map[string]any{}
	data[DataLACPPortNum] = len(ps.lacpPorts)
	if len(ps.lacpPorts) > 0 {
		lacp := map[int]map[string]any{}
		for id, port := range ps.lacpPorts {
			lacp[id] = port.Data()
		}
		data[DataLACPPorts] = lacp
	}
	putInt(data, DataLink, ps.linkCount)
	data[DataPortNum] = len(ps.phyPorts)
	if len(ps.phyPorts) > 0 {
		ports := map[int]map[string]any{}
		for id, port := range ps.phyPorts {
			ports[id] = port.Data()
		}
		data[DataPorts] = ports
	}
	return data
}
