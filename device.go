package goqsw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Device is the stateful facade over one switch: it orchestrates polling
// cycles, owns every parsed snapshot and exposes them read-only. All state is
// scoped to the instance; two devices never share anything.
type Device struct {
	api *Client

	mu                sync.Mutex // guards everything below across Update/Data
	firstUpdate       bool
	firmwareCheck     *FirmwareCheck
	firmwareCondition *FirmwareCondition
	firmwareInfo      *FirmwareInfo
	firmwareProgress  float64
	lacpInfo          *LACPInfo
	portsStatistics   *PortsStatistics
	portsStatus       *PortsStatus
	systemBoard       *SystemBoard
	systemSensor      *SystemSensor
	systemTime        *SystemTime

	rawMu sync.Mutex
	raw   map[string]*Response
}

// NewDevice builds a facade on top of an API client.
func NewDevice(api *Client) *Device {
	return &Device{
		api:         api,
		firstUpdate: true,
		raw:         map[string]*Response{},
	}
}

// Client returns the underlying API client.
func (d *Device) Client() *Client { return d.api }

func (d *Device) setRaw(key string, resp *Response) {
	if resp == nil {
		return
	}
	d.rawMu.Lock()
	defer d.rawMu.Unlock()
	d.raw[key] = resp
}

// RawData returns the last raw envelope received per endpoint.
func (d *Device) RawData() map[string]*Response {
	d.rawMu.Lock()
	defer d.rawMu.Unlock()
	out := make(map[string]*Response, len(d.raw))
	for key, resp := range d.raw {
		out[key] = resp
	}
	return out
}

// lacpStart derives the aggregation boundary: the explicit LACP start id when
// the endpoint reported one, otherwise one past the physical port count from
// the board info, otherwise unknown.
func (d *Device) lacpStart() *int {
	if d.lacpInfo != nil {
		if id, ok := d.lacpInfo.StartID(); ok {
			return &id
		}
	}
	if d.systemBoard != nil && d.systemBoard.PortNum != nil {
		id := *d.systemBoard.PortNum + 1
		return &id
	}
	return nil
}

func (d *Device) updateFirmwareCondition(ctx context.Context) error {
	resp, err := d.api.GetFirmwareCondition(ctx)
	if err != nil {
		return err
	}
	d.setRaw(DataFirmwareCond, resp)
	fc := d.firmwareCondition
	if fc == nil {
		fc = &FirmwareCondition{}
	}
	if err := fc.update(resp); err != nil {
		return err
	}
	d.firmwareCondition = fc
	return nil
}

func (d *Device) updateFirmwareInfo(ctx context.Context) error {
	if d.firmwareInfo != nil {
		return nil
	}
	resp, err := d.api.GetFirmwareInfo(ctx)
	if err != nil {
		return err
	}
	d.setRaw(DataFirmwareInfo, resp)
	fi := &FirmwareInfo{}
	if err := fi.update(resp); err != nil {
		return err
	}
	d.firmwareInfo = fi
	return nil
}

func (d *Device) updateLACPInfo(ctx context.Context) error {
	if d.lacpInfo != nil {
		return nil
	}
	resp, err := d.api.GetLACPInfo(ctx)
	if err != nil {
		return err
	}
	d.setRaw(rawLACPInfo, resp)
	li := &LACPInfo{}
	if err := li.update(resp); err != nil {
		return err
	}
	d.lacpInfo = li
	return nil
}

func (d *Device) updatePortsStatistics(ctx context.Context, lacpStart *int) error {
	resp, err := d.api.GetPortsStatistics(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	d.setRaw(DataPortsStatistics, resp)
	ps := d.portsStatistics
	if ps == nil {
		ps = NewPortsStatistics()
	}
	if err := ps.update(resp, lacpStart, now); err != nil {
		return err
	}
	d.portsStatistics = ps
	return nil
}

func (d *Device) updatePortsStatus(ctx context.Context, lacpStart *int) error {
	resp, err := d.api.GetPortsStatus(ctx)
	if err != nil {
		return err
	}
	d.setRaw(DataPortsStatus, resp)
	ps := d.portsStatus
	if ps == nil {
		ps = NewPortsStatus()
	}
	if err := ps.update(resp, lacpStart); err != nil {
		return err
	}
	d.portsStatus = ps
	return nil
}

func (d *Device) updateSystemBoard(ctx context.Context) error {
	if d.systemBoard != nil {
		return nil
	}
	resp, err := d.api.GetSystemBoard(ctx)
	if err != nil {
		return err
	}
	d.setRaw(DataSystemBoard, resp)
	sb := &SystemBoard{}
	if err := sb.update(resp); err != nil {
		return err
	}
	d.systemBoard = sb
	return nil
}

func (d *Device) updateSystemSensor(ctx context.Context) error {
	resp, err := d.api.GetSystemSensor(ctx)
	if err != nil {
		return err
	}
	d.setRaw(DataSystemSensor, resp)
	ss := d.systemSensor
	if ss == nil {
		ss = &SystemSensor{}
	}
	if err := ss.update(resp); err != nil {
		return err
	}
	d.systemSensor = ss
	return nil
}

func (d *Device) updateSystemTime(ctx context.Context) error {
	resp, err := d.api.GetSystemTime(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Truncate(time.Second)
	d.setRaw(DataSystemTime, resp)
	st := d.systemTime
	if st == nil {
		st = &SystemTime{}
	}
	if err := st.update(resp, now); err != nil {
		return err
	}
	d.systemTime = st
	return nil
}

// Update runs one polling cycle. The slow system/sensor fetch runs on its own
// cancellable context alongside everything else, so the cycle latency is
// bounded by the slowest call rather than the sum. lacp/info and system/board
// are fetched (once) before the port registries merge, fixing the aggregation
// boundary for the cycle.
func (d *Device) Update(ctx context.Context) error {
	if err := d.api.EnsureLoggedIn(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sensorCtx, cancelSensor := context.WithCancel(ctx)
	defer cancelSensor()
	sensorDone := make(chan error, 1)
	go func() {
		sensorDone <- d.updateSystemSensor(sensorCtx)
	}()

	abort := func(err error) error {
		cancelSensor()
		<-sensorDone
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.updateLACPInfo(gctx) })
	g.Go(func() error { return d.updateSystemBoard(gctx) })
	if err := g.Wait(); err != nil {
		return abort(err)
	}

	lacpStart := d.lacpStart()

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error { return d.updateFirmwareCondition(gctx) })
	g.Go(func() error { return d.updateFirmwareInfo(gctx) })
	g.Go(func() error { return d.updatePortsStatistics(gctx, lacpStart) })
	g.Go(func() error { return d.updatePortsStatus(gctx, lacpStart) })
	g.Go(func() error { return d.updateSystemTime(gctx) })
	if err := g.Wait(); err != nil {
		return abort(err)
	}

	if err := <-sensorDone; err != nil {
		// A transient sensor failure is tolerable once there is a previous
		// reading to fall back to; the very first cycle has none.
		if d.firstUpdate || !errors.Is(err, ErrInternalServer) {
			return err
		}
		d.api.log.Warnf("qsw system/sensor: %v (keeping previous reading)", err)
	}

	d.firstUpdate = false
	return nil
}

// Validate is the fail-fast connectivity and credential check to run before
// committing to a polling loop: a liveness probe, a fresh login and a minimal
// board fetch. It distinguishes an unreachable or non-QSW host from rejected
// credentials and resets the first-cycle state, dropping the session-scoped
// caches so the next cycle re-reads the device identity.
func (d *Device) Validate(ctx context.Context) (*SystemBoard, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.firstUpdate = true
	d.firmwareInfo = nil
	d.lacpInfo = nil
	d.portsStatistics = nil
	d.systemBoard = nil
	d.systemTime = nil

	if _, err := d.api.GetLive(ctx); err != nil {
		if errors.Is(err, ErrAPI) || errors.Is(err, ErrLogin) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidHost, err)
		}
		return nil, err
	}

	if err := d.api.Login(ctx); err != nil {
		if errors.Is(err, ErrLogin) {
			return nil, err
		}
		if errors.Is(err, ErrAPI) {
			return nil, fmt.Errorf("%w: %v", ErrLogin, err)
		}
		return nil, err
	}

	resp, err := d.api.GetSystemBoard(ctx)
	if err != nil {
		return nil, err
	}
	board := &SystemBoard{}
	if err := board.update(resp); err != nil {
		return nil, err
	}
	return board, nil
}

// CheckFirmware asks the vendor update service whether newer firmware exists.
func (d *Device) CheckFirmware(ctx context.Context) (*FirmwareCheck, error) {
	if err := d.api.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}
	resp, err := d.api.GetFirmwareUpdateCheck(ctx)
	if err != nil {
		return nil, err
	}
	d.setRaw(DataFirmwareCheck, resp)

	d.mu.Lock()
	defer d.mu.Unlock()
	fc := d.firmwareCheck
	if fc == nil {
		fc = &FirmwareCheck{}
	}
	if err := fc.update(resp); err != nil {
		return nil, err
	}
	d.firmwareCheck = fc
	return fc, nil
}

// ConfigBackup downloads the device configuration blob.
func (d *Device) ConfigBackup(ctx context.Context) ([]byte, error) {
	if err := d.api.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}
	return d.api.GetSystemConfig(ctx)
}

// Reboot restarts the switch.
func (d *Device) Reboot(ctx context.Context) error {
	if err := d.api.EnsureLoggedIn(ctx); err != nil {
		return err
	}
	resp, err := d.api.PostSystemCommand(ctx, commandReboot)
	if err != nil {
		return err
	}
	if !resultIsNone(resp) {
		return fmt.Errorf("%w: unexpected reboot response", ErrAPI)
	}
	return nil
}

// LiveUpdate triggers an in-place update to the latest firmware.
func (d *Device) LiveUpdate(ctx context.Context) error {
	if err := d.api.EnsureLoggedIn(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	d.firmwareProgress = 0
	d.mu.Unlock()

	resp, err := d.api.PostFirmwareUpdateLive(ctx)
	if err != nil {
		return err
	}
	if !resultIsNone(resp) {
		return fmt.Errorf("%w: unexpected live update response", ErrAPI)
	}
	return nil
}

type firmwareUpdateResult struct {
	DownloadSize *float64 `json:"DownloadSize"`
	FirmwareSize *float64 `json:"FirmwareSize"`
}

// UpdateProgress reports firmware download progress as a percentage. When
// the device has nothing to report, the last known value is returned.
func (d *Device) UpdateProgress(ctx context.Context) (float64, error) {
	resp, err := d.api.GetFirmwareUpdate(ctx)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	var res firmwareUpdateResult
	if resp.Result != nil && json.Unmarshal(resp.Result, &res) == nil {
		if res.DownloadSize != nil && res.FirmwareSize != nil && *res.FirmwareSize > 0 {
			d.firmwareProgress = *res.DownloadSize * 100.0 / *res.FirmwareSize
		}
	}
	return d.firmwareProgress, nil
}

type firmwareStatusResult struct {
	Progress *string `json:"progress"`
}

// UpdateStatus reports whether a firmware update is still in flight.
func (d *Device) UpdateStatus(ctx context.Context) (bool, error) {
	resp, err := d.api.GetFirmwareStatus(ctx)
	if err != nil {
		return false, err
	}
	if resultIsNone(resp) {
		return false, nil
	}
	var res firmwareStatusResult
	if resp.Result != nil && json.Unmarshal(resp.Result, &res) == nil {
		if res.Progress != nil && *res.Progress == progressDone {
			return false, nil
		}
	}
	return true, nil
}

// FirmwareCheck returns the last firmware check snapshot, or nil.
func (d *Device) FirmwareCheck() *FirmwareCheck {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firmwareCheck
}

// FirmwareCondition returns the last firmware condition snapshot, or nil.
func (d *Device) FirmwareCondition() *FirmwareCondition {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firmwareCondition
}

// FirmwareInfo returns the cached firmware info snapshot, or nil.
func (d *Device) FirmwareInfo() *FirmwareInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firmwareInfo
}

// LACPInfo returns the cached LACP info snapshot, or nil.
func (d *Device) LACPInfo() *LACPInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lacpInfo
}

// PortsStatistics returns the port statistics registry, or nil before the
// first cycle.
func (d *Device) PortsStatistics() *PortsStatistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.portsStatistics
}

// PortsStatus returns the port status registry, or nil before the first
// cycle.
func (d *Device) PortsStatus() *PortsStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.portsStatus
}

// SystemBoard returns the cached board snapshot, or nil.
func (d *Device) SystemBoard() *SystemBoard {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.systemBoard
}

// SystemSensor returns the last sensor snapshot, or nil.
func (d *Device) SystemSensor() *SystemSensor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.systemSensor
}

// SystemTime returns the last time snapshot, or nil.
func (d *Device) SystemTime() *SystemTime {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.systemTime
}

// Data returns the unified snapshot as nested kebab-case keys. Sections that
// have nothing to report are omitted.
func (d *Device) Data() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()

	data := map[string]any{}
	putSection := func(key string, section map[string]any) {
		if len(section) > 0 {
			data[key] = section
		}
	}

	if d.firmwareCheck != nil {
		putSection(DataFirmwareCheck, d.firmwareCheck.Data())
	}
	if d.firmwareCondition != nil {
		putSection(DataFirmwareCond, d.firmwareCondition.Data())
	}
	if d.firmwareInfo != nil {
		putSection(DataFirmwareInfo, d.firmwareInfo.Data())
	}
	if d.portsStatistics != nil {
		putSection(DataPortsStatistics, d.portsStatistics.Data())
	}
	if d.portsStatus != nil {
		putSection(DataPortsStatus, d.portsStatus.Data())
	}
	if d.systemBoard != nil {
		putSection(DataSystemBoard, d.systemBoard.Data())
	}
	if d.systemSensor != nil {
		putSection(DataSystemSensor, d.systemSensor.Data())
	}
	if d.systemTime != nil {
		putSection(DataSystemTime, d.systemTime.Data())
	}
	return data
}
