package goqsw

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSwitch fakes the whole management API of an 8-port switch with one
// active LACP group on port 9.
type fakeSwitch struct {
	*httptest.Server

	mu           sync.Mutex
	token        string
	counts       map[string]int
	sensorStatus int
	statsStatus  int
	uptime       int64
}

func newFakeSwitch(t *testing.T) *fakeSwitch {
	s := &fakeSwitch{
		token:        "device-token",
		counts:       map[string]int{},
		sensorStatus: http.StatusOK,
		statsStatus:  http.StatusOK,
		uptime:       3600,
	}

	result := func(w http.ResponseWriter, body string) {
		w.Write([]byte(`{"error_code": 200, "error_message": "OK", "result": ` + body + `}`))
	}
	authed := func(handler func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			s.count(r.URL.Path)
			if r.Header.Get(headerAuthorization) != "Bearer "+s.getToken() {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error_code": 401, "error_message": "unauthorized"}`))
				return
			}
			handler(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/live", func(w http.ResponseWriter, r *http.Request) {
		s.count(r.URL.Path)
		result(w, `"None"`)
	})
	mux.HandleFunc("/api/v1/users/login", func(w http.ResponseWriter, r *http.Request) {
		s.count(r.URL.Path)
		result(w, `"`+s.getToken()+`"`)
	})
	mux.HandleFunc("/api/v1/users/verification", authed(func(w http.ResponseWriter, r *http.Request) {
		result(w, `"admin"`)
	}))
	mux.HandleFunc("/api/v1/lacp/info", authed(func(w http.ResponseWriter, r *http.Request) {
		result(w, `{"StartIndex": 8, "MaxPortChannels": 4, "MaxPortsPerPortChannel": 4}`)
	}))
	mux.HandleFunc("/api/v1/system/board", authed(func(w http.ResponseWriter, r *http.Request) {
		result(w, `{"ChipId": "AL123", "MacAddr": "24:5E:BE:00:00:01", "Model": "QSW-M408-4C",
			"PortNum": 8, "Product": "QSW-M408-4C", "SerialNumber": "Q1AB_2CD3", "TrunkNum": 4}`)
	}))
	mux.HandleFunc("/api/v1/firmware/condition", authed(func(w http.ResponseWriter, r *http.Request) {
		result(w, `{"anomaly": false, "message": ""}`)
	}))
	mux.HandleFunc("/api/v1/firmware/info", authed(func(w http.ResponseWriter, r *http.Request) {
		result(w, `{"version": "1.2", "number": "3456", "buildNumber": "20240101"}`)
	}))
	mux.HandleFunc("/api/v1/ports/statistics", authed(func(w http.ResponseWriter, r *http.Request) {
		if status := s.getStatsStatus(); status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error_code": 500, "error_message": "statistics unavailable"}`))
			return
		}
		result(w, `[
			{"key": "1", "val": {"RxOctets": 1000, "TxOctets": 500, "FCSErrors": 0, "RxErrors": 0}},
			{"key": "2", "val": {"RxOctets": 2000, "TxOctets": 700, "FCSErrors": 1, "RxErrors": 2}},
			{"key": "9", "val": {"RxOctets": 9000, "TxOctets": 900, "FCSErrors": 0, "RxErrors": 0}}
		]`)
	}))
	mux.HandleFunc("/api/v1/ports/status", authed(func(w http.ResponseWriter, r *http.Request) {
		result(w, `[
			{"key": "1", "val": {"Link": true, "FullDuplexStatus": true, "Speed": 1000}},
			{"key": "2", "val": {"Link": false, "FullDuplexStatus": false, "Speed": 0}},
			{"key": "9", "val": {"Link": true, "FullDuplexStatus": true, "Speed": 2000}}
		]`)
	}))
	mux.HandleFunc("/api/v1/system/sensor", authed(func(w http.ResponseWriter, r *http.Request) {
		if status := s.getSensorStatus(); status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error_code": 500, "error_message": "sensor busy"}`))
			return
		}
		result(w, `{"Fan1Speed": -2, "Fan2Speed": -2, "SwitchTemp": 45, "MaxSwitchTemp": 85}`)
	}))
	mux.HandleFunc("/api/v1/system/time", authed(func(w http.ResponseWriter, r *http.Request) {
		result(w, `{"UpTime": `+strconv.FormatInt(s.getUptime(), 10)+`}`)
	}))
	mux.HandleFunc("/api/v1/system/command", authed(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "reboot", payload["command"])
		result(w, `"None"`)
	}))
	mux.HandleFunc("/api/v1/system/config", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("config-blob"))
	}))
	mux.HandleFunc("/api/v1/firmware/update/check", authed(func(w http.ResponseWriter, r *http.Request) {
		result(w, `{"version": "1.3", "number": "4000", "buildNumber": "20240601",
			"newer": true, "downloadURL": ["https://download.qnap.com/fw.img"]}`)
	}))
	mux.HandleFunc("/api/v1/firmware/update/live", authed(func(w http.ResponseWriter, r *http.Request) {
		result(w, `"None"`)
	}))
	mux.HandleFunc("/api/v1/firmware/update", authed(func(w http.ResponseWriter, r *http.Request) {
		result(w, `{"DownloadSize": 25.0, "FirmwareSize": 100.0}`)
	}))
	mux.HandleFunc("/api/v1/firmware/status", authed(func(w http.ResponseWriter, r *http.Request) {
		result(w, `{"progress": "done"}`)
	}))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *fakeSwitch) count(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[path]++
}

func (s *fakeSwitch) callCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[path]
}

func (s *fakeSwitch) setSensorStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensorStatus = status
}

func (s *fakeSwitch) getSensorStatus() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sensorStatus
}

func (s *fakeSwitch) setStatsStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsStatus = status
}

func (s *fakeSwitch) getStatsStatus() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsStatus
}

func (s *fakeSwitch) setToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *fakeSwitch) getToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSwitch) setUptime(uptime int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uptime = uptime
}

func (s *fakeSwitch) getUptime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uptime
}

func newTestDevice(server *fakeSwitch) *Device {
	api := NewClient(nil, ConnectionOptions{URL: server.URL, User: "admin", Password: "secret"})
	return NewDevice(api)
}

func TestDeviceUpdate(t *testing.T) {
	server := newFakeSwitch(t)
	device := newTestDevice(server)
	ctx := context.Background()

	require.NoError(t, device.Update(ctx))
	require.NoError(t, device.Update(ctx))

	// Session-constant endpoints are fetched once, the rest every cycle.
	assert.Equal(t, 1, server.callCount("/api/v1/users/login"))
	assert.Equal(t, 1, server.callCount("/api/v1/lacp/info"))
	assert.Equal(t, 1, server.callCount("/api/v1/system/board"))
	assert.Equal(t, 1, server.callCount("/api/v1/firmware/info"))
	assert.Equal(t, 2, server.callCount("/api/v1/firmware/condition"))
	assert.Equal(t, 2, server.callCount("/api/v1/ports/statistics"))
	assert.Equal(t, 2, server.callCount("/api/v1/ports/status"))
	assert.Equal(t, 2, server.callCount("/api/v1/system/sensor"))
	assert.Equal(t, 2, server.callCount("/api/v1/system/time"))

	board := device.SystemBoard()
	require.NotNil(t, board)
	assert.Equal(t, "QSW-M408-4C", *board.Model)
	serial, ok := board.Serial()
	require.True(t, ok)
	assert.Equal(t, "Q1AB2CD3", serial)

	info := device.FirmwareInfo()
	require.NotNil(t, info)
	fw, ok := info.Firmware()
	require.True(t, ok)
	assert.Equal(t, "1.2.3456 (20240101)", fw)

	// Port 9 sits at the LACP boundary (StartIndex 8 -> start id 9).
	stats := device.PortsStatistics()
	require.NotNil(t, stats)
	assert.Len(t, stats.PhysicalPorts(), 2)
	assert.Len(t, stats.LACPPorts(), 1)
	assert.Equal(t, 9, stats.LACPPorts()[1].ID())

	status := device.PortsStatus()
	require.NotNil(t, status)
	link, ok := status.LinkCount()
	require.True(t, ok)
	assert.Equal(t, 2, link)

	sensor := device.SystemSensor()
	require.NotNil(t, sensor)
	assert.Equal(t, 45, *sensor.Temp)
	_, hasFan := sensor.Fan1()
	assert.False(t, hasFan)

	systime := device.SystemTime()
	require.NotNil(t, systime)
	assert.Equal(t, int64(3600), *systime.UptimeSeconds)
	assert.NotNil(t, systime.UptimeTimestamp)
}

func TestDeviceUpdateSensorFailureFirstCycle(t *testing.T) {
	server := newFakeSwitch(t)
	server.setSensorStatus(http.StatusInternalServerError)
	device := newTestDevice(server)

	err := device.Update(context.Background())
	assert.ErrorIs(t, err, ErrInternalServer)
	assert.Nil(t, device.SystemSensor())
}

func TestDeviceUpdateSensorFailureKeepsPreviousReading(t *testing.T) {
	server := newFakeSwitch(t)
	device := newTestDevice(server)
	ctx := context.Background()

	require.NoError(t, device.Update(ctx))
	server.setSensorStatus(http.StatusInternalServerError)

	// After the first cycle a flaky sensor only degrades to stale data.
	require.NoError(t, device.Update(ctx))
	sensor := device.SystemSensor()
	require.NotNil(t, sensor)
	assert.Equal(t, 45, *sensor.Temp)
}

func TestDeviceUpdateSensorHardFailure(t *testing.T) {
	server := newFakeSwitch(t)
	device := newTestDevice(server)
	ctx := context.Background()

	require.NoError(t, device.Update(ctx))

	// A non-500 failure is never tolerated, even with a previous reading.
	server.setSensorStatus(http.StatusBadGateway)
	err := device.Update(ctx)
	assert.ErrorIs(t, err, ErrAPI)
	assert.NotErrorIs(t, err, ErrInternalServer)
}

func TestDeviceUpdateSiblingFailureAbortsCycle(t *testing.T) {
	server := newFakeSwitch(t)
	server.setStatsStatus(http.StatusInternalServerError)
	device := newTestDevice(server)

	// A per-cycle fetch failure surfaces as the cycle error; the in-flight
	// sensor fetch is cancelled and its outcome never masks the sibling's.
	err := device.Update(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "api/v1/ports/statistics", apiErr.Path)
	assert.Nil(t, device.PortsStatistics())

	// The failed cycle leaves the device usable: the next one succeeds.
	server.setStatsStatus(http.StatusOK)
	require.NoError(t, device.Update(context.Background()))
	assert.NotNil(t, device.PortsStatistics())
}

func TestDeviceUpdateAfterReboot(t *testing.T) {
	server := newFakeSwitch(t)
	device := newTestDevice(server)
	ctx := context.Background()

	require.NoError(t, device.Update(ctx))
	firstBoot := *device.SystemTime().UptimeTimestamp

	// The switch reboots: sessions are gone and uptime starts over. The next
	// cycle re-logins transparently and must re-derive the boot timestamp
	// instead of reporting the pre-reboot one forever.
	server.setToken("post-reboot-token")
	server.setUptime(60)
	require.NoError(t, device.Update(ctx))

	systime := device.SystemTime()
	require.NotNil(t, systime)
	assert.Equal(t, int64(60), *systime.UptimeSeconds)
	require.NotNil(t, systime.UptimeTimestamp)
	assert.True(t, systime.UptimeTimestamp.After(firstBoot))
}

func TestDeviceValidate(t *testing.T) {
	server := newFakeSwitch(t)
	device := newTestDevice(server)

	board, err := device.Validate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, board)
	assert.Equal(t, "QSW-M408-4C", *board.Model)
	assert.Equal(t, 8, *board.PortNum)
}

func TestDeviceValidateResetsCaches(t *testing.T) {
	server := newFakeSwitch(t)
	device := newTestDevice(server)
	ctx := context.Background()

	require.NoError(t, device.Update(ctx))
	assert.Equal(t, 1, server.callCount("/api/v1/lacp/info"))
	assert.Equal(t, 1, server.callCount("/api/v1/firmware/info"))

	// A fresh validation drops the session-scoped caches so the next cycle
	// re-reads the device identity.
	_, err := device.Validate(ctx)
	require.NoError(t, err)
	assert.Nil(t, device.FirmwareInfo())
	assert.Nil(t, device.LACPInfo())
	assert.Nil(t, device.SystemTime())

	require.NoError(t, device.Update(ctx))
	assert.Equal(t, 2, server.callCount("/api/v1/lacp/info"))
	assert.Equal(t, 2, server.callCount("/api/v1/firmware/info"))
	assert.NotNil(t, device.SystemBoard())
}

func TestDeviceValidateUnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	api := NewClient(nil, ConnectionOptions{URL: url, User: "admin", Password: "secret"})
	_, err := NewDevice(api).Validate(context.Background())
	assert.ErrorIs(t, err, ErrInvalidHost)
}

func TestDeviceValidateBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/live", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error_code": 200, "result": "None"}`))
	})
	mux.HandleFunc("/api/v1/users/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error_code": 401, "error_message": "unauthorized"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	api := NewClient(nil, ConnectionOptions{URL: server.URL, User: "admin", Password: "wrong"})
	_, err := NewDevice(api).Validate(context.Background())
	assert.ErrorIs(t, err, ErrLogin)
	assert.NotErrorIs(t, err, ErrInvalidHost)
}

func TestDeviceReboot(t *testing.T) {
	server := newFakeSwitch(t)
	device := newTestDevice(server)

	require.NoError(t, device.Reboot(context.Background()))
	assert.Equal(t, 1, server.callCount("/api/v1/system/command"))
}

func TestDeviceConfigBackup(t *testing.T) {
	server := newFakeSwitch(t)
	device := newTestDevice(server)

	blob, err := device.ConfigBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("config-blob"), blob)
}

func TestDeviceCheckFirmware(t *testing.T) {
	server := newFakeSwitch(t)
	device := newTestDevice(server)

	check, err := device.CheckFirmware(context.Background())
	require.NoError(t, err)
	require.NotNil(t, check.Newer)
	assert.True(t, *check.Newer)
	fw, ok := check.Firmware()
	require.True(t, ok)
	assert.Equal(t, "1.3.4000 (20240601)", fw)
	assert.Equal(t, []string{"https://download.qnap.com/fw.img"}, check.DownloadURLs)
	assert.Same(t, check, device.FirmwareCheck())
}

func TestDeviceFirmwareUpdateFlow(t *testing.T) {
	server := newFakeSwitch(t)
	device := newTestDevice(server)
	ctx := context.Background()

	require.NoError(t, device.LiveUpdate(ctx))

	progress, err := device.UpdateProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25.0, progress)

	inFlight, err := device.UpdateStatus(ctx)
	require.NoError(t, err)
	assert.False(t, inFlight)
}

func TestDeviceData(t *testing.T) {
	server := newFakeSwitch(t)
	device := newTestDevice(server)
	ctx := context.Background()

	assert.Empty(t, device.Data())

	require.NoError(t, device.Update(ctx))
	data := device.Data()

	for _, key := range []string{
		DataFirmwareCond, DataFirmwareInfo, DataPortsStatistics,
		DataPortsStatus, DataSystemBoard, DataSystemSensor, DataSystemTime,
	} {
		assert.Contains(t, data, key)
	}
	// Nothing checked the update service yet.
	assert.NotContains(t, data, DataFirmwareCheck)

	boardData, ok := data[DataSystemBoard].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "QSW-M408-4C", boardData[DataModel])
	assert.Equal(t, "Q1AB2CD3", boardData[DataSerial])
	assert.Equal(t, 8, boardData[DataPortNum])

	raw := device.RawData()
	assert.Contains(t, raw, DataSystemBoard)
	assert.Contains(t, raw, rawLACPInfo)
}
