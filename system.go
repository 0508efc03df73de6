package goqsw

import (
	"regexp"
	"time"
)

var serialClean = regexp.MustCompile(`[\W_]+`)

// SystemBoard is the parsed system/board snapshot: immutable hardware
// identity, fetched once per session.
type SystemBoard struct {
	ChipID   *string
	MAC      *string
	Model    *string
	PortNum  *int
	Product  *string
	SerialNo *string
	TrunkNum *int
}

type systemBoardResult struct {
	ChipID   *flexString `json:"ChipId"`
	MAC      *flexString `json:"MacAddr"`
	Model    *flexString `json:"Model"`
	PortNum  *int        `json:"PortNum"`
	Product  *flexString `json:"Product"`
	SerialNo *flexString `json:"SerialNumber"`
	TrunkNum *int        `json:"TrunkNum"`
}

func (s *SystemBoard) update(resp *Response) error {
	var res systemBoardResult
	if err := decodeResult(resp, &res); err != nil {
		return err
	}
	if v := strVal(res.ChipID); v != nil {
		s.ChipID = v
	}
	if v := strVal(res.MAC); v != nil {
		s.MAC = v
	}
	if v := strVal(res.Model); v != nil {
		s.Model = v
	}
	if res.PortNum != nil {
		s.PortNum = res.PortNum
	}
	if v := strVal(res.Product); v != nil {
		s.Product = v
	}
	if v := strVal(res.SerialNo); v != nil {
		s.SerialNo = v
	}
	if res.TrunkNum != nil {
		s.TrunkNum = res.TrunkNum
	}
	return nil
}

// Serial returns the serial number with separators and whitespace stripped,
// suitable as a stable device identifier.
func (s *SystemBoard) Serial() (string, bool) {
	if s.SerialNo == nil {
		return "", false
	}
	return serialClean.ReplaceAllString(*s.SerialNo, ""), true
}

func (s *SystemBoard) Data() map[string]any {
	data := map[string]any{}
	putStr(data, DataChipID, s.ChipID)
	putStr(data, DataMAC, s.MAC)
	putStr(data, DataModel, s.Model)
	putInt(data, DataPortNum, s.PortNum)
	putStr(data, DataProduct, s.Product)
	if serial, ok := s.Serial(); ok {
		data[DataSerial] = serial
	}
	putInt(data, DataTrunkNum, s.TrunkNum)
	return data
}

// SystemSensor is the parsed system/sensor snapshot. This endpoint is
// markedly slower than the rest of the API.
type SystemSensor struct {
	Fan1Speed *int
	Fan2Speed *int
	Temp      *int
	TempMax   *int
}

type systemSensorResult struct {
	Fan1Speed *int `json:"Fan1Speed"`
	Fan2Speed *int `json:"Fan2Speed"`
	Temp      *int `json:"SwitchTemp"`
	TempMax   *int `json:"MaxSwitchTemp"`
}

func (s *SystemSensor) update(resp *Response) error {
	var res systemSensorResult
	if err := decodeResult(resp, &res); err != nil {
		return err
	}
	if res.Fan1Speed != nil {
		s.Fan1Speed = res.Fan1Speed
	}
	if res.Fan2Speed != nil {
		s.Fan2Speed = res.Fan2Speed
	}
	if res.Temp != nil {
		s.Temp = res.Temp
	}
	if res.TempMax != nil {
		s.TempMax = res.TempMax
	}
	return nil
}

// Fan1 returns the fan 1 speed. Fanless models report a negative value,
// which means "no such fan".
func (s *SystemSensor) Fan1() (int, bool) {
	if s.Fan1Speed == nil || *s.Fan1Speed < 0 {
		return 0, false
	}
	return *s.Fan1Speed, true
}

// Fan2 returns the fan 2 speed, with the same contract as Fan1.
func (s *SystemSensor) Fan2() (int, bool) {
	if s.Fan2Speed == nil || *s.Fan2Speed < 0 {
		return 0, false
	}
	return *s.Fan2Speed, true
}

func (s *SystemSensor) Data() map[string]any {
	data := map[string]any{}
	if fan, ok := s.Fan1(); ok {
		data[DataFan1Speed] = fan
	}
	if fan, ok := s.Fan2(); ok {
		data[DataFan2Speed] = fan
	}
	putInt(data, DataTemp, s.Temp)
	putInt(data, DataTempMax, s.TempMax)
	return data
}

// SystemTime is the parsed system/time snapshot. The boot timestamp is
// derived once from the first valid uptime and then frozen, so it does not
// jitter with polling latency. A regressing uptime means the device rebooted
// and re-derives the timestamp.
type SystemTime struct {
	UptimeSeconds   *int64
	UptimeTimestamp *time.Time
}

type systemTimeResult struct {
	Uptime *int64 `json:"UpTime"`
}

func (s *SystemTime) update(resp *Response, now time.Time) error {
	var res systemTimeResult
	if err := decodeResult(resp, &res); err != nil {
		return err
	}
	if res.Uptime != nil {
		if *res.Uptime < 0 {
			s.UptimeSeconds = nil
			return nil
		}
		if s.UptimeSeconds != nil && *res.Uptime < *s.UptimeSeconds {
			s.UptimeTimestamp = nil
		}
		s.UptimeSeconds = res.Uptime
		if s.UptimeTimestamp == nil {
			ts := now.Add(-time.Duration(*res.Uptime) * time.Second)
			s.UptimeTimestamp = &ts
		}
	}
	return nil
}

func (s *SystemTime) Data() map[string]any {
	data := map[string]any{}
	putInt64(data, DataUptimeSeconds, s.UptimeSeconds)
	if s.UptimeTimestamp != nil {
		data[DataUptimeTimestamp] = s.UptimeTimestamp.Format(time.RFC3339)
	}
	return data
}
