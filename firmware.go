package goqsw

// FirmwareCheck is the parsed firmware/update/check snapshot: what the vendor
// update service knows about the newest available firmware.
type FirmwareCheck struct {
	BuildNumber  *string
	Date         *string
	Description  *string
	DownloadURLs []string
	Newer        *bool
	Number       *string
	Version      *string
}

type firmwareCheckResult struct {
	BuildNumber *flexString `json:"buildNumber"`
	Date        *flexString `json:"date"`
	Description *flexString `json:"description"`
	DownloadURL []string    `json:"downloadURL"`
	Newer       *bool       `json:"newer"`
	Number      *flexString `json:"number"`
	Version     *flexString `json:"version"`
}

func (f *FirmwareCheck) update(resp *Response) error {
	var res firmwareCheckResult
	if err := decodeResult(resp, &res); err != nil {
		return err
	}
	if v := strVal(res.BuildNumber); v != nil {
		f.BuildNumber = v
	}
	if v := strVal(res.Date); v != nil {
		f.Date = v
	}
	if v := strVal(res.Description); v != nil {
		f.Description = v
	}
	f.DownloadURLs = append(f.DownloadURLs, res.DownloadURL...)
	if res.Newer != nil {
		f.Newer = res.Newer
	}
	if v := strVal(res.Number); v != nil {
		f.Number = v
	}
	if v := strVal(res.Version); v != nil {
		f.Version = v
	}
	return nil
}

// Firmware renders "version.number (build)" the way the device UI shows it.
func (f *FirmwareCheck) Firmware() (string, bool) {
	return firmwareString(f.Version, f.Number, f.BuildNumber)
}

// Data returns the snapshot as stable kebab-case keys.
func (f *FirmwareCheck) Data() map[string]any {
	data := map[string]any{}
	putStr(data, DataBuildNumber, f.BuildNumber)
	putStr(data, DataDate, f.Date)
	if f.Description != nil && *f.Description != "" {
		data[DataDescription] = *f.Description
	}
	if len(f.DownloadURLs) > 0 {
		data[DataDownloadURLs] = f.DownloadURLs
	}
	if fw, ok := f.Firmware(); ok {
		data[DataFirmware] = fw
	}
	putBool(data, DataNewer, f.Newer)
	putStr(data, DataNumber, f.Number)
	putStr(data, DataVersion, f.Version)
	return data
}

// FirmwareCondition is the parsed firmware/condition snapshot.
type FirmwareCondition struct {
	Anomaly *bool
	Message *string
}

type firmwareConditionResult struct {
	Anomaly *bool       `json:"anomaly"`
	Message *flexString `json:"message"`
}

func (f *FirmwareCondition) update(resp *Response) error {
	var res firmwareConditionResult
	if err := decodeResult(resp, &res); err != nil {
		return err
	}
	if res.Anomaly != nil {
		f.Anomaly = res.Anomaly
	}
	if v := strVal(res.Message); v != nil {
		f.Message = v
	}
	return nil
}

func (f *FirmwareCondition) Data() map[string]any {
	data := map[string]any{}
	putBool(data, DataAnomaly, f.Anomaly)
	if f.Message != nil && *f.Message != "" {
		data[DataMessage] = *f.Message
	}
	return data
}

// FirmwareInfo is the parsed firmware/info snapshot, describing the firmware
// the device is running. It never changes within a session and is fetched
// once.
type FirmwareInfo struct {
	BuildNumber *string
	CIBranch    *string
	CICommit    *string
	CIPipeline  *string
	CommitCPSS  *string
	CommitISS   *string
	Date        *string
	Number      *string
	PubDate     *string
	Version     *string
}

type firmwareInfoResult struct {
	BuildNumber *flexString `json:"buildNumber"`
	CIBranch    *flexString `json:"ci_branch"`
	CICommit    *flexString `json:"ci_commit"`
	CIPipeline  *flexString `json:"ci_pipeline"`
	CommitCPSS  *flexString `json:"commit_cpss"`
	CommitISS   *flexString `json:"commit_iss"`
	Date        *flexString `json:"date"`
	Number      *flexString `json:"number"`
	PubDate     *flexString `json:"pubDate"`
	Version     *flexString `json:"version"`
}

func (f *FirmwareInfo) update(resp *Response) error {
	var res firmwareInfoResult
	if err := decodeResult(resp, &res); err != nil {
		return err
	}
	if v := strVal(res.BuildNumber); v != nil {
		f.BuildNumber = v
	}
	if v := strVal(res.CIBranch); v != nil {
		f.CIBranch = v
	}
	if v := strVal(res.CICommit); v != nil {
		f.CICommit = v
	}
	if v := strVal(res.CIPipeline); v != nil {
		f.CIPipeline = v
	}
	if v := strVal(res.CommitCPSS); v != nil {
		f.CommitCPSS = v
	}
	if v := strVal(res.CommitISS); v != nil {
		f.CommitISS = v
	}
	if v := strVal(res.Date); v != nil {
		f.Date = v
	}
	if v := strVal(res.Number); v != nil {
		f.Number = v
	}
	if v := strVal(res.PubDate); v != nil {
		f.PubDate = v
	}
	if v := strVal(res.Version); v != nil {
		f.Version = v
	}
	return nil
}

// Firmware renders "version.number (build)" the way the device UI shows it.
func (f *FirmwareInfo) Firmware() (string, bool) {
	return firmwareString(f.Version, f.Number, f.BuildNumber)
}

func (f *FirmwareInfo) Data() map[string]any {
	data := map[string]any{}
	putStr(data, DataBuildNumber, f.BuildNumber)
	putStr(data, DataCIBranch, f.CIBranch)
	putStr(data, DataCICommit, f.CICommit)
	putStr(data, DataCIPipeline, f.CIPipeline)
	if f.CommitCPSS != nil && *f.CommitCPSS != "" {
		data[DataCommitCPSS] = *f.CommitCPSS
	}
	putStr(data, DataCommitISS, f.CommitISS)
	putStr(data, DataDate, f.Date)
	if fw, ok := f.Firmware(); ok {
		data[DataFirmware] = fw
	}
	putStr(data, DataNumber, f.Number)
	putStr(data, DataPubDate, f.PubDate)
	putStr(data, DataVersion, f.Version)
	return data
}

func firmwareString(version, number, build *string) (string, bool) {
	if version == nil {
		return "", false
	}
	if number == nil {
		return *version, true
	}
	if build == nil {
		return *version + "." + *number, true
	}
	return *version + "." + *number + " (" + *build + ")", true
}
