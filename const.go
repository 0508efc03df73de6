package goqsw

import "time"

// API base paths.
const (
	apiPath   = "api"
	apiPathV1 = "api/v1"
)

// Vendor cookie and header names.
const (
	cookieSessionID = "QSW_ID"
	cookieLanguage  = "QSW_LANG"
	defaultLanguage = "ENG"

	headerAuthorization = "Authorization"
)

// Wire values with special meaning.
const (
	// resultNone is what command-style endpoints return on success.
	resultNone    = "None"
	commandReboot = "reboot"
	progressDone  = "done"
)

// Transport policy.
const (
	httpCallTimeout = 20 * time.Second
	httpMaxRequests = 4
)

// Keys used in the Data() snapshots. These are the stable, consumer-facing
// identifiers; they are independent of the wire field names.
const (
	DataAnomaly         = "anomaly"
	DataBuildNumber     = "build-number"
	DataChipID          = "chip-id"
	DataCIBranch        = "ci-branch"
	DataCICommit        = "ci-commit"
	DataCIPipeline      = "ci-pipeline"
	DataCommitCPSS      = "commit-cpss"
	DataCommitISS       = "commit-iss"
	DataDate            = "date"
	DataDatetime        = "datetime"
	DataDescription     = "description"
	DataDownloadURLs    = "download-urls"
	DataFan1Speed       = "fan1-speed"
	DataFan2Speed       = "fan2-speed"
	DataFCSErrors       = "fcs-errors"
	DataFirmware        = "firmware"
	DataFirmwareCheck   = "firmware-check"
	DataFirmwareCond    = "firmware-condition"
	DataFirmwareInfo    = "firmware-info"
	DataFullDuplex      = "full-duplex"
	DataID              = "id"
	DataLACPPortNum     = "lacp-port-num"
	DataLACPPorts       = "lacp-ports"
	DataLink            = "link"
	DataMAC             = "mac"
	DataMaxChannelPorts = "max-channel-ports"
	DataMaxChannels     = "max-channels"
	DataMessage         = "message"
	DataModel           = "model"
	DataNewer           = "newer"
	DataNumber          = "number"
	DataPortNum         = "port-num"
	DataPorts           = "ports"
	DataPortsStatistics = "ports-statistics"
	DataPortsStatus     = "ports-status"
	DataProduct         = "product"
	DataPubDate         = "pub-date"
	DataRxErrors        = "rx-errors"
	DataRxOctets        = "rx-octets"
	DataRxSpeed         = "rx-speed"
	DataSerial          = "serial"
	DataSpeed           = "speed"
	DataStartID         = "start-id"
	DataStartIndex      = "start-index"
	DataSystemBoard     = "system-board"
	DataSystemSensor    = "system-sensor"
	DataSystemTime      = "system-time"
	DataTemp            = "temperature"
	DataTempMax         = "max-temperature"
	DataTrunkNum        = "trunk-num"
	DataTxOctets        = "tx-octets"
	DataTxSpeed         = "tx-speed"
	DataUptimeSeconds   = "uptime-seconds"
	DataUptimeTimestamp = "uptime-timestamp"
	DataVersion         = "version"

	// Raw snapshot key for LACP info; the parsed LACP record only feeds the
	// aggregation boundary and is not part of Data().
	rawLACPInfo = "lacp-info"
)
