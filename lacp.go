package goqsw

// LACPInfo is the parsed lacp/info snapshot. Its start index determines the
// aggregation boundary used to partition the port registries.
type LACPInfo struct {
	MaxChannels     *int
	MaxChannelPorts *int
	StartIndex      *int
}

type lacpInfoResult struct {
	MaxChannels     *int `json:"MaxPortChannels"`
	MaxChannelPorts *int `json:"MaxPortsPerPortChannel"`
	StartIndex      *int `json:"StartIndex"`
}

func (l *LACPInfo) update(resp *Response) error {
	var res lacpInfoResult
	if err := decodeResult(resp, &res); err != nil {
		return err
	}
	if res.MaxChannels != nil {
		l.MaxChannels = res.MaxChannels
	}
	if res.MaxChannelPorts != nil {
		l.MaxChannelPorts = res.MaxChannelPorts
	}
	if res.StartIndex != nil {
		l.StartIndex = res.StartIndex
	}
	return nil
}

// StartID is the lowest port id belonging to a link-aggregation group.
func (l *LACPInfo) StartID() (int, bool) {
	if l.StartIndex == nil {
		return 0, false
	}
	return *l.StartIndex + 1, true
}

func (l *LACPInfo) Data() map[string]any {
	data := map[string]any{}
	putInt(data, DataMaxChannels, l.MaxChannels)
	putInt(data, DataMaxChannelPorts, l.MaxChannelPorts)
	if id, ok := l.StartID(); ok {
		data[DataStartID] = id
	}
	putInt(data, DataStartIndex, l.StartIndex)
	return data
}
