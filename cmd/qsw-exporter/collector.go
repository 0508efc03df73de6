package main

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"goqsw"
)

type MetricDescriptions struct {
	probeSuccess         *prometheus.Desc
	probeDurationSeconds *prometheus.Desc
	portLink             *prometheus.Desc
	portFullDuplex       *prometheus.Desc
	portSpeed            *prometheus.Desc
	portRxOctets         *prometheus.Desc
	portTxOctets         *prometheus.Desc
	portRxErrors         *prometheus.Desc
	portFCSErrors        *prometheus.Desc
	portRxRate           *prometheus.Desc
	portTxRate           *prometheus.Desc
	totalRxRate          *prometheus.Desc
	totalTxRate          *prometheus.Desc
	linkCount            *prometheus.Desc
	temperature          *prometheus.Desc
	temperatureMax       *prometheus.Desc
	fanSpeed             *prometheus.Desc
	uptimeSeconds        *prometheus.Desc
	firmwareAnomaly      *prometheus.Desc
}

func newMetricDescriptions() *MetricDescriptions {
	portLabels := []string{"port", "lacp"}

	return &MetricDescriptions{
		probeSuccess: prometheus.NewDesc(
			"probe_success",
			"Displays whether or not the probe was a success",
			nil, nil,
		),
		probeDurationSeconds: prometheus.NewDesc(
			"probe_duration_seconds",
			"Returns how long the probe took to complete in seconds",
			nil, nil,
		),
		portLink: prometheus.NewDesc(
			"qsw_port_link",
			"Link status of the port (1=Up, 0=Down)",
			portLabels, nil,
		),
		portFullDuplex: prometheus.NewDesc(
			"qsw_port_full_duplex",
			"Duplex mode of the port (1=Full, 0=Half)",
			portLabels, nil,
		),
		portSpeed: prometheus.NewDesc(
			"qsw_port_speed_mbps",
			"Negotiated speed of the port in Mbps",
			portLabels, nil,
		),
		portRxOctets: prometheus.NewDesc(
			"qsw_port_receive_octets_total",
			"Number of octets received on the port",
			portLabels, nil,
		),
		portTxOctets: prometheus.NewDesc(
			"qsw_port_transmit_octets_total",
			"Number of octets transmitted on the port",
			portLabels, nil,
		),
		portRxErrors: prometheus.NewDesc(
			"qsw_port_receive_errors_total",
			"Number of receive errors on the port",
			portLabels, nil,
		),
		portFCSErrors: prometheus.NewDesc(
			"qsw_port_fcs_errors_total",
			"Number of frame check sequence errors on the port",
			portLabels, nil,
		),
		portRxRate: prometheus.NewDesc(
			"qsw_port_receive_rate_bytes",
			"Receive rate of the port in bytes per second",
			portLabels, nil,
		),
		portTxRate: prometheus.NewDesc(
			"qsw_port_transmit_rate_bytes",
			"Transmit rate of the port in bytes per second",
			portLabels, nil,
		),
		totalRxRate: prometheus.NewDesc(
			"qsw_receive_rate_bytes",
			"Receive rate of the whole switch in bytes per second",
			nil, nil,
		),
		totalTxRate: prometheus.NewDesc(
			"qsw_transmit_rate_bytes",
			"Transmit rate of the whole switch in bytes per second",
			nil, nil,
		),
		linkCount: prometheus.NewDesc(
			"qsw_ports_link_up",
			"Number of ports with an active link",
			nil, nil,
		),
		temperature: prometheus.NewDesc(
			"qsw_temperature_celsius",
			"Switch temperature",
			nil, nil,
		),
		temperatureMax: prometheus.NewDesc(
			"qsw_temperature_max_celsius",
			"Maximum allowed switch temperature",
			nil, nil,
		),
		fanSpeed: prometheus.NewDesc(
			"qsw_fan_speed_rpm",
			"Fan speed",
			[]string{"fan"}, nil,
		),
		uptimeSeconds: prometheus.NewDesc(
			"qsw_uptime_seconds",
			"Seconds since the switch booted",
			nil, nil,
		),
		firmwareAnomaly: prometheus.NewDesc(
			"qsw_firmware_anomaly",
			"Whether the running firmware reports an anomalous condition",
			nil, nil,
		),
	}
}

var scrapeErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "qsw_exporter_scrape_errors_total",
		Help: "Total number of errors encountered during scrapes.",
	},
)

type qswCollector struct {
	device  *goqsw.Device
	descs   *MetricDescriptions
	timeout time.Duration
	mutex   sync.Mutex
}

func newQswCollector(device *goqsw.Device, timeout time.Duration) *qswCollector {
	return &qswCollector{
		device:  device,
		descs:   newMetricDescriptions(),
		timeout: timeout,
	}
}

func (c *qswCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.descs.probeSuccess
	ch <- c.descs.probeDurationSeconds
	ch <- c.descs.portLink
	ch <- c.descs.portFullDuplex
	ch <- c.descs.portSpeed
	ch <- c.descs.portRxOctets
	ch <- c.descs.portTxOctets
	ch <- c.descs.portRxErrors
	ch <- c.descs.portFCSErrors
	ch <- c.descs.portRxRate
	ch <- c.descs.portTxRate
	ch <- c.descs.totalRxRate
	ch <- c.descs.totalTxRate
	ch <- c.descs.linkCount
	ch <- c.descs.temperature
	ch <- c.descs.temperatureMax
	ch <- c.descs.fanSpeed
	ch <- c.descs.uptimeSeconds
	ch <- c.descs.firmwareAnomaly
}

func (c *qswCollector) Collect(ch chan<- prometheus.Metric) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	err := c.device.Update(ctx)
	duration := time.Since(start).Seconds()

	successValue := 1.0
	if err != nil {
		successValue = 0.0
		scrapeErrorsTotal.Inc()
		log.Printf("Error updating switch state: %v", err)
	}
	ch <- prometheus.MustNewConstMetric(c.descs.probeSuccess, prometheus.GaugeValue, successValue)
	ch <- prometheus.MustNewConstMetric(c.descs.probeDurationSeconds, prometheus.GaugeValue, duration)

	if err != nil {
		return
	}

	if status := c.device.PortsStatus(); status != nil {
		collectStatusPorts(ch, c.descs, status.PhysicalPorts(), "0")
		collectStatusPorts(ch, c.descs, status.LACPPorts(), "1")
		if link, ok := status.LinkCount(); ok {
			ch <- prometheus.MustNewConstMetric(
				c.descs.linkCount, prometheus.GaugeValue, float64(link),
			)
		}
	}

	if stats := c.device.PortsStatistics(); stats != nil {
		collectStatisticsPorts(ch, c.descs, stats.PhysicalPorts(), "0")
		collectStatisticsPorts(ch, c.descs, stats.LACPPorts(), "1")
		ch <- prometheus.MustNewConstMetric(
			c.descs.totalRxRate, prometheus.GaugeValue, float64(stats.RxSpeed),
		)
		ch <- prometheus.MustNewConstMetric(
			c.descs.totalTxRate, prometheus.GaugeValue, float64(stats.TxSpeed),
		)
	}

	if sensor := c.device.SystemSensor(); sensor != nil {
		if sensor.Temp != nil {
			ch <- prometheus.MustNewConstMetric(
				c.descs.temperature, prometheus.GaugeValue, float64(*sensor.Temp),
			)
		}
		if sensor.TempMax != nil {
			ch <- prometheus.MustNewConstMetric(
				c.descs.temperatureMax, prometheus.GaugeValue, float64(*sensor.TempMax),
			)
		}
		if fan, ok := sensor.Fan1(); ok {
			ch <- prometheus.MustNewConstMetric(
				c.descs.fanSpeed, prometheus.GaugeValue, float64(fan), "1",
			)
		}
		if fan, ok := sensor.Fan2(); ok {
			ch <- prometheus.MustNewConstMetric(
				c.descs.fanSpeed, prometheus.GaugeValue, float64(fan), "2",
			)
		}
	}

	if systime := c.device.SystemTime(); systime != nil && systime.UptimeSeconds != nil {
		ch <- prometheus.MustNewConstMetric(
			c.descs.uptimeSeconds, prometheus.GaugeValue, float64(*systime.UptimeSeconds),
		)
	}

	if cond := c.device.FirmwareCondition(); cond != nil && cond.Anomaly != nil {
		anomaly := 0.0
		if *cond.Anomaly {
			anomaly = 1.0
		}
		ch <- prometheus.MustNewConstMetric(
			c.descs.firmwareAnomaly, prometheus.GaugeValue, anomaly,
		)
	}
}

func collectStatusPorts(ch chan<- prometheus.Metric, descs *MetricDescriptions, ports map[int]*goqsw.PortStatus, lacp string) {
	for id, port := range ports {
		label := strconv.Itoa(id)
		if port.Link != nil {
			ch <- prometheus.MustNewConstMetric(
				descs.portLink, prometheus.GaugeValue,
				boolToFloat(*port.Link), label, lacp,
			)
		}
		if port.FullDuplex != nil {
			ch <- prometheus.MustNewConstMetric(
				descs.portFullDuplex, prometheus.GaugeValue,
				boolToFloat(*port.FullDuplex), label, lacp,
			)
		}
		if port.Speed != nil {
			ch <- prometheus.MustNewConstMetric(
				descs.portSpeed, prometheus.GaugeValue,
				float64(*port.Speed), label, lacp,
			)
		}
	}
}

func collectStatisticsPorts(ch chan<- prometheus.Metric, descs *MetricDescriptions, ports map[int]*goqsw.PortStatistics, lacp string) {
	for id, port := range ports {
		label := strconv.Itoa(id)
		if port.CurRxOctets != nil {
			ch <- prometheus.MustNewConstMetric(
				descs.portRxOctets, prometheus.CounterValue,
				float64(*port.CurRxOctets), label, lacp,
			)
		}
		if port.CurTxOctets != nil {
			ch <- prometheus.MustNewConstMetric(
				descs.portTxOctets, prometheus.CounterValue,
				float64(*port.CurTxOctets), label, lacp,
			)
		}
		if port.RxErrors != nil {
			ch <- prometheus.MustNewConstMetric(
				descs.portRxErrors, prometheus.CounterValue,
				float64(*port.RxErrors), label, lacp,
			)
		}
		if port.FCSErrors != nil {
			ch <- prometheus.MustNewConstMetric(
				descs.portFCSErrors, prometheus.CounterValue,
				float64(*port.FCSErrors), label, lacp,
			)
		}
		ch <- prometheus.MustNewConstMetric(
			descs.portRxRate, prometheus.GaugeValue,
			float64(port.RxSpeed), label, lacp,
		)
		ch <- prometheus.MustNewConstMetric(
			descs.portTxRate, prometheus.GaugeValue,
			float64(port.TxSpeed), label, lacp,
		)
	}
}

func boolToFloat(v bool) float64 {
	if v {
		return 1.0
	}
	return 0.0
}
