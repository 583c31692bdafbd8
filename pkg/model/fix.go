package model

import "time"

// BatteryStatus is reported by battery powered receivers.
type BatteryStatus struct {
	Percent  int  `json:"percent"`
	Charging bool `json:"charging"`
}

// Fix is one decoded position report from the receiver. Optional attributes
// are nil when the receiver did not provide a usable value.
type Fix struct {
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
	Time time.Time `json:"time"`

	SpeedKmh   *float64       `json:"speedKmh,omitempty"`
	FixStatus  *int           `json:"fixStatus,omitempty"`
	Satellites *int           `json:"satellites,omitempty"`
	PDop       *float64       `json:"pdop,omitempty"`
	Heading    *float64       `json:"heading,omitempty"`
	Altitude   *float64       `json:"altitude,omitempty"`
	Battery    *BatteryStatus `json:"battery,omitempty"`
}
