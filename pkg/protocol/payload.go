package protocol

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/racelogger/laptimer-go/pkg/model"
)

// payload offsets of the receiver data message (little-endian)
const (
	offYear      = 4
	offMonth     = 6
	offDay       = 7
	offHour      = 8
	offMinute    = 9
	offSecond    = 10
	offFixStatus = 20
	offNumSV     = 23
	offLongitude = 24
	offLatitude  = 28
	offAltitude  = 36
	offSpeed     = 48
	offHeading   = 52
	offPDop      = 56
	offBattery   = 59
)

// sanity bands for values the receiver occasionally garbles
const (
	minAltitudeM = -500.0
	maxAltitudeM = 10000.0
	// raw headings further than one extra turn off are considered garbage
	minHeadingDeg = -360.0
	maxHeadingDeg = 720.0
)

func le16(p []byte) uint16 { return binary.LittleEndian.Uint16(p) }
func le32(p []byte) int32  { return int32(binary.LittleEndian.Uint32(p)) }

//nolint:funlen // straight-line field extraction
func (d *Decoder) decodePayload(p []byte) *model.Fix {
	fix := &model.Fix{
		Time: d.messageTime(p),
		Lon:  float64(le32(p[offLongitude:])) * 1e-7,
		Lat:  float64(le32(p[offLatitude:])) * 1e-7,
	}

	fixStatus := int(p[offFixStatus])
	fix.FixStatus = &fixStatus
	sats := int(p[offNumSV])
	fix.Satellites = &sats

	// speed arrives in mm/s; negative readings are clamped to standstill
	speedKmh := math.Max(0, float64(le32(p[offSpeed:]))) * 0.0036
	fix.SpeedKmh = &speedKmh

	pdop := float64(le16(p[offPDop:])) / 100.0
	fix.PDop = &pdop

	if heading, ok := decodeHeading(le32(p[offHeading:])); ok {
		fix.Heading = &heading
	}
	if alt := float64(le32(p[offAltitude:])) / 1000.0; alt >= minAltitudeM &&
		alt <= maxAltitudeM {
		fix.Altitude = &alt
	}
	if battery, ok := decodeBattery(p[offBattery]); ok {
		fix.Battery = &battery
	}
	return fix
}

// messageTime builds the UTC instant from the payload date fields. When any
// field is implausible the decoder's wall clock is used instead.
func (d *Decoder) messageTime(p []byte) time.Time {
	year := int(le16(p[offYear:]))
	month := int(p[offMonth])
	day := int(p[offDay])
	hour := int(p[offHour])
	minute := int(p[offMinute])
	second := int(p[offSecond])

	if year < 2000 || year > 2100 ||
		month < 1 || month > 12 ||
		day < 1 || day > 31 ||
		hour > 23 || minute > 59 || second > 60 {
		return d.now()
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
}

func decodeHeading(raw int32) (float64, bool) {
	deg := float64(raw) * 1e-5
	if deg < minHeadingDeg || deg >= maxHeadingDeg {
		return 0, false
	}
	deg = math.Mod(deg+360, 360)
	return deg, true
}

func decodeBattery(b byte) (model.BatteryStatus, bool) {
	percent := int(b & 0x7F)
	if percent > 100 {
		return model.BatteryStatus{}, false
	}
	return model.BatteryStatus{
		Percent:  percent,
		Charging: b&0x80 != 0,
	}, true
}
