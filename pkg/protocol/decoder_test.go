package protocol

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func buildFrame(msgClass, msgID byte, payload []byte) []byte {
	frame := []byte{sync1, sync2, msgClass, msgID,
		byte(len(payload)), byte(len(payload) >> 8)}
	frame = append(frame, payload...)
	ckA, ckB := checksum(frame[2:])
	return append(frame, ckA, ckB)
}

// dataPayload returns a valid 80 byte payload for the given position.
func dataPayload(lat, lon float64, speedKmh float64, ts time.Time) []byte {
	p := make([]byte, dataMsgLen)
	putU16 := func(off int, v uint16) { p[off] = byte(v); p[off+1] = byte(v >> 8) }
	putI32 := func(off int, v int32) {
		p[off] = byte(v)
		p[off+1] = byte(v >> 8)
		p[off+2] = byte(v >> 16)
		p[off+3] = byte(v >> 24)
	}
	putU16(offYear, uint16(ts.Year()))
	p[offMonth] = byte(ts.Month())
	p[offDay] = byte(ts.Day())
	p[offHour] = byte(ts.Hour())
	p[offMinute] = byte(ts.Minute())
	p[offSecond] = byte(ts.Second())
	p[offFixStatus] = 3
	p[offNumSV] = 14
	putI32(offLongitude, int32(lon*1e7))
	putI32(offLatitude, int32(lat*1e7))
	putI32(offAltitude, 401_000) // 401 m
	putI32(offSpeed, int32(speedKmh/0.0036))
	putI32(offHeading, 12_345_000) // 123.45 deg
	putU16(offPDop, 142)
	p[offBattery] = 0x80 | 76
	return p
}

var testTime = time.Date(2025, 6, 14, 10, 30, 0, 0, time.UTC)

func TestDecoderSingleMessage(t *testing.T) {
	d := NewDecoder()
	fixes := d.Decode(buildFrame(dataMsgClass, dataMsgID,
		dataPayload(50.4451, 5.9700, 180.0, testTime)))

	if len(fixes) != 1 {
		t.Fatalf("got %d fixes, want 1", len(fixes))
	}
	fix := fixes[0]
	assert.InDelta(t, 50.4451, fix.Lat, 1e-6)
	assert.InDelta(t, 5.9700, fix.Lon, 1e-6)
	assert.Equal(t, testTime, fix.Time)
	if assert.NotNil(t, fix.SpeedKmh) {
		assert.InDelta(t, 180.0, *fix.SpeedKmh, 0.01)
	}
	if assert.NotNil(t, fix.Heading) {
		assert.InDelta(t, 123.45, *fix.Heading, 0.001)
	}
	if assert.NotNil(t, fix.Altitude) {
		assert.InDelta(t, 401.0, *fix.Altitude, 0.001)
	}
	if assert.NotNil(t, fix.PDop) {
		assert.InDelta(t, 1.42, *fix.PDop, 0.001)
	}
	if assert.NotNil(t, fix.Battery) {
		assert.Equal(t, 76, fix.Battery.Percent)
		assert.True(t, fix.Battery.Charging)
	}
	assert.Equal(t, 3, *fix.FixStatus)
	assert.Equal(t, 14, *fix.Satellites)
}

//nolint:funlen // table covers the resync paths
func TestDecoderStream(t *testing.T) {
	msg := func(lat float64) []byte {
		return buildFrame(dataMsgClass, dataMsgID,
			dataPayload(lat, 5.97, 100, testTime))
	}
	otherMsg := buildFrame(0x05, 0x01, []byte{0x01, 0x02})

	tests := []struct {
		name     string
		stream   []byte
		wantLats []float64
	}{
		{
			name:     "two messages back to back",
			stream:   append(msg(50.1), msg(50.2)...),
			wantLats: []float64{50.1, 50.2},
		},
		{
			name:     "garbage before message",
			stream:   append([]byte{0x00, 0xB5, 0x13, 0x62}, msg(50.1)...),
			wantLats: []float64{50.1},
		},
		{
			name:     "garbage between messages",
			stream:   append(append(msg(50.1), 0xFF, 0xB5, 0x00), msg(50.2)...),
			wantLats: []float64{50.1, 50.2},
		},
		{
			name:     "other message types are consumed silently",
			stream:   append(append(otherMsg, msg(50.1)...), otherMsg...),
			wantLats: []float64{50.1},
		},
		{
			name:     "only garbage",
			stream:   []byte{0x01, 0x02, 0x03, 0xB5, 0x04},
			wantLats: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collect := func(chunks ...[]byte) []float64 {
				d := NewDecoder()
				var lats []float64
				for _, c := range chunks {
					for _, fix := range d.Decode(c) {
						lats = append(lats, fix.Lat)
					}
				}
				return lats
			}
			check := func(variant string, got []float64) {
				if len(got) != len(tt.wantLats) {
					t.Fatalf("%s: got %d fixes, want %d", variant, len(got), len(tt.wantLats))
				}
				for i := range got {
					assert.InDelta(t, tt.wantLats[i], got[i], 1e-6, variant)
				}
			}
			// whole stream at once
			check("whole", collect(tt.stream))
			// byte by byte; the emitted sequence must be identical
			single := make([][]byte, 0, len(tt.stream))
			for i := range tt.stream {
				single = append(single, tt.stream[i:i+1])
			}
			check("single-byte", collect(single...))
		})
	}
}

func TestDecoderChecksumRejection(t *testing.T) {
	valid := buildFrame(dataMsgClass, dataMsgID,
		dataPayload(50.1, 5.97, 100, testTime))
	follow := buildFrame(dataMsgClass, dataMsgID,
		dataPayload(50.2, 5.97, 100, testTime))

	// flipping any single bit in class/id/len/payload must reject the
	// message without corrupting the following one
	for pos := 2; pos < len(valid)-2; pos++ {
		for bit := 0; bit < 8; bit++ {
			corrupted := make([]byte, len(valid))
			copy(corrupted, valid)
			corrupted[pos] ^= 1 << bit

			d := NewDecoder()
			fixes := d.Decode(append(corrupted, follow...))
			// corruption in the length bytes may make the decoder wait for
			// more data; it must never emit the corrupted fix
			for _, fix := range fixes {
				assert.Greater(t, math.Abs(fix.Lat-50.1), 1e-6,
					"corrupted message emitted (pos %d bit %d)", pos, bit)
			}
			if pos != 4 && pos != 5 {
				if len(fixes) != 1 {
					t.Fatalf("pos %d bit %d: got %d fixes, want 1", pos, bit, len(fixes))
				}
				assert.InDelta(t, 50.2, fixes[0].Lat, 1e-6)
			}
		}
	}
}

func TestDecoderStats(t *testing.T) {
	d := NewDecoder()
	good := buildFrame(dataMsgClass, dataMsgID,
		dataPayload(50.2, 5.97, 100, testTime))
	other := buildFrame(0x05, 0x01, []byte{0x01})
	bad := buildFrame(dataMsgClass, dataMsgID,
		dataPayload(50.1, 5.97, 100, testTime))
	bad[10] ^= 0x01

	stream := append(append(append([]byte{}, good...), other...), bad...)
	stream = append(stream, good...)
	d.Decode(stream)

	decoded, dropped, ignored := d.Stats()
	assert.Equal(t, int64(2), decoded)
	assert.Equal(t, int64(1), dropped)
	assert.Equal(t, int64(1), ignored)
}

func TestDecoderTimestampFallback(t *testing.T) {
	wall := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	d := NewDecoder(WithClock(func() time.Time { return wall }))

	payload := dataPayload(50.1, 5.97, 100, testTime)
	payload[offMonth] = 13 // implausible
	frame := buildFrame(dataMsgClass, dataMsgID, payload)

	fixes := d.Decode(frame)
	if len(fixes) != 1 {
		t.Fatalf("got %d fixes, want 1", len(fixes))
	}
	assert.Equal(t, wall, fixes[0].Time)
}

func TestDecodePayloadSanityBands(t *testing.T) {
	d := NewDecoder()
	putI32 := func(p []byte, off int, v int32) {
		p[off] = byte(v)
		p[off+1] = byte(v >> 8)
		p[off+2] = byte(v >> 16)
		p[off+3] = byte(v >> 24)
	}

	t.Run("negative speed clamps to zero", func(t *testing.T) {
		p := dataPayload(50.1, 5.97, 100, testTime)
		putI32(p, offSpeed, -2000)
		fix := d.decodePayload(p)
		assert.Equal(t, 0.0, *fix.SpeedKmh)
	})
	t.Run("negative heading normalizes", func(t *testing.T) {
		p := dataPayload(50.1, 5.97, 100, testTime)
		putI32(p, offHeading, -4_500_000) // -45 deg
		fix := d.decodePayload(p)
		if assert.NotNil(t, fix.Heading) {
			assert.InDelta(t, 315.0, *fix.Heading, 0.001)
		}
	})
	t.Run("absurd heading is unset", func(t *testing.T) {
		p := dataPayload(50.1, 5.97, 100, testTime)
		putI32(p, offHeading, 100_000_000) // 1000 deg
		fix := d.decodePayload(p)
		assert.Nil(t, fix.Heading)
	})
	t.Run("altitude outside band is unset", func(t *testing.T) {
		p := dataPayload(50.1, 5.97, 100, testTime)
		putI32(p, offAltitude, 12_000_000) // 12 km
		fix := d.decodePayload(p)
		assert.Nil(t, fix.Altitude)
	})
	t.Run("battery percent above 100 is unset", func(t *testing.T) {
		p := dataPayload(50.1, 5.97, 100, testTime)
		p[offBattery] = 120
		fix := d.decodePayload(p)
		assert.Nil(t, fix.Battery)
	})
	t.Run("discharging battery", func(t *testing.T) {
		p := dataPayload(50.1, 5.97, 100, testTime)
		p[offBattery] = 55
		fix := d.decodePayload(p)
		if assert.NotNil(t, fix.Battery) {
			assert.Equal(t, 55, fix.Battery.Percent)
			assert.False(t, fix.Battery.Charging)
		}
	})
}
