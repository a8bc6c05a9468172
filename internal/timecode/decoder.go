package timecode

const (
	// StatusQuarterFrame is the MIDI system common status byte for an MTC quarter frame.
	StatusQuarterFrame uint8 = 0xF1

	slotCount = 8
	lastSlot  = slotCount - 1
)

// Decoder reassembles MTC quarter frames into full timecode values.
// A Decoder is not safe for concurrent use; callers serialize access.
type Decoder struct {
	slots       [slotCount]uint8
	lastWritten int
	received    uint64
	emitted     bool
	last        Timecode
}

// NewDecoder constructs a decoder with empty slots.
func NewDecoder() *Decoder {
	return &Decoder{lastWritten: -1}
}

// Feed stores one quarter frame. Slots are last-write-wins and arrival order is not validated.
// A value is returned only when slot 7 completes a cycle whose position differs from the
// previously emitted one.
func (d *Decoder) Feed(frameType, value uint8) (Timecode, bool) {
	if frameType > lastSlot {
		return Timecode{}, false
	}
	d.slots[frameType] = value & 0x0F
	d.lastWritten = int(frameType)
	d.received++

	if frameType != lastSlot {
		return Timecode{}, false
	}

	decoded := d.assemble()
	if d.emitted && decoded.SamePosition(d.last) {
		return Timecode{}, false
	}
	d.last = decoded
	d.emitted = true
	return decoded, true
}

// FeedMIDI accepts a raw status/data pair. Anything other than a quarter frame is ignored.
func (d *Decoder) FeedMIDI(status, data uint8) (Timecode, bool) {
	if status != StatusQuarterFrame {
		return Timecode{}, false
	}
	return d.Feed(data>>4, data&0x0F)
}

// Received returns the number of fragments accepted since construction.
func (d *Decoder) Received() uint64 {
	return d.received
}

// LastWritten returns the index of the most recently written slot, or -1.
func (d *Decoder) LastWritten() int {
	return d.lastWritten
}

// Last returns the most recently emitted value.
func (d *Decoder) Last() (Timecode, bool) {
	return d.last, d.emitted
}

func (d *Decoder) assemble() Timecode {
	combined := d.slots[7]<<4 | d.slots[6]
	return Timecode{
		Frames:    int(d.slots[1]<<4 | d.slots[0]),
		Seconds:   int(d.slots[3]<<4 | d.slots[2]),
		Minutes:   int(d.slots[5]<<4 | d.slots[4]),
		Hours:     int(combined & 0x1F),
		FrameRate: frameRateFromCode((combined >> 5) & 0x03),
		Source:    SourceMTC,
	}
}
