package log

import (
	"github.com/fxamacker/cbor/v2"
)

// fileMagic is the CBOR self-describe tag 55799. Capture files start with
// it; files without it are read as well.
var fileMagic = []byte{0xd9, 0xd9, 0xf7}

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		Time:          cbor.TimeRFC3339Nano,
		NilContainers: cbor.NilContainerAsNull,
		IndefLength:   cbor.IndefLengthForbidden,
	}.EncMode()
	if err != nil {
		panic("log: cbor encode mode: " + err.Error())
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: 16,
	}.DecMode()
	if err != nil {
		panic("log: cbor decode mode: " + err.Error())
	}
	return dm
}

// Encode returns the CBOR form of a single event.
func Encode(event Event) ([]byte, error) {
	return encMode.Marshal(event)
}

// Decode parses a single CBOR-encoded event.
func Decode(data []byte) (Event, error) {
	var event Event
	err := decMode.Unmarshal(data, &event)
	return event, err
}
