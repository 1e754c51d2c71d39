package badger

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/felixgeelhaar/osagent/domain/ledger"
)

// Ledger values are stored as Core Deterministic CBOR so the same entry
// always produces identical bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("badger: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("badger: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeEntry(e ledger.Entry) ([]byte, error) {
	return encMode.Marshal(e)
}

func decodeEntry(data []byte) (ledger.Entry, error) {
	var e ledger.Entry
	err := decMode.Unmarshal(data, &e)
	return e, err
}
