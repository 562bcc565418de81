package safety

import "github.com/hokuyo/urgscip/scip"

// OSSDCount is the number of Output Signal Switching Device lines
// carried in the auxiliary payload of a safety-model reply.
const OSSDCount = 4

// ParseAuxiliary decodes the trailing auxiliary block of a safety-mode
// measurement reply: one byte of OSSD line-state bits followed by a
// four-character SCIP-encoded CRC of everything preceding it.
//
// This is the minimum contract spec.md §4.E documents for the safety
// variant; the wire-layer glue for negotiating safety mode itself is
// not specified upstream (see DESIGN.md), so this function only deals
// with a payload the caller has already located within the frame.
func ParseAuxiliary(payload []byte) (ossd [OSSDCount]bool, crcOK bool) {
	if len(payload) < 1+4 {
		return ossd, false
	}

	ossdByte := payload[0]
	for i := 0; i < OSSDCount; i++ {
		ossd[i] = ossdByte&(1<<uint(i)) != 0
	}

	body := payload[:len(payload)-4]
	tail := payload[len(payload)-4:]
	want := scip.Decode(tail)
	got := Calc(body)
	crcOK = want == int(got)

	return ossd, crcOK
}
