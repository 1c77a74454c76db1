package dartdap

import (
	"github.com/davecgh/go-spew/spew"

	"github.com/buzz3791/dartdap/ber"
)

// debugging is a bool with a couple of methods rather than a log level of
// its own. Dumps are only produced while it is enabled, and they are logged
// at Debug level, so the injected logger must also pass Debug entries.
type debugging bool

// Enable turns packet-dump logging on or off.
func (d *debugging) Enable(b bool) {
	*d = debugging(b)
}

// dumpPacket renders p as a spew tree and logs it at Debug level through l,
// if debugging is enabled.
func (d debugging) dumpPacket(l interface{ Debug(...interface{}) }, p *ber.Packet) {
	if !d {
		return
	}
	l.Debug(spew.Sdump(p))
}
