// Package schema defines the validated beacon identifiers (cell and
// Wi-Fi lookups) that a Query canonicalizes client input into, plus
// the "better" ordering used to deduplicate repeated observations of
// the same beacon.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ichnaea-go/locate/pkg/validate"
)

// Radio enumerates the cellular radio access technologies a
// CellLookup or CellAreaLookup can report.
type Radio string

const (
	RadioGSM   Radio = "gsm"
	RadioCDMA  Radio = "cdma"
	RadioWCDMA Radio = "wcdma"
	RadioLTE   Radio = "lte"
)

func validRadio(r Radio) bool {
	switch r {
	case RadioGSM, RadioCDMA, RadioWCDMA, RadioLTE:
		return true
	}
	return false
}

// CellID identifies a single cell tower: (radio, mcc, mnc, lac, cid).
type CellID struct {
	Radio Radio
	MCC   int
	MNC   int
	LAC   int
	CID   int
}

// CellAreaID identifies a location area: (radio, mcc, mnc, lac).
type CellAreaID struct {
	Radio Radio
	MCC   int
	MNC   int
	LAC   int
}

// CellLookup is a validated observation of a single cell tower.
type CellLookup struct {
	ID     CellID
	PSC    *int
	Signal *int
	TA     *int
	Age    *int
}

// Identity returns the dedup key for this lookup.
func (c CellLookup) Identity() CellID { return c.ID }

// Better reports whether c should displace other when they share an
// identity: higher signal wins; ties broken by lower age, then lower
// timing advance.
func (c CellLookup) Better(other CellLookup) bool {
	if c.Signal != nil && other.Signal != nil && *c.Signal != *other.Signal {
		return *c.Signal > *other.Signal
	}
	if c.Signal != nil && other.Signal == nil {
		return true
	}
	if c.Signal == nil && other.Signal != nil {
		return false
	}
	if c.Age != nil && other.Age != nil && *c.Age != *other.Age {
		return *c.Age < *other.Age
	}
	if c.TA != nil && other.TA != nil && *c.TA != *other.TA {
		return *c.TA < *other.TA
	}
	return false
}

// CellAreaLookup is a validated observation of a location area,
// derived from a CellLookup's (radio, mcc, mnc, lac) prefix.
type CellAreaLookup struct {
	ID     CellAreaID
	Signal *int
	Age    *int
}

func (c CellAreaLookup) Identity() CellAreaID { return c.ID }

func (c CellAreaLookup) Better(other CellAreaLookup) bool {
	if c.Signal != nil && other.Signal != nil && *c.Signal != *other.Signal {
		return *c.Signal > *other.Signal
	}
	if c.Age != nil && other.Age != nil && *c.Age != *other.Age {
		return *c.Age < *other.Age
	}
	return false
}

var macRe = regexp.MustCompile(`^[0-9a-f]{12}$`)

// invalidMACPrefixes lists the all-zero and broadcast MAC
// prefixes that never identify a useful fixed Wi-Fi access point.
var invalidMACPrefixes = []string{"000000", "ffffff"}

// WifiLookup is a validated observation of a Wi-Fi access point.
type WifiLookup struct {
	MAC       string
	Signal    *int
	SNR       *int
	Channel   *int
	Frequency *int
	Age       *int
	SSID      string
}

func (w WifiLookup) Identity() string { return w.MAC }

func (w WifiLookup) Better(other WifiLookup) bool {
	if w.Signal != nil && other.Signal != nil && *w.Signal != *other.Signal {
		return *w.Signal > *other.Signal
	}
	if w.Age != nil && other.Age != nil && *w.Age != *other.Age {
		return *w.Age < *other.Age
	}
	return false
}

// NewWifiLookup validates and normalizes a raw MAC address and
// optional signal metadata into a WifiLookup.
func NewWifiLookup(mac string, signal, snr, channel, frequency, age *int, ssid string) (WifiLookup, bool) {
	mac = strings.ToLower(strings.ReplaceAll(mac, ":", ""))
	mac = strings.ReplaceAll(mac, "-", "")
	if !macRe.MatchString(mac) {
		return WifiLookup{}, false
	}
	for _, prefix := range invalidMACPrefixes {
		if strings.HasPrefix(mac, prefix) {
			return WifiLookup{}, false
		}
	}
	if signal != nil && (*signal > 0 || *signal < -200) {
		signal = nil
	}
	return WifiLookup{
		MAC:       mac,
		Signal:    signal,
		SNR:       snr,
		Channel:   channel,
		Frequency: frequency,
		Age:       age,
		SSID:      validate.SanitizeString(ssid),
	}, true
}

// NewCellLookup validates raw cell tower fields into a CellLookup.
func NewCellLookup(radio Radio, mcc, mnc, lac, cid int, psc, signal, ta, age *int) (CellLookup, bool) {
	if !validRadio(radio) {
		return CellLookup{}, false
	}
	if mcc < 1 || mcc > 999 {
		return CellLookup{}, false
	}
	if mnc < 0 || mnc > 999 {
		return CellLookup{}, false
	}
	if lac < 0 || lac > 65535 {
		return CellLookup{}, false
	}
	if cid < 0 || cid > 268435455 {
		return CellLookup{}, false
	}
	if signal != nil && (*signal > 0 || *signal < -200) {
		return CellLookup{}, false
	}
	if ta != nil && (*ta < 0 || *ta > 63) {
		return CellLookup{}, false
	}
	return CellLookup{
		ID:     CellID{Radio: radio, MCC: mcc, MNC: mnc, LAC: lac, CID: cid},
		PSC:    psc,
		Signal: signal,
		TA:     ta,
		Age:    age,
	}, true
}

// CellAreaFromCell derives the CellAreaLookup covering a CellLookup.
func CellAreaFromCell(c CellLookup) CellAreaLookup {
	return CellAreaLookup{
		ID: CellAreaID{
			Radio: c.ID.Radio,
			MCC:   c.ID.MCC,
			MNC:   c.ID.MNC,
			LAC:   c.ID.LAC,
		},
		Signal: c.Signal,
		Age:    c.Age,
	}
}

func (id CellID) String() string {
	return fmt.Sprintf("%s:%d:%d:%d:%d", id.Radio, id.MCC, id.MNC, id.LAC, id.CID)
}

func (id CellAreaID) String() string {
	return fmt.Sprintf("%s:%d:%d:%d", id.Radio, id.MCC, id.MNC, id.LAC)
}

// FallbackLookup holds the boolean policy flags that gate specific
// fallback strategies.
type FallbackLookup struct {
	// LACF enables cell-area (LAC-level) fallback positioning.
	LACF bool
	// IPF enables IP-based GeoIP fallback positioning.
	IPF bool
}

// DefaultFallback returns the documented defaults: both fallback
// strategies enabled unless the client opts out.
func DefaultFallback() FallbackLookup {
	return FallbackLookup{LACF: true, IPF: true}
}

// NewFallbackLookup parses a raw flag map into a FallbackLookup,
// silently dropping unknown keys and falling back to documented
// defaults for missing ones.
func NewFallbackLookup(raw map[string]bool) FallbackLookup {
	f := DefaultFallback()
	if v, ok := raw["lacf"]; ok {
		f.LACF = v
	}
	if v, ok := raw["ipf"]; ok {
		f.IPF = v
	}
	return f
}
