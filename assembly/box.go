package assembly

import (
	"github.com/warp/production-ledger/ledger"
)

// =============================================================================
// BOX - Physical carton produced by packing
// =============================================================================

// Box is a carton of packed units headed either to a shipping address or to
// an internal location, never both.
type Box struct {
	ID                  string
	AssemblyID          string
	AddressDestination  string // shipping address reference
	LocationDestination string // internal location reference
	Lines               []BoxLine
}

// BoxLine is one assembly's per-variant contents within a box.
type BoxLine struct {
	AssemblyID   string
	QtyBreakdown ledger.Breakdown
}

// AssertBoxDestinationValid fails when a box carries both an address and a
// location destination. The two are mutually exclusive shipping modes;
// both set means corrupt upstream data.
func AssertBoxDestinationValid(b *Box) error {
	if b.AddressDestination != "" && b.LocationDestination != "" {
		return &ledger.InvariantError{
			Guard:  "box_destination",
			Detail: "box " + b.ID + " has both an address and a location destination",
		}
	}
	return nil
}
