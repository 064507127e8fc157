/*
gate.go - External (vendor) gating of downstream progress

PURPOSE:
  Some stages are fulfilled by an outside vendor (embroidery, washing,
  printing). Goods are sent out and received back per external step; until
  they return, downstream stages cannot honestly report progress. The
  tightest known boundary across all steps becomes a hard cap.

PRECEDENCE:
  received > sent > none. A received count is authoritative: it is what
  physically came back. A sent count is a weaker bound used only when
  nothing has been received anywhere.

ELEMENT-WISE MIN:
  The gate is the element-wise minimum across steps, because a garment is
  not through the external phase until every outsourced step that touched
  it has returned it.

SEE ALSO:
  - downstream.go: Applies the gate to sew/finish ceilings
*/
package ledger

// =============================================================================
// EXTERNAL STEP - Sent/received tracking for one outsourced step
// =============================================================================

// ExternalStep is the sent/received state of one outsourced processing step.
type ExternalStep struct {
	StepType        string
	VendorCompanyID string
	Sent            Breakdown
	Received        Breakdown
}

// GateSource tags which boundary the effective gate came from.
type GateSource string

const (
	GateSourceReceived GateSource = "received"
	GateSourceSent     GateSource = "sent"
	GateSourceNone     GateSource = "none"
)

// ExternalGate is the effective ceiling imposed by outsourced work.
type ExternalGate struct {
	Received Breakdown
	Sent     Breakdown
	Gate     Breakdown
	Source   GateSource
}

// Active reports whether the gate constrains anything.
func (g ExternalGate) Active() bool {
	return g.Source != GateSourceNone && g.Gate.AnyPositive()
}

// =============================================================================
// RESOLUTION
// =============================================================================

// ResolveExternalGate computes the effective gate across all external steps
// of an assembly. Steps with no positive quantity on a boundary do not
// contribute to that boundary's minimum.
func ResolveExternalGate(steps []ExternalStep) ExternalGate {
	var receivedGate, sentGate Breakdown
	haveReceived, haveSent := false, false

	for _, step := range steps {
		if step.Received.AnyPositive() {
			if !haveReceived {
				receivedGate = step.Received.Clone()
				haveReceived = true
			} else {
				receivedGate = receivedGate.Min(step.Received)
			}
		}
		if step.Sent.AnyPositive() {
			if !haveSent {
				sentGate = step.Sent.Clone()
				haveSent = true
			} else {
				sentGate = sentGate.Min(step.Sent)
			}
		}
	}

	gate := ExternalGate{Source: GateSourceNone, Gate: Breakdown{}}
	if haveReceived {
		gate.Received = receivedGate
	}
	if haveSent {
		gate.Sent = sentGate
	}

	switch {
	case haveReceived && receivedGate.AnyPositive():
		gate.Gate = receivedGate
		gate.Source = GateSourceReceived
	case haveSent && sentGate.AnyPositive():
		gate.Gate = sentGate
		gate.Source = GateSourceSent
	}
	return gate
}
