/*
guards.go - Data-integrity guards on inventory movements

These guards protect against corrupt upstream data or programming errors,
not user mistakes. A failure aborts the enclosing transaction and should be
logged at error severity.
*/
package ledger

// AssertBatchLinePresence fails when a batch-tracked product moves without
// naming the batch it came from.
func AssertBatchLinePresence(mv Movement, batchTracked bool) error {
	if batchTracked && mv.BatchID == "" {
		return &InvariantError{
			Guard:  "batch_line_presence",
			Detail: "movement of batch-tracked product " + mv.ProductID + " has no batch line",
		}
	}
	return nil
}

// AssertTransferLocations fails when a transfer-like movement is missing
// either endpoint, or moves stock onto itself.
func AssertTransferLocations(mv Movement) error {
	if mv.Kind != MovementTransfer {
		return nil
	}
	if mv.FromLocation == "" || mv.ToLocation == "" {
		return &InvariantError{
			Guard:  "transfer_locations",
			Detail: "transfer movement requires both a source and a destination location",
		}
	}
	if mv.FromLocation == mv.ToLocation {
		return &InvariantError{
			Guard:  "transfer_locations",
			Detail: "transfer movement source and destination are the same location",
		}
	}
	return nil
}
