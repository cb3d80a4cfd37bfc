package usecase

import (
	"fmt"

	domain "github.com/dstein131/Main/internal/entity"
)

// ComputeTotal sums the snapshot in integer minor units: quantity times the
// snapshotted unit price per item, plus each addon's price. Client-supplied
// prices never enter this calculation.
func ComputeTotal(snap domain.CartSnapshot) (int64, error) {
	if snap.Empty() {
		return 0, fmt.Errorf("nothing to charge: %w", ErrInvalidArgument)
	}
	var total int64
	for _, item := range snap.Items {
		if err := item.Validate(); err != nil {
			return 0, fmt.Errorf("cart item %d: %w", item.ID, err)
		}
		total += item.Quantity * item.UnitPrice
		for _, ad := range item.Addons {
			if err := ad.Validate(); err != nil {
				return 0, fmt.Errorf("cart item addon %d: %w", ad.ID, err)
			}
			total += ad.UnitPrice
		}
	}
	return total, nil
}
