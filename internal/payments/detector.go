// internal/payments/detector.go
package payments

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/models"
)

// Lookup is the read side of the ledger the detector needs.
type Lookup interface {
	FindByCode(ctx context.Context, code string) (*models.Payment, bool, error)
	FindRecentByPhoneAmount(ctx context.Context, phone string, amount int64, since time.Time) ([]models.Payment, error)
}

// Finding is the detector's verdict for one submission.
type Finding struct {
	// Existing is the attempt already holding the code, if any.
	Existing *models.Payment
	Warnings []string
}

// Detector runs the exact-duplicate check and the recent-activity heuristic.
// The unique constraint on payments.transaction_code remains the real guard;
// this check only fails fast with a readable error.
type Detector struct {
	window time.Duration
	now    func() time.Time
}

func NewDetector(window time.Duration) *Detector {
	return &Detector{window: window, now: time.Now}
}

// Check returns DuplicateTransactionCode when the code was ever used. Recent
// attempts from the same phone for the same amount on other applications
// only produce warnings.
func (d *Detector) Check(ctx context.Context, store Lookup, applicationID string, n Normalized) (Finding, error) {
	existing, found, err := store.FindByCode(ctx, n.TransactionCode)
	if err != nil {
		return Finding{}, err
	}
	if found {
		dupErr := apperrors.NewDuplicateTransactionCodeError(n.TransactionCode, string(existing.Status)).
			WithMetadata("existingPaymentId", existing.ID)
		return Finding{Existing: existing}, dupErr
	}

	warnings, err := d.RecentActivity(ctx, store, applicationID, n.Phone, n.Amount)
	if err != nil {
		return Finding{}, err
	}
	return Finding{Warnings: warnings}, nil
}

// RecentActivity reports same phone + same amount attempts inside the window.
func (d *Detector) RecentActivity(ctx context.Context, store Lookup, applicationID, phone string, amount int64) ([]string, error) {
	if d.window <= 0 {
		return nil, nil
	}
	recent, err := store.FindRecentByPhoneAmount(ctx, phone, amount, d.now().Add(-d.window))
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	for _, p := range recent {
		if p.ApplicationID == applicationID {
			continue
		}
		seen[p.ApplicationID] = struct{}{}
	}
	if len(seen) == 0 {
		return nil, nil
	}

	others := make([]string, 0, len(seen))
	for id := range seen {
		others = append(others, id)
	}
	sort.Strings(others)

	return []string{fmt.Sprintf(
		"phone %s paid KES %d for %d other application(s) in the last %s: %s",
		phone, amount, len(others), d.window, strings.Join(others, ", "),
	)}, nil
}
