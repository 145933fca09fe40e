package usecases

import (
	"context"

	"github.com/sand/digiseba/backend/internal/entities"
)

// claimedElsewhere reports whether another request already holds req's
// transaction id: an approved one, or an older open one that is not itself a
// duplicate. claimants are ordered oldest first.
func claimedElsewhere(req *entities.MoneyRequest, claimants []entities.MoneyRequest) bool {
	older := true
	for _, c := range claimants {
		if c.ID == req.ID {
			older = false
			continue
		}
		switch {
		case c.Status == entities.RequestStatusApproved:
			return true
		case c.Status == entities.RequestStatusRejected:
		case older && c.Verification() != entities.VerificationDuplicate:
			return true
		}
	}
	return false
}

// approvedElsewhere reports whether a different request with the same
// transaction id is already approved.
func approvedElsewhere(req *entities.MoneyRequest, claimants []entities.MoneyRequest) bool {
	for _, c := range claimants {
		if c.ID != req.ID && c.Status == entities.RequestStatusApproved {
			return true
		}
	}
	return false
}

// match runs one SMS match attempt for req without persisting anything.
func (s *RechargeService) match(ctx context.Context, req *entities.MoneyRequest) (entities.VerificationOutcome, error) {
	sms, err := s.sms.FindSMSByTransactionID(ctx, req.TransactionID)
	if err != nil {
		return entities.VerificationOutcome{}, err
	}

	claimants, err := s.requests.FindActiveByTransactionID(ctx, req.TransactionID)
	if err != nil {
		return entities.VerificationOutcome{}, err
	}

	return entities.MatchSMS(req, sms, claimedElsewhere(req, claimants)), nil
}
