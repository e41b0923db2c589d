package server

import (
	"context"

	"pricepal/internal/misc"
	"pricepal/internal/model"
)

// notifyTrackingStarted is best effort, a failed email never fails the
// tracking request itself.
func (s Server) notifyTrackingStarted(u model.User, p model.Product) {
	if err := s.Mailer.SendTrackingStarted(u, p); err != nil {
		s.Logger.Errorf("notifyTrackingStarted: Error sending tracking started email to: %s for Product: %s, err: %v",
			u.Email, misc.StringLimit(p.Name, 45), err)
	}
}

// triggerPriceAlert runs the alert sequence for a product whose observed
// price reached its target: alert email, deactivation, thank-you email.
// The product stays active when the user lookup or the deactivation fails,
// so the next cycle retries the whole sequence.
func (s Server) triggerPriceAlert(ctx context.Context, p model.Product, currentPrice float64, lowestPrice float64) {
	u, err := s.DB.UserFindByID(ctx, p.UserID)
	if err != nil {
		s.Logger.Errorf("triggerPriceAlert: Error finding User with ID: %s for ProductID: %s, err: %v",
			p.UserID, p.ID.Hex(), err)
		return
	}

	if err = s.Mailer.SendPriceAlert(u, p, currentPrice, lowestPrice); err != nil {
		s.Logger.Errorf("triggerPriceAlert: Error sending price alert email to: %s for Product: %s, err: %v",
			u.Email, misc.StringLimit(p.Name, 45), err)
	}

	if err = s.DB.ProductDeactivate(ctx, p.ID); err != nil {
		s.Logger.Errorf("triggerPriceAlert: Error deactivating ProductID: %s, err: %v", p.ID.Hex(), err)
		return
	}
	s.Logger.Infof("triggerPriceAlert: Price alert completed for Product: %s, ProductID: %s, price: %.2f, target: %.2f",
		misc.StringLimit(p.Name, 45), p.ID.Hex(), currentPrice, p.TargetPrice)

	if err = s.Mailer.SendThankYou(u, p); err != nil {
		s.Logger.Errorf("triggerPriceAlert: Error sending thank you email to: %s for Product: %s, err: %v",
			u.Email, misc.StringLimit(p.Name, 45), err)
	}
}
