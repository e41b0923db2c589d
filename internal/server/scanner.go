package server

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"pricepal/internal/cache"
	"pricepal/internal/misc"
	"pricepal/internal/model"
)

// CheckAllPrices fetches the current price of every active product and
// triggers alerts for those that reached their target. Products are checked
// concurrently, bounded by ScrapeConcurrency, and a failed check never stops
// the rest of the cycle.
func (s Server) CheckAllPrices(ctx context.Context) {
	start := time.Now()
	products, err := s.DB.ProductsFindActive(ctx)
	if err != nil {
		s.Logger.Errorf("CheckAllPrices: Error finding active Products, err: %v", err)
		return
	}
	s.Logger.Infof("CheckAllPrices: Checking %d active products", len(products))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(misc.Max(s.ScrapeConcurrency, 1))
	for _, p := range products {
		p := p
		g.Go(func() error {
			s.checkProduct(gctx, p)
			return nil
		})
	}
	g.Wait()
	s.Logger.Infof("CheckAllPrices: Finished checking %d products in %dms",
		len(products), time.Since(start).Milliseconds())
}

func (s Server) checkProduct(ctx context.Context, p model.Product) {
	o, err := s.observeProduct(ctx, p)
	if err != nil {
		s.Logger.Errorf("checkProduct: Error getting product for Product: %s, ProductID: %s, err: %v",
			misc.StringLimit(p.Name, 45), p.ID.Hex(), err)
		return
	}

	if o.Price == 0 {
		s.Logger.Warnf("checkProduct: No price parsed for Product: %s, ProductID: %s, skipping",
			misc.StringLimit(p.Name, 45), p.ID.Hex())
		return
	}

	ev := model.Evaluate(p, o)
	if err = s.DB.ProductPricesUpdate(ctx, p.ID, ev.CurrentPrice, ev.LowestPrice); err != nil {
		s.Logger.Errorf("checkProduct: Error updating prices for ProductID: %s, err: %v", p.ID.Hex(), err)
		return
	}
	s.Logger.Debugf("checkProduct: Product: %s, ProductID: %s, price: %.2f, lowest: %.2f, target: %.2f",
		misc.StringLimit(p.Name, 45), p.ID.Hex(), ev.CurrentPrice, ev.LowestPrice, p.TargetPrice)

	if ev.AlertTriggered {
		s.triggerPriceAlert(ctx, p, ev.CurrentPrice, ev.LowestPrice)
	}
}

// observeProduct returns a cached observation for the product's ASIN when one
// exists, so products tracked by multiple users hit Amazon once per cycle.
func (s Server) observeProduct(ctx context.Context, p model.Product) (model.Observation, error) {
	o, err := s.Cache.ObservationGet(ctx, p.ASIN)
	if err == nil {
		s.Logger.Tracef("observeProduct: Cache hit for ASIN: %s", p.ASIN)
		return o, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		s.Logger.Errorf("observeProduct: Error getting cached observation for ASIN: %s, err: %v", p.ASIN, err)
	}

	o, err = s.Amazon.AmazonGetProduct(ctx, p.URL)
	if err != nil {
		return model.Observation{}, err
	}
	if err = s.Cache.ObservationSet(ctx, o, s.ObservationTTL); err != nil {
		s.Logger.Errorf("observeProduct: Error caching observation for ASIN: %s, err: %v", o.ASIN, err)
	}
	return o, nil
}

// SendWeeklyReminders emails every user a summary nudge. A failed send is
// logged and skipped.
func (s Server) SendWeeklyReminders(ctx context.Context) {
	users, err := s.DB.UsersFindAll(ctx)
	if err != nil {
		s.Logger.Errorf("SendWeeklyReminders: Error finding Users, err: %v", err)
		return
	}
	s.Logger.Infof("SendWeeklyReminders: Sending reminders to %d users", len(users))

	for _, u := range users {
		if err = s.Mailer.SendWeeklyReminder(u); err != nil {
			s.Logger.Errorf("SendWeeklyReminders: Error sending reminder email to: %s, err: %v", u.Email, err)
		}
	}
}
