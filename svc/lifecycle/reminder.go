package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/svc/events"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

const reminderTTL = 24 * time.Hour

func (s *Scanner) remind(ctx context.Context, sub *subscription.Subscription, offset int, now time.Time) (bool, error) {
	if s.deduper != nil {
		key := fmt.Sprintf("reminder:%s:%d", sub.ID, offset)
		first, err := s.deduper.Mark(ctx, key, reminderTTL)
		switch {
		case err != nil:
			s.log.WarnContext(ctx, "reminder dedupe unavailable, sending anyway",
				logger.SubscriptionID(sub.ID),
				logger.Error(err),
			)
		case !first:
			return false, nil
		}
	}

	var trialEnd time.Time
	if sub.TrialEndsAt != nil {
		trialEnd = *sub.TrialEndsAt
	}
	s.dispatcher.Dispatch(ctx, subscription.Change{
		Subscription: *sub.Clone(),
		From:         sub.Status,
		Operation:    subscription.OpRemindTrial,
		Event: events.New(sub.OrganizationID, sub.ID, now, events.TrialExpiring{
			DaysLeft:    offset,
			TrialEndsAt: trialEnd,
		}),
	})
	return true, nil
}
