package push

import (
	"errors"
	"log/slog"

	"github.com/larderhq/larder/internal/store"
)

// Notifier fans a payload out to every subscription of the target users.
// Delivery is best-effort and asynchronous; expired subscriptions are pruned.
type Notifier struct {
	subs   *store.PushStore
	svc    *Service
	logger *slog.Logger
}

func NewNotifier(subs *store.PushStore, svc *Service, logger *slog.Logger) *Notifier {
	return &Notifier{subs: subs, svc: svc, logger: logger}
}

func (n *Notifier) NotifyUsers(payload Payload, userIDs ...int64) {
	go func() {
		for _, userID := range userIDs {
			subs, err := n.subs.ListByUser(userID)
			if err != nil {
				n.logger.Error("list push subscriptions", "user_id", userID, "error", err)
				continue
			}
			for _, sub := range subs {
				if err := n.svc.Send(&sub, payload); err != nil {
					if errors.Is(err, ErrExpired) {
						if derr := n.subs.DeleteByEndpoint(sub.Endpoint); derr != nil {
							n.logger.Error("prune expired subscription", "error", derr)
						}
						continue
					}
					n.logger.Error("push send failed", "user_id", userID, "error", err)
				}
			}
		}
	}()
}
