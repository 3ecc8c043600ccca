package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"noticeboard-go/internal/metrics"
	"noticeboard-go/internal/models"
)

// ErrNotConfigured is returned when dispatch is requested without VAPID
// keys. Callers should treat it as "push disabled", not as a failure of
// any particular subscription.
var ErrNotConfigured = errors.New("web push is not configured")

// Outcome classifies one delivery attempt.
type Outcome int

const (
	// OutcomeDelivered means the push service accepted the message.
	OutcomeDelivered Outcome = iota
	// OutcomeGone means the push service reported the endpoint as
	// permanently invalid; the subscription gets pruned.
	OutcomeGone
	// OutcomeTransient covers everything else: timeouts, 5xx, encryption
	// errors. Logged, never retried within the batch.
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeGone:
		return "gone"
	default:
		return "transient"
	}
}

// Result is the settled state of one subscription's attempt.
type Result struct {
	Subscription models.Subscription
	Outcome      Outcome
	Err          error
}

// Summary tallies a whole dispatch batch.
type Summary struct {
	Attempted int
	Delivered int
	Pruned    int
	Transient int
}

// SubscriptionSource is the slice of the subscription store the
// dispatcher needs: enumeration for fan-out and pruning on gone.
type SubscriptionSource interface {
	ListAll(ctx context.Context) ([]models.Subscription, error)
	ListForUsers(ctx context.Context, userIDs []int) ([]models.Subscription, error)
	Unregister(ctx context.Context, endpoint string) error
}

type sendFunc func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

// Dispatcher fans one notification out to many subscriptions. Attempts
// run concurrently and settle independently; the batch never fails
// because individual endpoints did.
type Dispatcher struct {
	cfg  Config
	subs SubscriptionSource
	send sendFunc
}

func NewDispatcher(cfg Config, subs SubscriptionSource) *Dispatcher {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	return &Dispatcher{
		cfg:  cfg,
		subs: subs,
		send: webpush.SendNotificationWithContext,
	}
}

// payload is what the service worker receives. Credentials never appear here.
type payload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
	Icon  string `json:"icon,omitempty"`
}

// Send resolves the target subscriptions for the notification and
// dispatches to them. Targeted notifications go only to subscriptions
// owned by the listed users; broadcasts go to everyone.
func (d *Dispatcher) Send(ctx context.Context, n models.Notification) (Summary, error) {
	if !d.cfg.Configured() {
		return Summary{}, ErrNotConfigured
	}

	var subs []models.Subscription
	var err error
	if n.Broadcast() {
		subs, err = d.subs.ListAll(ctx)
	} else {
		subs, err = d.subs.ListForUsers(ctx, n.TargetUserIDs)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return d.Dispatch(ctx, n, subs)
}

// Dispatch attempts delivery of n to every subscription in subs and
// waits for all attempts to settle. Endpoints the push service reports
// gone are unregistered as a side effect.
func (d *Dispatcher) Dispatch(ctx context.Context, n models.Notification, subs []models.Subscription) (Summary, error) {
	if !d.cfg.Configured() {
		return Summary{}, ErrNotConfigured
	}

	summary := Summary{Attempted: len(subs)}
	if len(subs) == 0 {
		return summary, nil
	}

	message, err := json.Marshal(payload{
		ID:    n.ID,
		Title: n.Title,
		Body:  n.Body,
		URL:   n.URL,
		Icon:  n.Icon,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to encode push payload: %w", err)
	}

	start := time.Now()
	results := make(chan Result, len(subs))

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub models.Subscription) {
			defer wg.Done()
			results <- d.attempt(ctx, message, sub)
		}(sub)
	}
	wg.Wait()
	close(results)

	for res := range results {
		metrics.PushAttemptsTotal.WithLabelValues(res.Outcome.String()).Inc()

		switch res.Outcome {
		case OutcomeDelivered:
			summary.Delivered++
		case OutcomeGone:
			// Double deletes are no-ops, so racing dispatches are safe.
			if err := d.subs.Unregister(ctx, res.Subscription.Endpoint); err != nil {
				log.Printf("Failed to prune gone subscription for user %d: %v", res.Subscription.UserID, err)
			} else {
				metrics.PushSubscriptionsPrunedTotal.Inc()
				summary.Pruned++
			}
		case OutcomeTransient:
			summary.Transient++
			log.Printf("Push to user %d failed (transient): %v", res.Subscription.UserID, res.Err)
		}
	}

	metrics.PushDispatchDuration.Observe(time.Since(start).Seconds())
	return summary, nil
}

func (d *Dispatcher) attempt(ctx context.Context, message []byte, sub models.Subscription) Result {
	actx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
	defer cancel()

	resp, err := d.send(actx, message, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      d.cfg.Subscriber,
		VAPIDPublicKey:  d.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: d.cfg.VAPIDPrivateKey,
		TTL:             d.cfg.TTL,
	})
	if err != nil {
		return Result{Subscription: sub, Outcome: OutcomeTransient, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return Result{Subscription: sub, Outcome: OutcomeGone}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{Subscription: sub, Outcome: OutcomeDelivered}
	default:
		return Result{
			Subscription: sub,
			Outcome:      OutcomeTransient,
			Err:          fmt.Errorf("unexpected status %d from push service", resp.StatusCode),
		}
	}
}
