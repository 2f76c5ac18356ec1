package poll

import (
	"context"
	"fmt"
	"log/slog"

	"marketbot/chat"
	"marketbot/format"
	"marketbot/media"
	"marketbot/pkg/market"
)

// AdLister fetches the full advertisement list.
type AdLister interface {
	ListAds(ctx context.Context, token string) ([]*market.Advertisement, error)
}

// PhotoLoader fetches an ad's first photo, returning nil when unavailable.
type PhotoLoader interface {
	First(ctx context.Context, urls []string) *media.Photo
}

// Options are shared by the notifier and booster constructors.
type Options struct {
	Destination string
	Retry       RetryPolicy
	Logger      *slog.Logger
	Metrics     *Metrics
}

// NewNotifier builds the engine that announces newly posted ads.
// On first start it seeds known with the current ads without announcing them.
func NewNotifier(ads AdLister, sender chat.Sender, photos PhotoLoader, known *KnownSet, opts Options) *Engine[*market.Advertisement] {
	return New(Config[*market.Advertisement]{
		Name: "notifier",
		Fetch: func(ctx context.Context) ([]*market.Advertisement, error) {
			return ads.ListAds(ctx, "")
		},
		Pending: func(ad *market.Advertisement) bool {
			return !known.Has(ad.ID.String())
		},
		Seed: func(items []*market.Advertisement) {
			for _, ad := range items {
				known.Add(ad.ID.String())
			}
			opts.Metrics.knownAds(known.Len())
		},
		Act: func(ctx context.Context, ad *market.Advertisement) error {
			// Recorded before sending so a failed send is never repeated.
			known.Add(ad.ID.String())
			opts.Metrics.knownAds(known.Len())

			msg := chat.Message{Text: format.NewAd(ad), Photo: photos.First(ctx, ad.PhotoURLs)}
			if err := sender.Send(ctx, opts.Destination, msg); err != nil {
				return fmt.Errorf("send notification: %w", err)
			}
			return nil
		},
		Key:     adKey,
		Retry:   opts.Retry,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
}

func adKey(ad *market.Advertisement) string { return ad.ID.String() }
