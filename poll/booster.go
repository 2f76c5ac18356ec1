package poll

import (
	"context"
	"fmt"

	"marketbot/chat"
	"marketbot/format"
	"marketbot/pkg/market"
)

// ChannelAPI is the backend surface the booster needs.
type ChannelAPI interface {
	ChannelAds(ctx context.Context) ([]*market.Advertisement, error)
	Ad(ctx context.Context, id market.ID, token string) (*market.Advertisement, error)
	MarkBoosted(ctx context.Context, id market.ID) error
}

// NewBooster builds the engine that distributes unboosted channel ads and
// marks them boosted. Ads are handled one at a time.
func NewBooster(backend ChannelAPI, sender chat.Sender, photos PhotoLoader, opts Options) *Engine[*market.Advertisement] {
	return New(Config[*market.Advertisement]{
		Name:  "booster",
		Fetch: backend.ChannelAds,
		Pending: func(ad *market.Advertisement) bool {
			return !ad.Boosted
		},
		Act: func(ctx context.Context, ad *market.Advertisement) error {
			detail, err := Retry(ctx, opts.Retry, opts.Logger, "booster.detail", func(ctx context.Context) (*market.Advertisement, error) {
				return backend.Ad(ctx, ad.ID, "")
			})
			if err != nil {
				return fmt.Errorf("fetch detail: %w", err)
			}

			msg := chat.Message{Text: "🚀 Featured advertisement\n\n" + format.Ad(detail), Photo: photos.First(ctx, detail.PhotoURLs)}
			if err := sender.Send(ctx, opts.Destination, msg); err != nil {
				return fmt.Errorf("send: %w", err)
			}

			if err := RetryErr(ctx, opts.Retry, opts.Logger, "booster.mark", func(ctx context.Context) error {
				return backend.MarkBoosted(ctx, ad.ID)
			}); err != nil {
				return fmt.Errorf("mark boosted: %w", err)
			}
			return nil
		},
		Key:     adKey,
		Retry:   opts.Retry,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
}
