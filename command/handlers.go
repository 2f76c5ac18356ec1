package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketbot/chat"
	"marketbot/format"
)

const (
	maxListedAds = 20
	maxNearbyAds = 10
)

var errNoLocation = errors.New("profile has no location")

func text(s string) (chat.Message, error) { return chat.Message{Text: s}, nil }

func (d *Dispatcher) help(context.Context, chat.Inbound, []string) (chat.Message, error) {
	p := d.prefix
	lines := []string{
		"🤖 Marketplace bot commands:",
		"",
		usageLogin + " - log in (use _ for spaces in the location name)",
		p + "logout - log out",
		p + "profile - show your profile",
		p + "all_ads - list advertisements",
		usageViewAd + " - show one advertisement",
		usageNearby + " - advertisements closest to your location",
		usageAddComment + " - comment on an advertisement (use _ for spaces)",
		usageComments + " - comments on an advertisement",
		p + "all_comments - every comment",
		p + "help - this message",
	}
	return text(strings.Join(lines, "\n"))
}

func (d *Dispatcher) login(ctx context.Context, in chat.Inbound, args []string) (chat.Message, error) {
	creds, err := ParseLogin(args)
	if err != nil {
		return chat.Message{}, err
	}
	auth, err := d.backend.Login(ctx, creds)
	if err != nil {
		return chat.Message{}, err
	}

	email := auth.User.Email
	if email == "" {
		email = creds.Email
	}
	username := auth.User.Username
	if username == "" {
		username = email
	}
	d.sessions.Set(in.Sender, auth.Token, email, username)
	d.logger.Info("User logged in", "sender", in.Sender, "email", email)

	return text(fmt.Sprintf("👋 Welcome, %s! You are logged in as %s.\nSend %shelp to see what you can do.", username, email, d.prefix))
}

func (d *Dispatcher) logout(_ context.Context, in chat.Inbound, _ []string) (chat.Message, error) {
	s, err := d.requireSession(in)
	if err != nil {
		return chat.Message{}, err
	}
	d.sessions.Delete(in.Sender)
	return text(fmt.Sprintf("👋 Goodbye, %s. You have been logged out.", s.Username))
}

func (d *Dispatcher) profile(ctx context.Context, in chat.Inbound, _ []string) (chat.Message, error) {
	s, err := d.requireSession(in)
	if err != nil {
		return chat.Message{}, err
	}
	p, err := d.backend.Profile(ctx, s.Token)
	if err != nil {
		return chat.Message{}, err
	}
	if !p.Location.HasCoordinates() {
		return chat.Message{}, errNoLocation
	}
	return text(format.Profile(p))
}

func (d *Dispatcher) allAds(ctx context.Context, in chat.Inbound, _ []string) (chat.Message, error) {
	ads, err := d.backend.ListAds(ctx, d.token(in))
	if err != nil {
		return chat.Message{}, err
	}
	if len(ads) == 0 {
		return text("📭 No advertisements yet.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Advertisements (%d):", len(ads))
	for i, ad := range ads {
		if i == maxListedAds {
			fmt.Fprintf(&b, "\n…and %d more", len(ads)-maxListedAds)
			break
		}
		b.WriteString("\n" + format.AdSummary(ad))
	}
	fmt.Fprintf(&b, "\n\nSend %sview_ad <adId> for details.", d.prefix)
	return text(b.String())
}

func (d *Dispatcher) viewAd(ctx context.Context, in chat.Inbound, args []string) (chat.Message, error) {
	id, err := parseAdID(args, usageViewAd)
	if err != nil {
		return chat.Message{}, err
	}
	ad, err := d.backend.Ad(ctx, id, d.token(in))
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{Text: format.Ad(ad), Photo: d.photos.First(ctx, ad.PhotoURLs)}, nil
}

func (d *Dispatcher) nearby(ctx context.Context, in chat.Inbound, args []string) (chat.Message, error) {
	maxKm, err := parseRadius(args)
	if err != nil {
		return chat.Message{}, err
	}
	s, err := d.requireSession(in)
	if err != nil {
		return chat.Message{}, err
	}
	p, err := d.backend.Profile(ctx, s.Token)
	if err != nil {
		return chat.Message{}, err
	}
	if !p.Location.HasCoordinates() {
		return chat.Message{}, errNoLocation
	}
	ads, err := d.backend.ListAds(ctx, s.Token)
	if err != nil {
		return chat.Message{}, err
	}

	ranked := format.ByDistance(ads, *p.Location.Lat, *p.Location.Lng, maxKm)
	if len(ranked) == 0 {
		if maxKm != nil {
			return text(fmt.Sprintf("📭 No advertisements within %g km of %s.", *maxKm, format.LocationText(p.Location)))
		}
		return text("📭 No advertisements yet.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📍 Advertisements near %s:", format.LocationText(p.Location))
	for i, r := range ranked {
		if i == maxNearbyAds {
			break
		}
		b.WriteString("\n" + format.Nearby(r))
	}
	return text(b.String())
}

func (d *Dispatcher) addComment(ctx context.Context, in chat.Inbound, args []string) (chat.Message, error) {
	nc, err := ParseAddComment(args)
	if err != nil {
		return chat.Message{}, err
	}
	s, err := d.requireSession(in)
	if err != nil {
		return chat.Message{}, err
	}
	c, err := d.backend.AddComment(ctx, nc, s.Token)
	if err != nil {
		return chat.Message{}, err
	}
	return text(fmt.Sprintf("✅ Comment added to ad %s.\n\n%s", nc.AdID, format.Comment(c)))
}

func (d *Dispatcher) viewComments(ctx context.Context, in chat.Inbound, args []string) (chat.Message, error) {
	id, err := parseAdID(args, usageComments)
	if err != nil {
		return chat.Message{}, err
	}
	comments, err := d.backend.AdComments(ctx, id, d.token(in))
	if err != nil {
		return chat.Message{}, err
	}
	if len(comments) == 0 {
		return text(fmt.Sprintf("💬 No comments on ad %s yet.", id))
	}
	parts := make([]string, 0, len(comments)+1)
	parts = append(parts, fmt.Sprintf("💬 Comments on ad %s (%d):", id, len(comments)))
	for _, c := range comments {
		parts = append(parts, format.Comment(c))
	}
	return text(strings.Join(parts, "\n\n"))
}

func (d *Dispatcher) allComments(ctx context.Context, in chat.Inbound, _ []string) (chat.Message, error) {
	comments, err := d.backend.AllComments(ctx, d.token(in))
	if err != nil {
		return chat.Message{}, err
	}
	if len(comments) == 0 {
		return text("💬 No comments yet.")
	}
	parts := make([]string, 0, len(comments)+1)
	parts = append(parts, fmt.Sprintf("💬 All comments (%d):", len(comments)))
	for _, c := range comments {
		parts = append(parts, format.Comment(c))
	}
	return text(strings.Join(parts, "\n\n"))
}
