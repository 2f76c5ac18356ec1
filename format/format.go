// Package format turns marketplace records into chat-ready text.
package format

import (
	"fmt"
	"strings"

	"marketbot/pkg/market"
)

const notAvailable = "N/A"

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

// LocationText renders a location as "name (lat, lng)".
func LocationText(l *market.Location) string {
	if l == nil {
		return notAvailable
	}
	name := orNA(l.Name)
	if !l.HasCoordinates() {
		return name
	}
	return fmt.Sprintf("%s (%.4f, %.4f)", name, *l.Lat, *l.Lng)
}

// Ad renders an advertisement in its fixed field order.
func Ad(ad *market.Advertisement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆔 ID: %s\n", ad.ID)
	fmt.Fprintf(&b, "📌 Title: %s\n", orNA(ad.Title))
	fmt.Fprintf(&b, "📝 Description: %s\n", orNA(ad.Description))
	fmt.Fprintf(&b, "💰 Price: %s\n", market.FormatPrice(ad.Price))
	fmt.Fprintf(&b, "🏷️ Category: %s\n", orNA(ad.Category))
	fmt.Fprintf(&b, "📍 Location: %s\n", LocationText(ad.Location))
	fmt.Fprintf(&b, "👤 Posted by: %s\n", orNA(ad.UserEmail))
	if len(ad.PhotoURLs) == 0 {
		fmt.Fprintf(&b, "🖼️ Photos: %s", notAvailable)
	} else {
		b.WriteString("🖼️ Photos:")
		for i, u := range ad.PhotoURLs {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, u)
		}
	}
	return b.String()
}

// AdSummary renders one line per advertisement for list replies.
func AdSummary(ad *market.Advertisement) string {
	return fmt.Sprintf("• [%s] %s - %s", ad.ID, orNA(ad.Title), market.FormatPrice(ad.Price))
}

// NewAd renders the channel announcement for a freshly posted advertisement.
func NewAd(ad *market.Advertisement) string {
	return "🆕 New advertisement posted!\n\n" + Ad(ad)
}

// Comment renders a comment: id, sentiment, description.
func Comment(c *market.Comment) string {
	return fmt.Sprintf("💬 ID: %s\n%s Sentiment: %s\n📝 %s", c.ID, sentimentIcon(c.Sentiment), orNA(string(c.Sentiment)), orNA(c.Description))
}

func sentimentIcon(s market.Sentiment) string {
	switch s {
	case market.SentimentGood:
		return "👍"
	case market.SentimentBad:
		return "👎"
	default:
		return "😐"
	}
}

// Profile renders the user's account details.
func Profile(p *market.Profile) string {
	return fmt.Sprintf("👤 Username: %s\n📧 Email: %s\n📍 Location: %s", orNA(p.Username), orNA(p.Email), LocationText(p.Location))
}

// Nearby renders one ranked advertisement line.
func Nearby(r Ranked) string {
	dist := "distance unknown"
	if r.DistanceKm != nil {
		dist = fmt.Sprintf("%.1f km", *r.DistanceKm)
	}
	return fmt.Sprintf("%s (%s)", AdSummary(r.Ad), dist)
}
