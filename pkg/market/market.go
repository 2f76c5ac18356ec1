// Package market contains the core domain types for the classifieds marketplace bot.
package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a backend record identifier. The backend may serialize it as a
// JSON string or a JSON number; both decode to the same textual form.
type ID string

// UnmarshalJSON accepts either a quoted string or a bare number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Location is a named point. Lat and Lng are nil when the record has no coordinates.
type Location struct {
	Name    string   `json:"name"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Geohash string   `json:"geohash,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are known.
func (l *Location) HasCoordinates() bool {
	return l != nil && l.Lat != nil && l.Lng != nil
}

// Advertisement is a marketplace listing served by the backend.
type Advertisement struct {
	ID          ID        `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Location    *Location `json:"location,omitempty"`
	PhotoURLs   []string  `json:"photoUrls"`
	UserEmail   string    `json:"userEmail"`
	Boosted     bool      `json:"boosted"`
}

// Sentiment classifies a comment.
type Sentiment string

const (
	SentimentGood    Sentiment = "good"
	SentimentBad     Sentiment = "bad"
	SentimentNeutral Sentiment = "neutral"
)

// ParseSentiment validates a user-supplied sentiment.
func ParseSentiment(s string) (Sentiment, bool) {
	switch Sentiment(s) {
	case SentimentGood, SentimentBad, SentimentNeutral:
		return Sentiment(s), true
	}
	return "", false
}

// Comment is a user remark attached to an advertisement.
type Comment struct {
	ID          ID        `json:"id"`
	AdID        ID        `json:"adId"`
	Sentiment   Sentiment `json:"sentiment"`
	Description string    `json:"description"`
	UserEmail   string    `json:"userEmail,omitempty"`
}

// NewComment is the body for creating a comment.
type NewComment struct {
	AdID        ID        `json:"adId"`
	Sentiment   Sentiment `json:"sentiment"`
	Description string    `json:"description"`
}

// Profile is the authenticated user's account as returned by the backend.
type Profile struct {
	Email    string    `json:"email"`
	Username string    `json:"username"`
	Location *Location `json:"location,omitempty"`
}

// Credentials is the login request body.
type Credentials struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Location *Location `json:"location,omitempty"`
}

// Auth is the login response.
type Auth struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

// Float returns a pointer to f, for building Locations.
func Float(f float64) *float64 { return &f }

// FormatPrice renders a price without trailing zeros.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
