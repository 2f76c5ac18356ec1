// Package command turns inbound chat text into marketplace operations and replies.
package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mmcloughlin/geohash"

	"marketbot/pkg/market"
)

// DefaultPrefix marks a chat message as a command.
const DefaultPrefix = "!"

// spacePlaceholder stands in for spaces inside a single argument, e.g. New_York.
const spacePlaceholder = "_"

// ErrAuthRequired is returned by user-scoped commands when the sender has no session.
var ErrAuthRequired = errors.New("login required")

// ValidationError reports malformed command arguments. It never reaches the network.
type ValidationError struct {
	Usage  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return "usage: " + e.Usage
	}
	return e.Reason + " (usage: " + e.Usage + ")"
}

// Command is a parsed chat command.
type Command struct {
	Name string
	Args []string
}

// Parse splits text into a command and its arguments. It reports false when
// text does not start with prefix or names no command.
func Parse(prefix, text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, prefix) {
		return Command{}, false
	}
	fields := strings.Fields(text)
	name := strings.ToLower(strings.TrimPrefix(fields[0], prefix))
	if name == "" {
		return Command{}, false
	}
	return Command{Name: name, Args: fields[1:]}, true
}

// joinText rebuilds free text from tokens, turning placeholders back into spaces.
func joinText(args []string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.Join(args, " "), spacePlaceholder, " "))
}

const (
	usageLogin      = "!login <email> <password> <location_name> <lat> <lng>"
	usageViewAd     = "!view_ad <adId>"
	usageNearby     = "!nearby [maxDistanceKm]"
	usageAddComment = "!add_comment <adId> <good|bad|neutral> <description>"
	usageComments   = "!view_comments <adId>"
)

// ParseLogin reads login arguments. The location name may span several tokens.
func ParseLogin(args []string) (market.Credentials, error) {
	if len(args) < 5 {
		return market.Credentials{}, &ValidationError{Usage: usageLogin}
	}
	n := len(args)
	lat, err := parseCoordinate(args[n-2], 90)
	if err != nil {
		return market.Credentials{}, &ValidationError{Usage: usageLogin, Reason: fmt.Sprintf("invalid latitude %q", args[n-2])}
	}
	lng, err := parseCoordinate(args[n-1], 180)
	if err != nil {
		return market.Credentials{}, &ValidationError{Usage: usageLogin, Reason: fmt.Sprintf("invalid longitude %q", args[n-1])}
	}
	name := joinText(args[2 : n-2])
	if !strings.Contains(args[0], "@") {
		return market.Credentials{}, &ValidationError{Usage: usageLogin, Reason: fmt.Sprintf("invalid email %q", args[0])}
	}
	return market.Credentials{
		Email:    args[0],
		Password: args[1],
		Location: &market.Location{
			Name:    name,
			Lat:     market.Float(lat),
			Lng:     market.Float(lng),
			Geohash: geohash.Encode(lat, lng),
		},
	}, nil
}

func parseCoordinate(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < -limit || v > limit {
		return 0, fmt.Errorf("%v out of range", v)
	}
	return v, nil
}

// ParseAddComment reads add_comment arguments.
func ParseAddComment(args []string) (market.NewComment, error) {
	if len(args) < 3 {
		return market.NewComment{}, &ValidationError{Usage: usageAddComment}
	}
	sentiment, ok := market.ParseSentiment(strings.ToLower(args[1]))
	if !ok {
		return market.NewComment{}, &ValidationError{Usage: usageAddComment, Reason: fmt.Sprintf("sentiment must be good, bad or neutral, got %q", args[1])}
	}
	description := joinText(args[2:])
	if description == "" {
		return market.NewComment{}, &ValidationError{Usage: usageAddComment, Reason: "description is empty"}
	}
	return market.NewComment{AdID: market.ID(args[0]), Sentiment: sentiment, Description: description}, nil
}

// parseAdID reads the single ad ID argument of view_ad and view_comments.
func parseAdID(args []string, usage string) (market.ID, error) {
	if len(args) != 1 {
		return "", &ValidationError{Usage: usage}
	}
	return market.ID(args[0]), nil
}

// parseRadius reads the optional nearby radius. nil means unbounded.
func parseRadius(args []string) (*float64, error) {
	switch len(args) {
	case 0:
		return nil, nil
	case 1:
		km, err := strconv.ParseFloat(args[0], 64)
		if err != nil || math.IsNaN(km) || math.IsInf(km, 0) || km <= 0 {
			return nil, &ValidationError{Usage: usageNearby, Reason: fmt.Sprintf("invalid distance %q", args[0])}
		}
		return &km, nil
	}
	return nil, &ValidationError{Usage: usageNearby}
}
