package command

import (
	"errors"
	"math"
	"testing"

	"marketbot/pkg/market"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text     string
		wantOK   bool
		wantName string
		wantArgs int
	}{
		{"!help", true, "help", 0},
		{"  !VIEW_AD 42  ", true, "view_ad", 1},
		{"!login a@b.com pw Colombo 6.9 79.8", true, "login", 5},
		{"hello there", false, "", 0},
		{"!", false, "", 0},
		{"", false, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, ok := Parse(DefaultPrefix, tt.text)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if cmd.Name != tt.wantName || len(cmd.Args) != tt.wantArgs {
				t.Errorf("Parse(%q) = %+v, want name %q with %d args", tt.text, cmd, tt.wantName, tt.wantArgs)
			}
		})
	}
}

func TestParseAddComment(t *testing.T) {
	cmd, ok := Parse(DefaultPrefix, "!add_comment 42 good Great_product")
	if !ok {
		t.Fatal("Parse() ok = false")
	}
	got, err := ParseAddComment(cmd.Args)
	if err != nil {
		t.Fatalf("ParseAddComment() error = %v", err)
	}
	want := market.NewComment{AdID: "42", Sentiment: market.SentimentGood, Description: "Great product"}
	if got != want {
		t.Errorf("ParseAddComment() = %+v, want %+v", got, want)
	}
}

func TestParseAddCommentRejects(t *testing.T) {
	for _, args := range [][]string{
		{"42", "amazing", "Great_product"},
		{"42", "good"},
		{"42", "good", "___"},
	} {
		_, err := ParseAddComment(args)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("ParseAddComment(%v) error = %v, want *ValidationError", args, err)
			continue
		}
		if ve.Usage != usageAddComment {
			t.Errorf("Usage = %q, want %q", ve.Usage, usageAddComment)
		}
	}
}

func TestParseLogin(t *testing.T) {
	creds, err := ParseLogin([]string{"a@b.com", "pw", "New_York", "City", "40.7128", "-74.0060"})
	if err != nil {
		t.Fatalf("ParseLogin() error = %v", err)
	}
	if creds.Email != "a@b.com" || creds.Password != "pw" {
		t.Errorf("credentials = %+v", creds)
	}
	loc := creds.Location
	if loc.Name != "New York City" {
		t.Errorf("Location.Name = %q, want %q", loc.Name, "New York City")
	}
	if math.Abs(*loc.Lat-40.7128) > 1e-9 || math.Abs(*loc.Lng+74.006) > 1e-9 {
		t.Errorf("coordinates = %v, %v", *loc.Lat, *loc.Lng)
	}
	if len(loc.Geohash) != 12 || loc.Geohash[:3] != "dr5" {
		t.Errorf("Geohash = %q, want 12 chars starting dr5", loc.Geohash)
	}
}

func TestParseLoginRejects(t *testing.T) {
	for _, args := range [][]string{
		{"a@b.com", "pw", "Colombo", "6.9"},
		{"a@b.com", "pw", "Colombo", "north", "79.8"},
		{"a@b.com", "pw", "Colombo", "91", "79.8"},
		{"a@b.com", "pw", "Colombo", "6.9", "181"},
		{"a@b.com", "pw", "Colombo", "NaN", "79.8"},
		{"a@b.com", "pw", "Colombo", "6.9", "nan"},
		{"not-an-email", "pw", "Colombo", "6.9", "79.8"},
	} {
		var ve *ValidationError
		if _, err := ParseLogin(args); !errors.As(err, &ve) {
			t.Errorf("ParseLogin(%v) error = %v, want *ValidationError", args, err)
		}
	}
}

func TestParseRadius(t *testing.T) {
	if km, err := parseRadius(nil); err != nil || km != nil {
		t.Errorf("parseRadius(nil) = %v, %v; want nil, nil", km, err)
	}
	if km, err := parseRadius([]string{"2.5"}); err != nil || *km != 2.5 {
		t.Errorf("parseRadius(2.5) = %v, %v", km, err)
	}
	for _, args := range [][]string{{"-1"}, {"far"}, {"NaN"}, {"+Inf"}, {"1", "2"}} {
		if _, err := parseRadius(args); err == nil {
			t.Errorf("parseRadius(%v) error = nil", args)
		}
	}
}
