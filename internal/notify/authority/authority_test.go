package authority

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kawacukennedy/civicsense/internal/report"
)

func sampleReport() *report.Report {
	return &report.Report{
		ID:            "01J0TESTREPORT",
		Title:         "Flooding near Times Square",
		Description:   "Water pooling across both lanes",
		RawLat:        40.75893,
		RawLng:        -73.9851,
		Lat:           40.7589,
		Lng:           -73.9851,
		PriorityScore: 81,
		PriorityLevel: report.PriorityHigh,
		Status:        report.StatusVerified,
		CreatedAt:     time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC),
	}
}

func TestComposeMailto(t *testing.T) {
	t.Parallel()

	c := New()
	link, err := c.Compose(sampleReport(), ChannelMailto, "roads@city.example")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if !strings.HasPrefix(link, "mailto:roads@city.example?subject=") {
		t.Errorf("link = %q, want mailto prefix with target", link)
	}
	if strings.Contains(link, "+") {
		t.Errorf("link contains '+' for spaces: %q", link)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	q := u.Query()

	subject := q.Get("subject")
	if !strings.HasPrefix(subject, "[CivicSense]") || !strings.Contains(subject, "Flooding") {
		t.Errorf("subject = %q", subject)
	}

	body := q.Get("body")
	for _, want := range []string{
		"40.758930, -73.985100",
		"Water pooling across both lanes",
		"high (81/100)",
		"Status: verified",
		"Report ID: 01J0TESTREPORT",
		"2025-06-01 14:30 UTC",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestComposeWhatsApp(t *testing.T) {
	t.Parallel()

	c := New()
	link, err := c.Compose(sampleReport(), ChannelWhatsApp, "15551234567")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if !strings.HasPrefix(link, "https://wa.me/15551234567?text=") {
		t.Errorf("link = %q, want wa.me prefix with target", link)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	text := u.Query().Get("text")
	if !strings.HasPrefix(text, "[CivicSense] Flooding") {
		t.Errorf("text = %q, want subject first", text)
	}
	if !strings.Contains(text, "40.758930, -73.985100") {
		t.Errorf("text missing precise location:\n%s", text)
	}
}

func TestComposeEmptyDescription(t *testing.T) {
	t.Parallel()

	r := sampleReport()
	r.Description = ""

	link, err := New().Compose(r, ChannelMailto, "roads@city.example")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	u, _ := url.Parse(link)
	if !strings.Contains(u.Query().Get("body"), "(no description provided)") {
		t.Error("body missing empty-description placeholder")
	}
}

func TestComposeDeterministic(t *testing.T) {
	t.Parallel()

	c := New()
	r := sampleReport()
	a, err := c.Compose(r, ChannelMailto, "roads@city.example")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	b, err := c.Compose(r, ChannelMailto, "roads@city.example")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if a != b {
		t.Error("same report produced different links")
	}
}

func TestComposeUnsupportedChannel(t *testing.T) {
	t.Parallel()

	link, err := New().Compose(sampleReport(), Channel("sms"), "15551234567")
	if !errors.Is(err, report.ErrUnsupportedChannel) {
		t.Fatalf("err = %v, want ErrUnsupportedChannel", err)
	}
	if link != "" {
		t.Errorf("link = %q, want empty on error", link)
	}
}
