// Package authority composes deterministic authority-facing messages for
// a report and renders them as delivery-channel links. The core only
// produces the string; delivery happens in the citizen's mail or chat
// client.
package authority

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kawacukennedy/civicsense/internal/report"
)

// Channel is a supported delivery-channel link format.
type Channel string

const (
	// ChannelMailto renders a mailto: link for the given email address.
	ChannelMailto Channel = "mailto"

	// ChannelWhatsApp renders a wa.me deep link for the given phone number.
	ChannelWhatsApp Channel = "whatsapp"
)

// subjectPrefix brands every outgoing subject line.
const subjectPrefix = "[CivicSense]"

// noDescription is the body placeholder when the reporter left the
// description empty.
const noDescription = "(no description provided)"

// Composer builds authority notification links from report state.
type Composer struct{}

// New creates a Composer.
func New() *Composer {
	return &Composer{}
}

// Compose builds the channel-independent message for the report and
// renders it into a fully-formed link for the given channel and target
// (email address for mailto, phone number for whatsapp). An unknown
// channel returns report.ErrUnsupportedChannel and no partial output.
func (c *Composer) Compose(r *report.Report, channel Channel, target string) (string, error) {
	subject := buildSubject(r)
	body := buildBody(r)

	switch channel {
	case ChannelMailto:
		return "mailto:" + target + "?subject=" + escape(subject) + "&body=" + escape(body), nil
	case ChannelWhatsApp:
		return "https://wa.me/" + target + "?text=" + escape(subject+"\n\n"+body), nil
	default:
		return "", fmt.Errorf("%w: %q", report.ErrUnsupportedChannel, channel)
	}
}

func buildSubject(r *report.Report) string {
	return subjectPrefix + " " + r.Title
}

// buildBody renders the fixed template. Coordinates use the raw location
// at six decimal places: this message goes to authorities only, which
// need operational precision, not the public rounded coordinate.
func buildBody(r *report.Report) string {
	desc := r.Description
	if desc == "" {
		desc = noDescription
	}

	var b strings.Builder
	b.WriteString("A civic issue has been reported and needs your attention.\n\n")
	fmt.Fprintf(&b, "Reported: %s\n", r.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "Location: %.6f, %.6f\n", r.RawLat, r.RawLng)
	fmt.Fprintf(&b, "Description: %s\n", desc)
	fmt.Fprintf(&b, "Priority: %s (%d/100)\n", r.PriorityLevel, r.PriorityScore)
	fmt.Fprintf(&b, "Status: %s\n", r.Status)
	fmt.Fprintf(&b, "Report ID: %s\n", r.ID)
	return b.String()
}

// escape percent-encodes for use in a link query. QueryEscape's "+" for
// spaces confuses mail clients, so spaces become %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
