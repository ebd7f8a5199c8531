// Package notifier emails moderation alerts when a report is flagged as fake.
package notifier

import (
	"fmt"

	"github.com/apex/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"civiceye/geo"
	"civiceye/models"
)

// Notifier sends flagged report alerts through SendGrid. A nil *Notifier
// is valid and means alerts are disabled.
type Notifier struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	moderator string
}

// New creates a notifier. Returns nil when the API key or the moderator
// address is not configured.
func New(apiKey, fromEmail, fromName, moderator string) *Notifier {
	if apiKey == "" || moderator == "" {
		return nil
	}
	return &Notifier{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		moderator: moderator,
	}
}

// NotifyFlagged emails the moderator about a flagged report.
func (n *Notifier) NotifyFlagged(event models.FlaggedEvent) error {
	if n == nil {
		return nil
	}

	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail(n.moderator, n.moderator)
	subject := fmt.Sprintf("Flagged report %s (score %.2f)", event.Report.ReportID, event.FakeScore)

	message := mail.NewV3Mail()
	message.SetFrom(from)
	message.Subject = subject

	p := mail.NewPersonalization()
	p.AddTos(to)
	message.AddPersonalizations(p)

	message.AddContent(mail.NewContent("text/plain", n.alertText(event)))
	message.AddContent(mail.NewContent("text/html", n.alertHTML(event)))

	response, err := n.client.Send(message)
	if err != nil {
		return err
	}

	log.Infof("flagged report alert sent to %s, status: %d", n.moderator, response.StatusCode)
	return nil
}

// alertText returns the plain text alert body.
func (n *Notifier) alertText(event models.FlaggedEvent) string {
	return fmt.Sprintf(`Hello,

The fake report detector flagged a submission for review.

Report ID: %s
Issue type: %s
Fake score: %.2f
Location: %s
Flagged at: %s

Description:
%s

Best regards,
CivicEye`,
		event.Report.ReportID,
		event.Report.IssueType,
		event.FakeScore,
		locationLine(event.Report),
		event.FlaggedAt,
		descriptionLine(event.Report))
}

// alertHTML returns the HTML alert body.
func (n *Notifier) alertHTML(event models.FlaggedEvent) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Flagged Report %s</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .header { background-color: #f8d7da; padding: 20px; border-radius: 5px; margin-bottom: 20px; }
        .details { background-color: #e9ecef; padding: 15px; border-radius: 5px; margin: 15px 0; }
        .score { font-size: 1.3em; font-weight: bold; color: #dc3545; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Flagged Report</h2>
        <p>The fake report detector flagged a submission for review.</p>
    </div>

    <div class="details">
        <p><strong>Report ID:</strong> %s</p>
        <p><strong>Issue type:</strong> %s</p>
        <p><strong>Fake score:</strong> <span class="score">%.2f</span></p>
        <p><strong>Location:</strong> %s</p>
        <p><strong>Flagged at:</strong> %s</p>
        <p><strong>Description:</strong> %s</p>
    </div>

    <p><em>Best regards,<br>CivicEye</em></p>
</body>
</html>`,
		event.Report.ReportID,
		event.Report.ReportID,
		event.Report.IssueType,
		event.FakeScore,
		locationLine(event.Report),
		event.FlaggedAt,
		descriptionLine(event.Report))
}

func locationLine(r models.Report) string {
	if r.Location == nil {
		return "not provided"
	}
	return geo.FormatCoordinates(r.Location.Latitude, r.Location.Longitude)
}

func descriptionLine(r models.Report) string {
	if text := r.CorpusText(); text != "" {
		return text
	}
	return "(no description)"
}
