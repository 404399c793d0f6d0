package alert

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// messageData is the template context for alert bodies.
type messageData struct {
	Source      string
	Probability string
	Time        string
	Coordinates string
	Address     string
	MapsURL     string
}

var smsTemplate = template.Must(template.New("sms").Parse(
	"Scream detected ({{.Probability}})\n" +
		"Source: {{.Source}}\n" +
		"Coordinates: {{.Coordinates}}\n" +
		"Location: {{.Address}}\n" +
		"Map: {{.MapsURL}}"))

var emailTemplate = template.Must(template.New("email").Parse(`<html>
<body>
<h2 style="color: red;">SCREAM DETECTION ALERT</h2>
<p><strong>Source:</strong> {{.Source}}</p>
<p><strong>Probability:</strong> {{.Probability}}</p>
<p><strong>Location:</strong> {{.Address}}</p>
<p><strong>Coordinates:</strong> {{.Coordinates}}</p>
<p><strong>Detection Time:</strong> {{.Time}}</p>
<p><a href="{{.MapsURL}}">Open in Google Maps</a></p>
<p>This is an automated alert from the scream detection system.</p>
</body>
</html>`))

func newMessageData(a *Alert) messageData {
	data := messageData{
		Source:      a.Source,
		Probability: fmt.Sprintf("%.0f%%", a.Probability*100),
		Time:        a.Timestamp.Format(time.DateTime),
		Coordinates: "N/A",
		Address:     "Unknown location",
		MapsURL:     "N/A",
	}
	if a.Location != nil {
		data.Coordinates = a.Location.Coordinates()
		data.MapsURL = a.Location.MapsURL()
		if a.Location.Address != "" {
			data.Address = a.Location.Address
		}
	}
	return data
}

// SMSBody renders the plain text alert body for the SMS channel.
func SMSBody(a *Alert) string {
	var sb strings.Builder
	if err := smsTemplate.Execute(&sb, newMessageData(a)); err != nil {
		// templates are compile-time constants, execution cannot fail on
		// the plain struct context, but keep a usable fallback anyway
		return fmt.Sprintf("Scream detected (%.0f%%) from %s", a.Probability*100, a.Source)
	}
	return sb.String()
}

// EmailSubject returns the alert email subject line.
func EmailSubject(_ *Alert) string {
	return "EMERGENCY: Scream Detected"
}

// EmailBody renders the HTML alert body for the email channel.
func EmailBody(a *Alert) string {
	var sb strings.Builder
	if err := emailTemplate.Execute(&sb, newMessageData(a)); err != nil {
		return SMSBody(a)
	}
	return sb.String()
}
