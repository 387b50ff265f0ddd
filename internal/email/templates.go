package email

import (
	"bytes"
	"html/template"
	"time"
)

var statusTmpl = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
.status { font-size: 1.4em; font-weight: 600; }
.down { color: #c0392b; }
.up { color: #27ae60; }
.footer { margin-top: 30px; font-size: 0.9em; color: #7f8c8d; }
</style>
</head>
<body>
<p class="status {{.Class}}">{{.Name}} is {{.Status}}</p>
<p>Monitored URL: <a href="{{.URL}}">{{.URL}}</a></p>
<p>Detected at {{.At}}</p>
<p class="footer">You receive this email because you opted in to alerts in Uptime Ninja Bot. Use /settings in the bot to opt out.</p>
</body>
</html>
`))

// StatusSubject is the subject line of an up/down alert.
func StatusSubject(status, name string) string {
	return "Monitor is " + status + ": " + name
}

// StatusBody renders the HTML body of an up/down alert. status is "UP" or "DOWN".
func StatusBody(name, url, status string, at time.Time) (string, error) {
	class := "down"
	if status == "UP" {
		class = "up"
	}
	var b bytes.Buffer
	err := statusTmpl.Execute(&b, map[string]string{
		"Name":   name,
		"URL":    url,
		"Status": status,
		"Class":  class,
		"At":     at.UTC().Format("Jan 2, 2006 at 3:04 PM") + " UTC",
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
