package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/george-ags/lm-micra/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"grams": func(v float64) string {
		return fmt.Sprintf("%.1f g", v)
	},
	"seconds": func(d time.Duration) string {
		return fmt.Sprintf("%.1fs", d.Seconds())
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>lm-micra</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.swatch { display: inline-block; width: 10px; height: 10px; border-radius: 50%; margin-right: 6px; vertical-align: middle; }
.current { font-weight: bold; }
button { font-family: monospace; }
</style>
</head>
<body>
<h1>lm-micra</h1>

<h2>Shot</h2>
<table>
<tr><th>Relay</th><td class="{{if .Control.RelayOn}}on{{else}}off{{end}}">{{if .Control.RelayOn}}ON{{else}}OFF{{end}}</td></tr>
{{if .Control.ShotID}}<tr><th>Shot</th><td>{{.Control.ShotID}}</td></tr>
<tr><th>Elapsed</th><td>{{seconds .Control.ShotElapsed}}</td></tr>{{end}}
<tr><th>Flow points</th><td>{{.Control.FlowCount}}</td></tr>
</table>

<h2>Memories</h2>
<table>
<tr><th>Memory</th><td>Target</td><td>Overshoot</td><td>Stops at</td></tr>
{{range $i, $m := .Control.Memories}}<tr{{if eq $i 0}} class="current"{{end}}><th><span class="swatch" style="background: {{$m.Color}}"></span>{{$m.Name}}{{if eq $i 0}} &#9664;{{end}}</th><td>{{grams $m.Target}}</td><td>{{grams $m.Overshoot}}</td><td>{{grams $m.StopWeight}}</td></tr>
{{end}}</table>

<h2>Scale</h2>
<table>
<tr><th>Switch</th><td>{{if .Control.ScaleSwitch}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Link</th><td class="{{if .Control.ScaleConnected}}connected{{else}}disconnected{{end}}">{{if .Control.ScaleConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Control.PendingAddr}}<tr><th>Found</th><td>{{.Control.PendingAddr}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Broker}}<tr><th>Broker</th><td>{{.Broker}}</td></tr>{{end}}
</table>

<h2>Counters</h2>
<table>
<tr><th>Shots started</th><td>{{.Control.Counters.ShotsStarted}}</td></tr>
<tr><th>Watchdog trips</th><td>{{.Control.Counters.WatchdogTrips}}</td></tr>
<tr><th>Scale scans</th><td>{{.Control.Counters.Scans}}</td></tr>
<tr><th>Saves</th><td>{{.Control.Counters.Saves}}{{if .Control.Counters.SaveErrors}} ({{.Control.Counters.SaveErrors}} failed){{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Save file</th><td>{{.SavePath}}</td></tr>
</table>

<form method="POST" action="/save"><button>save memories now</button></form>
<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, now time.Time) {
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   now.Sub(snap.StartTime),
	}
	indexTmpl.Execute(w, data)
}
