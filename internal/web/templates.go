package web

import (
	"html/template"
)

var reportHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>AuthLens Report</title>
    <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
    <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }

        :root {
            --bg-primary: #0a0f0a;
            --bg-card: rgba(0, 40, 0, 0.4);
            --border-color: #1a4a1a;
            --text-primary: #00ff41;
            --text-secondary: #00cc33;
            --text-dim: #336633;
            --danger: #ff3333;
        }

        body {
            font-family: 'JetBrains Mono', 'Fira Code', monospace;
            background: var(--bg-primary);
            color: var(--text-secondary);
            padding: 20px;
        }

        header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            border-bottom: 1px solid var(--border-color);
            padding-bottom: 12px;
            margin-bottom: 20px;
        }

        h1 { color: var(--text-primary); font-size: 1.4rem; }
        h2 { color: var(--text-primary); font-size: 1.05rem; margin-bottom: 10px; }

        .layout { display: grid; grid-template-columns: 260px 1fr; gap: 20px; }

        .card {
            background: var(--bg-card);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            padding: 16px;
            margin-bottom: 20px;
        }

        .summary { font-size: 0.95rem; }
        .warning { color: #ffaa00; margin-top: 8px; }
        .dim { color: var(--text-dim); }

        ul.suspects { list-style: none; }
        ul.suspects li { padding: 4px 0; border-bottom: 1px dashed var(--border-color); }
        ul.suspects li.none { color: var(--text-dim); font-style: italic; }

        #map { height: 420px; border-radius: 6px; margin-top: 12px; }

        table { width: 100%; border-collapse: collapse; font-size: 0.85rem; }
        th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid var(--border-color); }
        th { color: var(--text-primary); }

        a { color: var(--text-primary); }
        .history a { display: block; padding: 4px 0; text-decoration: none; }
        .history a.active { font-weight: bold; }
        .downloads a { margin-right: 12px; }
    </style>
</head>
<body>
    <header>
        <h1>AuthLens</h1>
        <span class="dim">{{.GeneratedAt}}</span>
    </header>

    <div class="layout">
        <aside class="card history">
            <h2>History</h2>
            {{range .Runs}}
            <a href="/?task={{.TaskID}}{{if $.Token}}&token={{$.Token}}{{end}}"{{if and $.Run (eq .TaskID $.Run.TaskID)}} class="active"{{end}}>
                {{.CompletedAt.Format "01-02 15:04"}} {{if .File}}{{.File}}{{else}}{{.TaskID}}{{end}}
            </a>
            {{else}}
            <p class="dim">No runs recorded yet.</p>
            {{end}}
        </aside>

        <main>
        {{if .View}}
            <section class="card">
                <h2>Summary</h2>
                <p class="summary">{{.View.Display.Summary.Line}}</p>
                {{if .View.Warning}}<p class="warning">{{.View.Warning}}</p>{{end}}
                <p class="downloads" style="margin-top: 10px;">
                    <a href="/download/json/{{.Run.TaskID}}{{if .Token}}?token={{.Token}}{{end}}">JSON</a>
                    <a href="/download/csv/{{.Run.TaskID}}{{if .Token}}?token={{.Token}}{{end}}">CSV</a>
                    <a href="/download/markdown/{{.Run.TaskID}}{{if .Token}}?token={{.Token}}{{end}}">Markdown</a>
                </p>
            </section>

            <section class="card">
                <h2>{{.View.Display.SuspectTitle}}</h2>
                <ul class="suspects">
                {{range .View.Display.Suspects}}
                    <li{{if .Placeholder}} class="none"{{end}}>{{.Text}}{{if .Attempts}} <span class="dim">({{.Attempts}} attempts)</span>{{end}}</li>
                {{end}}
                </ul>
                {{if .View.Map}}<div id="map"></div>{{end}}
            </section>

            {{if .View.Display.Incidents}}
            <section class="card">
                <h2>Brute-force Incidents</h2>
                <table>
                    <thead><tr><th>IP</th><th>Attempts</th><th>Start</th><th>End</th><th>Users</th></tr></thead>
                    <tbody>
                    {{range .View.Display.Incidents}}
                        <tr><td>{{.IP}}</td><td>{{.Count}}</td><td>{{.Start}}</td><td>{{.End}}</td><td>{{.Users}}</td></tr>
                    {{end}}
                    </tbody>
                </table>
            </section>
            {{end}}

            {{if .View.Display.HasUserOps}}
            <section class="card">
                <h2>User Operations</h2>
                <table>
                    <thead><tr><th>Time</th><th>User</th><th>Raw log</th></tr></thead>
                    <tbody>
                    {{range .View.Display.UserOps}}
                        <tr><td>{{.Timestamp}}</td><td>{{.Subject}}</td><td{{if .Explain}} title="{{.Explain}}"{{end}}>{{.Raw}}</td></tr>
                    {{end}}
                    </tbody>
                </table>
            </section>
            {{end}}

            <section class="card">
                <h2>Accepted Logins</h2>
                <table>
                    <thead><tr><th>Time</th><th>IP</th><th>User</th><th>Port</th></tr></thead>
                    <tbody>
                    {{range .View.Display.Accepted}}
                        <tr><td>{{.Timestamp}}</td><td>{{.IP}}</td><td>{{.User}}</td><td>{{.Port}}</td></tr>
                    {{end}}
                    </tbody>
                </table>
            </section>
        {{else}}
            <section class="card">
                <p class="dim">Nothing to show. Run <code>authlens analyze FILE</code> first.</p>
            </section>
        {{end}}
        </main>
    </div>

    {{if .View}}{{if .View.Map}}
    <script>
        const mapData = {{.View.Map}};
        const map = L.map('map');
        L.tileLayer(mapData.tiles.url, { maxZoom: mapData.tiles.max_zoom }).addTo(map);
        mapData.markers.forEach(m => {
            // labels come from the backend; render them as text
            const label = document.createElement('span');
            label.textContent = m.popup;
            L.marker([m.lat, m.lon]).addTo(map).bindPopup(label);
        });
        if (mapData.bounds) {
            const b = mapData.bounds;
            map.fitBounds([[b.south_west.lat, b.south_west.lon], [b.north_east.lat, b.north_east.lon]],
                { padding: mapData.padding });
        } else {
            map.setView([mapData.center.lat, mapData.center.lon], mapData.zoom);
        }
    </script>
    {{end}}{{end}}
</body>
</html>`

func getReportTemplate() *template.Template {
	return template.Must(template.New("report").Parse(reportHTML))
}
