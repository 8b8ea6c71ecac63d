// Package render 把研究产物渲染为单页 HTML。
package render

import (
	"html/template"
	"os"
	"path/filepath"

	"github.com/Jamiexiao242/SignalDeck/internal/research"
)

// PageData 模板渲染数据
type PageData struct {
	Date    string
	Subject string
	Output  *research.Output
}

const pageTpl = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>SignalDeck | {{ .Subject }}</title>
    <script src="https://cdn.jsdelivr.net/npm/marked/marked.min.js"></script>
    <style>
        :root {
            --primary-color: #2563eb;
            --bg-color: #f8fafc;
            --card-bg: #ffffff;
            --text-main: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            background-color: var(--bg-color);
            color: var(--text-main);
            line-height: 1.6;
            margin: 0;
            padding: 20px;
        }
        .container { max-width: 900px; margin: 0 auto; }
        header { text-align: center; margin-bottom: 32px; padding: 16px 0; }
        h1 { font-size: 2.2rem; margin: 0 0 8px 0; }
        .date-info { color: var(--text-secondary); }
        .ticker-tag {
            display: inline-block; background: #eff6ff; color: var(--primary-color);
            padding: 2px 12px; border-radius: 16px; font-weight: bold; margin: 0 4px;
        }
        .report-card, .chart-card {
            background: var(--card-bg);
            border-radius: 12px;
            padding: 24px;
            margin-bottom: 24px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.05);
            border: 1px solid var(--border-color);
        }
        .chart-card { color: var(--text-secondary); text-align: center; }
        .references { margin-top: 16px; padding-top: 12px; border-top: 1px dashed var(--border-color); font-size: 0.9rem; }
        .references a { color: var(--primary-color); text-decoration: none; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>📊 SignalDeck 研究报告</h1>
            <div class="date-info">{{ .Date }} • {{ .Subject }}</div>
            <div>
                {{range .Output.Tickers}}<span class="ticker-tag">{{.}}</span>{{end}}
            </div>
        </header>

        <div class="report-card">
            <div id="report"></div>
            <div style="display:none" id="raw-report">{{ .Output.Report }}</div>
        </div>

        {{range .Output.Charts}}
        <div class="chart-card" data-symbol="{{.Symbol}}" data-kind="{{.Kind}}">{{.Title}}</div>
        {{end}}

        <div class="references">
            {{range .Output.TickerResults}}
            <div><strong>{{.Symbol}}</strong></div>
            <ul>
                {{range .Searches}}{{range .Results}}
                <li><a href="{{.URL}}" target="_blank">{{.Title}}</a></li>
                {{end}}{{end}}
            </ul>
            {{end}}
        </div>
    </div>

    <script>
        document.addEventListener('DOMContentLoaded', function() {
            const raw = document.getElementById('raw-report');
            if (raw) document.getElementById('report').innerHTML = marked.parse(raw.textContent);
        });
    </script>
</body>
</html>
`

// WritePage 渲染研究页并写入指定路径
func WritePage(path string, data PageData) error {
	t, err := template.New("research").Parse(pageTpl)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return t.Execute(f, data)
}
