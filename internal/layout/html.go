package layout

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"image/png"
)

const receiptPartial = `{{define "receipt"}}<div class="receipt" data-digest="{{.Digest}}"{{if .Style}} style="{{.Style}}"{{end}}>
{{- range .Doc.Lines}}
{{- if eq .Kind "logo"}}
  <div class="line logo"><img src="{{$.LogoURI}}" alt="Logo" /></div>
{{- else if eq .Kind "barcode"}}
  <div class="line barcode"><img src="{{$.BarcodeURI}}" alt="Barcode {{.Left}}" /></div>
{{- else if eq .Kind "blank"}}
  <div class="line blank">&nbsp;</div>
{{- else}}
  <div class="line {{.Kind}} {{.Block}}{{if .Emphasis}} emphasis{{end}}"><span class="left">{{.Left}}</span>{{if .Right}}<span class="right">{{.Right}}</span>{{end}}</div>
{{- end}}
{{- end}}
</div>{{end}}`

const previewTemplate = `{{template "receipt" .}}`

const printTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>{{.Doc.Title}}</title>
  <style>
    @page { size: 80mm auto; margin: 4mm; }
    body { margin: 0; background: #ffffff; color: #000000; }
    .receipt { font-family: "Courier New", Courier, monospace; font-size: 12px; width: 72mm; margin: 0 auto; }
    .line { display: flex; justify-content: center; white-space: pre; }
    .line.item, .line.comment, .line.detail, .line.total { justify-content: space-between; }
    .line.emphasis { font-weight: bold; }
    .line img { max-width: 100%; }
    .line.logo img { max-height: 64px; }
    .line.barcode img { height: 60px; }
  </style>
</head>
<body>
{{template "receipt" .}}
</body>
</html>
`

// BarcodeModuleWidth and BarcodeHeight size the barcode bitmap in pixels
const (
	BarcodeModuleWidth = 2
	BarcodeHeight      = 60
)

type htmlView struct {
	Doc        Document
	Digest     string
	Style      template.CSS
	LogoURI    template.URL
	BarcodeURI template.URL
}

var (
	previewTpl = template.Must(template.Must(template.New("preview").Parse(receiptPartial)).Parse(previewTemplate))
	printTpl   = template.Must(template.Must(template.New("print").Parse(receiptPartial)).Parse(printTemplate))
)

// PreviewHTML paints the document as an HTML fragment for the live preview,
// scaled by zoom.
func PreviewHTML(doc Document, zoom float64) (string, error) {
	view, err := newView(doc)
	if err != nil {
		return "", err
	}
	if zoom > 0 && zoom != 1 {
		view.Style = template.CSS(fmt.Sprintf("transform: scale(%.2f); transform-origin: top center;", zoom))
	}
	return execute(previewTpl, view)
}

// PrintHTML paints the document as a standalone page carrying its own
// print stylesheet.
func PrintHTML(doc Document) (string, error) {
	view, err := newView(doc)
	if err != nil {
		return "", err
	}
	return execute(printTpl, view)
}

func newView(doc Document) (htmlView, error) {
	view := htmlView{Doc: doc, Digest: doc.Digest()}
	if doc.Logo != nil {
		view.LogoURI = dataURI(doc.Logo.ContentType, doc.Logo.Data)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, doc.Barcode.Pattern.Image(BarcodeModuleWidth, BarcodeHeight)); err != nil {
		return htmlView{}, fmt.Errorf("encoding barcode image: %w", err)
	}
	view.BarcodeURI = dataURI("image/png", buf.Bytes())
	return view, nil
}

func execute(tpl *template.Template, view htmlView) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("executing %s template: %w", tpl.Name(), err)
	}
	return buf.String(), nil
}

func dataURI(contentType string, data []byte) template.URL {
	return template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data))
}
