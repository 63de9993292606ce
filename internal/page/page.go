package page

import (
	_ "embed"
	"html/template"
	"io"
	"strings"

	"snapsend/internal/camera"
)

//go:embed frontpage.html
var frontpage string

// Placeholder はテンプレート内のプレースホルダ名
type Placeholder string

// プレースホルダ一覧
const (
	ResolutionOptions Placeholder = "RESOLUTION_OPTIONS"
	UploadURL         Placeholder = "UPLOAD_URL"
)

// State は描画時点のカメラ状態
type State struct {
	Catalog   camera.ResolutionList
	Current   camera.Resolution
	Initial   camera.Resolution
	UploadURL string
}

// RenderFunc はプレースホルダの置換文字列を生成する
type RenderFunc func(State) string

// Renderer はテンプレートのプレースホルダを置換して出力する
type Renderer struct {
	template string
	funcs    map[Placeholder]RenderFunc
}

// New は埋め込みフロントページのRendererを作成する
func New() *Renderer {
	return NewWithTemplate(frontpage)
}

// NewWithTemplate は任意のテンプレートのRendererを作成する
func NewWithTemplate(tmpl string) *Renderer {
	return &Renderer{
		template: tmpl,
		funcs: map[Placeholder]RenderFunc{
			ResolutionOptions: func(s State) string {
				return RenderResolutionOptions(s.Catalog, s.Current, s.Initial)
			},
			UploadURL: func(s State) string {
				return template.JSEscapeString(s.UploadURL)
			},
		},
	}
}

// Expand はプレースホルダを置換文字列に変換する。未知の名前は空文字列になる
func (r *Renderer) Expand(name string, s State) string {
	fn, ok := r.funcs[Placeholder(name)]
	if !ok {
		return ""
	}
	return fn(s)
}

// Render はテンプレートを置換しながら w に書き出す
func (r *Renderer) Render(w io.Writer, s State) error {
	var b strings.Builder
	b.Grow(len(r.template) + 1024)

	rest := r.template
	for {
		start := strings.IndexByte(rest, '%')
		if start == -1 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		rest = rest[start+1:]

		end := strings.IndexByte(rest, '%')
		if end == -1 {
			b.WriteByte('%')
			b.WriteString(rest)
			break
		}

		name := rest[:end]
		switch {
		case name == "":
			b.WriteByte('%')
			rest = rest[1:]
		case isPlaceholderName(name):
			b.WriteString(r.Expand(name, s))
			rest = rest[end+1:]
		default:
			// プレースホルダではないのでそのまま出力し、次の % から探し直す
			b.WriteByte('%')
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func isPlaceholderName(name string) bool {
	for _, c := range name {
		if !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}

// RenderResolutionOptions はカタログ順に <option> 要素を生成する
// current と一致する要素は selected、initial より大きい要素は disabled になる
func RenderResolutionOptions(catalog camera.ResolutionList, current, initial camera.Resolution) string {
	var b strings.Builder
	for _, r := range catalog {
		b.WriteString("<option")
		if r == current {
			b.WriteString(" selected")
		}
		if r.Greater(initial) {
			b.WriteString(" disabled")
		}
		b.WriteByte('>')
		b.WriteString(r.String())
		b.WriteString("</option>")
	}
	return b.String()
}
