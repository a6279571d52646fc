// Package highlight decorates the SQL statement a taosws-cli user passes
// with -sql with ANSI terminal colors before it's echoed back and
// sent over the wire — the one piece of the teacher's highlighting surface
// that still applies once there's no EXPLAIN plan to render.
package highlight

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const defaultStyle = "monokai"

var (
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
)

func init() {
	lexer = lexers.Get("sql")
	formatter = formatters.Get("terminal256")
	style = styles.Get(defaultStyle)
}

// SetStyle swaps the chroma style SQL renders with, so taosws-cli's
// -style flag can pick a different terminal theme. An unrecognized name
// is ignored, leaving whatever style was already in effect.
func SetStyle(name string) {
	if s := styles.Get(name); s != nil {
		style = s
	}
}

// SQL returns the input with ANSI terminal syntax highlighting applied.
// On empty input, or if the sql lexer/terminal256 formatter failed to
// load, the original string is returned unchanged rather than risk
// garbling the statement the CLI is about to send.
func SQL(s string) string {
	if s == "" || lexer == nil || formatter == nil {
		return s
	}

	iterator, err := lexer.Tokenise(nil, s)
	if err != nil {
		return s
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return s
	}

	return strings.TrimRight(buf.String(), "\n")
}
