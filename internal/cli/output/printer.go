package output

import (
	"fmt"
	"io"

	"github.com/marmos91/cfmgr/pkg/envelope"
)

// Printer writes command output in one Format.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

// NewPrinter returns a Printer. color only affects status messages.
func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{out: out, format: format, color: color}
}

func (p *Printer) Format() Format {
	return p.format
}

// Print writes data in the printer's format. Tables need a TableRenderer;
// anything else falls back to JSON.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintYAML(p.out, data)
	case FormatTable:
		if t, ok := data.(TableRenderer); ok {
			return PrintTable(p.out, t)
		}
		return PrintJSON(p.out, data)
	}
	return fmt.Errorf("unknown format: %s", p.format)
}

// PrintResult prints a manager result. JSON and YAML print res, the whole
// envelope; tables print table followed by the meta summary.
func (p *Printer) PrintResult(table TableRenderer, res any, meta *envelope.Meta) error {
	if p.format != FormatTable {
		return p.Print(res)
	}
	if err := PrintTable(p.out, table); err != nil {
		return err
	}
	if meta != nil {
		p.Printf("\n%s\n", Summary(meta))
	}
	return nil
}

func (p *Printer) Println(args ...any) {
	_, _ = fmt.Fprintln(p.out, args...)
}

func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

const (
	ansiGreen  = "32"
	ansiRed    = "31"
	ansiYellow = "33"
)

func (p *Printer) Success(msg string) { p.status(ansiGreen, msg) }
func (p *Printer) Error(msg string)   { p.status(ansiRed, msg) }
func (p *Printer) Warning(msg string) { p.status(ansiYellow, msg) }

func (p *Printer) status(code, msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "\033[%sm%s\033[0m\n", code, msg)
		return
	}
	_, _ = fmt.Fprintln(p.out, msg)
}
