package ui

import (
	"fmt"
	"io"
	"os"
)

// Printer writes UI components to an output stream.
// Commands print through a Printer so tests can capture the output.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params ...Detail) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details ...Detail) {
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details ...Detail) {
	p.Println(NewWarningResult(title, details...).SetWidth(p.width).Render())
}

// PrintError prints an error result box with a troubleshooting hint
func (p *Printer) PrintError(title string, err error, hint string) {
	p.Println(NewFailureResult(title, err, hint).SetWidth(p.width).Render())
}

// PrintResult prints a prepared result box
func (p *Printer) PrintResult(r *Result) {
	p.Println(r.SetWidth(p.width).Render())
}

// PrintMowerList prints the mower list table
func (p *Printer) PrintMowerList(rows []MowerRow) {
	p.Println(RenderMowerList(rows))
}

// PrintMowerStatus prints the mower status table
func (p *Printer) PrintMowerStatus(rows []MowerRow) {
	p.Println(RenderMowerStatus(rows))
}

// PrintEventLine prints one line of the plain event log
func (p *Printer) PrintEventLine(line EventLine) {
	p.Println(line.Render())
}
