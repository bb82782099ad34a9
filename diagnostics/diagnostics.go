// Package diagnostics renders and collects categorised compiler messages:
// a message kind, source position, and explanatory phrase, with a
// pterm-based coloured banner and source-excerpt display grounded on
// ComedicChimera-chai's logging package.
package diagnostics

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pterm/pterm"
)

// Kind is one of the compiler's four error categories.
type Kind int

const (
	Lexical Kind = iota
	Syntactic
	Semantic
	Runtime
)

var kindNames = map[Kind]string{
	Lexical:   "Lexical",
	Syntactic: "Syntactic",
	Semantic:  "Semantic",
	Runtime:   "Runtime",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Unknown"
}

// Severity distinguishes a hard error from a warning — only errors halt the
// pipeline; execution never starts if the error list is non-empty at
// codegen.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Position is a 1-based line/column source location.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Diagnostic is a single categorised message with source position.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Message  string
	Pos      Position
	Filename string
}

func (d Diagnostic) IsError() bool { return d.Severity == SeverityError }

// Sink collects diagnostics during compilation. Mirrors
// ComedicChimera-chai/src/logging.Logger's mutex-guarded error/warning
// split: errors print immediately as they're reported, warnings buffer
// until Flush.
type Sink struct {
	mu       sync.Mutex
	source   string
	filename string
	errors   []Diagnostic
	warnings []Diagnostic
	silent   bool
}

// NewSink creates a Sink that can render source excerpts from src.
func NewSink(filename, src string) *Sink {
	return &Sink{filename: filename, source: src}
}

// Silent returns a Sink that collects but never prints — used by tests and
// by embedding callers that want to inspect diagnostics themselves.
func Silent() *Sink { return &Sink{silent: true} }

func (s *Sink) Report(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Filename = s.filename
	for _, seen := range append(s.errors[:len(s.errors):len(s.errors)], s.warnings...) {
		if seen == d {
			return
		}
	}
	if d.IsError() {
		s.errors = append(s.errors, d)
		if !s.silent {
			s.display(d)
		}
	} else {
		s.warnings = append(s.warnings, d)
	}
}

func (s *Sink) Errorf(kind Kind, pos Position, format string, args ...any) {
	s.Report(Diagnostic{Kind: kind, Severity: SeverityError, Message: fmt.Sprintf(format, args...), Pos: pos})
}

func (s *Sink) Warnf(kind Kind, pos Position, format string, args ...any) {
	s.Report(Diagnostic{Kind: kind, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), Pos: pos})
}

// HasErrors reports whether any error-severity diagnostic was reported.
func (s *Sink) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errors) > 0
}

// All returns every collected diagnostic, errors first, in report order.
func (s *Sink) All() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Diagnostic, 0, len(s.errors)+len(s.warnings))
	out = append(out, s.errors...)
	out = append(out, s.warnings...)
	return out
}

// Flush prints buffered warnings and a closing summary line.
func (s *Sink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.silent {
		return
	}
	for _, w := range s.warnings {
		s.display(w)
	}
	displayFinished(len(s.errors) == 0, len(s.errors), len(s.warnings))
}

var (
	errorStyle = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	warnStyle  = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	infoColor  = pterm.FgLightCyan
	errColor   = pterm.FgRed
	warnColor  = pterm.FgYellow
	okColor    = pterm.FgLightGreen
)

func (s *Sink) display(d Diagnostic) {
	fmt.Println()
	style := errorStyle
	label := d.Kind.String() + " Error"
	if !d.IsError() {
		style = warnStyle
		label = d.Kind.String() + " Warning"
	}
	style.Print(label)
	fmt.Print(" ")
	name := s.filename
	if name == "" {
		name = "<standard-input>"
	}
	infoColor.Println(name + ":" + d.Pos.String())
	fmt.Println(d.Message)

	if s.source != "" {
		s.displayExcerpt(d.Pos)
	}
}

// displayExcerpt prints the offending source line with a caret underline,
// grounded on ComedicChimera-chai/src/logging/display.go's
// displayCodeSelection.
func (s *Sink) displayExcerpt(pos Position) {
	sc := bufio.NewScanner(strings.NewReader(s.source))
	var line string
	for n := 1; sc.Scan(); n++ {
		if n == pos.Line {
			line = sc.Text()
			break
		}
	}
	if line == "" {
		return
	}
	width := len(strconv.Itoa(pos.Line)) + 1
	fmtStr := "%-" + strconv.Itoa(width) + "v"
	infoColor.Print(fmt.Sprintf(fmtStr, pos.Line))
	fmt.Print("|  ")
	fmt.Println(line)

	fmt.Print(strings.Repeat(" ", width), "|  ")
	col := pos.Column - 1
	if col < 0 {
		col = 0
	}
	if col > len(line) {
		col = len(line)
	}
	fmt.Print(strings.Repeat(" ", col))
	errColor.Println("^")
}

func displayFinished(success bool, errCount, warnCount int) {
	fmt.Print("\n")
	if success {
		okColor.Print("done ")
	} else {
		errColor.Print("failed ")
	}
	fmt.Print("(")
	if errCount == 0 {
		okColor.Print(0)
	} else {
		errColor.Print(errCount)
	}
	fmt.Print(" errors, ")
	if warnCount == 0 {
		okColor.Print(0)
	} else {
		warnColor.Print(warnCount)
	}
	fmt.Println(" warnings)")
}
