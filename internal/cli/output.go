package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && isTerminal(),
	}
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as indented JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Printf writes formatted text.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Println writes a line of text.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

func (o *Output) colorize(color, format string, args ...interface{}) {
	if o.colorEnabled {
		fmt.Fprintf(o.writer, color+format+ColorReset+"\n", args...)
	} else {
		fmt.Fprintf(o.writer, format+"\n", args...)
	}
}

// Success prints a green line.
func (o *Output) Success(format string, args ...interface{}) {
	o.colorize(ColorGreen, format, args...)
}

// Warn prints a yellow line.
func (o *Output) Warn(format string, args ...interface{}) {
	o.colorize(ColorYellow, format, args...)
}

// Error prints a red line.
func (o *Output) Error(format string, args ...interface{}) {
	o.colorize(ColorRed, format, args...)
}

// Dim prints a dimmed line.
func (o *Output) Dim(format string, args ...interface{}) {
	o.colorize(ColorDim, format, args...)
}

// Header prints a bold section header with an underline.
func (o *Output) Header(text string) {
	if o.colorEnabled {
		fmt.Fprintf(o.writer, "%s%s%s\n", ColorBold, text, ColorReset)
	} else {
		fmt.Fprintln(o.writer, text)
	}
	fmt.Fprintln(o.writer, strings.Repeat("-", len(text)))
}

// SignedMoney formats a value with a +/- sign and color by sign.
func (o *Output) SignedMoney(v float64) string {
	s := fmt.Sprintf("%+.2f", v)
	if !o.colorEnabled {
		return s
	}
	if v >= 0 {
		return ColorGreen + s + ColorReset
	}
	return ColorRed + s + ColorReset
}
