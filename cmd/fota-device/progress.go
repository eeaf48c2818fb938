package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/lab5e/nRF9160-barebone-fota/transfer"
)

const progressWidth = 50

// progressBar redraws a single status line for the running transfer.
type progressBar struct {
	out   io.Writer
	width int
}

func newProgressBar(out io.Writer, width int) *progressBar {
	return &progressBar{out: out, width: width}
}

// Render formats p as one line.
func (b *progressBar) Render(p transfer.Progress) string {
	if p.Percentage < 0 {
		return fmt.Sprintf("%-11s %d bytes", p.Phase, p.BytesWritten)
	}

	filled := int(float64(b.width) * p.Percentage / 100.0)
	if filled > b.width {
		filled = b.width
	}
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", b.width-filled)
	return fmt.Sprintf("%-11s [%s] %3.0f%% (%d/%d bytes)", p.Phase, bar, p.Percentage, p.BytesWritten, p.TotalBytes)
}

// Update writes the current line and ends it once the transfer completes.
func (b *progressBar) Update(p transfer.Progress) {
	fmt.Fprintf(b.out, "\r\033[K%s", b.Render(p))
	if p.Phase == transfer.PhaseComplete {
		fmt.Fprintln(b.out)
	}
}
