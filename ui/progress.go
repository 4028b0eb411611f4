package ui

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
)

// BarReporter renders download progress with a terminal progress bar.
// It satisfies the download pipeline's progress capability; a nil bar
// between Start and Done calls is tolerated.
type BarReporter struct {
	bar *progressbar.ProgressBar
}

// NewBarReporter builds an idle reporter; the bar appears on Start.
func NewBarReporter() *BarReporter {
	return &BarReporter{}
}

func (r *BarReporter) Start(label string, total int64) {
	r.bar = progressbar.NewOptions64(
		total, // -1 renders a spinner
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", label)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(500*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetPredictTime(false),
	)
}

func (r *BarReporter) Advance(n int64) {
	if r.bar != nil {
		_ = r.bar.Add64(n)
	}
}

func (r *BarReporter) Done() {
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
}
