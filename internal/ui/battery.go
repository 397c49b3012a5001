package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
)

const batteryBarWidth = 12

// Battery renders a battery percentage as a small gradient bar.
type Battery struct {
	bar progress.Model
}

// NewBattery creates a battery gauge
func NewBattery() *Battery {
	return &Battery{
		bar: progress.New(
			progress.WithGradient("#FF5555", "#43BF6D"),
			progress.WithWidth(batteryBarWidth),
			progress.WithoutPercentage(),
		),
	}
}

// Render returns the bar followed by the percentage, or "n/a" when unknown
func (b *Battery) Render(percent *int) string {
	if percent == nil {
		return HintStyle.Render("n/a")
	}
	p := *percent
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return fmt.Sprintf("%s %3d%%", b.bar.ViewAs(float64(p)/100), p)
}
