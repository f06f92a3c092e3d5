package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dirtyharryiv/iss-spotter/internal/passes"
	"github.com/dirtyharryiv/iss-spotter/internal/sensor"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7B2CBF")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	nextStyle   = cellStyle.Foreground(lipgloss.Color("229"))
)

func bearing(azimuthDeg float64) string {
	return fmt.Sprintf("%s %5.1f°", sensor.Compass(azimuthDeg), azimuthDeg)
}

// render formats a prediction as a header block and one table row per pass.
// The first row, the pass the sensor would report, is highlighted.
func render(res *passes.PredictionResult, loc *time.Location) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Visible passes for %.4f, %.4f (%.0f m)",
		res.Observer.LatitudeDeg, res.Observer.LongitudeDeg, res.Observer.ElevationM)))
	b.WriteByte('\n')
	b.WriteString(mutedStyle.Render(fmt.Sprintf("window %s to %s, min elevation %.0f°, sun below %.1f°, min %s",
		res.Window.Start.In(loc).Format(time.DateTime), res.Window.End.In(loc).Format(time.DateTime),
		res.MinElevationDeg, res.SunAltitudeThresholdDeg,
		time.Duration(res.MinDurationSeconds*float64(time.Second)))))
	b.WriteByte('\n')
	if !res.ElementsEpoch.IsZero() {
		b.WriteString(mutedStyle.Render("elements epoch " + res.ElementsEpoch.UTC().Format(time.RFC3339)))
		b.WriteByte('\n')
	}

	if len(res.Passes) == 0 {
		b.WriteString("no visible passes\n")
		return b.String()
	}

	rows := make([][]string, 0, len(res.Passes))
	for _, p := range res.Passes {
		rows = append(rows, []string{
			p.RiseTime.In(loc).Format("Mon 02 Jan 15:04:05"),
			bearing(p.RiseAzimuthDeg),
			p.CultTime.In(loc).Format("15:04:05"),
			fmt.Sprintf("%.1f°", p.CultElevationDeg),
			bearing(p.CultAzimuthDeg),
			p.SetTime.In(loc).Format("15:04:05"),
			bearing(p.SetAzimuthDeg),
			p.Duration().String(),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("Rise", "From", "Culmination", "Max el", "Toward", "Set", "To", "Duration").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == 0:
				return nextStyle
			default:
				return cellStyle
			}
		})

	b.WriteString(t.String())
	b.WriteByte('\n')
	fmt.Fprintf(&b, "passes: %d\n", len(res.Passes))
	return b.String()
}
