package rqproc

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotIVCurves writes one PNG per channel with the measured current offset
// against QET bias, error bars from the offset uncertainty. Records should
// already be cleaned and sorted.
func PlotIVCurves(records []IVRecord, plotPath string) error {
	if err := EnsureDir(plotPath); err != nil {
		return err
	}

	byChannel := make(map[string][]IVRecord)
	var channels []string
	for _, r := range records {
		if _, seen := byChannel[r.Channel]; !seen {
			channels = append(channels, r.Channel)
		}
		byChannel[r.Channel] = append(byChannel[r.Channel], r)
	}

	for _, ch := range channels {
		if err := plotChannelIV(ch, byChannel[ch], plotPath); err != nil {
			return fmt.Errorf("plotting channel %s: %w", ch, err)
		}
	}
	logInfo(fmt.Sprintf("Wrote %d IV plots to %s", len(channels), plotPath), "plot")
	return nil
}

func plotChannelIV(channel string, records []IVRecord, plotPath string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("IV curve - channel %s", channel)
	p.X.Label.Text = "QET bias (uA)"
	p.Y.Label.Text = "Offset (uA)"

	pts := make(plotter.XYs, len(records))
	errs := make(plotter.YErrors, len(records))
	for i, r := range records {
		pts[i] = plotter.XY{X: r.QetBias * 1e6, Y: r.Offset * 1e6}
		errs[i].Low = r.OffsetErr * 1e6
		errs[i].High = r.OffsetErr * 1e6
	}

	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line, scatter)

	bars, err := plotter.NewYErrorBars(struct {
		plotter.XYer
		plotter.YErrorer
	}{pts, errs})
	if err != nil {
		return err
	}
	p.Add(bars)

	p.Legend.Add(channel, line)
	p.Legend.Top = true

	file := filepath.Join(plotPath, fmt.Sprintf("iv_%s.png", channel))
	return p.Save(8*vg.Inch, 6*vg.Inch, file)
}
