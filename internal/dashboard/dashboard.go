// Package dashboard renders a live terminal view of a bot's telemetry
// directory. It runs in the monitoring process and talks to the bot only
// through the files the reader package consumes.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/tickerbeat/telemetry/reader"
	"github.com/tickerbeat/telemetry/schema"
)

// Options holds display configuration.
type Options struct {
	// DataDir is shown in the header so operators know which bot they
	// are watching.
	DataDir string
	// PollInterval defaults to one second.
	PollInterval time.Duration
	// CycleTimer names the timer series charted in the sparkline.
	CycleTimer string
}

// Dashboard polls a Reader and renders its documents with termui.
type Dashboard struct {
	rd           *reader.Reader
	opts         Options
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid         *ui.Grid
	headerPara   *widgets.Paragraph
	countersList *widgets.List
	gaugesList   *widgets.List
	signalsList  *widgets.List
	errorsList   *widgets.List
	cycleSparkle *widgets.SparklineGroup
	footerPara   *widgets.Paragraph

	cycleHistory []float64
	pollLatency  *hdrhistogram.Histogram
	lastChange   time.Time
	startTime    time.Time
}

// New creates a Dashboard over a telemetry root.
func New(rd *reader.Reader, opts Options, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.CycleTimer == "" {
		opts.CycleTimer = "cycle.duration"
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		rd:           rd,
		opts:         opts,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		cycleHistory: make([]float64, 0, 100),
		// Poll latencies from 1µs to 10s with 3 significant figures.
		pollLatency: hdrhistogram.New(1, 10_000_000, 3),
		startTime:   time.Now(),
	}

	d.initWidgets()
	d.setupGrid()
	return d, nil
}

func (d *Dashboard) initWidgets() {
	d.headerPara = widgets.NewParagraph()
	d.headerPara.Title = "Bot Telemetry"
	d.headerPara.Text = "Waiting for manifest..."
	d.headerPara.BorderStyle.Fg = ui.ColorCyan

	d.countersList = widgets.NewList()
	d.countersList.Title = "Counters"
	d.countersList.Rows = []string{"No data"}
	d.countersList.TextStyle = ui.NewStyle(ui.ColorGreen)
	d.countersList.BorderStyle.Fg = ui.ColorCyan

	d.gaugesList = widgets.NewList()
	d.gaugesList.Title = "Gauges"
	d.gaugesList.Rows = []string{"No data"}
	d.gaugesList.TextStyle = ui.NewStyle(ui.ColorGreen)
	d.gaugesList.BorderStyle.Fg = ui.ColorCyan

	d.signalsList = widgets.NewList()
	d.signalsList.Title = "Recent Signals"
	d.signalsList.Rows = []string{"None"}
	d.signalsList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.signalsList.BorderStyle.Fg = ui.ColorCyan

	d.errorsList = widgets.NewList()
	d.errorsList.Title = "Recent Errors"
	d.errorsList.Rows = []string{"None"}
	d.errorsList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorsList.BorderStyle.Fg = ui.ColorCyan

	sparkline := widgets.NewSparkline()
	sparkline.Title = "Cycle Duration (s)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}
	d.cycleSparkle = widgets.NewSparklineGroup(sparkline)
	d.cycleSparkle.Title = "Cycle Duration"
	d.cycleSparkle.BorderStyle.Fg = ui.ColorCyan

	d.footerPara = widgets.NewParagraph()
	d.footerPara.Border = false
	d.footerPara.Text = "q: quit"
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.12,
			ui.NewCol(1.0, d.headerPara),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.5, d.countersList),
			ui.NewCol(0.5, d.gaugesList),
		),
		ui.NewRow(0.22,
			ui.NewCol(1.0, d.cycleSparkle),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.5, d.signalsList),
			ui.NewCol(0.5, d.errorsList),
		),
		ui.NewRow(0.06,
			ui.NewCol(1.0, d.footerPara),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give the terminal time to restore.
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.update()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes widget data from the on-disk documents. The manifest
// mtime gates the heavier reads: an idle bot costs one stat per tick.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	changed := d.rd.HasUpdates()
	if changed {
		d.lastChange = time.Now()
	}

	manifest := d.rd.Manifest(false)
	metrics := d.rd.Metrics(false)

	d.headerPara.Text = fmt.Sprintf(
		"Dir: %s\nSignals: %d | Cycles: %d | Errors: %d\nLast Update: %s | Watching: %s",
		d.opts.DataDir,
		manifest.SignalCount,
		manifest.CycleCount,
		manifest.ErrorCount,
		manifest.LastUpdated,
		time.Since(d.startTime).Round(time.Second),
	)

	d.countersList.Rows = counterRows(metrics.Counters)
	d.gaugesList.Rows = gaugeRows(metrics.Gauges)

	if changed {
		d.signalsList.Rows = recordRows(d.rd.RecentSignals(10))
		d.errorsList.Rows = recordRows(d.rd.RecentErrors(10))

		if timer, ok := metrics.Timers[d.opts.CycleTimer]; ok && timer.Stats.Count > 0 {
			d.cycleHistory = append(d.cycleHistory, timer.Stats.Mean)
			if len(d.cycleHistory) > 100 {
				d.cycleHistory = d.cycleHistory[1:]
			}
			d.cycleSparkle.Sparklines[0].Data = d.cycleHistory
			d.cycleSparkle.Title = fmt.Sprintf(
				"Cycle Duration | Mean: %.3fs | Max: %.3fs",
				timer.Stats.Mean,
				timer.Stats.Max,
			)
		}
	}

	us := time.Since(start).Microseconds()
	if us < 1 {
		us = 1
	}
	if us > d.pollLatency.HighestTrackableValue() {
		us = d.pollLatency.HighestTrackableValue()
	}
	_ = d.pollLatency.RecordValue(us)

	d.footerPara.Text = fmt.Sprintf(
		"q: quit | poll p50 %s p99 %s | last change %s ago",
		time.Duration(d.pollLatency.ValueAtQuantile(50))*time.Microsecond,
		time.Duration(d.pollLatency.ValueAtQuantile(99))*time.Microsecond,
		sinceLabel(d.lastChange),
	)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

func sinceLabel(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return time.Since(t).Round(time.Second).String()
}

func counterRows(counters map[string]schema.CounterDoc) []string {
	if len(counters) == 0 {
		return []string{"No data"}
	}
	keys := make([]string, 0, len(counters))
	for key := range counters {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counters[keys[i]].Value == counters[keys[j]].Value {
			return keys[i] < keys[j]
		}
		return counters[keys[i]].Value > counters[keys[j]].Value
	})
	rows := make([]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, fmt.Sprintf("%s: %s", key, formatValue(counters[key].Value)))
	}
	return rows
}

func gaugeRows(gauges map[string]schema.GaugeDoc) []string {
	if len(gauges) == 0 {
		return []string{"No data"}
	}
	keys := make([]string, 0, len(gauges))
	for key := range gauges {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, fmt.Sprintf("%s: %s", key, formatValue(gauges[key].Value)))
	}
	return rows
}

// recordRows renders records one per row: timestamp plus a compact field
// summary.
func recordRows(records []schema.Record) []string {
	if len(records) == 0 {
		return []string{"None"}
	}
	rows := make([]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, fmt.Sprintf("%s %s", rec.Timestamp, summarizeFields(rec.Fields)))
	}
	return rows
}

// summarizeFields renders a field map as "k=v k=v", keys sorted, trimmed
// to fit a list row.
func summarizeFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", key, formatFieldValue(fields[key])))
	}
	line := strings.Join(parts, " ")
	if len(line) > 80 {
		line = line[:77] + "..."
	}
	return line
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func formatFieldValue(v any) string {
	switch val := v.(type) {
	case float64:
		return formatValue(val)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
