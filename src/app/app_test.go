package app

import (
	"FlightDelayStats/src/config"
	"FlightDelayStats/src/storage"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const airlinesCSV = `AirportCode,Year,FlightsTotal,NumDelaysLateAircraft,NumDelaysSecurity,NumDelaysWeather
ATL,2003,100,10,1,4
ATL,2004,50,5,0,2
BOS,2003,1200,60,12,30
ZZZ,2003,0,0,0,0
`

type fixture struct {
	dir  string
	data string
	cfg  *config.Config
	app  *App
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "airlines.csv")
	require.NoError(t, os.WriteFile(data, []byte(airlinesCSV), 0644))

	cfg := config.Default()
	cfg.DataFile = data
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.LogName = filepath.Join(dir, "app.log")
	cfg.Watch.Debounce = config.Duration(20 * time.Millisecond)

	logger, err := storage.NewLogger(cfg.LogName, storage.DEBUG)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	return &fixture{dir: dir, data: data, cfg: cfg, app: New(cfg, config.DefaultData(), logger)}
}

func TestProcess(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.app.Process(fx.data))

	agg := fx.app.Delays().Aggregated()
	assert.Equal(t, []string{"ATL", "BOS", "ZZZ"}, agg.Col("AirportCode").Records())
	assert.InDelta(t, 0.1, agg.Col("proportion_delays_late").Float()[0], 1e-12)
	assert.Equal(t, 9, fx.app.Delays().Long().Nrow())

	log, err := os.ReadFile(fx.cfg.LogName)
	require.NoError(t, err)
	assert.Contains(t, string(log), "数据处理完成")
	assert.Contains(t, string(log), "占比为NaN")
}

func TestProcessMissingFile(t *testing.T) {
	fx := newFixture(t)
	err := fx.app.Process(filepath.Join(fx.dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteOutputs(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.app.Process(fx.data))

	png := filepath.Join(fx.cfg.OutputDir, "delays.png")
	xlsx := filepath.Join(fx.dir, "delays.xlsx")
	require.NoError(t, fx.app.WriteOutputs(png, xlsx))

	assert.FileExists(t, png)

	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"summary", "long"}, f.GetSheetList())

	rows, err := f.GetRows("long")
	require.NoError(t, err)
	assert.Len(t, rows, 10)
	assert.Equal(t, []string{"AirportCode", "type_of_delay", "proportion_delayed", "percent_delayed"}, rows[0])
}

func TestWriteOutputsNothingRequested(t *testing.T) {
	fx := newFixture(t)
	assert.NoError(t, fx.app.WriteOutputs("", ""))
}

func TestChartOptions(t *testing.T) {
	fx := newFixture(t)
	opts := fx.app.ChartOptions()
	assert.Equal(t, "AirportCode", opts.GroupBy)
	assert.Equal(t, "Type of delay", opts.LegendTitle)
	assert.InDelta(t, 15*72.0, float64(opts.Width), 1e-9)
	assert.InDelta(t, 6*72.0, float64(opts.Height), 1e-9)
}

func TestPrintSummary(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.app.Process(fx.data))

	var buf bytes.Buffer
	fx.app.PrintSummary(&buf)
	out := buf.String()
	assert.Contains(t, out, "3 airports, 1,350 flights")
	assert.Contains(t, out, "Flight delay")
	assert.Contains(t, out, "5.56%")
}

func TestRefresh(t *testing.T) {
	fx := newFixture(t)
	png := filepath.Join(fx.cfg.OutputDir, "delays.png")
	require.NoError(t, fx.app.Refresh(fx.data, png, ""))
	assert.FileExists(t, png)
}

func TestServeStopsOnCancel(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.app.Process(fx.data))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	png := filepath.Join(fx.cfg.OutputDir, "delays.png")
	require.NoError(t, fx.app.Serve(ctx, false, png, ""))
	assert.FileExists(t, png)
}

func TestServeInvalidSchedule(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.app.Process(fx.data))
	fx.cfg.Schedule = "every now and then"

	err := fx.app.Serve(context.Background(), false, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "创建定时任务失败")
}

func TestServeWatchRerenders(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.app.Process(fx.data))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	png := filepath.Join(fx.cfg.OutputDir, "delays.png")
	done := make(chan error, 1)
	go func() { done <- fx.app.Serve(ctx, true, png, "") }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(png)
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)

	// 监控建立后追加一个机场
	time.Sleep(100 * time.Millisecond)
	updated := airlinesCSV + "DEN,2003,10,1,0,0\n"
	require.NoError(t, os.WriteFile(fx.data, []byte(updated), 0644))

	require.Eventually(t, func() bool {
		return fx.app.Delays().Metrics().Airports == 4
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve未在ctx取消后返回")
	}
}
