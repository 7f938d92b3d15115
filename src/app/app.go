package app

import (
	"FlightDelayStats/src/chart"
	"FlightDelayStats/src/config"
	"FlightDelayStats/src/datasource/file"
	"FlightDelayStats/src/processor"
	"FlightDelayStats/src/storage"
	"FlightDelayStats/src/utils"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// App 串联 读取 -> 汇总 -> 长表 -> 绘图 的流程
type App struct {
	cfg    *config.Config
	dcfg   *config.DataConfig
	logger *storage.Logger
	delays *processor.AirportDelays
	mu     sync.Mutex // 串行化监控与定时任务触发的刷新
}

func New(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) *App {
	return &App{
		cfg:    cfg,
		dcfg:   dcfg,
		logger: logger,
		delays: processor.NewAirportDelays(cfg.GroupBy, dcfg),
	}
}

// Delays 返回最近一次处理结果
func (a *App) Delays() *processor.AirportDelays {
	return a.delays
}

func (a *App) loadOptions() file.Options {
	return file.Options{
		GroupBy:        a.cfg.GroupBy,
		NumericColumns: a.dcfg.Columns.Counts(),
		Encoding:       a.cfg.Encoding,
		SheetName:      a.cfg.SheetName,
		HeaderRow:      a.cfg.HeaderRow,
	}
}

// Process 读取输入文件并刷新汇总结果
func (a *App) Process(dataFile string) error {
	t1 := time.Now()

	df, err := file.Load(dataFile, a.loadOptions())
	if err != nil {
		return err
	}
	if err := a.delays.DataProcessFunc(&df); err != nil {
		return err
	}

	m := a.delays.Metrics()
	a.logger.Info("数据处理完成",
		zap.String("file", dataFile),
		zap.Int("rows", df.Nrow()),
		zap.Int("airports", m.Airports),
		zap.Float64("flights", m.FlightsTotal),
		zap.Duration("elapsed", time.Since(t1)))
	if m.NaNAirports > 0 {
		a.logger.Warning(fmt.Sprintf("%d个分组航班总数为0，占比为NaN", m.NaNAirports))
	}
	return nil
}

// ChartOptions 由配置生成图表参数
func (a *App) ChartOptions() chart.Options {
	c := a.cfg.Chart
	return chart.Options{
		GroupBy:     a.cfg.GroupBy,
		Title:       c.Title,
		XLabel:      c.XLabel,
		YLabel:      c.YLabel,
		LegendTitle: c.LegendTitle,
		Width:       vg.Length(c.Width) * vg.Inch,
		Height:      vg.Length(c.Height) * vg.Inch,
	}
}

// Render 用最近一次的长表生成图表
func (a *App) Render() (*plot.Plot, error) {
	p, nonFinite, err := chart.NewBarChart(a.delays.Long(), a.ChartOptions())
	if err != nil {
		return nil, err
	}
	if nonFinite > 0 {
		a.logger.Warning(fmt.Sprintf("%d个百分比不是有限值，按0绘制", nonFinite))
	}
	return p, nil
}

// WriteOutputs 保存PNG和/或xlsx，路径为空则跳过
func (a *App) WriteOutputs(pngPath, xlsxPath string) error {
	if pngPath != "" {
		p, err := a.Render()
		if err != nil {
			return err
		}
		opts := a.ChartOptions()
		if err := chart.SavePNG(p, pngPath, opts.Width, opts.Height); err != nil {
			return err
		}
		a.logger.Info("图表已保存", zap.String("path", pngPath))
	}

	if xlsxPath != "" {
		err := utils.SaveToExcel(xlsxPath,
			utils.NamedFrame{Sheet: "summary", Data: a.delays.Summary()},
			utils.NamedFrame{Sheet: "long", Data: a.delays.Long()},
		)
		if err != nil {
			return err
		}
		a.logger.Info("数据已导出", zap.String("path", xlsxPath))
	}
	return nil
}

// Refresh 重新读取输入并写出文件，供监控与定时任务调用
func (a *App) Refresh(dataFile, pngPath, xlsxPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.Process(dataFile); err != nil {
		return err
	}
	if err := a.WriteOutputs(pngPath, xlsxPath); err != nil {
		return err
	}
	if err := a.logger.CheckRotate(a.cfg); err != nil {
		a.logger.Warning("日志轮转失败: " + err.Error())
	}
	return nil
}

func (a *App) refreshAndLog(trigger, pngPath, xlsxPath string) {
	if err := a.Refresh(a.cfg.DataFile, pngPath, xlsxPath); err != nil {
		a.logger.Error("刷新失败", zap.String("trigger", trigger), zap.Error(err))
	}
}

// Serve 在后台按文件变化和/或cron表达式刷新输出，直到ctx取消
func (a *App) Serve(ctx context.Context, watch bool, pngPath, xlsxPath string) error {
	if err := a.WriteOutputs(pngPath, xlsxPath); err != nil {
		return err
	}

	if a.cfg.Schedule != "" {
		c := cron.New()
		err := c.AddFunc(a.cfg.Schedule, func() {
			a.refreshAndLog("schedule", pngPath, xlsxPath)
		})
		if err != nil {
			return fmt.Errorf("创建定时任务失败: %w", err)
		}
		c.Start()
		defer c.Stop()
		a.logger.Info(fmt.Sprintf("定时任务已启动(%s)", a.cfg.Schedule))
	}

	if !watch {
		<-ctx.Done()
		return nil
	}

	monitor, err := file.NewFileMonitor(a.cfg.DataFile, time.Duration(a.cfg.Watch.Debounce))
	if err != nil {
		return fmt.Errorf("创建文件监控失败: %w", err)
	}
	defer monitor.Close()

	a.logger.Info("开始监控输入文件", zap.String("path", monitor.Target()))
	return monitor.Watch(ctx, func(string) {
		a.refreshAndLog("watch", pngPath, xlsxPath)
	})
}

// PrintSummary 输出整体统计
func (a *App) PrintSummary(w io.Writer) {
	m := a.delays.Metrics()
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "%d airports, %.0f flights\n", m.Airports, m.FlightsTotal)
	for _, row := range []struct {
		label  string
		delays float64
	}{
		{a.dcfg.GetDelayLabel(processor.ProportionLate), m.DelaysLate},
		{a.dcfg.GetDelayLabel(processor.ProportionSecurity), m.DelaysSecurity},
		{a.dcfg.GetDelayLabel(processor.ProportionWeather), m.DelaysWeather},
	} {
		p.Fprintf(w, "  %-14s %10.0f  %6.2f%%\n", row.label, row.delays, m.Proportion(row.delays)*100)
	}
}
