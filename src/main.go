package main

import (
	"FlightDelayStats/src/app"
	"FlightDelayStats/src/chart"
	"FlightDelayStats/src/config"
	"FlightDelayStats/src/storage"
	"FlightDelayStats/src/viewer"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// 图表窗口按96dpi换算像素
const screenDPI = 96

type flags struct {
	configDir string
	dataFile  string
	pngPath   string
	xlsxPath  string
	watch     bool
	noWindow  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "delays",
		Short: "按机场统计航班延误类型占比并绘制柱状图",
		Long: `读取航班延误统计表(csv/xlsx)，按机场汇总航班总数与延误数，
计算Flight delay、Security、Weather三类延误占比并绘制分组柱状图。`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.configDir, "config", "./config", "配置文件目录(config.json, dataconfig.json)")
	cmd.Flags().StringVar(&f.dataFile, "data", "", "输入数据文件，覆盖配置中的data_file")
	cmd.Flags().StringVar(&f.pngPath, "png", "", "将图表保存为PNG，不打开窗口")
	cmd.Flags().StringVar(&f.xlsxPath, "xlsx", "", "导出汇总表和长表到xlsx")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "输入文件变化时重新生成图表")
	cmd.Flags().BoolVar(&f.noWindow, "no-window", false, "不打开图表窗口")
	return cmd
}

func run(ctx context.Context, f flags) error {
	_ = godotenv.Load(".env")

	cfg, dcfg, err := config.LoadConfig(f.configDir, "config.json", "dataconfig.json")
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if f.dataFile != "" {
		cfg.DataFile = f.dataFile
	}

	logger, err := storage.NewLogger(cfg.LogName, storage.ParseLevel(cfg.LogLevel))
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return err
	}
	defer logger.Close()

	a := app.New(cfg, dcfg, logger)
	if err := a.Process(cfg.DataFile); err != nil {
		logger.Error("处理数据失败", zap.String("file", cfg.DataFile), zap.Error(err))
		return err
	}
	a.PrintSummary(os.Stdout)

	if f.watch || cfg.Schedule != "" {
		pngPath := f.pngPath
		if pngPath == "" {
			pngPath = filepath.Join(cfg.OutputDir, "delays.png")
		}
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		setupSignalHandler(cancel, logger, cfg.LogName)
		if err := a.Serve(ctx, f.watch, pngPath, f.xlsxPath); err != nil {
			logger.Error("后台任务退出", zap.Error(err))
			return err
		}
		return nil
	}

	if err := a.WriteOutputs(f.pngPath, f.xlsxPath); err != nil {
		logger.Error("输出失败", zap.Error(err))
		return err
	}

	if f.noWindow || f.pngPath != "" {
		return nil
	}

	p, err := a.Render()
	if err != nil {
		logger.Error("绘图失败", zap.Error(err))
		return err
	}
	opts := a.ChartOptions()
	title := opts.Title
	if title == "" {
		title = "Delays by airport"
	}
	viewer.Show(title, chart.Image(p, opts.Width, opts.Height),
		float32(opts.Width.Dots(screenDPI)), float32(opts.Height.Dots(screenDPI)))
	return nil
}

// setupSignalHandler SIGINT/SIGTERM取消后台任务，SIGHUP重新打开日志文件
func setupSignalHandler(cancel context.CancelFunc, logger *storage.Logger, logName string) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGHUP:
				if err := logger.Reopen(logName); err != nil {
					log.Printf("Failed to reopen log: %v", err)
					continue
				}
				logger.Info("Received SIGHUP, log reopened")
			default:
				logger.Info("Received signal: " + sig.String() + ", shutting down...")
				signal.Stop(sigChan)
				cancel()
				return
			}
		}
	}()
}
