package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataFile  string `json:"data_file"`  // 输入数据文件(csv/xlsx)
	SheetName string `json:"sheet_name"` // xlsx输入时的工作表名
	HeaderRow int    `json:"header_row"` // xlsx标题行(从0开始)
	Encoding  string `json:"encoding"`   // csv源文件编码: utf-8/gbk/gb18030
	GroupBy   string `json:"group_by"`   // 分组列
	OutputDir string `json:"output_dir"` // 图表及导出文件目录
	Schedule  string `json:"schedule"`   // cron表达式，为空时不启用定时任务

	LogName    string `json:"log_name"`
	LogLevel   string `json:"log_level"`
	LogMaxSize string `json:"log_max_size"` // 例如 "10 * 1024 * 1024"

	Chart struct {
		Title       string  `json:"title"`
		XLabel      string  `json:"x_label"`
		YLabel      string  `json:"y_label"`
		LegendTitle string  `json:"legend_title"`
		Width       float64 `json:"width"`  // 英寸
		Height      float64 `json:"height"` // 英寸
	} `json:"chart"`

	Watch struct {
		Debounce Duration `json:"debounce"` // 文件变化后的等待时间
	} `json:"watch"`
}

// DataConfig 描述输入表的列名以及延误类型标签
type DataConfig struct {
	Columns     Columns           `json:"columns"`
	DelayLabels map[string]string `json:"delay_labels"`
}

// Columns 输入表中各计数字段对应的列名
type Columns struct {
	FlightsTotal string `json:"flights_total"`
	Late         string `json:"late"`
	Security     string `json:"security"`
	Weather      string `json:"weather"`
}

// Counts 按固定顺序返回需要求和的列
func (c Columns) Counts() []string {
	return []string{c.FlightsTotal, c.Late, c.Security, c.Weather}
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
)

// Default 返回内置默认配置
func Default() *Config {
	cfg := &Config{
		DataFile:   "data/airlines.csv",
		SheetName:  "Sheet1",
		GroupBy:    "AirportCode",
		OutputDir:  "output",
		LogName:    "app.log",
		LogLevel:   "info",
		LogMaxSize: "10 * 1024 * 1024",
	}
	cfg.Chart.Title = "Delays by airport"
	cfg.Chart.XLabel = "Airport"
	cfg.Chart.YLabel = "Percentage of total flights delayed"
	cfg.Chart.LegendTitle = "Type of delay"
	cfg.Chart.Width = 15
	cfg.Chart.Height = 6
	cfg.Watch.Debounce = Duration(500 * time.Millisecond)
	return cfg
}

// DefaultData 返回内置的列名与标签映射
func DefaultData() *DataConfig {
	return &DataConfig{
		Columns: Columns{
			FlightsTotal: "FlightsTotal",
			Late:         "NumDelaysLateAircraft",
			Security:     "NumDelaysSecurity",
			Weather:      "NumDelaysWeather",
		},
		DelayLabels: map[string]string{
			"proportion_delays_late":     "Flight delay",
			"proportion_delays_security": "Security",
			"proportion_delays_weather":  "Weather",
		},
	}
}

// LoadConfig 只加载一次配置，后续调用返回同一实例
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	applyEnv(cfg)
	return cfg, dcfg, nil
}

// readFile 读取文件，文件不存在时返回nil以使用默认配置
func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	cfg := Default()
	if len(data) > 0 {
		if err := json.Unmarshal(data, cfg); err != nil {
			errChan <- fmt.Errorf("解析Config失败: %w", err)
			return
		}
	}
	resultChan <- cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	dcfg := DefaultData()
	if len(data) > 0 {
		var parsed DataConfig
		if err := json.Unmarshal(data, &parsed); err != nil {
			errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
			return
		}
		mergeDataConfig(dcfg, &parsed)
	}
	resultChan <- dcfg
}

// mergeDataConfig 只覆盖文件中给出的字段
func mergeDataConfig(dst, src *DataConfig) {
	if src.Columns.FlightsTotal != "" {
		dst.Columns.FlightsTotal = src.Columns.FlightsTotal
	}
	if src.Columns.Late != "" {
		dst.Columns.Late = src.Columns.Late
	}
	if src.Columns.Security != "" {
		dst.Columns.Security = src.Columns.Security
	}
	if src.Columns.Weather != "" {
		dst.Columns.Weather = src.Columns.Weather
	}
	for k, v := range src.DelayLabels {
		dst.DelayLabels[k] = v
	}
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg  *Config
		dcfg *DataConfig
		errs []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, nil, combineErrors(errs)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return fmt.Errorf("配置加载遇到多个错误: %w", errors.Join(errs...))
}

// applyEnv 使用环境变量覆盖配置项
func applyEnv(cfg *Config) {
	cfg.DataFile = getEnv("DELAYS_DATA_FILE", cfg.DataFile)
	cfg.GroupBy = getEnv("DELAYS_GROUP_BY", cfg.GroupBy)
	cfg.OutputDir = getEnv("DELAYS_OUTPUT_DIR", cfg.OutputDir)
	cfg.LogLevel = getEnv("DELAYS_LOG_LEVEL", cfg.LogLevel)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// GetDelayLabel 返回比例列的显示名，未配置时沿用列名
func (dc *DataConfig) GetDelayLabel(variable string) string {
	if label, ok := dc.DelayLabels[variable]; ok {
		return label
	}
	return variable
}
