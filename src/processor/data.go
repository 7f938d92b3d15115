// data.go
package processor

import (
	"FlightDelayStats/src/config"
	"FlightDelayStats/src/utils"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
)

type DataProcess interface {
	DataProcessFunc(*dataframe.DataFrame) error
}

// Metrics 整体统计，用于日志输出
type Metrics struct {
	Airports       int
	FlightsTotal   float64
	DelaysLate     float64
	DelaysSecurity float64
	DelaysWeather  float64
	NaNAirports    int // 航班总数为0导致比例无定义的分组数
	UpdatedAt      time.Time
}

// Proportion 返回整体延误占比
func (m Metrics) Proportion(delays float64) float64 {
	return delays / m.FlightsTotal
}

// AirportDelays 保存最近一次处理得到的汇总表和长表
type AirportDelays struct {
	GroupBy string
	Columns config.Columns
	Labels  map[string]string

	summary    dataframe.DataFrame // 汇总计数 + 比例
	aggregated dataframe.DataFrame // 分组列 + 比例
	long       dataframe.DataFrame
	metrics    Metrics
	mu         sync.RWMutex
}

func NewAirportDelays(groupBy string, dcfg *config.DataConfig) *AirportDelays {
	return &AirportDelays{
		GroupBy: groupBy,
		Columns: dcfg.Columns,
		Labels:  dcfg.DelayLabels,
	}
}

// DataProcessFunc 汇总、计算占比并转换为长表
func (a *AirportDelays) DataProcessFunc(data *dataframe.DataFrame) error {
	if data == nil {
		return fmt.Errorf("输入数据为空")
	}

	summary, err := SummariseAirlinesData(*data, a.GroupBy, a.Columns)
	if err != nil {
		return err
	}
	summary = withProportions(summary, a.Columns)
	aggregated := selectProportions(summary, a.GroupBy)

	long, err := ReshapeAirlinesData(aggregated, a.GroupBy, a.Labels)
	if err != nil {
		return err
	}

	metrics := a.calculateMetrics(summary)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary = summary
	a.aggregated = aggregated
	a.long = long
	a.metrics = metrics
	return nil
}

func (a *AirportDelays) calculateMetrics(summary dataframe.DataFrame) Metrics {
	totals := utils.FloatColumn(summary, a.Columns.FlightsTotal)
	m := Metrics{
		Airports:       summary.Nrow(),
		FlightsTotal:   utils.SumSkipNaN(totals),
		DelaysLate:     utils.SumSkipNaN(utils.FloatColumn(summary, a.Columns.Late)),
		DelaysSecurity: utils.SumSkipNaN(utils.FloatColumn(summary, a.Columns.Security)),
		DelaysWeather:  utils.SumSkipNaN(utils.FloatColumn(summary, a.Columns.Weather)),
		UpdatedAt:      time.Now(),
	}
	for _, p := range utils.FloatColumn(summary, ProportionLate) {
		if math.IsNaN(p) {
			m.NaNAirports++
		}
	}
	return m
}

func (a *AirportDelays) Summary() dataframe.DataFrame {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.summary
}

func (a *AirportDelays) Aggregated() dataframe.DataFrame {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.aggregated
}

func (a *AirportDelays) Long() dataframe.DataFrame {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.long
}

func (a *AirportDelays) Metrics() Metrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.metrics
}
