package processor

import (
	"FlightDelayStats/src/utils"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 长表列名
const (
	TypeOfDelay       = "type_of_delay"
	ProportionDelayed = "proportion_delayed"
	PercentDelayed    = "percent_delayed"
)

// DefaultLabels 比例列到图例标签的映射
var DefaultLabels = map[string]string{
	ProportionLate:     "Flight delay",
	ProportionSecurity: "Security",
	ProportionWeather:  "Weather",
}

// ReshapeAirlinesData 将三个比例列转为 (type_of_delay, proportion_delayed) 行
// 输出按延误类型分块：先是所有机场的Flight delay，再是Security，最后Weather
// labels为nil时使用DefaultLabels，映射中缺失的列沿用原列名
func ReshapeAirlinesData(transformed dataframe.DataFrame, groupingVariable string, labels map[string]string) (dataframe.DataFrame, error) {
	if err := utils.RequireColumns(transformed, append([]string{groupingVariable}, ProportionColumns...)...); err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("转换长表失败: %w", err)
	}
	if labels == nil {
		labels = DefaultLabels
	}

	keys := transformed.Col(groupingVariable).Records()
	n := len(keys) * len(ProportionColumns)

	ids := make([]string, 0, n)
	types := make([]string, 0, n)
	proportions := make([]float64, 0, n)
	percents := make([]float64, 0, n)

	for _, variable := range ProportionColumns {
		label, ok := labels[variable]
		if !ok {
			label = variable
		}
		values := utils.FloatColumn(transformed, variable)
		for i, key := range keys {
			ids = append(ids, key)
			types = append(types, label)
			proportions = append(proportions, values[i])
			percents = append(percents, values[i]*100)
		}
	}

	return dataframe.New(
		series.New(ids, series.String, groupingVariable),
		series.New(types, series.String, TypeOfDelay),
		series.New(proportions, series.Float, ProportionDelayed),
		series.New(percents, series.Float, PercentDelayed),
	), nil
}
