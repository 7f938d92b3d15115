package processor

import (
	"FlightDelayStats/src/config"
	"FlightDelayStats/src/utils"
	"fmt"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 比例列名
const (
	ProportionLate     = "proportion_delays_late"
	ProportionSecurity = "proportion_delays_security"
	ProportionWeather  = "proportion_delays_weather"
)

// ProportionColumns 按固定顺序列出三个比例列
var ProportionColumns = []string{ProportionLate, ProportionSecurity, ProportionWeather}

// SummariseAirlinesData 按分组列汇总航班总数与三类延误数
// 结果按分组键升序排列，每个键一行；缺失的数值不计入求和，分组键缺失或为空的行丢弃
func SummariseAirlinesData(df dataframe.DataFrame, groupingVariable string, cols config.Columns) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("输入数据无效: %w", df.Err)
	}

	counts := cols.Counts()
	if err := utils.RequireColumns(df, append([]string{groupingVariable}, counts...)...); err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("汇总失败: %w", err)
	}

	values := make([][]float64, len(counts))
	for i, name := range counts {
		values[i] = utils.FloatColumn(df, name)
	}

	// 不用gota的GroupBy：其结果列名带_SUM后缀、分组顺序不固定，且求和不跳过NaN
	keyCol := df.Col(groupingVariable)
	groups := make(map[string][][]float64)
	var keys []string
	for row := 0; row < df.Nrow(); row++ {
		el := keyCol.Elem(row)
		if el.IsNA() {
			continue
		}
		key := el.String()
		if strings.TrimSpace(key) == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = make([][]float64, len(counts))
			keys = append(keys, key)
		}
		for i := range counts {
			g[i] = append(g[i], values[i][row])
		}
		groups[key] = g
	}
	sort.Strings(keys)

	sums := make([][]float64, len(counts))
	for i := range sums {
		sums[i] = make([]float64, len(keys))
	}
	for k, key := range keys {
		for i, vs := range groups[key] {
			sums[i][k] = utils.SumSkipNaN(vs)
		}
	}

	cs := make([]series.Series, 0, len(counts)+1)
	cs = append(cs, series.New(keys, series.String, groupingVariable))
	for i, name := range counts {
		cs = append(cs, series.New(sums[i], series.Float, name))
	}
	return dataframe.New(cs...), nil
}

// withProportions 在汇总表上追加三个比例列，总数为0时结果为NaN(或Inf)，不做保护
func withProportions(summary dataframe.DataFrame, cols config.Columns) dataframe.DataFrame {
	total := utils.FloatColumn(summary, cols.FlightsTotal)
	ratio := func(name string) []float64 {
		num := utils.FloatColumn(summary, name)
		out := make([]float64, len(num))
		for i := range num {
			out[i] = num[i] / total[i]
		}
		return out
	}

	return summary.Mutate(series.New(ratio(cols.Late), series.Float, ProportionLate)).
		Mutate(series.New(ratio(cols.Security), series.Float, ProportionSecurity)).
		Mutate(series.New(ratio(cols.Weather), series.Float, ProportionWeather))
}

// TransformAirlinesData 汇总后计算三类延误占比，只保留分组列和比例列
func TransformAirlinesData(df dataframe.DataFrame, groupingVariable string, cols config.Columns) (dataframe.DataFrame, error) {
	summary, err := SummariseAirlinesData(df, groupingVariable, cols)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return selectProportions(withProportions(summary, cols), groupingVariable), nil
}

func selectProportions(df dataframe.DataFrame, groupingVariable string) dataframe.DataFrame {
	return df.Select(append([]string{groupingVariable}, ProportionColumns...))
}
