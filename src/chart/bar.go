// Package chart 将长表绘制为按延误类型分组的柱状图
package chart

import (
	"FlightDelayStats/src/processor"
	"FlightDelayStats/src/utils"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const maxBarWidth = vg.Length(18)

// Options 图表文字与尺寸
type Options struct {
	GroupBy     string
	Title       string
	XLabel      string
	YLabel      string
	LegendTitle string
	Width       vg.Length
	Height      vg.Length
}

func DefaultOptions() Options {
	return Options{
		GroupBy:     "AirportCode",
		XLabel:      "Airport",
		YLabel:      "Percentage of total flights delayed",
		LegendTitle: "Type of delay",
		Width:       15 * vg.Inch,
		Height:      6 * vg.Inch,
	}
}

// Grouped 长表按 (延误类型, 机场) 展开后的矩阵
type Grouped struct {
	Categories []string    // X轴上的机场，升序
	Types      []string    // 延误类型，按长表中首次出现的顺序
	Values     [][]float64 // Values[type][category]，非有限值已替换为0
	NonFinite  int         // 被替换的NaN/Inf个数
}

// GroupLong 把长表整理为绘图所需的矩阵
func GroupLong(long dataframe.DataFrame, groupBy string) (Grouped, error) {
	if err := utils.RequireColumns(long, groupBy, processor.TypeOfDelay, processor.PercentDelayed); err != nil {
		return Grouped{}, fmt.Errorf("绘图数据不完整: %w", err)
	}

	keys := long.Col(groupBy).Records()
	types := long.Col(processor.TypeOfDelay).Records()
	percents := long.Col(processor.PercentDelayed).Float()

	var g Grouped
	seenCat := make(map[string]bool)
	typeIdx := make(map[string]int)
	for i := range keys {
		if !seenCat[keys[i]] {
			seenCat[keys[i]] = true
			g.Categories = append(g.Categories, keys[i])
		}
		if _, ok := typeIdx[types[i]]; !ok {
			typeIdx[types[i]] = len(g.Types)
			g.Types = append(g.Types, types[i])
		}
	}
	sort.Strings(g.Categories)
	if len(g.Categories) == 0 {
		return Grouped{}, fmt.Errorf("没有可绘制的数据")
	}

	catIdx := make(map[string]int, len(g.Categories))
	for i, c := range g.Categories {
		catIdx[c] = i
	}

	g.Values = make([][]float64, len(g.Types))
	for i := range g.Values {
		g.Values[i] = make([]float64, len(g.Categories))
	}
	for i := range keys {
		v := percents[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			g.NonFinite++
			v = 0
		}
		g.Values[typeIdx[types[i]]][catIdx[keys[i]]] = v
	}
	return g, nil
}

// NewBarChart 生成分组柱状图，返回图表及被置零的非有限值个数
func NewBarChart(long dataframe.DataFrame, opts Options) (*plot.Plot, int, error) {
	g, err := GroupLong(long, opts.GroupBy)
	if err != nil {
		return nil, 0, err
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Y.Min = 0

	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	p.Add(grid)

	w := barWidth(opts.Width, len(g.Categories), len(g.Types))
	p.Legend.Top = true
	if opts.LegendTitle != "" {
		p.Legend.Add(opts.LegendTitle)
	}

	center := float64(len(g.Types)-1) / 2
	for i, typ := range g.Types {
		bars, err := plotter.NewBarChart(plotter.Values(g.Values[i]), w)
		if err != nil {
			return nil, 0, fmt.Errorf("创建柱状图%s失败: %w", typ, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = vg.Length(float64(i)-center) * w
		p.Add(bars)
		p.Legend.Add(typ, bars)
	}

	p.NominalX(g.Categories...)
	return p, g.NonFinite, nil
}

// barWidth 每组柱子占类别间距的80%，并限制最大宽度
func barWidth(width vg.Length, categories, types int) vg.Length {
	if categories == 0 || types == 0 {
		return maxBarWidth
	}
	w := width * 0.8 / vg.Length(categories*types)
	if w > maxBarWidth {
		return maxBarWidth
	}
	return w
}

// Image 将图表栅格化
func Image(p *plot.Plot, width, height vg.Length) image.Image {
	c := vgimg.New(width, height)
	p.Draw(draw.New(c))
	return c.Image()
}

// SavePNG 保存为图片文件，目录不存在时创建
func SavePNG(p *plot.Plot, filePath string, width, height vg.Length) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	if err := p.Save(width, height, filePath); err != nil {
		return fmt.Errorf("保存图表失败: %w", err)
	}
	return nil
}
