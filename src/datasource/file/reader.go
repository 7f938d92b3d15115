// reader.go
package file

import (
	"FlightDelayStats/src/utils"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Options 读取输入表的参数
type Options struct {
	GroupBy        string   // 分组列，强制为字符串
	NumericColumns []string // 计数列，强制为浮点
	Encoding       string   // csv源编码: ""/utf-8/gbk/gb18030
	SheetName      string   // xlsx工作表名
	HeaderRow      int      // xlsx标题行(从0开始)
}

// Load 根据扩展名读取csv或xlsx
func Load(filePath string, opts Options) (dataframe.DataFrame, error) {
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".csv":
		return ReadCSV(filePath, opts)
	case ".xlsx":
		return ReadXLSX(filePath, opts)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("不支持的文件类型 %q: %s", ext, filePath)
	}
}

// 空单元格也按缺失值处理
var nanValues = []string{"", "NA", "NaN", "<nil>"}

// ReadCSV 读取csv文件到DataFrame
func ReadCSV(filePath string, opts Options) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("打开csv文件失败: %w", err)
	}
	defer f.Close()

	r, err := decodeReader(f, opts.Encoding)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.WithTypes(columnTypes(opts)),
		dataframe.NaNValues(nanValues),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析csv文件%s失败: %w", filePath, df.Err)
	}
	return df, nil
}

// decodeReader 按配置的编码转码为UTF-8，UTF-8输入会去掉BOM
func decodeReader(r io.Reader, name string) (io.Reader, error) {
	var enc encoding.Encoding
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	case "gbk":
		enc = simplifiedchinese.GBK
	case "gb18030":
		enc = simplifiedchinese.GB18030
	default:
		return nil, fmt.Errorf("不支持的编码: %s", name)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func columnTypes(opts Options) map[string]series.Type {
	types := make(map[string]series.Type, len(opts.NumericColumns)+1)
	if opts.GroupBy != "" {
		types[opts.GroupBy] = series.String
	}
	for _, c := range opts.NumericColumns {
		types[c] = series.Float
	}
	return types
}

// ReadXLSX 使用tealeg/xlsx读取工作表到DataFrame
func ReadXLSX(filePath string, opts Options) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}

	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表: %s", filePath)
	}
	sheet := xlFile.Sheets[0]
	if opts.SheetName != "" {
		s, ok := xlFile.Sheet[opts.SheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("工作表%q不存在: %s", opts.SheetName, filePath)
		}
		sheet = s
	}

	df, err := convertSheetToDataFrame(sheet, opts.HeaderRow)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return applyTypes(df, opts), nil
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame，标题行之后均为数据
func convertSheetToDataFrame(sheet *xlsx.Sheet, headerRow int) (dataframe.DataFrame, error) {
	if len(sheet.Rows) <= headerRow {
		return dataframe.DataFrame{}, fmt.Errorf("工作表%s没有标题行", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[headerRow].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}

	// 准备数据列
	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-headerRow-1)
	}

	for _, row := range sheet.Rows[headerRow+1:] {
		if row == nil {
			continue
		}
		for i := range headers {
			// 行尾的空单元格可能不存在，补空字符串保证各列等长
			value := ""
			if i < len(row.Cells) {
				value = row.Cells[i].Value
			}
			columns[i] = append(columns[i], value)
		}
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	df := dataframe.New(seriesList...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("转换为dataframe失败: %w", df.Err)
	}
	return df, nil
}

// applyTypes 把计数列转换为浮点列，空字符串成为缺失值
func applyTypes(df dataframe.DataFrame, opts Options) dataframe.DataFrame {
	for _, c := range opts.NumericColumns {
		if !utils.HasColumn(df, c) {
			continue
		}
		df = df.Mutate(series.New(df.Col(c).Records(), series.Float, c))
	}
	return df
}
