package utils

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

// NamedFrame 导出到Excel时的工作表名称与数据
type NamedFrame struct {
	Sheet string
	Data  dataframe.DataFrame
}

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// HasColumn 判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return Contains(df.Names(), name)
}

// RequireColumns 返回第一个缺失列的错误
func RequireColumns(df dataframe.DataFrame, names ...string) error {
	for _, name := range names {
		if !HasColumn(df, name) {
			return fmt.Errorf("缺少列 %q", name)
		}
	}
	return nil
}

// FloatColumn 取出某列的浮点值，非数值元素为NaN
func FloatColumn(df dataframe.DataFrame, name string) []float64 {
	return df.Col(name).Float()
}

// SumSkipNaN 求和时跳过缺失值
func SumSkipNaN(values []float64) float64 {
	var sum float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
	}
	return sum
}

// SaveToExcel 将多个DataFrame分别写入同一工作簿的不同工作表
func SaveToExcel(filePath string, frames ...NamedFrame) error {
	if len(frames) == 0 {
		return fmt.Errorf("没有需要导出的数据")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, frame := range frames {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", frame.Sheet); err != nil {
				return fmt.Errorf("重命名工作表失败: %w", err)
			}
		} else if _, err := f.NewSheet(frame.Sheet); err != nil {
			return fmt.Errorf("创建工作表%s失败: %w", frame.Sheet, err)
		}
		if err := writeSheet(f, frame.Sheet, frame.Data); err != nil {
			return err
		}
	}

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheetName string, df dataframe.DataFrame) error {
	// 写入列名
	colNames := df.Names()
	for i, name := range colNames {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return fmt.Errorf("写入表头失败: %w", err)
		}
	}

	// 写入数据，NaN和±Inf留空
	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			val := col.Val(rowIdx)
			if val == nil {
				continue
			}
			if fv, ok := val.(float64); ok && (math.IsNaN(fv) || math.IsInf(fv, 0)) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				return fmt.Errorf("写入单元格%s失败: %w", cell, err)
			}
		}
	}
	return nil
}
