package service

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ── Excel 批量导入公共逻辑（用户 / 课程） ──

const maxImportRows = 1000

var (
	ErrImportNoData      = errors.New("Excel文件无数据行（第一行为表头）")
	ErrImportTooManyRows = fmt.Errorf("数据行数超过上限 %d 行", maxImportRows)
	ErrImportBadHeader   = errors.New("Excel表头缺少必要列")
	ErrImportBadFile     = errors.New("无法解析Excel文件")
)

// importSheet 解析后的工作表：表头映射 + 数据行
type importSheet struct {
	index map[string]int
	rows  [][]string
}

// readImportSheet 读取第一个工作表并按别名解析表头
// required / optional: 逻辑列名 → 可接受的表头文本（小写比较）
func readImportSheet(reader io.Reader, required, optional map[string][]string) (*importSheet, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportBadFile, err)
	}
	defer f.Close()

	excelRows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("读取工作表失败: %w", err)
	}
	if len(excelRows) < 2 {
		return nil, ErrImportNoData
	}

	index := parseHeaderIndex(excelRows[0], required)
	for col, idx := range index {
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrImportBadHeader, col)
		}
	}
	for col, idx := range parseHeaderIndex(excelRows[0], optional) {
		index[col] = idx
	}

	return &importSheet{index: index, rows: excelRows[1:]}, nil
}

// cell 读取数据行的指定逻辑列，列缺失时返回空串
func (s *importSheet) cell(row []string, col string) string {
	idx, ok := s.index[col]
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseHeaderIndex 解析 Excel 表头，返回列名 -> 列索引映射（支持灵活列序）
func parseHeaderIndex(header []string, aliases map[string][]string) map[string]int {
	idx := make(map[string]int, len(aliases))
	for col := range aliases {
		idx[col] = -1
	}
	for i, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		for col, names := range aliases {
			for _, n := range names {
				if lower == n {
					idx[col] = i
				}
			}
		}
	}
	return idx
}

func isBlankRow(values ...string) bool {
	for _, v := range values {
		if v != "" {
			return false
		}
	}
	return true
}
