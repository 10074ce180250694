package ingest

import (
	"fmt"

	"github.com/sin100007-pixel/customer-qr-login/internal/config"
)

// ScoreHeaderRow counts the cells of a grid row that match any label of the
// scoring table. Each cell counts at most once.
func ScoreHeaderRow(row []string, aliases AliasTable) int {
	score := 0
	for _, cell := range row {
		if aliases.matchesAny(cell, ScoringFields) {
			score++
		}
	}
	return score
}

// DetectHeader picks the header row among the first config.HeaderScanRows
// rows of a grid: the highest score wins and ties go to the earliest row.
func DetectHeader(grid [][]string, aliases AliasTable) int {
	best, bestScore := 0, -1
	limit := len(grid)
	if limit > config.HeaderScanRows {
		limit = config.HeaderScanRows
	}
	for i := 0; i < limit; i++ {
		if s := ScoreHeaderRow(grid[i], aliases); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// placeholderLabel names a column that has no header text.
func placeholderLabel(col int) string {
	return fmt.Sprintf("__col%d", col)
}

// headerLabels trims the header cells and pads them to width, giving
// unlabeled columns a positional placeholder.
func headerLabels(header []string, width int) []string {
	if width < len(header) {
		width = len(header)
	}
	labels := make([]string, width)
	for i := 0; i < width; i++ {
		var l string
		if i < len(header) {
			l = trimCell(header[i])
		}
		if l == "" {
			l = placeholderLabel(i)
		}
		labels[i] = l
	}
	return labels
}
