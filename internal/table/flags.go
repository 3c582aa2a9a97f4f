package table

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// Column names and markers stamped onto bid tables.
const (
	ColSpecSheet = "成分表"
	ColSample    = "見本"

	MarkYes    = "○"
	MarkSample = "3"
	MarkNone   = "-"
)

// specSheetPhrase is the phrase whose characters drive the spec-sheet flag.
// The OCR text is noisy, so the flag fires on character overlap rather than
// an exact substring: two or more distinct characters of this phrase in the
// judgment cell count as a hit. Unrelated text sharing two of these
// characters produces a false positive; that behavior is intentional.
const specSheetPhrase = "成分表提出"

var judgeFallbackRe = regexp.MustCompile(`条件|見本|備考`)

// DeriveFlags appends the spec-sheet and sample flag columns to m, stamping
// each data row from its judgment cell. The input matrix is not mutated.
func DeriveFlags(m Matrix) Matrix {
	if len(m) == 0 {
		return Matrix{}
	}

	header := append([]string(nil), m.Header()...)
	if !containsName(header, ColSpecSheet) {
		header = append(header, ColSpecSheet)
	}
	if !containsName(header, ColSample) {
		header = append(header, ColSample)
	}

	judgeIdx := judgmentColumn(m.Header())
	specIdx := indexOf(header, ColSpecSheet)
	sampleIdx := indexOf(header, ColSample)

	phrase := map[rune]struct{}{}
	for _, r := range specSheetPhrase {
		phrase[r] = struct{}{}
	}

	out := make(Matrix, 0, len(m))
	out = append(out, header)
	for _, src := range m.Body() {
		row := PadRow(append([]string(nil), src...), len(header))
		val := cell(row, judgeIdx)

		seen := map[rune]struct{}{}
		hits := 0
		for _, r := range val {
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			if _, ok := phrase[r]; ok {
				hits++
			}
		}
		if hits >= 2 {
			row[specIdx] = MarkYes
		} else {
			row[specIdx] = MarkNone
		}

		if strings.Contains(val, ColSample) {
			row[sampleIdx] = MarkSample
		} else {
			row[sampleIdx] = MarkNone
		}
		out = append(out, row)
	}
	return out
}

// judgmentColumn picks the column holding the 銘柄・条件 judgment text.
// Exact candidates first (space and middle-dot variants normalized away),
// then any header mentioning 条件/見本/備考, then column 0.
func judgmentColumn(header []string) int {
	for i, h := range header {
		norm := normalizeJudgeName(h)
		if norm == "銘柄·条件" || norm == "銘柄条件" {
			return i
		}
	}
	for i, h := range header {
		if judgeFallbackRe.MatchString(h) {
			return i
		}
	}
	return 0
}

func normalizeJudgeName(name string) string {
	s := strings.NewReplacer(" ", "", "　", "", "・", "·").Replace(name)
	return s
}

// DetectMakerColumn returns the index of the maker column, or -1. Half-width
// katakana headers (ﾒｰｶｰ) are folded to full width before matching, and
// spaces are ignored, since the header itself comes from OCR.
func DetectMakerColumn(header []string) int {
	for i, h := range header {
		norm := width.Widen.String(strings.NewReplacer(" ", "", "　", "").Replace(h))
		if strings.Contains(norm, "メーカー") {
			return i
		}
	}
	return -1
}

func containsName(header []string, name string) bool {
	return indexOf(header, name) >= 0
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
