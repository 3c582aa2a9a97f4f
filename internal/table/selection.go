package table

import "strings"

// Required headers for selection extraction.
const (
	ColMaker       = "メーカー"
	ColProductCode = "商品CD"
)

// Selection is the compact per-row tuple used for downstream bookkeeping:
// which maker/product combinations need a spec sheet or a sample.
type Selection struct {
	Maker       string
	ProductCode string
	SpecSheet   string
	Sample      string
}

// BuildSelections extracts one Selection per data row carrying both a maker
// and a product code. When any of the four required columns is absent the
// table simply has nothing to select and nil is returned; that is not an
// error condition.
func BuildSelections(m Matrix) []Selection {
	if len(m) == 0 {
		return nil
	}
	header := m.Header()
	makerIdx := indexOf(header, ColMaker)
	codeIdx := indexOf(header, ColProductCode)
	specIdx := indexOf(header, ColSpecSheet)
	sampleIdx := indexOf(header, ColSample)
	if makerIdx < 0 || codeIdx < 0 || specIdx < 0 || sampleIdx < 0 {
		return nil
	}

	var out []Selection
	for _, row := range m.Body() {
		maker := strings.TrimSpace(cell(row, makerIdx))
		code := strings.TrimSpace(cell(row, codeIdx))
		if maker == "" || code == "" {
			continue
		}
		out = append(out, Selection{
			Maker:       maker,
			ProductCode: code,
			SpecSheet:   orNone(cell(row, specIdx)),
			Sample:      orNone(cell(row, sampleIdx)),
		})
	}
	return out
}

func orNone(v string) string {
	if v == "" {
		return MarkNone
	}
	return v
}
