package catalog

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

var ErrEmptyImport = errors.New("no products found in import")

// Item is a product master row without an id or price.
type Item struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// Defaults is the standard Habibeat product list.
var Defaults = []Item{
	{Name: "Air mineral Aqua 220 ml ( 48 btl )", Unit: "btl"},
	{Name: "Air mineral Aqua 330 ml ( 24 btl )", Unit: "btl"},
	{Name: "Air mineral Aqua 600 ml (24 btl )", Unit: "btl"},
	{Name: "Air mineral Galon VIT ( plus isi )", Unit: "gln"},
	{Name: "Air mineral Vit 550 ml ( 24 btl )", Unit: "btl"},
	{Name: "Beras (5kg)", Unit: "zak"},
	{Name: "Cutleries - Chopstick ( 1 pack : 100 pcs )", Unit: "pcs"},
	{Name: "Cutleries Set ( 1 pack : 50 pcs )", Unit: "pcs"},
	{Name: "Fiora Dishwashing", Unit: "jur"},
	{Name: "Fiora Floor Cleaner", Unit: "jur"},
	{Name: "Fiora Glass Cleaner", Unit: "jur"},
	{Name: "Garam", Unit: "pack"},
	{Name: "Gula Pasir", Unit: "kg"},
	{Name: "Handglove Besttaft Nitrile ( 1 pack : 10 lbr )", Unit: "pack"},
	{Name: "Handglove Plastic ( 1 pack : 100 lbr )", Unit: "pack"},
	{Name: "Kertas Checker", Unit: "roll"},
	{Name: "Masker koki transparan", Unit: "pcs"},
	{Name: "Minyak Goreng Refill 2 lt", Unit: "pouch"},
	{Name: "Packaging - Lunch Box L ( 1 pack : 100 pcs )", Unit: "pcs"},
	{Name: "Packaging - Paper Bowl 800ml ( 1 pack : 50 pcs )", Unit: "pcs"},
	{Name: "Packaging - Tutup Paper Bowl 800ml ( 1 pack : 50 pcs )", Unit: "pcs"},
	{Name: "Plastik kiloan tahan panas 15 x 30 ( 1 pack : 250 gr )", Unit: "pack"},
	{Name: "Plastik TA White 24'", Unit: "pack"},
	{Name: "Plastik TA White 28'", Unit: "pack"},
	{Name: "Plastik TA White 35'", Unit: "pack"},
	{Name: "Santan Kara ( 1 lt )", Unit: "kotak"},
	{Name: "Sauce container 35 ml ( 1 pack : 50 pcs )", Unit: "pcs"},
	{Name: "Susu Cair", Unit: "kotak"},
	{Name: "Tabung LPG 3 kg", Unit: "tbg"},
	{Name: "Tissue Livi Evo Smart", Unit: "pack"},
	{Name: "Trash bag 60 x 100 ( isi : 12 pcs )", Unit: "pack"},
	{Name: "Boombuku - Ayam", Unit: "ekor"},
	{Name: "Boombuku - Bawang Goreng ( 250 gr )", Unit: "pack"},
	{Name: "Boombuku - Bebek", Unit: "ekor"},
	{Name: "Boombuku - Bumbu Curry Hijau ( 50 gr )", Unit: "pack"},
	{Name: "Boombuku - Bumbu Curry Kuning ( 35 gr )", Unit: "pack"},
	{Name: "Boombuku - Bumbu Hitam Madura ( 500 gr )", Unit: "pack"},
	{Name: "Boombuku - Bumbu Mie Hijau ( 80 gr )", Unit: "pack"},
	{Name: "Boombuku - Chilli Oil ( 200 gr )", Unit: "pack"},
	{Name: "Boombuku - Jamur Kuping", Unit: "pack"},
	{Name: "Boombuku - Kambing ( 50 gr )", Unit: "pack"},
	{Name: "Boombuku - Kuah Kambing ( 400 ml )", Unit: "pack"},
	{Name: "Boombuku - Mie Hijau", Unit: "pcs"},
	{Name: "Boombuku - Mie Lamian", Unit: "pcs"},
	{Name: "Boombuku - Premix Kacang Wijen ( 500 gr )", Unit: "pack"},
	{Name: "Boombuku - Sambal Bawang ( 500 gr )", Unit: "pack"},
	{Name: "Boombuku - Soun ( 1 pack : isi 10 pcs )", Unit: "pcs"},
	{Name: "Santan Kara ( 200 ml )", Unit: "kotak"},
	{Name: "Cabe rawit", Unit: "gr"},
	{Name: "Daun bawang", Unit: "gr"},
	{Name: "Daun kari", Unit: "gr"},
	{Name: "Daun kemangi", Unit: "gr"},
	{Name: "Daun ketumbar", Unit: "gr"},
	{Name: "Daun seledri", Unit: "gr"},
	{Name: "Jeruk nipis", Unit: "gr"},
	{Name: "Kol", Unit: "gr"},
	{Name: "Lobak", Unit: "gr"},
	{Name: "Tahu", Unit: "pcs"},
	{Name: "Taoge", Unit: "gr"},
	{Name: "Telur", Unit: "pcs"},
	{Name: "Timun", Unit: "gr"},
	{Name: "Wortel", Unit: "gr"},
	{Name: "Tissue Basah", Unit: "pcs"},
}

const defaultUnit = "pcs"

// ParseCSV reads "name,unit" rows. Either comma or semicolon separates columns; a
// header row mentioning nama or unit is skipped and a blank unit becomes pcs.
func ParseCSV(r io.Reader) ([]Item, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := string(raw)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = detectSeparator(text)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(records))
	for i, record := range records {
		if len(record) < 2 {
			continue
		}
		name := strings.TrimSpace(record[0])
		unit := strings.TrimSpace(record[1])
		if i == 0 && isHeader(name, unit) {
			continue
		}
		if name == "" {
			continue
		}
		if unit == "" {
			unit = defaultUnit
		}
		items = append(items, Item{Name: name, Unit: unit})
	}
	if len(items) == 0 {
		return nil, ErrEmptyImport
	}
	return items, nil
}

func detectSeparator(text string) rune {
	firstLine, _, _ := strings.Cut(text, "\n")
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		return ';'
	}
	return ','
}

func isHeader(name, unit string) bool {
	row := strings.ToLower(name + " " + unit)
	return strings.Contains(row, "nama") || strings.Contains(row, "unit")
}
