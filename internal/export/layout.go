package export

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/joseph-ayodele/caba/constants"
	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Cell value types.
const (
	TypeString = "string"
	TypeNumber = "number"
)

// Column places one record field in a worksheet column.
type Column struct {
	Field  string `yaml:"field"`  // catalog field or "idx"
	Column string `yaml:"column"` // column letters, e.g. "B"
	Type   string `yaml:"type"`   // string | number; default string
	Header string `yaml:"header"` // used only when no template is given
}

// Layout maps record fields onto worksheet columns.
type Layout struct {
	Columns []Column `yaml:"columns"`
}

// DefaultLayout is the cab usage template: A holds the running number,
// B..J the booking fields in catalog order.
func DefaultLayout() Layout {
	headers := map[string]string{
		constants.FieldDate:           "Date",
		constants.FieldInwardFrom:     "Inward From",
		constants.FieldInwardTo:       "Inward To",
		constants.FieldOutwardFrom:    "Outward From",
		constants.FieldOutwardTo:      "Outward To",
		constants.FieldVisits:         "Visits",
		constants.FieldVendor:         "Vendor",
		constants.FieldInwardCharges:  "Inward Charges",
		constants.FieldOutwardCharges: "Outward Charges",
	}
	numeric := map[string]bool{
		constants.FieldVisits:         true,
		constants.FieldInwardCharges:  true,
		constants.FieldOutwardCharges: true,
	}

	cols := []Column{{Field: constants.FieldIndex, Column: "A", Type: TypeNumber, Header: "S.No"}}
	for i, f := range constants.BookingFields() {
		name, _ := excelize.ColumnNumberToName(i + 2)
		typ := TypeString
		if numeric[f] {
			typ = TypeNumber
		}
		cols = append(cols, Column{Field: f, Column: name, Type: typ, Header: headers[f]})
	}
	return Layout{Columns: cols}
}

// LoadLayout reads a YAML layout file. An empty path selects DefaultLayout.
func LoadLayout(path string) (Layout, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, common.NewAppError(common.KindConfig, "read layout "+path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var l Layout
	if err := dec.Decode(&l); err != nil {
		return Layout{}, common.NewAppError(common.KindConfig, "decode layout "+path, err)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, common.NewAppError(common.KindConfig, "layout "+path, err)
	}
	return l, nil
}

// Validate checks fields, column names and types, and normalises column letters to upper case.
func (l *Layout) Validate() error {
	v := common.NewValidator()
	v.Check(len(l.Columns) > 0, "columns", len(l.Columns), "at least one column is required")

	known := map[string]bool{constants.FieldIndex: true}
	for _, f := range constants.BookingFields() {
		known[f] = true
	}
	used := map[string]bool{}
	for i := range l.Columns {
		c := &l.Columns[i]
		c.Column = strings.ToUpper(strings.TrimSpace(c.Column))
		name := fmt.Sprintf("columns[%d]", i)

		v.Check(known[c.Field], name+".field", c.Field, "unknown field")
		_, err := excelize.ColumnNameToNumber(c.Column)
		v.Check(err == nil, name+".column", c.Column, "not a column name")
		v.Check(!used[c.Column], name+".column", c.Column, "column used twice")
		used[c.Column] = true

		if c.Type == "" {
			c.Type = TypeString
		}
		v.Check(c.Type == TypeString || c.Type == TypeNumber, name+".type", c.Type, "must be string or number")
	}
	return v.Error()
}
