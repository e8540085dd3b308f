package config

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Field names a Transaction field a column can be mapped to.
const (
	FieldTime     = "time"
	FieldState    = "state"
	FieldAmount   = "amount"
	FieldIncome   = "income"
	FieldExpense  = "expense"
	FieldCurrency = "currency"
	FieldNote     = "note"
	FieldCategory = "category"
	FieldPayee    = "payee"

	// fieldDate is accepted as an alias of FieldTime.
	fieldDate = "date"
)

var knownFields = map[string]bool{
	FieldTime:     true,
	FieldState:    true,
	FieldAmount:   true,
	FieldIncome:   true,
	FieldExpense:  true,
	FieldCurrency: true,
	FieldNote:     true,
	FieldCategory: true,
	FieldPayee:    true,
}

// Profile maps one bank's spreadsheet layout to transactions.
type Profile struct {
	Name   string        `yaml:"-"`
	Config ProfileConfig `yaml:"config"`
	Data   DataConfig    `yaml:"data"`
	Mails  []string      `yaml:"mails,omitempty"`
}

// ProfileConfig holds ledger-level options.
type ProfileConfig struct {
	Currency  string     `yaml:"currency"`
	Reverse   bool       `yaml:"reverse,omitempty"`
	Validator *Validator `yaml:"validator,omitempty"`
	Matchers  []Matcher  `yaml:"matchers,omitempty"`
}

// Validator names a cell whose value identifies files of this profile.
type Validator struct {
	Cell  string `yaml:"cell"`
	Value string `yaml:"value"`
}

// DataConfig locates transaction data in the sheet.
type DataConfig struct {
	Columns map[string]Column `yaml:"columns"`
	Rows    Rows              `yaml:"rows"`
}

// Column references a sheet column by letter or by header text.
type Column struct {
	Column string `yaml:"column,omitempty"`
	Header string `yaml:"header,omitempty"`
	Format string `yaml:"format,omitempty"` // PHP-style date format, time column only

	layout string
}

// Layout returns the Go time layout compiled from Format.
func (c Column) Layout() string { return c.layout }

// Rows gives 1-based row positions.
type Rows struct {
	// Start is nil when unset, which means row 1.
	Start  *int `yaml:"start,omitempty"`
	Header int `yaml:"header,omitempty"`
}

// Description returns the human-readable ledger description, which is also
// the notification subject: the validator value, or the profile name.
func (p Profile) Description() string {
	if p.Config.Validator != nil && p.Config.Validator.Value != "" {
		return p.Config.Validator.Value
	}
	return p.Name
}

// Column returns the column mapped to field.
func (p Profile) Column(field string) (Column, bool) {
	c, ok := p.Data.Columns[field]
	return c, ok
}

// StartRow returns the first data row, defaulting to 1.
func (p Profile) StartRow() int {
	if p.Data.Rows.Start == nil {
		return 1
	}
	return *p.Data.Rows.Start
}

// UsesHeaders reports whether any column is referenced by header text.
func (p Profile) UsesHeaders() bool {
	for _, c := range p.Data.Columns {
		if c.Header != "" {
			return true
		}
	}
	return false
}

// Validate checks the profile and compiles date layouts and matchers.
func (p *Profile) Validate() error {
	fail := func(field, format string, args ...any) error {
		return &ConfigError{Profile: p.Name, Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	if strings.TrimSpace(p.Config.Currency) == "" {
		return fail("config.currency", "required")
	}

	if err := p.normalizeColumns(); err != nil {
		return err
	}
	if _, ok := p.Data.Columns[FieldTime]; !ok {
		return fail("data.columns.time", "required")
	}
	_, hasAmount := p.Data.Columns[FieldAmount]
	_, hasIncome := p.Data.Columns[FieldIncome]
	_, hasExpense := p.Data.Columns[FieldExpense]
	if !hasAmount && !hasIncome && !hasExpense {
		return fail("data.columns", "amount or income/expense column required")
	}

	for field, col := range p.Data.Columns {
		key := "data.columns." + field
		switch {
		case col.Column != "" && col.Header != "":
			return fail(key, "column and header are mutually exclusive")
		case col.Column == "" && col.Header == "":
			return fail(key, "column or header required")
		case col.Column != "":
			col.Column = strings.ToUpper(strings.TrimSpace(col.Column))
			if _, err := excelize.ColumnNameToNumber(col.Column); err != nil {
				return fail(key, "invalid column %q", col.Column)
			}
		}
		if col.Format != "" {
			if field != FieldTime {
				return fail(key, "format is only supported on the time column")
			}
			layout, err := DateLayout(col.Format)
			if err != nil {
				return fail(key+".format", "%v", err)
			}
			col.layout = layout
		}
		p.Data.Columns[field] = col
	}

	switch {
	case p.Data.Rows.Start != nil && *p.Data.Rows.Start < 1:
		return fail("data.rows.start", "must be 1 or greater")
	case p.Data.Rows.Header < 0:
		return fail("data.rows.header", "must be 1 or greater")
	case p.UsesHeaders() && p.Data.Rows.Header == 0:
		return fail("data.rows.header", "required when columns are referenced by header")
	case p.Data.Rows.Header != 0 && p.Data.Rows.Header >= p.StartRow():
		return fail("data.rows.header", "header row %d must precede start row %d", p.Data.Rows.Header, p.StartRow())
	}

	if v := p.Config.Validator; v != nil {
		if _, _, err := excelize.CellNameToCoordinates(v.Cell); err != nil {
			return fail("config.validator.cell", "invalid cell %q", v.Cell)
		}
		if v.Value == "" {
			return fail("config.validator.value", "required")
		}
	}

	for i := range p.Config.Matchers {
		if err := p.Config.Matchers[i].compile(); err != nil {
			return fail(fmt.Sprintf("config.matchers[%d]", i), "%v", err)
		}
	}

	for i, addr := range p.Mails {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fail(fmt.Sprintf("mails[%d]", i), "invalid address %q", addr)
		}
	}
	return nil
}

// normalizeColumns folds the date alias into time and rejects unknown fields.
func (p *Profile) normalizeColumns() error {
	if p.Data.Columns == nil {
		p.Data.Columns = map[string]Column{}
	}
	if date, ok := p.Data.Columns[fieldDate]; ok {
		if _, both := p.Data.Columns[FieldTime]; both {
			return &ConfigError{Profile: p.Name, Field: "data.columns", Reason: "date and time are aliases, set only one"}
		}
		p.Data.Columns[FieldTime] = date
		delete(p.Data.Columns, fieldDate)
	}
	for field := range p.Data.Columns {
		if !knownFields[field] {
			return &ConfigError{Profile: p.Name, Field: "data.columns." + field, Reason: "unknown field"}
		}
	}
	return nil
}
