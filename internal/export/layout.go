package export

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/order-intake/internal/entity"
)

// Column is one output column of the line sheets.
type Column struct {
	Field string  `yaml:"field"`
	Label string  `yaml:"label"`
	Width float64 `yaml:"width"`
}

type layoutFile struct {
	Columns  []Column            `yaml:"columns"`
	Accounts map[string][]Column `yaml:"accounts"`
}

// Layouts selects the line-sheet columns per account.
type Layouts struct {
	defaults []Column
	accounts map[string][]Column
}

// field projects one line record onto a cell value.
type field struct {
	label string
	width float64
	value func(entity.OrderLine) any
}

var fields = map[string]field{
	"order_id":      {"伝票番号", 14, func(l entity.OrderLine) any { return l.OrderID }},
	"order_date":    {"発注日", 12, func(l entity.OrderLine) any { return l.OrderDate }},
	"delivery_date": {"納品日", 12, func(l entity.OrderLine) any { return l.DeliveryDate }},
	"partner_name":  {"取引先名", 24, func(l entity.OrderLine) any { return l.PartnerName }},
	"product_code":  {"商品コード", 14, func(l entity.OrderLine) any { return l.ProductCode }},
	"product_name":  {"商品名", 28, func(l entity.OrderLine) any { return l.ProductName }},
	"size":          {"サイズ", 10, func(l entity.OrderLine) any { return l.Size }},
	"quantity":      {"数量", 10, func(l entity.OrderLine) any { return l.Quantity }},
	"unit":          {"単位", 8, func(l entity.OrderLine) any { return l.Unit }},
	"unit_price":    {"単価", 10, func(l entity.OrderLine) any { return l.UnitPrice }},
	"amount":        {"金額", 12, func(l entity.OrderLine) any { return l.Amount }},
	"remark":        {"備考", 32, func(l entity.OrderLine) any { return l.Remark }},
	"data_source":   {"データ元", 24, func(l entity.OrderLine) any { return l.DataSource }},
	"confidence": {"信頼度", 8, func(l entity.OrderLine) any {
		if l.Confidence == nil {
			return ""
		}
		return *l.Confidence
	}},
	"band": {"判定", 8, func(l entity.OrderLine) any { return string(l.Band()) }},
}

var defaultFields = []string{
	"order_id", "order_date", "delivery_date", "partner_name", "product_code", "product_name",
	"size", "quantity", "unit", "unit_price", "amount", "remark", "data_source",
}

// DefaultColumns is the layout used when no file or account entry applies.
func DefaultColumns() []Column {
	cols := make([]Column, 0, len(defaultFields))
	for _, name := range defaultFields {
		f := fields[name]
		cols = append(cols, Column{Field: name, Label: f.label, Width: f.width})
	}
	return cols
}

// DefaultLayouts returns layouts that always resolve to DefaultColumns.
func DefaultLayouts() *Layouts {
	return &Layouts{defaults: DefaultColumns()}
}

// LoadLayout reads a YAML layout file. An empty path yields DefaultLayouts.
//
//	columns:            # optional, replaces the default column set
//	  - field: product_name
//	accounts:
//	  shop-a:
//	    - field: product_name
//	      label: 品名
//	    - field: quantity
func LoadLayout(path string) (*Layouts, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultLayouts(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return ParseLayout(raw)
}

// ParseLayout decodes YAML layout content.
func ParseLayout(raw []byte) (*Layouts, error) {
	var lf layoutFile
	if err := yaml.Unmarshal(raw, &lf); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	out := &Layouts{defaults: DefaultColumns(), accounts: map[string][]Column{}}
	if len(lf.Columns) > 0 {
		cols, err := resolve(lf.Columns)
		if err != nil {
			return nil, fmt.Errorf("layout columns: %w", err)
		}
		out.defaults = cols
	}
	for account, cols := range lf.Accounts {
		resolved, err := resolve(cols)
		if err != nil {
			return nil, fmt.Errorf("layout account %q: %w", account, err)
		}
		out.accounts[account] = resolved
	}
	return out, nil
}

func resolve(cols []Column) ([]Column, error) {
	out := make([]Column, 0, len(cols))
	for _, c := range cols {
		f, ok := fields[c.Field]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", c.Field)
		}
		if c.Label == "" {
			c.Label = f.label
		}
		if c.Width <= 0 {
			c.Width = f.width
		}
		out = append(out, c)
	}
	return out, nil
}

// For returns the columns of account, falling back to the default set.
func (l *Layouts) For(account string) []Column {
	if l == nil {
		return DefaultColumns()
	}
	if cols, ok := l.accounts[account]; ok && len(cols) > 0 {
		return cols
	}
	return l.defaults
}
