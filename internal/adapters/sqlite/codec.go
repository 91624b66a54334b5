package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimals are stored as TEXT so they round-trip without float drift.

func decText(d decimal.Decimal) string {
	return d.String()
}

func nullDec(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// decField scans a NOT NULL decimal column.
type decField struct {
	dst *decimal.Decimal
}

func (f *decField) Scan(src interface{}) error {
	var s sql.NullString
	if err := s.Scan(src); err != nil {
		return err
	}
	if !s.Valid {
		return fmt.Errorf("unexpected NULL decimal")
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", s.String, err)
	}
	*f.dst = d
	return nil
}

// nullDecField scans a nullable decimal column into a *decimal.Decimal.
type nullDecField struct {
	dst **decimal.Decimal
}

func (f *nullDecField) Scan(src interface{}) error {
	var s sql.NullString
	if err := s.Scan(src); err != nil {
		return err
	}
	if !s.Valid {
		*f.dst = nil
		return nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", s.String, err)
	}
	*f.dst = &d
	return nil
}

func dec(dst *decimal.Decimal) sql.Scanner      { return &decField{dst: dst} }
func decPtr(dst **decimal.Decimal) sql.Scanner { return &nullDecField{dst: dst} }
