package ingest

import (
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Field is a logical ledger field resolved from one of several column labels.
type Field string

const (
	FieldRowKey       Field = "row_key"
	FieldDate         Field = "date"
	FieldCustomerCode Field = "customer_code"
	FieldCustomerName Field = "customer_name"
	FieldDocNo        Field = "doc_no"
	FieldLineNo       Field = "line_no"
	FieldItemName     Field = "item_name"
	FieldSpec         Field = "spec"
	FieldUnit         Field = "unit"
	FieldQty          Field = "qty"
	FieldUnitPrice    Field = "unit_price"
	FieldAmount       Field = "amount"
	FieldPrevBalance  Field = "prev_balance"
	FieldDeposit      Field = "deposit"
	FieldCurrBalance  Field = "curr_balance"
	FieldDescription  Field = "description"
)

// AliasTable maps each logical field to its accepted column labels in
// priority order.
type AliasTable map[Field][]string

// ScoringFields are the alias lists consulted when sniffing the header row.
var ScoringFields = []Field{
	FieldDate, FieldCustomerCode, FieldCustomerName, FieldDocNo, FieldLineNo,
	FieldAmount, FieldDeposit, FieldCurrBalance, FieldDescription,
	FieldItemName, FieldQty, FieldUnitPrice,
}

// DefaultAliases returns a fresh copy of the built-in alias table.
func DefaultAliases() AliasTable {
	return AliasTable{
		FieldRowKey:       {"row_key", "erp_row_key", "rowkey", "고유키", "unique_id", "키"},
		FieldDate:         {"tx_date", "date", "출고일자", "거래일자", "매출일자", "전표일자", "문서일자", "판매일자", "일자"},
		FieldCustomerCode: {"customer_code", "erp_customer_code", "거래처코드", "고객코드", "거래처id", "코드"},
		FieldCustomerName: {"customer_name", "name", "거래처명", "고객명", "상호", "업체명", "거래처"},
		FieldDocNo:        {"doc_no", "전표번호", "문서번호", "전표no"},
		FieldLineNo:       {"line_no", "행번호", "라인번호", "순번", "항번", "no"},
		FieldItemName:     {"item_name", "item", "품명", "품목명", "품목"},
		FieldSpec:         {"spec", "규격", "품목규격"},
		FieldUnit:         {"unit", "단위"},
		FieldQty:          {"qty", "quantity", "수량"},
		FieldUnitPrice:    {"unit_price", "price", "단가"},
		FieldAmount:       {"amount", "debit", "공급가", "공급가액", "매출금액", "판매금액", "매출액", "금액", "차변"},
		FieldPrevBalance:  {"prev_balance", "전일잔액", "이월잔액", "전잔액"},
		FieldDeposit:      {"deposit", "credit", "입금액", "입금", "부가세", "세액", "vat", "대변"},
		FieldCurrBalance:  {"curr_balance", "balance", "금일잔액", "미수잔액", "잔액"},
		FieldDescription:  {"description", "memo", "적요", "비고", "내용", "메모"},
	}
}

// aliasFile is the on-disk shape of an alias override file:
//
//	replace: false
//	fields:
//	  date: [납품일자]
type aliasFile struct {
	Replace bool                `yaml:"replace"`
	Fields  map[string][]string `yaml:"fields"`
}

// LoadAliases reads an alias override file and merges it into the defaults.
// Extra labels are appended after the built-in ones unless replace is set.
func LoadAliases(path string) (AliasTable, error) {
	table := DefaultAliases()
	if strings.TrimSpace(path) == "" {
		return table, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse alias file %s: %w", path, err)
	}
	for name, labels := range f.Fields {
		field := Field(strings.TrimSpace(name))
		if _, known := table[field]; !known {
			return nil, fmt.Errorf("alias file %s: unknown field %q", path, name)
		}
		if f.Replace {
			table[field] = nil
		}
		table[field] = appendUnique(table[field], labels...)
	}
	return table, nil
}

func appendUnique(dst []string, labels ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, l := range dst {
		seen[normLabel(l)] = true
	}
	for _, l := range labels {
		n := normLabel(l)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		dst = append(dst, l)
	}
	return dst
}

// normLabel trims, lower-cases and removes whitespace so "거래 일자 " and
// "거래일자" compare equal.
func normLabel(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// labelSet returns every normalized alias across the table.
func (t AliasTable) labelSet() map[string]bool {
	set := make(map[string]bool)
	for _, labels := range t {
		for _, l := range labels {
			set[normLabel(l)] = true
		}
	}
	return set
}

// matchesAny reports whether a cell matches any alias of the given fields:
// equal after normalization, or containing an alias of at least three runes.
func (t AliasTable) matchesAny(cell string, fields []Field) bool {
	c := normLabel(cell)
	if c == "" {
		return false
	}
	for _, f := range fields {
		for _, alias := range t[f] {
			a := normLabel(alias)
			if a == "" {
				continue
			}
			if c == a || containsAlias(c, a) {
				return true
			}
		}
	}
	return false
}

// containsAlias reports whether a normalized label embeds a normalized alias
// long enough to be unambiguous, as in "공급가액(원)".
func containsAlias(label, alias string) bool {
	return utf8.RuneCountInString(alias) >= 3 && strings.Contains(label, alias)
}
