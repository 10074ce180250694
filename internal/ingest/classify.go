package ingest

import (
	"regexp"
	"strings"
)

// Reason explains why a row was dropped. The empty reason means kept.
type Reason string

const (
	Keep           Reason = ""
	DropBlank      Reason = "blank"
	DropHeaderEcho Reason = "header_echo"
	DropSubtotal   Reason = "subtotal"
	DropNoDate     Reason = "no_date"
	DropNoParty    Reason = "no_counterpart"
)

// echoSampleCells bounds how many non-empty cells the echo check inspects.
const echoSampleCells = 8

var (
	subtotalKoRe  = regexp.MustCompile(`소\s*계|합\s*계|총\s*계|누\s*계`)
	subtotalEnRe  = regexp.MustCompile(`(?i)^\s*(sub-?\s*total|grand\s+total|total)\b`)
	placeholderRe = regexp.MustCompile(`(?i)^(unk-\d+|unknown|미상|-)$`)
)

// Carry is the counterpart identity inherited by continuation rows.
type Carry struct {
	Code string
	Name string
}

// Classifier decides keep/drop per row. It holds only read-only lookup
// data; the running Carry is threaded through explicitly.
type Classifier struct {
	known map[string]bool
}

// NewClassifier builds a classifier that recognizes every label of the
// alias table as a header word.
func NewClassifier(aliases AliasTable) *Classifier {
	return &Classifier{known: aliases.labelSet()}
}

// Classify returns the verdict for one row, the row with any inherited
// counterpart applied, and the carry for the next row.
func (c *Classifier) Classify(row RawRow, n Normalized, carry Carry) (Normalized, Carry, Reason) {
	if isBlankRow(row) {
		return n, carry, DropBlank
	}
	if c.isHeaderEcho(row) {
		return n, carry, DropHeaderEcho
	}
	if IsSubtotal(n.Entry.CustomerName) || IsSubtotal(n.Entry.Description) {
		return n, carry, DropSubtotal
	}

	code, name := n.Entry.CustomerCode, n.Entry.CustomerName
	if isPlaceholder(code) {
		code = ""
	}
	if isPlaceholder(name) {
		name = ""
	}
	if code == "" && name == "" {
		code, name = carry.Code, carry.Name
	} else {
		carry = Carry{Code: code, Name: name}
	}
	n.Entry.CustomerCode, n.Entry.CustomerName = code, name

	if n.Entry.TxDate == "" {
		return n, carry, DropNoDate
	}
	if n.Entry.CounterpartKey() == "" {
		return n, carry, DropNoParty
	}
	return n, carry, Keep
}

// IsSubtotal reports whether text marks a subtotal or total line.
func IsSubtotal(s string) bool {
	if s == "" {
		return false
	}
	return subtotalKoRe.MatchString(s) || subtotalEnRe.MatchString(s)
}

func isPlaceholder(s string) bool {
	return placeholderRe.MatchString(strings.TrimSpace(s))
}

// isBlankRow is true when every cell is empty or numerically zero.
func isBlankRow(row RawRow) bool {
	for _, v := range row.Values {
		if v == "" {
			continue
		}
		if n := ParseNumber(v); n.Valid && n.Decimal.IsZero() {
			continue
		}
		return false
	}
	return true
}

// isHeaderEcho is true when a strict majority of the first non-empty cells
// repeat their own column label or any known header word.
func (c *Classifier) isHeaderEcho(row RawRow) bool {
	seen, hits := 0, 0
	for i, v := range row.Values {
		if v == "" {
			continue
		}
		nv := normLabel(v)
		if (i < len(row.Labels) && nv == normLabel(row.Labels[i])) || c.known[nv] {
			hits++
		}
		seen++
		if seen == echoSampleCells {
			break
		}
	}
	return seen > 0 && hits*2 > seen
}
