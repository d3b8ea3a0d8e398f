package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Field is one of the five canonical logical fields.
type Field int

const (
	FieldProductName Field = iota
	FieldProductCode
	FieldNavDate
	FieldUnitNav
	FieldCumulativeNav
)

// fieldOrder fixes iteration order so resolution stays deterministic.
var fieldOrder = []Field{
	FieldProductName,
	FieldProductCode,
	FieldNavDate,
	FieldUnitNav,
	FieldCumulativeNav,
}

func (f Field) String() string {
	switch f {
	case FieldProductName:
		return "product_name"
	case FieldProductCode:
		return "product_code"
	case FieldNavDate:
		return "nav_date"
	case FieldUnitNav:
		return "unit_nav"
	case FieldCumulativeNav:
		return "cumulative_unit_nav"
	default:
		return "unknown"
	}
}

// RequiredFields must all resolve for a grid to yield records.
var RequiredFields = []Field{FieldProductCode, FieldNavDate, FieldUnitNav}

// SynonymTable maps each logical field to its accepted header/label
// variants. Matching is anchored: see Match.
type SynonymTable map[Field][]string

// DefaultSynonyms covers the header variants observed across senders,
// including English abbreviations used by offshore administrators.
func DefaultSynonyms() SynonymTable {
	return SynonymTable{
		FieldProductName: {
			"产品名称", "基金名称", "资产名称", "名称", "FundName",
		},
		FieldProductCode: {
			"产品代码", "基金代码", "资产代码", "代码",
			"协会备案编码", "协会备案代码", "FundFillingCode",
		},
		FieldNavDate: {
			"净值日期", "日期", "估值基准日", "NAVAsOfDate",
		},
		FieldUnitNav: {
			"单位净值", "基金份额净值", "产品单位净值", "当期净值",
			"资产净值", "净值", "实际净值", "NAV/Share", "NAVShare",
		},
		FieldCumulativeNav: {
			"累计单位净值", "基金份额累计净值", "产品累计单位净值",
			"当期累计净值", "资产净值累计净值", "累计净值", "实际累计净值",
			"AccumulatedNAV/Share", "AccumulatedNAVShare",
		},
	}
}

// LoadSynonyms merges an optional YAML overrides file (field name →
// extra variants) over the defaults. An empty path returns defaults.
func LoadSynonyms(path string) (SynonymTable, error) {
	table := DefaultSynonyms()
	if path == "" {
		return table, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms file: %w", err)
	}

	var overrides map[string][]string
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse synonyms file: %w", err)
	}

	for name, variants := range overrides {
		field, ok := fieldByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown field in synonyms file: %q", name)
		}
		table[field] = append(table[field], variants...)
	}
	return table, nil
}

func fieldByName(name string) (Field, bool) {
	for _, f := range fieldOrder {
		if f.String() == name {
			return f, true
		}
	}
	return 0, false
}

// normalizeToken strips whitespace and embedded line breaks so headers
// wrapped across cell lines still compare equal.
func normalizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ' ', '　':
			return -1
		}
		return r
	}, s)
}

// Match resolves a raw header/label token to a logical field.
//
// A synonym matches only when it equals the normalized token, or when
// it occurs inside it without a letter immediately before the match.
// That anchor rule keeps "客户名称" and "CounterpartyName" from
// resolving to product_name via the bare "名称"/"Name" variants. When
// synonyms of several fields match the same token, the longest synonym
// wins, so "净值日期" resolves to nav_date even though "净值" alone
// would claim unit_nav.
func (t SynonymTable) Match(token string) (Field, bool) {
	norm := normalizeToken(token)
	if norm == "" {
		return 0, false
	}

	var (
		best    Field
		bestLen = -1
	)
	for _, field := range fieldOrder {
		for _, synonym := range t[field] {
			syn := normalizeToken(synonym)
			if syn == "" || !anchoredContains(norm, syn) {
				continue
			}
			if len(syn) > bestLen {
				best = field
				bestLen = len(syn)
			}
		}
	}
	if bestLen < 0 {
		return 0, false
	}
	return best, true
}

func anchoredContains(token, synonym string) bool {
	if token == synonym {
		return true
	}
	idx := strings.Index(token, synonym)
	if idx < 0 {
		return false
	}
	if idx == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(token[:idx])
	return !unicode.IsLetter(prev)
}

// isLabelText reports whether a candidate value cell is itself a label,
// so key-value assembly never captures an adjacent header as a value.
// Beyond the synonym table this covers labels that appear in vertical
// statements but map to no canonical field.
func (t SynonymTable) isLabelText(value string) bool {
	if _, ok := t.Match(value); ok {
		return true
	}
	norm := normalizeToken(value)
	if norm == "" {
		return false
	}
	for _, label := range nonCanonicalLabels {
		if strings.Contains(norm, label) || strings.Contains(label, norm) {
			return true
		}
	}
	return false
}

var nonCanonicalLabels = []string{
	"客户名称", "份额", "参与计提份额", "计提频率",
	"业绩报酬", "提取净值", "虚拟净值",
}
