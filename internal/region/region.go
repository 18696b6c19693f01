// Package region classifies station names into administrative provinces and
// holds the fixed geography the dashboard draws on.
package region

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Fallback is the label for station names no rule matches.
const Fallback = "기타"

// Rule maps name fragments to a province.
type Rule struct {
	Province  string
	Fragments []string
}

// Table is an ordered, read-only list of classification rules.
// Rules are tried in order and the first match wins.
type Table struct {
	rules []Rule
}

// NewTable builds a table from rules, normalising every fragment to NFC so
// decomposed Hangul input still matches.
func NewTable(rules []Rule) *Table {
	t := &Table{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		frags := make([]string, 0, len(r.Fragments))
		for _, f := range r.Fragments {
			if f = norm.NFC.String(strings.TrimSpace(f)); f != "" {
				frags = append(frags, f)
			}
		}
		t.rules = append(t.rules, Rule{Province: r.Province, Fragments: frags})
	}
	return t
}

// adminSuffixes are stripped before the exact-name pass.
var adminSuffixes = []string{"특별자치시", "특별자치도", "광역시", "특별시", "시", "군", "구", "읍", "면"}

// ProvinceFromStationName maps a free-text station name to its province.
//
// A name that is exactly a fragment (optionally followed by an administrative
// suffix such as 시 or 군) resolves through that fragment first. Otherwise the
// first rule with any fragment contained in the name wins. Unmatched names
// return Fallback.
func (t *Table) ProvinceFromStationName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return Fallback
	}

	base := stripSuffix(name)
	for _, r := range t.rules {
		for _, f := range r.Fragments {
			if f == name || f == base {
				return r.Province
			}
		}
	}

	for _, r := range t.rules {
		if _, ok := ContainsAny(name, r.Fragments...); ok {
			return r.Province
		}
	}
	return Fallback
}

// Provinces lists the distinct provinces in table order.
func (t *Table) Provinces() []string {
	seen := make(map[string]bool, len(t.rules))
	out := make([]string, 0, len(t.rules))
	for _, r := range t.rules {
		if !seen[r.Province] {
			seen[r.Province] = true
			out = append(out, r.Province)
		}
	}
	return out
}

// ContainsAny returns the first of subs contained in s.
func ContainsAny(s string, subs ...string) (string, bool) {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return sub, true
		}
	}
	return "", false
}

func stripSuffix(name string) string {
	for _, suf := range adminSuffixes {
		if base, ok := strings.CutSuffix(name, suf); ok && base != "" {
			return base
		}
	}
	return name
}

// DefaultTable returns the built-in station name table.
// Order matters: 광주 resolves to 광주광역시 before the 경기도 rule is reached.
func DefaultTable() *Table {
	return NewTable([]Rule{
		{"서울특별시", []string{"서울"}},
		{"부산광역시", []string{"부산"}},
		{"대구광역시", []string{"대구", "군위"}},
		{"인천광역시", []string{"인천", "옹진"}},
		{"광주광역시", []string{"광주"}},
		{"대전광역시", []string{"대전"}},
		{"울산광역시", []string{"울산", "울주"}},
		{"세종특별자치시", []string{"세종"}},
		{"제주특별자치도", []string{"제주", "서귀포"}},
		{"경기도", []string{
			"고양", "파주", "김포", "시흥", "화성", "용인", "평택", "안성", "광주", "이천",
			"여주", "남양주", "양평", "가평", "양주", "연천", "포천", "수원",
		}},
		{"강원특별자치도", []string{
			"춘천", "화천", "강릉", "양양", "속초", "원주", "횡성", "영월", "평창", "정선",
			"태백", "동해", "삼척", "홍천", "인제", "양구", "철원",
		}},
		{"충청북도", []string{
			"청주", "청원", "진천", "음성", "충주", "제천", "영동", "옥천", "보은", "괴산",
			"증평", "단양",
		}},
		{"충청남도", []string{
			"천안", "공주", "금산", "논산", "계룡", "부여", "아산", "예산", "당진", "청양",
			"홍성", "보령", "태안", "서산",
		}},
		{"전북특별자치도", []string{
			"전주", "완주", "임실", "진안", "익산", "김제", "정읍", "무주", "남원", "순창",
			"장수", "군산", "부안", "고창",
		}},
		{"전라남도", []string{
			"목포", "영광", "장성", "곡성", "화순", "나주", "함평", "영암", "장흥", "무안",
			"신안", "해남", "완도", "진도", "순천", "구례", "보성", "고흥", "여수", "강진",
			"담양",
		}},
		{"경상북도", []string{
			"포항", "경주", "영천", "구미", "상주", "영주", "봉화", "예천", "안동", "청송",
			"영양", "영덕", "울진", "의성", "문경", "경산", "청도", "칠곡", "성주",
		}},
		{"경상남도", []string{
			"창원", "김해", "밀양", "창녕", "고성", "통영", "거제", "진주", "사천", "하동",
			"남해", "거창", "합천", "함양", "산청", "의령",
		}},
	})
}
