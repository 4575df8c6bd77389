package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/effectmoe/contract-system/model"
)

// DetectedFields are contract fields guessed from OCR text. Every field is
// best effort and may be empty.
type DetectedFields struct {
	Title   string             `json:"title,omitempty"`
	Type    model.ContractType `json:"type"`
	Parties []DetectedParty    `json:"parties"`
	Amount  *float64           `json:"amount,omitempty"`
	Dates   []string           `json:"dates"`
}

type DetectedParty struct {
	Label string          `json:"label"` // 甲, 乙, ...
	Role  model.PartyRole `json:"role"`
	Name  string          `json:"name"`
}

const maxTitleRunes = 100

var typeKeywords = []struct {
	t        model.ContractType
	keywords []string
}{
	{model.TypeNDA, []string{"秘密保持", "機密保持", "non-disclosure", "confidentiality agreement"}},
	{model.TypeEmployment, []string{"雇用", "労働契約", "employment"}},
	{model.TypeLease, []string{"賃貸借", "リース", "lease agreement", "rental"}},
	{model.TypeSales, []string{"売買", "販売", "sales agreement", "purchase agreement"}},
	{model.TypeService, []string{"業務委託", "請負", "準委任", "service agreement"}},
}

var (
	// 株式会社サンプル（以下「甲」という。）
	partyDefinedRe = regexp.MustCompile(`([^\s、。（()）「」]+?)\s*[（(]以下[、,]?\s*「(甲|乙|丙)」`)
	// 甲：株式会社サンプル
	partyLineRe = regexp.MustCompile(`^\s*(甲|乙|丙)\s*[:：]\s*(.+?)\s*$`)
	amountRe    = regexp.MustCompile(`(?:金\s*)?[¥￥]?\s*([0-9][0-9,]*)\s*円|[¥￥]\s*([0-9][0-9,]*)`)
	dateRe      = regexp.MustCompile(`(\d{4})(?:\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日|[/.\-](\d{1,2})[/.\-](\d{1,2}))`)
)

// DetectFields applies keyword and pattern heuristics to OCR output.
func DetectFields(text string) DetectedFields {
	text = normalizeDigits(text)
	lines := strings.Split(text, "\n")
	return DetectedFields{
		Title:   detectTitle(lines),
		Type:    detectType(text),
		Parties: detectParties(text, lines),
		Amount:  detectAmount(text),
		Dates:   detectDates(text),
	}
}

func detectTitle(lines []string) string {
	first := ""
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if first == "" {
			first = line
		}
		lower := strings.ToLower(line)
		if strings.Contains(line, "契約書") || strings.Contains(lower, "agreement") || strings.Contains(lower, "contract") {
			return truncateRunes(line, maxTitleRunes)
		}
	}
	return truncateRunes(first, maxTitleRunes)
}

func detectType(text string) model.ContractType {
	lower := strings.ToLower(text)
	for _, tk := range typeKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(lower, kw) {
				return tk.t
			}
		}
	}
	return model.TypeOther
}

func detectParties(text string, lines []string) []DetectedParty {
	parties := []DetectedParty{}
	seen := make(map[string]bool)
	add := func(label, name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[label] {
			return
		}
		seen[label] = true
		parties = append(parties, DetectedParty{Label: label, Role: partyRole(label), Name: name})
	}

	for _, m := range partyDefinedRe.FindAllStringSubmatch(text, -1) {
		// "AとB" lists both parties in one sentence.
		add(m[2], strings.TrimPrefix(m[1], "と"))
	}
	for _, line := range lines {
		if m := partyLineRe.FindStringSubmatch(line); m != nil {
			add(m[1], m[2])
		}
	}
	return parties
}

// 甲 is conventionally the ordering party.
func partyRole(label string) model.PartyRole {
	if label == "甲" {
		return model.RoleClient
	}
	return model.RoleContractor
}

// detectAmount returns the largest monetary amount, which is usually the
// contract price rather than a fee or penalty.
func detectAmount(text string) *float64 {
	var best *float64
	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil || v <= 0 {
			continue
		}
		if best == nil || v > *best {
			best = &v
		}
	}
	return best
}

func detectDates(text string) []string {
	dates := []string{}
	seen := make(map[string]bool)
	for _, m := range dateRe.FindAllStringSubmatch(text, -1) {
		month, day := m[2], m[3]
		if month == "" {
			month, day = m[4], m[5]
		}
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(month)
		d, _ := strconv.Atoi(day)
		t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
		// time.Date normalises overflow; reject dates like 2024/02/31.
		if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
			continue
		}
		s := t.Format("2006-01-02")
		if !seen[s] {
			seen[s] = true
			dates = append(dates, s)
		}
	}
	return dates
}

// normalizeDigits maps full-width digits and separators to ASCII.
func normalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '０' && r <= '９':
			return '0' + (r - '０')
		case r == '，':
			return ','
		case r == '／':
			return '/'
		}
		return r
	}, s)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
