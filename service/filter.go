package service

import (
	"cmp"
	"slices"
	"strings"

	"github.com/effectmoe/contract-system/model"
)

// SortKey is a field contracts can be ordered by.
type SortKey string

const (
	SortCreatedAt SortKey = "createdAt"
	SortUpdatedAt SortKey = "updatedAt"
	SortTitle     SortKey = "title"
	SortCompany   SortKey = "company"
	SortPriority  SortKey = "priority"
	SortAmount    SortKey = "amount"
)

// Valid reports whether k is a supported sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortCreatedAt, SortUpdatedAt, SortTitle, SortCompany, SortPriority, SortAmount:
		return true
	}
	return false
}

// SortOrder is the sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// FilterSpec selects and orders contracts. Every non-empty filter field must
// match (logical AND).
type FilterSpec struct {
	Query    string
	Status   model.Status
	Type     model.ContractType
	Category string
	Priority model.Priority
	Tag      string

	SortBy    SortKey
	SortOrder SortOrder
}

// Matches reports whether c satisfies every filter in fs.
func (fs FilterSpec) Matches(c *model.Contract) bool {
	if fs.Status != "" && c.Status != fs.Status {
		return false
	}
	if fs.Type != "" && c.Type != fs.Type {
		return false
	}
	if fs.Category != "" && c.Category != fs.Category {
		return false
	}
	if fs.Priority != "" && c.Priority != fs.Priority {
		return false
	}
	if fs.Tag != "" && !slices.Contains(c.Tags, fs.Tag) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(fs.Query)); q != "" {
		return matchesQuery(c, q)
	}
	return true
}

func matchesQuery(c *model.Contract, q string) bool {
	fields := []string{c.Title, c.Description, c.ID}
	for _, p := range c.Parties {
		fields = append(fields, p.Name, p.Email, p.Company)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// FilterAndSort returns a new slice holding the contracts that match fs,
// stably ordered by fs's single sort key. The input is never modified;
// ties keep their input order.
func FilterAndSort(contracts []*model.Contract, fs FilterSpec) []*model.Contract {
	out := make([]*model.Contract, 0, len(contracts))
	for _, c := range contracts {
		if c != nil && fs.Matches(c) {
			out = append(out, c)
		}
	}

	key := fs.SortBy
	if !key.Valid() {
		key = SortCreatedAt
	}
	compare := comparator(key)
	if fs.SortOrder == SortAsc {
		slices.SortStableFunc(out, compare)
	} else {
		slices.SortStableFunc(out, func(a, b *model.Contract) int { return compare(b, a) })
	}
	return out
}

func comparator(key SortKey) func(a, b *model.Contract) int {
	switch key {
	case SortUpdatedAt:
		return func(a, b *model.Contract) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	case SortTitle:
		return func(a, b *model.Contract) int { return strings.Compare(a.Title, b.Title) }
	case SortCompany:
		return func(a, b *model.Contract) int { return strings.Compare(a.ClientCompany(), b.ClientCompany()) }
	case SortPriority:
		return func(a, b *model.Contract) int { return cmp.Compare(a.Priority.Rank(), b.Priority.Rank()) }
	case SortAmount:
		return func(a, b *model.Contract) int { return cmp.Compare(a.Amount, b.Amount) }
	default:
		return func(a, b *model.Contract) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}
