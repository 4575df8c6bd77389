package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/pkg/apperr"
	"github.com/effectmoe/contract-system/pkg/logger"
)

var ErrTemplateNotFound = errors.New("template not found")

type TemplateStore interface {
	List(ctx context.Context) ([]*model.Template, error)
	Get(ctx context.Context, id string) (*model.Template, error)
	Insert(ctx context.Context, t *model.Template) error
}

// MemoryTemplateStore keeps templates in process for demo mode.
type MemoryTemplateStore struct {
	mu    sync.RWMutex
	items map[string]*model.Template
	order []string
}

// NewMemoryTemplateStore creates an empty in-memory template store.
func NewMemoryTemplateStore() *MemoryTemplateStore {
	return &MemoryTemplateStore{items: make(map[string]*model.Template)}
}

func (s *MemoryTemplateStore) List(_ context.Context) ([]*model.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Template, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneTemplate(s.items[id]))
	}
	return out, nil
}

func (s *MemoryTemplateStore) Get(_ context.Context, id string) (*model.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.items[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return cloneTemplate(t), nil
}

func (s *MemoryTemplateStore) Insert(_ context.Context, t *model.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.items[t.ID] = cloneTemplate(t)
	return nil
}

func cloneTemplate(t *model.Template) *model.Template {
	out := *t
	out.Clauses = make([]model.Clause, len(t.Clauses))
	for i, c := range t.Clauses {
		c.Variables = slices.Clone(c.Variables)
		out.Clauses[i] = c
	}
	out.Variables = slices.Clone(t.Variables)
	return &out
}

// InstantiateInput fills a template to create a contract.
type InstantiateInput struct {
	Title           string
	Description     string
	Values          map[string]any
	OptionalClauses []string
	Parties         []model.Party
	Tags            []string
	Priority        model.Priority
	Category        string
	Amount          float64
	RetentionYears  int
}

// TemplateService lists templates and turns them into draft contracts.
type TemplateService struct {
	store     TemplateStore
	contracts *ContractService
}

// NewTemplateService creates a new template service.
func NewTemplateService(store TemplateStore, contracts *ContractService) *TemplateService {
	return &TemplateService{store: store, contracts: contracts}
}

// List returns all templates. A store failure yields an empty list.
func (s *TemplateService) List(ctx context.Context) []*model.Template {
	templates, err := s.store.List(ctx)
	if err != nil {
		logger.Error(ctx, "failed to list templates", "error", err)
		return []*model.Template{}
	}
	if templates == nil {
		templates = []*model.Template{}
	}
	return templates
}

func (s *TemplateService) Get(ctx context.Context, id string) (*model.Template, error) {
	t, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrTemplateNotFound) {
		return nil, apperr.NotFound("テンプレートが見つかりません")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return t, nil
}

// Instantiate renders the template with in.Values and stores the result as
// a new draft contract.
func (s *TemplateService) Instantiate(ctx context.Context, id string, in InstantiateInput, actor string) (*model.Contract, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	content, err := RenderTemplate(t, in.Values, in.OptionalClauses)
	if err != nil {
		return nil, err
	}

	title := in.Title
	if title == "" {
		title = t.Name
	}
	category := in.Category
	if category == "" {
		category = t.Category
	}
	return s.contracts.Create(ctx, NewContract{
		Title:          title,
		Description:    in.Description,
		Content:        content,
		Type:           t.Type,
		Parties:        in.Parties,
		Tags:           in.Tags,
		Priority:       in.Priority,
		Category:       category,
		Amount:         in.Amount,
		RetentionYears: in.RetentionYears,
		TemplateID:     t.ID,
	}, actor)
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// RenderTemplate validates values against the template's variable schema
// and renders the included clauses as numbered articles. Required clauses
// are always included; optional ones only when selected by id.
func RenderTemplate(t *model.Template, values map[string]any, selected []string) (string, error) {
	var problems []string

	known := make(map[string]bool, len(t.Clauses))
	for _, c := range t.Clauses {
		known[c.ID] = true
	}
	for _, id := range selected {
		if !known[id] {
			problems = append(problems, fmt.Sprintf("条項 %s はテンプレートにありません", id))
		}
	}

	var clauses []model.Clause
	used := make(map[string]bool)
	for _, c := range t.Clauses {
		if !c.Required && !slices.Contains(selected, c.ID) {
			continue
		}
		clauses = append(clauses, c)
		for _, name := range c.Variables {
			used[name] = true
		}
		for _, m := range placeholderRe.FindAllStringSubmatch(c.Content, -1) {
			used[m[1]] = true
		}
	}

	defined := make(map[string]bool, len(t.Variables))
	rendered := make(map[string]string, len(t.Variables))
	for _, v := range t.Variables {
		defined[v.Name] = true
		raw, ok := values[v.Name]
		if !ok || raw == nil || raw == "" {
			if v.Default == "" {
				if v.Required && used[v.Name] {
					problems = append(problems, fmt.Sprintf("%s は必須です", variableLabel(v)))
				}
				continue
			}
			raw = v.Default
		}
		s, err := formatVariable(v, raw)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		rendered[v.Name] = s
	}
	for name := range values {
		if !defined[name] {
			problems = append(problems, fmt.Sprintf("変数 %s はテンプレートに定義されていません", name))
		}
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return "", apperr.Validation("%s", strings.Join(problems, "; "))
	}

	var b strings.Builder
	for i, c := range clauses {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "第%d条（%s）\n", i+1, c.Title)
		b.WriteString(placeholderRe.ReplaceAllStringFunc(c.Content, func(m string) string {
			name := placeholderRe.FindStringSubmatch(m)[1]
			if v, ok := rendered[name]; ok {
				return v
			}
			return m
		}))
	}
	return b.String(), nil
}

func variableLabel(v model.Variable) string {
	if v.Label != "" {
		return v.Label
	}
	return v.Name
}

// formatVariable checks raw against v and returns its text in the contract.
func formatVariable(v model.Variable, raw any) (string, error) {
	label := variableLabel(v)
	switch v.Type {
	case model.VarNumber:
		var n float64
		switch x := raw.(type) {
		case float64:
			n = x
		case int:
			n = float64(x)
		case string:
			f, err := strconv.ParseFloat(strings.ReplaceAll(x, ",", ""), 64)
			if err != nil {
				return "", fmt.Errorf("%s は数値で指定してください", label)
			}
			n = f
		default:
			return "", fmt.Errorf("%s は数値で指定してください", label)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return "", fmt.Errorf("%s は数値で指定してください", label)
		}
		if v.Min != nil && n < *v.Min {
			return "", fmt.Errorf("%s は %s 以上で指定してください", label, formatNumber(*v.Min))
		}
		if v.Max != nil && n > *v.Max {
			return "", fmt.Errorf("%s は %s 以下で指定してください", label, formatNumber(*v.Max))
		}
		return formatNumber(n), nil

	case model.VarDate:
		s, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("%s は日付 (YYYY-MM-DD) で指定してください", label)
		}
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			return "", fmt.Errorf("%s は日付 (YYYY-MM-DD) で指定してください", label)
		}
		return fmt.Sprintf("%d年%d月%d日", d.Year(), d.Month(), d.Day()), nil

	case model.VarBoolean:
		var b bool
		switch x := raw.(type) {
		case bool:
			b = x
		case string:
			parsed, err := strconv.ParseBool(x)
			if err != nil {
				return "", fmt.Errorf("%s は true または false で指定してください", label)
			}
			b = parsed
		default:
			return "", fmt.Errorf("%s は true または false で指定してください", label)
		}
		if b {
			return "有", nil
		}
		return "無", nil

	default:
		s, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("%s は文字列で指定してください", label)
		}
		n := float64(utf8.RuneCountInString(s))
		if v.Min != nil && n < *v.Min {
			return "", fmt.Errorf("%s は %s 文字以上で指定してください", label, formatNumber(*v.Min))
		}
		if v.Max != nil && n > *v.Max {
			return "", fmt.Errorf("%s は %s 文字以内で指定してください", label, formatNumber(*v.Max))
		}
		if v.Pattern != "" {
			re, err := regexp.Compile(v.Pattern)
			if err != nil {
				return "", fmt.Errorf("%s の入力規則が不正です", label)
			}
			if !re.MatchString(s) {
				return "", fmt.Errorf("%s の形式が正しくありません", label)
			}
		}
		return s, nil
	}
}

// formatNumber prints integers with thousands separators, as amounts are
// written in Japanese contracts.
func formatNumber(n float64) string {
	if n != float64(int64(n)) {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	s := strconv.FormatInt(int64(n), 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
