package service

import (
	"context"
	"fmt"
	"time"

	"github.com/effectmoe/contract-system/model"
)

// SeedDemo fills empty demo stores with sample contracts and templates.
func SeedDemo(ctx context.Context, contracts ContractBackend, templates TemplateStore, now time.Time) error {
	for _, c := range demoContracts(now) {
		if err := contracts.Insert(ctx, c); err != nil {
			return fmt.Errorf("failed to seed contract %s: %w", c.ID, err)
		}
	}
	for _, t := range DemoTemplates(now) {
		if err := templates.Insert(ctx, t); err != nil {
			return fmt.Errorf("failed to seed template %s: %w", t.ID, err)
		}
	}
	return nil
}

func demoContracts(now time.Time) []*model.Contract {
	day := 24 * time.Hour
	signedAt := now.Add(-2 * day)
	return []*model.Contract{
		{
			ID:          "demo-001",
			Title:       "システム開発業務委託契約書",
			Description: "基幹システム刷新に関する開発委託",
			Content:     "第1条（目的）\n甲は乙に対し、基幹システムの開発業務を委託し、乙はこれを受託する。\n\n第2条（委託料）\n委託料は金12,000,000円とする。",
			Type:        model.TypeService,
			Status:      model.StatusPendingSignature,
			Parties: []model.Party{
				{ID: "demo-001-a", Type: model.RoleClient, Name: "田中 一郎", Email: "tanaka@example.co.jp", Company: "株式会社サンプル商事", SignatureRequired: true},
				{ID: "demo-001-b", Type: model.RoleContractor, Name: "鈴木 花子", Email: "suzuki@example.com", Company: "テックソリューション株式会社", SignatureRequired: true},
			},
			RetentionYears: model.DefaultRetentionYears,
			Tags:           []string{"開発", "IT"},
			Priority:       model.PriorityHigh,
			Category:       "業務委託",
			Amount:         12000000,
			CreatedBy:      "demo",
			CreatedAt:      now.Add(-10 * day),
			UpdatedAt:      now.Add(-3 * day),
		},
		{
			ID:      "demo-002",
			Title:   "秘密保持契約書",
			Content: "第1条（秘密情報）\n本契約において秘密情報とは、開示者が受領者に開示する一切の情報をいう。",
			Type:    model.TypeNDA,
			Status:  model.StatusCompleted,
			Parties: []model.Party{
				{ID: "demo-002-a", Type: model.RoleClient, Name: "佐藤 健", Email: "sato@example.jp", Company: "グローバル物産株式会社", SignatureRequired: true, SignedAt: &signedAt},
			},
			Signatures: []model.Signature{
				{
					ID: "demo-002-sig", PartyID: "demo-002-a", SignerName: "佐藤 健", SignerEmail: "sato@example.jp",
					SignedAt: signedAt, IPAddress: "203.0.113.10", UserAgent: "demo",
					VerificationHash: VerificationHash("demo-002", "demo-002-a", "sato@example.jp", signedAt,
						"第1条（秘密情報）\n本契約において秘密情報とは、開示者が受領者に開示する一切の情報をいう。"),
				},
			},
			RetentionYears: model.DefaultRetentionYears,
			Tags:           []string{"NDA"},
			Priority:       model.PriorityMedium,
			Category:       "秘密保持",
			CreatedBy:      "demo",
			CreatedAt:      now.Add(-20 * day),
			UpdatedAt:      signedAt,
		},
		{
			ID:      "demo-003",
			Title:   "事務所賃貸借契約書",
			Content: "第1条（賃貸物件）\n甲は乙に対し、東京都千代田区所在の事務所を賃貸する。",
			Type:    model.TypeLease,
			Status:  model.StatusDraft,
			Parties: []model.Party{
				{ID: "demo-003-a", Type: model.RoleClient, Name: "高橋 誠", Email: "takahashi@example.net", Company: "丸の内不動産株式会社", SignatureRequired: true},
			},
			RetentionYears: 10,
			Priority:       model.PriorityLow,
			Category:       "不動産",
			Amount:         350000,
			CreatedBy:      "demo",
			CreatedAt:      now.Add(-1 * day),
			UpdatedAt:      now.Add(-1 * day),
		},
		{
			ID:             "demo-004",
			Title:          "商品売買基本契約書",
			Content:        "第1条（適用範囲）\n本契約は、甲乙間の商品売買取引の全てに適用する。",
			Type:           model.TypeSales,
			Status:         model.StatusPendingReview,
			Parties:        []model.Party{},
			RetentionYears: model.DefaultRetentionYears,
			Tags:           []string{"取引基本"},
			Priority:       model.PriorityMedium,
			Category:       "売買",
			Amount:         5000000,
			CreatedBy:      "demo",
			CreatedAt:      now.Add(-5 * day),
			UpdatedAt:      now.Add(-4 * day),
		},
	}
}

// DemoTemplates are the built-in templates, also inserted by migrate when
// the template collection is empty.
func DemoTemplates(now time.Time) []*model.Template {
	one := 1.0
	return []*model.Template{
		{
			ID:          "tpl-service",
			Name:        "業務委託契約書",
			Description: "システム開発等の業務委託に使用する標準テンプレート",
			Type:        model.TypeService,
			Category:    "業務委託",
			Clauses: []model.Clause{
				{ID: "purpose", Title: "目的", Required: true, Content: "{{client}}（以下「甲」という。）は{{vendor}}（以下「乙」という。）に対し、{{work}}を委託し、乙はこれを受託する。"},
				{ID: "fee", Title: "委託料", Required: true, Content: "甲は乙に対し、委託料として金{{fee}}円（消費税別）を支払う。"},
				{ID: "term", Title: "契約期間", Required: true, Content: "本契約の有効期間は{{startDate}}から{{endDate}}までとする。"},
				{ID: "confidentiality", Title: "秘密保持", Content: "甲及び乙は、本契約に関して知り得た相手方の秘密情報を第三者に開示してはならない。"},
				{ID: "renewal", Title: "自動更新", Content: "期間満了の1か月前までに書面による申出がない場合、本契約は同一条件で1年間更新される。"},
			},
			Variables: []model.Variable{
				{Name: "client", Label: "委託者", Type: model.VarString, Required: true},
				{Name: "vendor", Label: "受託者", Type: model.VarString, Required: true},
				{Name: "work", Label: "業務内容", Type: model.VarString, Required: true},
				{Name: "fee", Label: "委託料", Type: model.VarNumber, Required: true, Min: &one},
				{Name: "startDate", Label: "開始日", Type: model.VarDate, Required: true},
				{Name: "endDate", Label: "終了日", Type: model.VarDate, Required: true},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          "tpl-nda",
			Name:        "秘密保持契約書",
			Description: "取引検討段階で締結する相互秘密保持契約",
			Type:        model.TypeNDA,
			Category:    "秘密保持",
			Clauses: []model.Clause{
				{ID: "definition", Title: "秘密情報", Required: true, Content: "本契約において秘密情報とは、{{discloser}}及び{{recipient}}が相互に開示する技術上又は営業上の情報をいう。"},
				{ID: "duration", Title: "有効期間", Required: true, Content: "本契約は締結日から{{years}}年間有効とする。"},
				{ID: "return", Title: "返還", Content: "本契約終了時、受領者は秘密情報を速やかに返還又は廃棄する。"},
			},
			Variables: []model.Variable{
				{Name: "discloser", Label: "開示者", Type: model.VarString, Required: true},
				{Name: "recipient", Label: "受領者", Type: model.VarString, Required: true},
				{Name: "years", Label: "有効期間（年）", Type: model.VarNumber, Default: "3", Min: &one},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}
