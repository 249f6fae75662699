package plugins

import (
	"context"

	"github.com/JaiwanShin/ai-marketing-team/pkg/loader"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runtime"
	"github.com/JaiwanShin/ai-marketing-team/pkg/utils"
)

const (
	topKeywordCount = 20
	shoppingDisplay = 100
	sampleItemCount = 20
)

// KeywordProvider serves the search_ad skill: top related keywords by volume.
type KeywordProvider struct {
	Client *utils.NaverClient
}

// Fetch returns up to twenty related keywords for query
func (p KeywordProvider) Fetch(ctx context.Context, query string) (interface{}, error) {
	result, err := p.Client.Keywords(ctx, query)
	if err != nil {
		return nil, err
	}
	return result.TopKeywords(topKeywordCount), nil
}

// PriceReport is the shopping skill's data: price distribution and samples
type PriceReport struct {
	Stats       *utils.PriceStats    `json:"stats"`
	SampleItems []utils.ShoppingItem `json:"sample_items"`
}

// ShoppingProvider serves the shopping skill.
type ShoppingProvider struct {
	Client *utils.NaverClient
}

// Fetch returns the price distribution of the first hundred products
func (p ShoppingProvider) Fetch(ctx context.Context, query string) (interface{}, error) {
	result, err := p.Client.Shopping(ctx, query, shoppingDisplay)
	if err != nil {
		return nil, err
	}
	return NewPriceReport(result), nil
}

// NewPriceReport summarizes a shopping result.
func NewPriceReport(result *utils.ShoppingResult) PriceReport {
	report := PriceReport{SampleItems: result.Items}
	if len(report.SampleItems) > sampleItemCount {
		report.SampleItems = report.SampleItems[:sampleItemCount]
	}
	if stats, ok := result.PriceStats(); ok {
		report.Stats = &stats
	}
	return report
}

// TrendProvider serves the datalab skill.
type TrendProvider struct {
	Client *utils.NaverClient
}

// Fetch returns the last year's monthly search trend
func (p TrendProvider) Fetch(ctx context.Context, query string) (interface{}, error) {
	result, err := p.Client.Trend(ctx, query)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RegisterNaverProviders binds the Naver providers to their skill names.
func RegisterNaverProviders(registry ProviderRegistry, client *utils.NaverClient) error {
	providers := map[string]runtime.DataProvider{
		loader.SkillSearchAd: KeywordProvider{Client: client},
		loader.SkillShopping: ShoppingProvider{Client: client},
		loader.SkillDataLab:  TrendProvider{Client: client},
	}
	for _, skill := range []string{loader.SkillSearchAd, loader.SkillShopping, loader.SkillDataLab} {
		if err := registry.Register(skill, providers[skill]); err != nil {
			return err
		}
	}
	return nil
}
