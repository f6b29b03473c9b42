package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/lumatrade/council/internal/dataflows"
)

type companyNewsArgs struct {
	Query    string `json:"query"`
	Date     string `json:"date"`
	LookBack int    `json:"look_back_days"`
	Max      int    `json:"max_results"`
}

type companyNewsResult struct {
	Query    string            `json:"query"`
	Articles []newsItemSummary `json:"articles"`
}

type newsItemSummary struct {
	Title     string `json:"title"`
	Source    string `json:"source,omitempty"`
	Published string `json:"published,omitempty"`
}

// newCompanyNewsTool exposes recent headlines to the news and social
// analysts.
func newCompanyNewsTool(news *dataflows.NewsClient) tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_company_news",
			Desc: "Search recent news headlines for a company or topic",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "Company name, symbol or topic to search for",
					Required: true,
				},
				"date": {
					Type:     "string",
					Desc:     "End date in YYYY-MM-DD format (defaults to today)",
					Required: false,
				},
				"look_back_days": {
					Type:     "integer",
					Desc:     "How many days back to search (default 7)",
					Required: false,
				},
				"max_results": {
					Type:     "integer",
					Desc:     "Maximum number of headlines (default 10)",
					Required: false,
				},
			}),
		},
		func(ctx context.Context, input companyNewsArgs) (*companyNewsResult, error) {
			if input.Query == "" {
				return nil, fmt.Errorf("query parameter is required")
			}
			end := time.Now()
			if input.Date != "" {
				parsed, err := time.Parse("2006-01-02", input.Date)
				if err != nil {
					return nil, fmt.Errorf("invalid date %q: %w", input.Date, err)
				}
				end = parsed
			}
			lookBack := input.LookBack
			if lookBack <= 0 {
				lookBack = 7
			}
			max := input.Max
			if max <= 0 {
				max = 10
			}

			articles, err := news.Search(dataflows.NewsParams{
				Query:      input.Query,
				StartDate:  end.AddDate(0, 0, -lookBack),
				EndDate:    end,
				MaxResults: max,
			})
			if err != nil {
				return nil, err
			}

			out := &companyNewsResult{Query: input.Query}
			for _, a := range articles {
				item := newsItemSummary{Title: a.Title, Source: a.Source}
				if !a.PublishedAt.IsZero() {
					item.Published = a.PublishedAt.Format("2006-01-02")
				}
				out.Articles = append(out.Articles, item)
			}
			return out, nil
		},
	)
}
