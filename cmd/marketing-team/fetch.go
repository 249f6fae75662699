package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/plugins"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runtime"
	"github.com/JaiwanShin/ai-marketing-team/pkg/utils"
)

const fetchTimeout = 60 * time.Second

var fetchCmd = &cobra.Command{
	Use:   "fetch <keyword>",
	Short: "Fetch Naver keyword, price and trend data for a keyword",
	Long: `Fetch queries the Naver keyword tool, shopping search and DataLab for a
keyword and saves each result as an output artifact. A provider that fails
is reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

// fetchSource is one provider and the artifact its result is saved to
type fetchSource struct {
	label    string
	artifact string
	provider runtime.DataProvider
}

func runFetch(cmd *cobra.Command, args []string) error {
	keyword := strings.TrimSpace(args[0])
	if keyword == "" {
		return errors.New("keyword is required")
	}

	app, err := newApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	if !app.config.Naver.Enabled() {
		return errors.New("no Naver credentials configured")
	}
	client := app.naverClient()

	sources := []fetchSource{
		{label: "Keywords", artifact: "keyword_api_data.md", provider: plugins.KeywordProvider{Client: client}},
		{label: "Prices", artifact: "price_api_data.md", provider: plugins.ShoppingProvider{Client: client}},
		{label: "Trend", artifact: "trend_api_data.md", provider: plugins.TrendProvider{Client: client}},
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout)
	defer cancel()

	fmt.Println(headerStyle.Render("Naver data for " + keyword))
	saved := 0
	for _, src := range sources {
		data, err := src.provider.Fetch(ctx, keyword)
		if err != nil {
			app.logger.Warn("Data provider failed",
				logging.F("provider", src.label),
				logging.Err(err))
			fmt.Printf("%s %s\n", errorStyle.Render(src.label+":"), err)
			continue
		}

		content, err := dataArtifact(src.label, keyword, data)
		if err != nil {
			return err
		}
		if _, err := app.artifacts.Save(src.artifact, content); err != nil {
			return fmt.Errorf("failed to save %s: %w", src.artifact, err)
		}
		saved++

		fmt.Printf("%s saved to %s\n", successStyle.Render(src.label+":"), src.artifact)
		printSummary(data)
	}

	if saved == 0 {
		return errors.New("every data provider failed")
	}
	return nil
}

// dataArtifact renders provider data as markdown with a fenced JSON body.
func dataArtifact(label, keyword string, data interface{}) (string, error) {
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s data: %w", strings.ToLower(label), err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s\n\n", label, keyword)
	fmt.Fprintf(&b, "Fetched %s\n\n", time.Now().Format(time.RFC3339))
	b.WriteString("```json\n")
	b.Write(body)
	b.WriteString("\n```\n")
	return b.String(), nil
}

func printSummary(data interface{}) {
	switch v := data.(type) {
	case []utils.KeywordStat:
		n := len(v)
		if n > 5 {
			n = 5
		}
		for i, k := range v[:n] {
			fmt.Printf("  %d. %-24s %8d/month  %s\n", i+1, k.RelKeyword, k.Total(), dimStyle.Render(k.CompIdx))
		}
	case plugins.PriceReport:
		if v.Stats == nil {
			fmt.Println(dimStyle.Render("  no prices"))
			return
		}
		fmt.Printf("  %d items, min %d, median %d, max %d\n", v.Stats.Count, v.Stats.Min, v.Stats.Median, v.Stats.Max)
	case *utils.TrendResult:
		for _, series := range v.Results {
			if len(series.Data) == 0 {
				continue
			}
			last := series.Data[len(series.Data)-1]
			fmt.Printf("  %s: %d periods, latest %s %.1f\n", series.Title, len(series.Data), last.Period, last.Ratio)
		}
	}
}
