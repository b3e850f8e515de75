package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/quickview/models"
)

// CLI flags
var (
	apiURL     = flag.String("api-url", "http://localhost:8080", "Quick-view API base URL")
	apiKey     = flag.String("api-key", "", "API key for authenticated requests")
	runs       = flag.Int("runs", 3, "Number of runs per product for averaging")
	hoverDelay = flag.Duration("hover-delay", 200*time.Millisecond, "Server hover delay; the hover scenario waits a little longer")
	output     = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Each product is opened three ways: cold (empty cache), warm (just opened)
// and after a hover long enough to trigger the prefetch.
const (
	scenarioCold  = "cold"
	scenarioWarm  = "warm"
	scenarioHover = "hover"
)

var scenarios = []string{scenarioCold, scenarioWarm, scenarioHover}

type runResult struct {
	Run         int    `json:"run"`
	Scenario    string `json:"scenario"`
	LatencyMs   int64  `json:"latency_ms"`
	State       string `json:"state"`
	CacheStatus string `json:"cache_status"`
	ContentLen  int    `json:"content_length"`
	Error       string `json:"error,omitempty"`
}

type productResult struct {
	URL      string             `json:"url"`
	Runs     []runResult        `json:"runs"`
	Averages map[string]float64 `json:"average_latency_ms"`
	HitRate  map[string]float64 `json:"hit_rate"`
}

type benchmarkReport struct {
	Timestamp      string          `json:"timestamp"`
	APIURL         string          `json:"api_url"`
	RunsPerProduct int             `json:"runs_per_product"`
	Results        []productResult `json:"results"`
}

type client struct {
	http *http.Client
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: benchmark [flags] <product-url>...\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	products := flag.Args()
	if len(products) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	fmt.Println("=== Quick-View Benchmark ===")
	fmt.Printf("API URL:      %s\n", *apiURL)
	fmt.Printf("Runs/product: %d\n", *runs)
	fmt.Printf("Output:       %s\n", *output)
	fmt.Println()

	c := &client{http: &http.Client{Timeout: 60 * time.Second}}
	if err := c.checkAPI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		APIURL:         *apiURL,
		RunsPerProduct: *runs,
	}

	for _, product := range products {
		fmt.Printf("Benchmarking %s ...\n", product)
		pr := productResult{URL: product}

		for i := 1; i <= *runs; i++ {
			for _, sc := range scenarios {
				rr := c.run(product, sc, i)
				if rr.Error == "" {
					fmt.Printf("  Run %d %-5s  %4dms  %-7s %s\n", i, sc, rr.LatencyMs, rr.State, rr.CacheStatus)
				} else {
					fmt.Printf("  Run %d %-5s  FAILED: %s\n", i, sc, rr.Error)
				}
				pr.Runs = append(pr.Runs, rr)
			}
		}

		pr.Averages, pr.HitRate = summarize(pr.Runs)
		report.Results = append(report.Results, pr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

// run prepares the cache for the scenario, then times one open.
func (c *client) run(product, scenario string, run int) runResult {
	rr := runResult{Run: run, Scenario: scenario}
	session := fmt.Sprintf("bench-%d", time.Now().UnixNano())

	switch scenario {
	case scenarioCold:
		if err := c.call(http.MethodDelete, "/api/v1/cache", session, nil, &models.AckResponse{}); err != nil {
			rr.Error = err.Error()
			return rr
		}
	case scenarioHover:
		if err := c.call(http.MethodDelete, "/api/v1/cache", session, nil, &models.AckResponse{}); err != nil {
			rr.Error = err.Error()
			return rr
		}
		hover := models.HoverRequest{CardID: "bench-card", Href: product}
		if err := c.call(http.MethodPost, "/api/v1/prefetch/hover", session, hover, &models.AckResponse{}); err != nil {
			rr.Error = err.Error()
			return rr
		}
		// Delay plus a rough upstream round trip.
		time.Sleep(*hoverDelay + 500*time.Millisecond)
	}

	var resp models.QuickViewResponse
	start := time.Now()
	err := c.call(http.MethodPost, "/api/v1/quickview/open", session, models.OpenRequest{URL: product}, &resp)
	rr.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		rr.Error = err.Error()
		return rr
	}

	rr.State = resp.State
	rr.CacheStatus = resp.CacheStatus
	rr.ContentLen = len(resp.Content)
	if resp.Error != nil {
		rr.Error = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
	}

	_ = c.call(http.MethodPost, "/api/v1/quickview/close", session, nil, &models.AckResponse{})
	return rr
}

func (c *client) checkAPI() error {
	resp, err := c.http.Get(*apiURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *client) call(method, path, session string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
	}

	req, err := http.NewRequest(method, *apiURL+path, &body)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", session)
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode error (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

// summarize averages latency and cache hit rate per scenario over the
// successful runs.
func summarize(runs []runResult) (latency, hitRate map[string]float64) {
	latency = make(map[string]float64)
	hitRate = make(map[string]float64)
	counts := make(map[string]int)

	for _, r := range runs {
		if r.Error != "" {
			continue
		}
		counts[r.Scenario]++
		latency[r.Scenario] += float64(r.LatencyMs)
		if r.CacheStatus == "hit" {
			hitRate[r.Scenario]++
		}
	}
	for sc, n := range counts {
		latency[sc] /= float64(n)
		hitRate[sc] /= float64(n)
	}
	return latency, hitRate
}

func printTable(results []productResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Product\tCold\tWarm\tHover\tHover Hit Rate\n")
	fmt.Fprintf(w, "───────\t────\t────\t─────\t──────────────\n")

	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f%%\n",
			truncateURL(r.URL, 40),
			formatMs(r.Averages, scenarioCold),
			formatMs(r.Averages, scenarioWarm),
			formatMs(r.Averages, scenarioHover),
			r.HitRate[scenarioHover]*100,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func formatMs(avg map[string]float64, scenario string) string {
	v, ok := avg[scenario]
	if !ok {
		return "FAILED"
	}
	return fmt.Sprintf("%dms", int64(v))
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
