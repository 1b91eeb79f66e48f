// Load tool for the SalesPulse report generation endpoint.
//
// Usage:
//
//	go run ./cmd/benchmark -url http://localhost:5000 -requests 500 -workers 10
//
// This tool:
//  1. Picks random date ranges inside [-from, -to]
//  2. Sends each range to /api/analytics/generate from a pool of workers
//  3. Counts responses by status code (200, 400, 429, 504, ...)
//  4. Reports throughput and latency percentiles
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sort"
	"sync"
	"time"
)

const layout = "2006-01-02"

// DateRange is one generate request.
type DateRange struct {
	Start string
	End   string
}

// GenerateResponse is the subset of the report the tool checks.
type GenerateResponse struct {
	ID           int64   `json:"id"`
	TotalOrders  int64   `json:"total_orders"`
	TotalRevenue float64 `json:"total_revenue"`
}

// Result is the outcome of one request.
type Result struct {
	Status  int
	Latency time.Duration
	Orders  int64
	Err     error
}

func main() {
	baseURL := flag.String("url", "http://localhost:5000", "SalesPulse base URL")
	requests := flag.Int("requests", 200, "Number of generate requests to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	from := flag.String("from", "2024-01-01", "Earliest start date (YYYY-MM-DD)")
	to := flag.String("to", "2024-12-31", "Latest end date (YYYY-MM-DD)")
	maxDays := flag.Int("max-days", 90, "Longest range in days")
	timeout := flag.Duration("timeout", 30*time.Second, "Per-request timeout")
	verbose := flag.Bool("verbose", false, "Print each request result")
	flag.Parse()

	lo, err := time.Parse(layout, *from)
	if err != nil {
		fail("invalid -from: %v", err)
	}
	hi, err := time.Parse(layout, *to)
	if err != nil {
		fail("invalid -to: %v", err)
	}
	if hi.Before(lo) {
		fail("-to must not be before -from")
	}
	if *workers < 1 || *requests < 1 || *maxDays < 1 {
		fail("-workers, -requests and -max-days must be positive")
	}

	fmt.Println("SALESPULSE BENCHMARK - report generation")
	fmt.Printf("\nURL:       %s\n", *baseURL)
	fmt.Printf("Requests:  %d\n", *requests)
	fmt.Printf("Workers:   %d\n", *workers)
	fmt.Printf("Window:    %s .. %s (max %d days)\n", *from, *to, *maxDays)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: SalesPulse not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure the server is running:")
		fmt.Println("  go run ./cmd/salespulse serve")
		os.Exit(1)
	}
	fmt.Println("OK: SalesPulse is healthy")

	ranges := randomRanges(*requests, lo, hi, *maxDays)

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	start := time.Now()
	results := run(ranges, *baseURL, *workers, *timeout, *verbose)
	printResults(results, time.Since(start))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
	os.Exit(2)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func randomRanges(n int, lo, hi time.Time, maxDays int) []DateRange {
	span := int(hi.Sub(lo).Hours()/24) + 1
	out := make([]DateRange, n)
	for i := range out {
		start := lo.AddDate(0, 0, rand.IntN(span))
		end := start.AddDate(0, 0, rand.IntN(maxDays))
		if end.After(hi) {
			end = hi
		}
		out[i] = DateRange{Start: start.Format(layout), End: end.Format(layout)}
	}
	return out
}

func run(ranges []DateRange, baseURL string, numWorkers int, timeout time.Duration, verbose bool) []Result {
	work := make(chan int, len(ranges))
	results := make([]Result, len(ranges))
	var wg sync.WaitGroup

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: timeout}
			for i := range work {
				results[i] = generate(client, baseURL, ranges[i])
				if verbose {
					r := results[i]
					fmt.Printf("%s..%s | status %3d | orders %6d | %v\n",
						ranges[i].Start, ranges[i].End, r.Status, r.Orders, r.Latency.Round(time.Millisecond))
				}
			}
		}()
	}

	for i := range ranges {
		work <- i
	}
	close(work)
	wg.Wait()

	return results
}

func generate(client *http.Client, baseURL string, rng DateRange) Result {
	q := url.Values{}
	q.Set("startDate", rng.Start)
	q.Set("endDate", rng.End)

	start := time.Now()
	resp, err := client.Get(baseURL + "/api/analytics/generate?" + q.Encode())
	if err != nil {
		return Result{Latency: time.Since(start), Err: err}
	}
	defer resp.Body.Close()

	res := Result{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusOK {
		var body GenerateResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			res.Err = err
		}
		res.Orders = body.TotalOrders
	}
	res.Latency = time.Since(start)
	return res
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func printResults(results []Result, duration time.Duration) {
	fmt.Println("\nBENCHMARK RESULTS")

	byStatus := make(map[int]int)
	var transportErrors int
	latencies := make([]time.Duration, 0, len(results))
	for _, r := range results {
		if r.Err != nil && r.Status == 0 {
			transportErrors++
			continue
		}
		byStatus[r.Status]++
		latencies = append(latencies, r.Latency)
	}
	slices.Sort(latencies)

	codes := make([]int, 0, len(byStatus))
	for code := range byStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	fmt.Printf("\nSTATUS CODES\n")
	for _, code := range codes {
		fmt.Printf("   %3d %-22s %d\n", code, http.StatusText(code), byStatus[code])
	}
	if transportErrors > 0 {
		fmt.Printf("   transport errors           %d\n", transportErrors)
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if len(latencies) > 0 {
		var total time.Duration
		for _, l := range latencies {
			total += l
		}
		fmt.Printf("   Avg Latency:      %v\n", (total / time.Duration(len(latencies))).Round(time.Microsecond))
		fmt.Printf("   p50:              %v\n", percentile(latencies, 0.50).Round(time.Microsecond))
		fmt.Printf("   p95:              %v\n", percentile(latencies, 0.95).Round(time.Microsecond))
		fmt.Printf("   p99:              %v\n", percentile(latencies, 0.99).Round(time.Microsecond))
		fmt.Printf("   Max:              %v\n", latencies[len(latencies)-1].Round(time.Microsecond))
		fmt.Printf("   Throughput:       %.2f req/sec\n", float64(len(latencies))/duration.Seconds())
	}

	if n := byStatus[http.StatusTooManyRequests]; n > 0 {
		fmt.Printf("\nNOTE: %d requests were rate limited; raise analytics.generateRateLimit or set it to 0.\n", n)
	}
	fmt.Println()
}
