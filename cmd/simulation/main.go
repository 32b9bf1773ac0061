package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ksred/klear-splitter/internal/catalog"
	"github.com/ksred/klear-splitter/internal/types"
)

var (
	serverAddress string
	numWorkers    int
	ordersPerUser int
	replayEvery   int
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	mu         sync.Mutex
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) record(d time.Duration, failed bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
	if failed {
		rs.failures++
	}
}

// calculate returns min, max, mean, median, p95 and p99
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient talks to the splitter API as a single user
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

func newStats() map[string]*routeStats {
	return map[string]*routeStats{
		"signup":   {name: "Signup"},
		"stocks":   {name: "List Stocks"},
		"create":   {name: "Create Order"},
		"replay":   {name: "Replay Order"},
		"list":     {name: "List Orders"},
		"holdings": {name: "Holdings"},
	}
}

// do sends a JSON request and decodes the envelope's data into out
func (sc *simulationClient) do(route, method, path string, body interface{}, headers map[string]string, out interface{}) (int, error) {
	start := time.Now()
	status, err := sc.send(method, path, body, headers, out)
	sc.stats[route].record(time.Since(start), err != nil)
	return status, err
}

func (sc *simulationClient) send(method, path string, body interface{}, headers map[string]string, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return resp.StatusCode, fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	envelope := struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data"`
	}{Data: out}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return resp.StatusCode, nil
}

// signup registers a fresh user and keeps its token
func (sc *simulationClient) signup() error {
	creds := map[string]string{
		"email":    fmt.Sprintf("sim-%s@example.com", uuid.NewString()),
		"password": "simulation",
	}
	var token types.TokenResponse
	if _, err := sc.do("signup", http.MethodPost, "/api/v1/auth/signup", creds, nil, &token); err != nil {
		return err
	}
	sc.authToken = token.AccessToken
	return nil
}

func (sc *simulationClient) stocks() ([]catalog.Instrument, error) {
	var instruments []catalog.Instrument
	_, err := sc.do("stocks", http.MethodGet, "/api/v1/stocks", nil, nil, &instruments)
	return instruments, err
}

func (sc *simulationClient) createOrder(req types.CreateOrderRequest, key string) (*types.Order, error) {
	var order types.Order
	if _, err := sc.do("create", http.MethodPost, "/api/v1/orders", req, map[string]string{"Idempotency-Key": key}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// replay resends a request under an already used key and checks the same order comes back
func (sc *simulationClient) replay(req types.CreateOrderRequest, key, wantID string) error {
	var order types.Order
	if _, err := sc.do("replay", http.MethodPost, "/api/v1/orders", req, map[string]string{"Idempotency-Key": key}, &order); err != nil {
		return err
	}
	if order.ID != wantID {
		return fmt.Errorf("replay returned order %s, want %s", order.ID, wantID)
	}
	return nil
}

func (sc *simulationClient) listOrders() ([]types.Order, error) {
	var orders []types.Order
	_, err := sc.do("list", http.MethodGet, "/api/v1/orders", nil, nil, &orders)
	return orders, err
}

func (sc *simulationClient) holdings() (*types.HoldingsSummary, error) {
	var summary types.HoldingsSummary
	if _, err := sc.do("holdings", http.MethodGet, "/api/v1/orders/holdings", nil, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// randomPortfolio picks up to three instruments with whole percentages summing to 100
func randomPortfolio(r *rand.Rand, instruments []catalog.Instrument) []types.AllocationRequest {
	picked := r.Perm(len(instruments))[:1+r.Intn(min(3, len(instruments)))]
	portfolio := make([]types.AllocationRequest, len(picked))
	remaining := 100
	for i, idx := range picked {
		pct := remaining
		if i < len(picked)-1 {
			pct = 1 + r.Intn(remaining-(len(picked)-1-i))
		}
		remaining -= pct
		portfolio[i] = types.AllocationRequest{
			InstrumentID: instruments[idx].ID,
			Percentage:   decimal.NewFromInt(int64(pct)),
		}
	}
	return portfolio
}

// workerResult is what one simulated user reports back
type workerResult struct {
	created  int
	failed   int
	replayed int
	summary  *types.HoldingsSummary
	orders   int
	symbols  map[string]int
	sides    map[types.Direction]int
}

// runWorker plays one user: signup, buys, replays, a sell of part of each buy, then reads back
func runWorker(workerID int, stats map[string]*routeStats) workerResult {
	r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	res := workerResult{symbols: make(map[string]int), sides: make(map[types.Direction]int)}
	logger := log.With().Int("worker_id", workerID).Logger()

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats:   stats,
	}
	if err := sc.signup(); err != nil {
		logger.Error().Err(err).Msg("Failed to sign up")
		return res
	}
	instruments, err := sc.stocks()
	if err != nil || len(instruments) == 0 {
		logger.Error().Err(err).Msg("Failed to list stocks")
		return res
	}

	for i := 0; i < ordersPerUser; i++ {
		buy := types.CreateOrderRequest{
			Amount:    decimal.NewFromInt(int64(100 + r.Intn(900))),
			Direction: types.DirectionBuy,
			Portfolio: randomPortfolio(r, instruments),
		}
		key := uuid.NewString()
		order, err := sc.createOrder(buy, key)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create buy order")
			res.failed++
			continue
		}
		res.created++
		res.sides[order.Direction]++
		for _, item := range order.Items {
			res.symbols[item.Symbol]++
		}
		logger.Info().
			Str("order_id", order.ID).
			Str("amount", order.TotalAmount.String()).
			Str("status", string(order.Status)).
			Str("execute_on", order.ExecuteOn).
			Msg("Order created")

		if replayEvery > 0 && i%replayEvery == 0 {
			if err := sc.replay(buy, key, order.ID); err != nil {
				logger.Error().Err(err).Msg("Idempotent replay failed")
			} else {
				res.replayed++
			}
		}

		// selling a fraction of the same split never exceeds what the buy added
		sell := buy
		sell.Direction = types.DirectionSell
		sell.Amount = buy.Amount.Mul(decimal.NewFromFloat(r.Float64() / 2)).Round(2)
		if !sell.Amount.IsPositive() {
			continue
		}
		order, err = sc.createOrder(sell, uuid.NewString())
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create sell order")
			res.failed++
			continue
		}
		res.created++
		res.sides[order.Direction]++

		time.Sleep(time.Duration(r.Intn(200)) * time.Millisecond)
	}

	orders, err := sc.listOrders()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list orders")
	}
	res.orders = len(orders)

	res.summary, err = sc.holdings()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read holdings")
	}
	return res
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func printPerformanceStats(stats map[string]*routeStats) {
	names := make([]string, 0, len(stats))
	for k := range stats {
		names = append(names, k)
	}
	sort.Strings(names)

	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, k := range names {
		s := stats[k]
		min, max, mean, median, p95, p99 := s.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			s.name,
			s.totalCalls,
			s.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

func runSimulation() error {
	log.Info().
		Str("server", serverAddress).
		Int("workers", numWorkers).
		Int("orders_per_user", ordersPerUser).
		Msg("Starting simulation")

	stats := newStats()
	results := make(chan workerResult, numWorkers)
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			results <- runWorker(workerID, stats)
		}(i)
	}
	wg.Wait()
	close(results)

	var (
		created, failed, replayed, listed int
		invested, sold                    = decimal.Zero, decimal.Zero
		symbols                           = make(map[string]int)
		sides                             = make(map[types.Direction]int)
	)
	for res := range results {
		created += res.created
		failed += res.failed
		replayed += res.replayed
		listed += res.orders
		for k, v := range res.symbols {
			symbols[k] += v
		}
		for k, v := range res.sides {
			sides[k] += v
		}
		if res.summary != nil {
			invested = invested.Add(res.summary.TotalInvested)
			sold = sold.Add(res.summary.TotalSold)
		}
	}
	duration := time.Since(start)

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("ORDER SPLITTER SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Order Statistics
----------------
Created:          %d
Failed:           %d
Replayed:         %d
Listed back:      %d
Total Invested:   $%s
Total Sold:       $%s
Duration:         %v

Symbol Distribution
-------------------
`, created, failed, replayed, listed, invested.StringFixed(2), sold.StringFixed(2), duration.Round(time.Millisecond))

	maxSymbolCount := 0
	for _, count := range symbols {
		if count > maxSymbolCount {
			maxSymbolCount = count
		}
	}
	for symbol, count := range symbols {
		bar := strings.Repeat("#", int(float64(count)/float64(maxSymbolCount)*20))
		fmt.Printf("%-6s: %s (%d)\n", symbol, bar, count)
	}

	fmt.Println("\nSide Distribution")
	fmt.Println("-----------------")
	for side, count := range sides {
		bar := strings.Repeat("#", int(float64(count)/float64(max(created, 1))*20))
		fmt.Printf("%-4s: %s (%d)\n", side, bar, count)
	}
	fmt.Println("\n" + strings.Repeat("=", 80))

	printPerformanceStats(stats)

	if listed != created {
		return fmt.Errorf("listed %d orders but created %d", listed, created)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:          "simulation",
	Short:        "Drive a running splitter API with concurrent simulated users",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulation()
	},
}

func init() {
	rootCmd.Flags().StringVar(&serverAddress, "server", "http://localhost:8080", "base URL of the API")
	rootCmd.Flags().IntVar(&numWorkers, "workers", 5, "number of concurrent users")
	rootCmd.Flags().IntVar(&ordersPerUser, "orders", 10, "buy orders per user")
	rootCmd.Flags().IntVar(&replayEvery, "replay-every", 3, "replay every Nth buy with its idempotency key (0 disables)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Simulation failed")
	}
}
