package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

type Item struct {
	FileName         string `json:"file_name"`
	NumPages         int    `json:"num_pages"`
	NumCopies        int    `json:"num_copies"`
	PaperTypeId      string `json:"paper_type_id"`
	IsColor          bool   `json:"is_color"`
	LaminationSheets int    `json:"lamination_sheets"`
	BindingType      string `json:"binding_type"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	City      string  `json:"city"`
}

type OrderRequest struct {
	CustomerName     string    `json:"customer_name"`
	CustomerEmail    string    `json:"customer_email"`
	CustomerPhone    string    `json:"customer_phone"`
	Items            []Item    `json:"items"`
	FulfillmentType  string    `json:"fulfillment_type"`
	CustomerLocation *Location `json:"customer_location,omitempty"`
}

type OrderView struct {
	OrderId    string `json:"order_id"`
	Status     string `json:"status"`
	Assignment struct {
		Status            string `json:"status"`
		CandidateVendorId string `json:"candidate_vendor_id"`
	} `json:"assignment"`
}

// APIResponse mirrors the gateway's utils.Response shape
type APIResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type scenario string

const (
	ScHappyDelivery scenario = "happy_delivery"
	ScPickup        scenario = "pickup"
	ScUnknownPaper  scenario = "unknown_paper"
	ScCancel        scenario = "cancel_after_pay"
	ScBulkPages     scenario = "bulk_pages"
)

var customerLoc = Location{Latitude: 12.9716, Longitude: 77.5946, Address: "MG Road", City: "Bengaluru"}

func main() {
	rand.New(rand.NewSource(time.Now().UnixNano()))

	baseURL := flag.String("base", envOr("GATEWAY_BASE", "http://localhost:8080"), "API Gateway base URL (no trailing slash)")
	total := flag.Int("total", 10, "total number of synthetic orders to send in burst phase")
	conc := flag.Int("concurrency", 5, "concurrency for burst phase")
	pollTimeout := flag.Duration("timeout", 60*time.Second, "max time to wait for an order to settle (per order)")
	jitterMax := flag.Duration("jitter", 800*time.Millisecond, "max random jitter between requests in spike test")
	seed := flag.Bool("seed", true, "seed a price rule and vendors before running")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	log.Printf("Base URL: %s", *baseURL)

	if *seed {
		if err := seedFixtures(client, *baseURL); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	// 1) Deterministic scenarios
	runScenario(client, *baseURL, ScHappyDelivery, *pollTimeout)
	runScenario(client, *baseURL, ScPickup, *pollTimeout)
	runScenario(client, *baseURL, ScUnknownPaper, *pollTimeout)
	runScenario(client, *baseURL, ScCancel, *pollTimeout)
	runScenario(client, *baseURL, ScBulkPages, *pollTimeout)

	// 2) Burst & spikes
	log.Printf("Starting burst test: total=%d concurrency=%d", *total, *conc)
	burst(client, *baseURL, *total, *conc, *pollTimeout, *jitterMax)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func seedFixtures(client *http.Client, base string) error {
	rule := map[string]any{
		"name":   "standard",
		"active": true,
		"paper_types": []map[string]any{
			{"id": "a4_75", "name": "A4 75gsm", "per_page_bw": 0.5, "per_page_color": 2.0},
			{"id": "a4_100", "name": "A4 100gsm", "per_page_bw": 0.8, "per_page_color": 2.5},
		},
		"lamination_per_sheet": 5.0,
		"binding":              map[string]float64{"spiral": 25, "staple": 5},
		"delivery_charge":      map[string]any{"base_rate": 20, "per_km_rate": 5, "free_above": 500},
	}
	if _, err := postJSON(client, base+"/api/v1/admin/rules", rule); err != nil {
		return fmt.Errorf("seed rule: %w", err)
	}

	vendors := []map[string]any{
		{"vendor_id": "v-quick", "name": "Quick Prints", "badge": "gold", "store_open": true, "is_active": true,
			"auto_accept_radius_km": 3, "location": map[string]any{"latitude": 12.9750, "longitude": 77.5950}},
		{"vendor_id": "v-city", "name": "City Press", "badge": "silver", "store_open": true, "is_active": true,
			"location": map[string]any{"latitude": 12.9900, "longitude": 77.6000}},
		{"vendor_id": "v-metro", "name": "Metro Copy", "badge": "none", "store_open": true, "is_active": true,
			"location": map[string]any{"latitude": 13.0200, "longitude": 77.6200}},
	}
	for _, vendor := range vendors {
		if _, err := postJSON(client, base+"/api/v1/vendors", vendor); err != nil {
			return fmt.Errorf("seed vendor: %w", err)
		}
	}
	log.Printf("Seeded 1 rule and %d vendors", len(vendors))
	return nil
}

func runScenario(client *http.Client, base string, sc scenario, timeout time.Duration) {
	req := buildOrder(sc)

	id, err := createOrder(client, base, req)
	if sc == ScUnknownPaper {
		if err != nil {
			log.Printf("[%s] rejected as expected: %v", sc, err)
		} else {
			log.Printf("[%s] UNEXPECTED: order %s accepted with unknown paper type", sc, id)
		}
		return
	}
	if err != nil {
		log.Printf("[%s] create failed: %v", sc, err)
		return
	}

	if _, err := postJSON(client, base+"/api/v1/orders/"+id+"/pay", nil); err != nil {
		log.Printf("[%s] pay failed for %s: %v", sc, id, err)
		return
	}

	if sc == ScCancel {
		if _, err := postJSON(client, base+"/api/v1/orders/"+id+"/cancel", map[string]string{"reason": "smoke test"}); err != nil {
			log.Printf("[%s] cancel failed for %s: %v", sc, id, err)
			return
		}
	}

	st, err := waitForSettled(client, base, id, timeout)
	if err != nil {
		log.Printf("[%s] wait failed for %s: %v", sc, id, err)
		return
	}
	log.Printf("[%s] result: order_id=%s status=%s", sc, id, st)
}

func burst(client *http.Client, base string, total, conc int, timeout, jitterMax time.Duration) {
	var wg sync.WaitGroup
	jobs := make(chan int)
	scenarios := []scenario{ScHappyDelivery, ScPickup, ScCancel, ScBulkPages}

	worker := func() {
		defer wg.Done()
		for range jobs {
			sc := scenarios[rand.Intn(len(scenarios))]
			time.Sleep(time.Duration(rand.Int63n(int64(jitterMax))))
			runScenario(client, base, sc, timeout)
		}
	}

	for i := 0; i < conc; i++ {
		wg.Add(1)
		go worker()
	}
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

func buildOrder(sc scenario) OrderRequest {
	loc := customerLoc
	req := OrderRequest{
		CustomerName:     "cust-" + randID(),
		CustomerEmail:    "smoke@example.com",
		CustomerPhone:    "9999900000",
		FulfillmentType:  "DELIVERY",
		CustomerLocation: &loc,
		Items: []Item{
			{FileName: "notes.pdf", NumPages: 10, NumCopies: 2, PaperTypeId: "a4_75"},
		},
	}

	switch sc {
	case ScHappyDelivery:
		// leave defaults
	case ScPickup:
		req.FulfillmentType = "PICKUP"
	case ScUnknownPaper:
		req.Items = []Item{{FileName: "broken.pdf", NumPages: 5, NumCopies: 1, PaperTypeId: "papyrus"}}
	case ScCancel:
		// normal order, cancelled right after payment
	case ScBulkPages:
		req.Items = []Item{
			{FileName: "thesis.pdf", NumPages: 240, NumCopies: 3, PaperTypeId: "a4_100", BindingType: "spiral"},
			{FileName: "annex.pdf", NumPages: 40, NumCopies: 3, PaperTypeId: "a4_75", LaminationSheets: 3},
		}
	}
	return req
}

func createOrder(client *http.Client, base string, req OrderRequest) (string, error) {
	data, err := postJSON(client, strings.TrimRight(base, "/")+"/api/v1/orders", req)
	if err != nil {
		return "", err
	}
	var view OrderView
	if err := json.Unmarshal(data, &view); err != nil {
		return "", err
	}
	return view.OrderId, nil
}

func postJSON(client *http.Client, url string, body any) (json.RawMessage, error) {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	httpReq, _ := http.NewRequest("POST", url, reader)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	var api APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return nil, err
	}
	if !api.Success {
		return nil, fmt.Errorf("api returned success=false: %s", api.Message)
	}
	return api.Data, nil
}

// waitForSettled polls until the order reaches a state the assignment flow
// no longer changes on its own.
func waitForSettled(client *http.Client, base, id string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	url := strings.TrimRight(base, "/") + "/api/v1/orders/" + id
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("timeout waiting for order %s", id)
		case <-ticker.C:
			req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
			resp, err := client.Do(req)
			if err != nil {
				continue
			}
			if resp.StatusCode >= 300 {
				resp.Body.Close()
				continue
			}
			var api APIResponse
			decErr := json.NewDecoder(resp.Body).Decode(&api)
			resp.Body.Close()
			if decErr != nil {
				continue
			}
			var view OrderView
			if err := json.Unmarshal(api.Data, &view); err != nil {
				continue
			}
			switch view.Status {
			case "ASSIGNED", "CANCELLED", "IN_PRODUCTION", "DELIVERED", "PICKED_UP":
				return view.Status, nil
			}
			if view.Assignment.Status == "MANUAL_REQUIRED" || view.Assignment.Status == "PENDING" {
				return view.Status + "/" + view.Assignment.Status, nil
			}
		}
	}
}

func randID() string { return fmt.Sprintf("%04x", rand.Intn(65536)) }
