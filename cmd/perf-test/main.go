package main

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"
)

type uploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

var (
	targetURL string
	apiKey    string
	workers   int
	rate      int
	duration  time.Duration
	mode      string
	ext       string
	sizeBytes int
	cleanup   bool
	success   atomic.Uint64
	failures  atomic.Uint64
	inFlight  atomic.Int64
)

func main() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "Base URL of the web server")
	flag.StringVar(&apiKey, "key", "", "Server API key (X-API-Key)")
	flag.IntVar(&workers, "c", 4, "Number of concurrent uploaders (for active mode)")
	flag.IntVar(&rate, "r", 2, "New uploads per second (for rate mode)")
	flag.DurationVar(&duration, "d", 10*time.Second, "Duration of the test")
	flag.StringVar(&mode, "mode", "active", "Test mode: 'active' or 'rate'")
	flag.StringVar(&ext, "ext", ".mp4", "Extension of the generated files, selects Stream or Images")
	flag.IntVar(&sizeBytes, "size", 1<<20, "Size of each generated file in bytes")
	flag.BoolVar(&cleanup, "cleanup", true, "Delete every uploaded file after the test")
	flag.Parse()

	log.Printf("Starting test: mode=%s, url=%s, duration=%s, ext=%s, size=%d", mode, targetURL, duration, ext, sizeBytes)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	go func() {
		<-interrupt
		log.Println("Interrupted, shutting down...")
		os.Exit(0)
	}()

	payload := make([]byte, sizeBytes)
	if _, err := rand.Read(payload); err != nil {
		log.Fatalf("Unable to generate payload: %v", err)
	}

	var r recorder
	switch mode {
	case "active":
		runActiveTest(payload, &r)
	case "rate":
		runRateTest(payload, &r)
	default:
		log.Fatalf("Unknown mode: %s. Use 'active' or 'rate'", mode)
	}

	log.Printf("Test complete. Success: %d, Failures: %d", success.Load(), failures.Load())
	r.printStats()

	if cleanup {
		deleted := 0
		for _, id := range r.ids {
			if err := deleteFile(id); err != nil {
				log.Printf("Delete error (%s): %v", id, err)
				continue
			}
			deleted++
		}
		log.Printf("Cleanup complete. Deleted %d of %d", deleted, len(r.ids))
	}
}

// recorder collects latencies and created ids across workers.
type recorder struct {
	mu        sync.Mutex
	latencies []time.Duration
	ids       []string
}

func (r *recorder) add(id string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	r.latencies = append(r.latencies, latency)
}

func (r *recorder) printStats() {
	if len(r.latencies) == 0 {
		return
	}
	var total time.Duration
	var fastest = r.latencies[0]
	var slowest = r.latencies[0]

	for _, l := range r.latencies {
		total += l
		if l < fastest {
			fastest = l
		}
		if l > slowest {
			slowest = l
		}
	}
	avg := total / time.Duration(len(r.latencies))
	throughput := float64(len(r.latencies)*sizeBytes) / duration.Seconds()

	log.Printf("Latency Stats (Request -> Record):")
	log.Printf("  Min: %v", fastest)
	log.Printf("  Max: %v", slowest)
	log.Printf("  Avg: %v", avg)
	log.Printf("  Approx throughput: %.0f bytes/sec", throughput)
}

func uploadOnce(id int, payload []byte, r *recorder) {
	inFlight.Add(1)
	defer inFlight.Add(-1)

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fmt.Sprintf("perf-%d-%d%s", id, time.Now().UnixNano(), ext))
	if err != nil {
		failures.Add(1)
		return
	}
	part.Write(payload)
	writer.Close()

	req, err := http.NewRequest("POST", targetURL+"/files", body)
	if err != nil {
		failures.Add(1)
		log.Printf("Request error (uploader %d): %v", id, err)
		return
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", apiKey)

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		failures.Add(1)
		log.Printf("Upload error (uploader %d): %v", id, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		failures.Add(1)
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("Unexpected status (uploader %d): %d %s", id, resp.StatusCode, msg)
		return
	}

	var rec uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		failures.Add(1)
		log.Printf("JSON parse error (uploader %d): %v", id, err)
		return
	}

	r.add(rec.ID, time.Since(start))
	success.Add(1)
}

func deleteFile(id string) error {
	req, err := http.NewRequest("DELETE", targetURL+"/files/"+id, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", apiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func runActiveTest(payload []byte, r *recorder) {
	var wg sync.WaitGroup
	stop := time.Now().Add(duration)

	log.Printf("Starting %d uploaders...", workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for time.Now().Before(stop) {
				uploadOnce(id, payload, r)
			}
		}(i)
	}

	wg.Wait()
}

func runRateTest(payload []byte, r *recorder) {
	interval := time.Millisecond
	if rate > 0 {
		interval = time.Second / time.Duration(rate)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	stop := time.After(duration)
	var wg sync.WaitGroup

	log.Printf("Starting rate test: %d uploads/sec", rate)

	id := 0
	for {
		select {
		case <-stop:
			log.Printf("Waiting for %d in-flight uploads...", inFlight.Load())
			wg.Wait()
			return
		case <-ticker.C:
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				uploadOnce(id, payload, r)
			}(id)
			id++
		}
	}
}
