// bench signs up two throwaway users against a server running without a mail
// transport (so send-code echoes the code), opens a chat between them and
// hammers the send endpoint.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	baseURL     string
	concurrency int
	perWorker   int
	password    = "bench-password"
	httpClient  = &http.Client{Timeout: 8 * time.Second}
)

var rootCommand = &cobra.Command{
	Use:   "bench",
	Short: "load-test POST /api/v1/chats/send",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCommand.Flags().StringVar(&baseURL, "base", "http://localhost:8080", "server base URL")
	rootCommand.Flags().IntVarP(&concurrency, "concurrency", "c", 5, "parallel senders")
	rootCommand.Flags().IntVarP(&perWorker, "requests", "n", 50, "messages per sender")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

type Stats struct {
	mu        sync.Mutex
	latencies []time.Duration
	failed    int
}

func (s *Stats) Add(success bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !success {
		s.failed++
		return
	}
	s.latencies = append(s.latencies, latency)
}

func (s *Stats) Report(took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := len(s.latencies)
	fmt.Printf("took: %v\n", took)
	fmt.Printf("requests: %d ok: %d failed: %d\n", ok+s.failed, ok, s.failed)
	if ok == 0 {
		return
	}

	sort.Slice(s.latencies, func(i, j int) bool { return s.latencies[i] < s.latencies[j] })
	var sum time.Duration
	for _, l := range s.latencies {
		sum += l
	}
	pct := func(p float64) time.Duration { return s.latencies[int(float64(ok-1)*p)] }
	fmt.Printf("latency avg: %v p50: %v p95: %v p99: %v max: %v\n",
		sum/time.Duration(ok), pct(0.50), pct(0.95), pct(0.99), s.latencies[ok-1])
	fmt.Printf("throughput: %.2f msg/s\n", float64(ok)/took.Seconds())
}

func call(method, path, token string, in, out interface{}) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

type session struct {
	Token  string `json:"token"`
	UserID uint   `json:"user_id"`
}

func signUp() (*session, error) {
	name := "bench_" + uuid.NewString()[:8]
	email := name + "@bench.local"

	var sent struct {
		Code string `json:"code"`
	}
	code, err := call(http.MethodPost, "/api/v1/auth/send-code", "", map[string]string{"email": email}, &sent)
	if err != nil || code != http.StatusOK {
		return nil, fmt.Errorf("send-code: status %d: %v", code, err)
	}
	if sent.Code == "" {
		return nil, errors.New("server did not echo the code; run it without a mail transport")
	}

	var s session
	code, err = call(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "code": sent.Code, "username": name, "display_name": name, "password": password,
	}, &s)
	if err != nil || code != http.StatusOK {
		return nil, fmt.Errorf("register: status %d: %v", code, err)
	}
	return &s, nil
}

func run() error {
	fmt.Printf("target: %s concurrency: %d per sender: %d\n", baseURL, concurrency, perWorker)

	alice, err := signUp()
	if err != nil {
		return err
	}
	bob, err := signUp()
	if err != nil {
		return err
	}

	var chat struct {
		ChatID uint `json:"chat_id"`
	}
	if code, err := call(http.MethodPost, "/api/v1/chats", alice.Token, map[string]uint{"user_id": bob.UserID}, &chat); err != nil || code != http.StatusOK {
		return fmt.Errorf("create chat: status %d: %v", code, err)
	}

	stats := &Stats{}
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < concurrency; i++ {
		token := alice.Token
		if i%2 == 1 {
			token = bob.Token
		}
		wg.Add(1)
		go func(id int, token string) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				t0 := time.Now()
				code, err := call(http.MethodPost, "/api/v1/chats/send", token, map[string]interface{}{
					"chat_id": chat.ChatID,
					"content": fmt.Sprintf("bench %d/%d", id, j),
				}, nil)
				stats.Add(err == nil && code == http.StatusOK, time.Since(t0))
			}
		}(i, token)
	}
	wg.Wait()

	stats.Report(time.Since(start))
	return nil
}
