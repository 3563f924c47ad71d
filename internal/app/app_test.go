package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"homeworkbot/internal/config"
	"homeworkbot/internal/homework"
	"homeworkbot/internal/notifier"
	logx "homeworkbot/pkg/logx"
)

type countingTransport struct{ n atomic.Int32 }

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.n.Add(1)
	return nil, io.EOF
}

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func criticalLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		if json.Unmarshal([]byte(line), &m) == nil && m["level"] == logx.LevelCriticalValue {
			out = append(out, m)
		}
	}
	return out
}

func TestMissingCredentialAbortsBeforePolling(t *testing.T) {
	var logs bytes.Buffer
	rt := &countingTransport{}

	a, err := NewApp(Options{
		LookupEnv: lookupFrom(map[string]string{
			config.EnvPracticumToken: "p",
			config.EnvTelegramChatID: "1",
		}),
		BootLog:    logx.NewWriter(&logs, "trace"),
		HTTPClient: &http.Client{Transport: rt},
	})
	if a != nil || err == nil {
		t.Fatalf("NewApp = %v, %v; want error", a, err)
	}
	if homework.KindOf(err) != homework.ConfigurationMissing {
		t.Fatalf("kind = %v", homework.KindOf(err))
	}
	crit := criticalLines(t, &logs)
	if len(crit) != 1 || crit[0]["name"] != config.EnvTelegramToken {
		t.Fatalf("critical lines = %v", crit)
	}
	if rt.n.Load() != 0 {
		t.Fatalf("status API was called %d times", rt.n.Load())
	}
}

func TestInvalidConfigFileIsCritical(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte("poll:\n  interval: \"@hourly\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	_, err := NewApp(Options{
		LookupEnv: lookupFrom(map[string]string{
			config.EnvPracticumToken: "p",
			config.EnvTelegramToken:  "1:t",
			config.EnvTelegramChatID: "1",
			config.EnvConfigPath:     p,
		}),
		BootLog: logx.NewWriter(&logs, "trace"),
	})
	if err == nil || !strings.Contains(err.Error(), "calendar schedule") {
		t.Fatalf("err = %v", err)
	}
	if len(criticalLines(t, &logs)) != 1 {
		t.Fatalf("logs: %s", logs.String())
	}
}

func TestExplicitConfigPathMustExist(t *testing.T) {
	_, err := NewApp(Options{
		LookupEnv: lookupFrom(map[string]string{
			config.EnvPracticumToken: "p",
			config.EnvTelegramToken:  "1:t",
			config.EnvTelegramChatID: "1",
			config.EnvConfigPath:     filepath.Join(t.TempDir(), "missing.yaml"),
		}),
		BootLog: logx.Nop(),
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

type botAPI struct {
	mu    sync.Mutex
	texts []string
	got   chan struct{}
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
		http.NotFound(w, r)
		return
	}
	var req map[string]any
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &req)
	b.mu.Lock()
	if s, ok := req["text"].(string); ok {
		b.texts = append(b.texts, s)
	}
	b.mu.Unlock()
	select {
	case b.got <- struct{}{}:
	default:
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":1700000000,"chat":{"id":77,"type":"private"},"text":"ok"}}`))
}

func TestStartPollsAndDelivers(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	var auth atomic.Value
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"homeworks":[{"homework_name":"hw1","status":"approved"}],"current_date":1700000000}`))
	}))
	defer api.Close()

	bot := &botAPI{got: make(chan struct{}, 1)}
	tg := httptest.NewServer(bot)
	defer tg.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	doc := "practicum:\n  endpoint: " + api.URL + "/\n" +
		"telegram:\n  api_url: " + tg.URL + "\n" +
		"poll:\n  interval: 1h\n" +
		"logging:\n  level: error\n  console: true\n" +
		"debug:\n  enabled: true\n  addr: 127.0.0.1:0\n"
	if err := os.WriteFile(cfgPath, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := NewApp(Options{
		LookupEnv: lookupFrom(map[string]string{
			config.EnvPracticumToken: "ptoken",
			config.EnvTelegramToken:  "1:t",
			config.EnvTelegramChatID: "77",
			config.EnvConfigPath:     cfgPath,
		}),
		BootLog:         logx.Nop(),
		TelegramOffline: true,
	})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-bot.got:
	case <-time.After(10 * time.Second):
		t.Fatal("no message delivered")
	}

	history := waitForHistory(t, a)
	if len(history) != 1 || history[0].Err != "" {
		t.Fatalf("history = %+v", history)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if got := auth.Load(); got != "OAuth ptoken" {
		t.Fatalf("Authorization = %v", got)
	}
	bot.mu.Lock()
	defer bot.mu.Unlock()
	want := `Изменился статус проверки работы "hw1". ` + homework.DefaultVerdicts()["approved"]
	if len(bot.texts) != 1 || bot.texts[0] != want {
		t.Fatalf("texts = %#v", bot.texts)
	}
	if err := a.health(); err != nil {
		t.Fatalf("health after a cycle: %v", err)
	}
}

// waitForHistory reads /debug/notifications until the delivery shows up.
func waitForHistory(t *testing.T, a *App) []notifier.HistoryItem {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		addr := a.debug.Addr()
		if addr == "" {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		resp, err := http.Get("http://" + addr + "/debug/notifications")
		if err != nil {
			t.Fatalf("GET notifications: %v", err)
		}
		var items []notifier.HistoryItem
		err = json.NewDecoder(resp.Body).Decode(&items)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(items) > 0 {
			return items
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no notification history served")
	return nil
}

func TestStartsWhenBotAPIIsDown(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	polled := make(chan struct{}, 1)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case polled <- struct{}{}:
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"homeworks":[],"current_date":1700000000}`))
	}))
	defer api.Close()

	var getMe atomic.Int32
	tg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			getMe.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":502,"description":"Bad Gateway"}`))
	}))
	defer tg.Close()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	doc := "practicum:\n  endpoint: " + api.URL + "/\n" +
		"telegram:\n  api_url: " + tg.URL + "\n" +
		"poll:\n  interval: 1h\n" +
		"logging:\n  level: error\n  console: true\n"
	if err := os.WriteFile(cfgPath, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := NewApp(Options{
		LookupEnv: lookupFrom(map[string]string{
			config.EnvPracticumToken: "ptoken",
			config.EnvTelegramToken:  "1:t",
			config.EnvTelegramChatID: "77",
			config.EnvConfigPath:     cfgPath,
		}),
		BootLog: logx.Nop(),
	})
	if err != nil {
		t.Fatalf("NewApp with an unreachable Bot API: %v", err)
	}
	if getMe.Load() != 1 {
		t.Fatalf("getMe calls = %d, want 1", getMe.Load())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-polled:
	case <-time.After(10 * time.Second):
		t.Fatal("status API was never polled")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestBuildRuntime(t *testing.T) {
	cfg := config.Default()
	cfg.Poll.Interval = "00:05"
	cfg.Telegram.ThreadID = 9
	rt, err := buildRuntime(cfg, config.Secrets{PracticumToken: "p", TelegramToken: "t", ChatID: 5})
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}
	if rt.Poll.Interval != 5*time.Minute {
		t.Fatalf("interval = %v", rt.Poll.Interval)
	}
	if rt.Practicum.Timeout != 30*time.Second || rt.Telegram.Timeout != 15*time.Second {
		t.Fatalf("timeouts = %v %v", rt.Practicum.Timeout, rt.Telegram.Timeout)
	}
	if rt.Notifier.Target.ChatID != 5 || rt.Notifier.Target.ThreadID != 9 {
		t.Fatalf("target = %+v", rt.Notifier.Target)
	}

	bad := config.Default()
	bad.Practicum.Endpoint = "ftp://x"
	bad.Statuses = map[string]string{"approved": ""}
	bad.Poll.Interval = "never"
	_, err = buildRuntime(bad, config.Secrets{})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"practicum.endpoint", "statuses", "poll.interval"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidateFileGatesReload(t *testing.T) {
	if err := validateFile(config.Default()); err != nil {
		t.Fatalf("default rejected: %v", err)
	}
	c := config.Default()
	c.Logging.Level = "shout"
	if err := validateFile(c); err == nil {
		t.Fatal("bad level accepted")
	}
}
