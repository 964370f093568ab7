package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fortuna/internal/analysis"
	"fortuna/internal/config"
	"fortuna/internal/export"
	"fortuna/internal/queue"
	"fortuna/internal/ranking"
	"fortuna/internal/testsupport"
)

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeTestConfig writes a minimal config rooted under base; Load fills the
// rest from defaults. Extra sections are appended verbatim.
func writeTestConfig(t *testing.T, base string, extra ...string) string {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nworkspace_dir = %q\noutput_dir = %q\nlog_dir = %q\n",
		filepath.Join(base, "workspace"),
		filepath.Join(base, "output"),
		filepath.Join(base, "logs"),
	)
	for _, section := range extra {
		content += "\n" + section
	}
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func loadTestConfig(t *testing.T, path string) *config.Config {
	t.Helper()
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return cfg
}

func TestCLIConfigInitAndValidate(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	target := filepath.Join(base, "fortuna", "config.toml")

	out, _, err := runCLI(t, target, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration to "+target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, _, err := runCLI(t, target, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	} else if !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("unexpected init error: %v", err)
	}
	if _, _, err := runCLI(t, target, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, target, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
	if strings.Contains(out, "defaults were used") {
		t.Fatalf("validate should have found the config file: %q", out)
	}
}

func TestCLIConfigShowRedactsAPIKey(t *testing.T) {
	base := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "")
	path := writeTestConfig(t, base, "[llm]\napi_key = \"sk-secret\"\nmodel = \"gpt-5-mini\"\n")

	out, _, err := runCLI(t, path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "sk-secret") {
		t.Fatalf("api key leaked into output: %q", out)
	}
	if !strings.Contains(out, "(redacted)") {
		t.Fatalf("expected redaction marker: %q", out)
	}
	if !strings.Contains(out, "# resolved from "+path) {
		t.Fatalf("missing source header: %q", out)
	}
}

func seedMaster(t *testing.T, cfg *config.Config) {
	t.Helper()
	results := []ranking.WorkResult{
		{WorkKey: "doomed_voyage", Title: "Doomed Voyage", SentenceCount: 40, UltimateFortune: -3.0},
		{WorkKey: "charmed_voyage", Title: "Charmed Voyage", SentenceCount: 52, UltimateFortune: 9.5},
	}
	arcs := map[string]analysis.Series{
		"charmed_voyage": {0, 4.75, 9.5},
		"doomed_voyage":  {0, -1.5, -3.0},
	}
	master := export.BuildMaster(ranking.Rank(results), arcs, "run-cli", time.Now().UTC())
	if _, err := export.WriteMaster(cfg.Paths.OutputDir, master); err != nil {
		t.Fatalf("WriteMaster: %v", err)
	}
}

func TestCLIRankingRendersMaster(t *testing.T) {
	base := t.TempDir()
	path := writeTestConfig(t, base)
	cfg := loadTestConfig(t, path)
	seedMaster(t, cfg)

	out, _, err := runCLI(t, path, "ranking")
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	if !strings.Contains(out, "Run run-cli: 2 works") {
		t.Fatalf("missing run header: %q", out)
	}
	charmed := strings.Index(out, "Charmed Voyage")
	doomed := strings.Index(out, "Doomed Voyage")
	if charmed < 0 || doomed < 0 || charmed > doomed {
		t.Fatalf("expected charmed work ranked above doomed: %q", out)
	}
	if !strings.Contains(out, "+9.500") || !strings.Contains(out, "-3.000") {
		t.Fatalf("missing fortune values: %q", out)
	}
	if !strings.Contains(out, "#") {
		t.Fatalf("missing fortune colors: %q", out)
	}
}

func TestCLIRankingJSON(t *testing.T) {
	base := t.TempDir()
	path := writeTestConfig(t, base)
	cfg := loadTestConfig(t, path)
	seedMaster(t, cfg)

	out, _, err := runCLI(t, path, "ranking", "--json")
	if err != nil {
		t.Fatalf("ranking --json: %v", err)
	}
	var bundle export.MasterBundle
	if err := json.Unmarshal([]byte(out), &bundle); err != nil {
		t.Fatalf("decode ranking JSON: %v", err)
	}
	if bundle.RunID != "run-cli" || bundle.WorkCount != 2 {
		t.Fatalf("unexpected bundle: %+v", bundle)
	}
	if bundle.Works[0].Title != "Charmed Voyage" || bundle.Works[0].Rank != 1 {
		t.Fatalf("unexpected first entry: %+v", bundle.Works[0])
	}
	if len(bundle.Works[0].MacroArc) != 3 {
		t.Fatalf("expected macro arc in JSON output: %+v", bundle.Works[0])
	}
}

func TestCLIRankingWithoutBundle(t *testing.T) {
	base := t.TempDir()
	path := writeTestConfig(t, base)

	_, _, err := runCLI(t, path, "ranking")
	if err == nil {
		t.Fatal("expected missing ranking error")
	}
	if !strings.Contains(err.Error(), "no ranking found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCLIStatusEmptyLedger(t *testing.T) {
	base := t.TempDir()
	path := writeTestConfig(t, base)

	out, _, err := runCLI(t, path, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "ledger is empty") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCLIStatusListsRunWorks(t *testing.T) {
	base := t.TempDir()
	path := writeTestConfig(t, base)
	cfg := loadTestConfig(t, path)

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	alpha, err := store.NewWork(ctx, "run-a", "alpha", "Alpha", filepath.Join(base, "alpha.txt"))
	if err != nil {
		t.Fatalf("NewWork alpha: %v", err)
	}
	fortune := 3.25
	alpha.Status = queue.StatusCompleted
	alpha.SentenceCount = 42
	alpha.UltimateFortune = &fortune
	if err := store.Update(ctx, alpha); err != nil {
		t.Fatalf("update alpha: %v", err)
	}

	beta, err := store.NewWork(ctx, "run-a", "beta", "Beta", filepath.Join(base, "beta.txt"))
	if err != nil {
		t.Fatalf("NewWork beta: %v", err)
	}
	beta.Status = queue.StatusFailed
	beta.ErrorMessage = "scorer unavailable"
	if err := store.Update(ctx, beta); err != nil {
		t.Fatalf("update beta: %v", err)
	}

	out, _, err := runCLI(t, path, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{
		"Run run-a",
		"[OK] 42 sentences, fortune +3.25",
		"[ERROR] scorer unavailable",
		"Alpha",
		"Beta",
		"2 works: 1 completed, 1 failed, 0 in flight",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}

	if out2, _, err := runCLI(t, path, "status", "--run", "run-a"); err != nil {
		t.Fatalf("status --run: %v", err)
	} else if !strings.Contains(out2, "Alpha") {
		t.Fatalf("explicit run missing works: %q", out2)
	}

	if _, _, err := runCLI(t, path, "status", "--run", "ghost"); err == nil {
		t.Fatal("expected unknown run to fail")
	} else if !strings.Contains(err.Error(), "has no works") {
		t.Fatalf("unexpected error: %v", err)
	}

	out3, _, err := runCLI(t, path, "status", "--status", "failed")
	if err != nil {
		t.Fatalf("status --status failed: %v", err)
	}
	if !strings.Contains(out3, "Beta") {
		t.Fatalf("filtered output missing failed work:\n%s", out3)
	}
	if strings.Contains(out3, "Alpha") {
		t.Fatalf("filtered output should omit completed work:\n%s", out3)
	}

	if _, _, err := runCLI(t, path, "status", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status to fail")
	} else if !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCLILedgerClear(t *testing.T) {
	base := t.TempDir()
	path := writeTestConfig(t, base)
	cfg := loadTestConfig(t, path)

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	ctx := context.Background()
	for key, status := range map[string]queue.Status{
		"alpha": queue.StatusCompleted,
		"beta":  queue.StatusFailed,
		"gamma": queue.StatusPending,
	} {
		item, err := store.NewWork(ctx, "run-a", key, "", filepath.Join(base, key+".txt"))
		if err != nil {
			t.Fatalf("NewWork %s: %v", key, err)
		}
		if status == queue.StatusPending {
			continue
		}
		item.Status = status
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("update %s: %v", key, err)
		}
	}
	store.Close()

	if _, _, err := runCLI(t, path, "ledger", "clear", "--completed", "--failed"); err == nil {
		t.Fatal("expected conflicting flags to fail")
	} else if !strings.Contains(err.Error(), "choose one of") {
		t.Fatalf("unexpected error: %v", err)
	}

	out, _, err := runCLI(t, path, "ledger", "clear", "--completed")
	if err != nil {
		t.Fatalf("ledger clear --completed: %v", err)
	}
	if !strings.Contains(out, "Removed 1 completed works from the ledger") {
		t.Fatalf("unexpected clear output: %q", out)
	}

	out, _, err = runCLI(t, path, "ledger", "clear")
	if err != nil {
		t.Fatalf("ledger clear: %v", err)
	}
	if !strings.Contains(out, "Removed 2 works from the ledger") {
		t.Fatalf("unexpected clear output: %q", out)
	}

	out, _, err = runCLI(t, path, "status")
	if err != nil {
		t.Fatalf("status after clear: %v", err)
	}
	if !strings.Contains(out, "ledger is empty") {
		t.Fatalf("expected an empty ledger after clear: %q", out)
	}
}

func TestCLILedgerRemove(t *testing.T) {
	base := t.TempDir()
	path := writeTestConfig(t, base)
	cfg := loadTestConfig(t, path)

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"alpha", "beta"} {
		if _, err := store.NewWork(ctx, "run-a", key, "", filepath.Join(base, key+".txt")); err != nil {
			t.Fatalf("NewWork %s: %v", key, err)
		}
	}
	store.Close()

	out, _, err := runCLI(t, path, "ledger", "remove", "beta")
	if err != nil {
		t.Fatalf("ledger remove: %v", err)
	}
	if !strings.Contains(out, "Removed beta from run run-a") {
		t.Fatalf("unexpected remove output: %q", out)
	}

	if _, _, err := runCLI(t, path, "ledger", "remove", "beta"); err == nil {
		t.Fatal("expected removed work to be gone")
	} else if !strings.Contains(err.Error(), "has no work") {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := runCLI(t, path, "ledger", "remove", "--run", "ghost", "alpha"); err == nil {
		t.Fatal("expected unknown run to fail")
	} else if !strings.Contains(err.Error(), "has no work") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCLILedgerRemoveEmptyLedger(t *testing.T) {
	base := t.TempDir()
	path := writeTestConfig(t, base)

	_, _, err := runCLI(t, path, "ledger", "remove", "alpha")
	if err == nil {
		t.Fatal("expected empty-ledger error")
	}
	if !strings.Contains(err.Error(), "ledger is empty") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newCLIInferenceStub(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			fmt.Fprint(w, `{"status":"ok"}`)
			return
		}
		var req struct {
			Inputs []string `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		payload := make([][]map[string]any, 0, len(req.Inputs))
		for _, text := range req.Inputs {
			label := "POSITIVE"
			if strings.Contains(strings.ToLower(text), "grief") {
				label = "NEGATIVE"
			}
			payload = append(payload, []map[string]any{{"label": label, "score": 0.9}})
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode classify response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCLIRunProcessesCorpus(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the full pipeline")
	}
	server := newCLIInferenceStub(t)
	base := t.TempDir()
	path := writeTestConfig(t, base,
		fmt.Sprintf("[inference]\nbase_url = %q\ntimeout_seconds = 5\n", server.URL),
		"[workflow]\nworkers = 2\n",
	)

	var bright, grim strings.Builder
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&bright, "Fortune smiled warmly on the travelers that day %d. ", i+1)
		fmt.Fprintf(&grim, "Grief followed the travelers into the night %d. ", i+1)
	}
	brightPath := filepath.Join(base, "bright_voyage.txt")
	grimPath := filepath.Join(base, "grim_voyage.txt")
	testsupport.WriteText(t, brightPath, bright.String())
	testsupport.WriteText(t, grimPath, grim.String())

	out, _, err := runCLI(t, path, "run", "--log-level", "error", brightPath, grimPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "2 completed, 0 failed") {
		t.Fatalf("unexpected run summary: %q", out)
	}
	if !strings.Contains(out, "Ranking written to ") {
		t.Fatalf("missing ranking path: %q", out)
	}

	master, err := export.ReadMaster(filepath.Join(base, "output"))
	if err != nil {
		t.Fatalf("ReadMaster: %v", err)
	}
	if master.WorkCount != 2 {
		t.Fatalf("expected 2 ranked works, got %d", master.WorkCount)
	}
	if master.Works[0].WorkID != "bright_voyage" {
		t.Fatalf("expected bright voyage ranked first: %+v", master.Works)
	}
}

func TestCLIRunRequiresArgs(t *testing.T) {
	base := t.TempDir()
	path := writeTestConfig(t, base)

	_, _, err := runCLI(t, path, "run")
	if err == nil {
		t.Fatal("expected missing-args error")
	}
	if !strings.Contains(err.Error(), "requires at least 1") {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err = runCLI(t, path, "run", "--resume", "run-a", filepath.Join(base, "extra.txt"))
	if err == nil {
		t.Fatal("expected resume/input conflict error")
	}
	if !strings.Contains(err.Error(), "cannot be combined with --resume") {
		t.Fatalf("unexpected error: %v", err)
	}
}
