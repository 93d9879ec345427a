package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag in the tree to its default so state does
// not leak between invocations.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is a helper that fails the test on error.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

// isolate points HOME at a temp dir and keeps the commands offline.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ESTINSIGHT_EMBEDDING_PROVIDER", "none")
	t.Setenv("ESTINSIGHT_MEMORY_BACKEND", "file")
	t.Setenv("ESTINSIGHT_DUPLICATE_POLICY", "sum")
	t.Setenv("ESTINSIGHT_STRICT_NUMBERS", "false")
	return home
}

func writeFixtures(t *testing.T, dir string) (string, string) {
	t.Helper()
	est := filepath.Join(dir, "estimate.csv")
	act := filepath.Join(dir, "actual.csv")
	if err := os.WriteFile(est, []byte("Category,Budget\nLabor,1000\nMaterials,500\nMarketing,200\n"), 0o644); err != nil {
		t.Fatalf("write estimate: %v", err)
	}
	if err := os.WriteFile(act, []byte("Category,Actual\nLabor,1100\nMaterials,450\nEquipment,300\n"), 0o644); err != nil {
		t.Fatalf("write actual: %v", err)
	}
	return est, act
}

type analyzeOut struct {
	InsightID string `json:"insight_id"`
	Project   string `json:"project_name"`
	Saved     bool   `json:"saved_to_memory"`
	Summary   struct {
		OverBudget  int `json:"over_budget_categories"`
		UnderBudget int `json:"under_budget_categories"`
		Categories  int `json:"categories"`
	} `json:"summary"`
	Narrative struct {
		Source string `json:"source"`
	} `json:"narrative"`
}

func TestCLI_AnalyzeQuickText(t *testing.T) {
	home := isolate(t)
	est, act := writeFixtures(t, home)

	out := runCmd(t, "analyze", est, act, "--quick", "--project-name", "Kitchen")
	for _, want := range []string{"Project: Kitchen", "OVER BUDGET", "Equipment", "+$300.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_AnalyzeSaveHistoryFeedbackExport(t *testing.T) {
	home := isolate(t)
	est, act := writeFixtures(t, home)

	raw := runCmd(t, "analyze", est, act, "--quick", "--json", "--save-memory", "--project-name", "Alpha")
	var res analyzeOut
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		t.Fatalf("decode analyze json: %v\n%s", err, raw)
	}
	if !res.Saved || res.InsightID == "" {
		t.Fatalf("expected saved insight, got %+v", res)
	}
	if res.Summary.Categories != 4 || res.Summary.OverBudget != 2 || res.Summary.UnderBudget != 2 {
		t.Fatalf("unexpected summary: %+v", res.Summary)
	}
	if res.Narrative.Source != "quick" {
		t.Fatalf("narrative source = %q", res.Narrative.Source)
	}

	hist := runCmd(t, "history", "Alpha", "--json")
	var items []map[string]any
	if err := json.Unmarshal([]byte(hist), &items); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(items) != 1 || items[0]["id"] != res.InsightID {
		t.Fatalf("history = %v", items)
	}

	show := runCmd(t, "insights", "show", res.InsightID, "--format", "markdown")
	if !strings.Contains(show, "# Alpha") || !strings.Contains(show, "| Equipment |") {
		t.Fatalf("show output:\n%s", show)
	}

	if _, err := execute(t, "feedback", "add", "no-such-id", "--rating", "thumbs_up"); err == nil {
		t.Fatalf("expected unknown insight error")
	}
	runCmd(t, "feedback", "add", res.InsightID, "--rating", "down", "--type", "detailed", "--text", "missed the equipment rental")
	stats := runCmd(t, "feedback", "stats", "--json")
	if !strings.Contains(stats, `"total_feedback": 1`) || !strings.Contains(stats, `"thumbs_down": 1`) {
		t.Fatalf("stats: %s", stats)
	}
	neg := runCmd(t, "feedback", "list", "--negative")
	if !strings.Contains(neg, "missed the equipment rental") {
		t.Fatalf("negative list: %s", neg)
	}

	pdfPath := filepath.Join(home, "out", "alpha.pdf")
	runCmd(t, "export-pdf", res.InsightID, "-o", pdfPath)
	b, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf")
	}

	pat := runCmd(t, "patterns")
	if !strings.Contains(pat, "Projects analysed: 1") || !strings.Contains(pat, "Over budget:  1") {
		t.Fatalf("patterns: %s", pat)
	}

	cleared := runCmd(t, "insights", "clear", "--yes")
	if !strings.Contains(cleared, "Deleted 1 insight") {
		t.Fatalf("clear: %s", cleared)
	}
	if out := runCmd(t, "insights", "list"); !strings.Contains(out, "No insights stored") {
		t.Fatalf("list after clear: %s", out)
	}
}

func TestCLI_AnalyzeCombinedWritesReportAndChart(t *testing.T) {
	home := isolate(t)
	combined := filepath.Join(home, "combined.csv")
	if err := os.WriteFile(combined, []byte("Item,Estimated Cost,Actual Cost\nLabor,1000,900\nPermits,100,100\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	report := filepath.Join(home, "report.md")
	png := filepath.Join(home, "chart.png")

	out := runCmd(t, "analyze", "--combined", combined, "--quick", "--format", "md", "-o", report, "--chart", png)
	if !strings.Contains(out, "Wrote report to") {
		t.Fatalf("stdout: %s", out)
	}
	md, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(md), "UNDER BUDGET") {
		t.Fatalf("report:\n%s", md)
	}
	img, err := os.ReadFile(png)
	if err != nil {
		t.Fatalf("read chart: %v", err)
	}
	if !bytes.HasPrefix(img, []byte("\x89PNG")) {
		t.Fatalf("chart is not a PNG")
	}
}

func TestCLI_AnalyzeErrors(t *testing.T) {
	home := isolate(t)
	est, _ := writeFixtures(t, home)

	if _, err := execute(t, "analyze", est); err == nil {
		t.Fatalf("expected arg error with one file")
	}
	bad := filepath.Join(home, "bad.csv")
	if err := os.WriteFile(bad, []byte("Foo,Bar\nx,y\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := execute(t, "analyze", est, bad, "--quick")
	if err == nil || hint(err) == "" {
		t.Fatalf("expected schema error with hint, got %v", err)
	}
	if _, err := execute(t, "analyze", est, est, "--format", "yaml"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home := isolate(t)
	runCmd(t, "config", "set", "default_provider", "ollama")
	runCmd(t, "config", "set", "gemini_api_key", "abcdef123456")

	if _, err := os.Stat(filepath.Join(home, ".estinsight", "config.yaml")); err != nil {
		t.Fatalf("config not saved: %v", err)
	}
	if got := strings.TrimSpace(runCmd(t, "config", "show", "default_provider")); got != "ollama" {
		t.Fatalf("default_provider = %q", got)
	}
	all := runCmd(t, "config", "show")
	if strings.Contains(all, "abcdef123456") || !strings.Contains(all, "gemini_api_key: abc****456") {
		t.Fatalf("api key not masked:\n%s", all)
	}
	if _, err := execute(t, "config", "set", "no_such_key", "1"); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if _, err := execute(t, "config", "set", "memory_backend", "mongo"); err == nil {
		t.Fatalf("expected invalid backend error")
	}
}

func TestCLI_MemoryDisabled(t *testing.T) {
	home := isolate(t)
	est, act := writeFixtures(t, home)

	raw := runCmd(t, "--memory-backend", "none", "analyze", est, act, "--quick", "--json", "--save-memory")
	var res analyzeOut
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Saved {
		t.Fatalf("disabled memory must not save")
	}
	_, err := execute(t, "--memory-backend", "none", "history", "Alpha")
	if err == nil || !strings.Contains(hint(err), "Memory is disabled") {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func TestCLI_Version(t *testing.T) {
	isolate(t)
	if out := runCmd(t, "version"); !strings.Contains(out, "estinsight dev") {
		t.Fatalf("version: %s", out)
	}
}
