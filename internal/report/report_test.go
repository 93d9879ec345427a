package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/estimate-insight/internal/ai"
	"github.com/KaramelBytes/estimate-insight/internal/logging"
	"github.com/KaramelBytes/estimate-insight/internal/memory"
	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func scenario() PromptInput {
	est := variance.NewCostTable(variance.SideEstimate,
		variance.CostRow{Category: "Labor", Amount: d(1000)},
		variance.CostRow{Category: "Materials", Amount: d(500)},
		variance.CostRow{Category: "Marketing", Amount: d(200)},
	)
	act := variance.NewCostTable(variance.SideActual,
		variance.CostRow{Category: "Labor", Amount: d(1100)},
		variance.CostRow{Category: "Materials", Amount: d(450)},
		variance.CostRow{Category: "Equipment", Amount: d(300)},
	)
	rows := variance.Compute(est, act)
	return PromptInput{Project: "Kitchen Remodel", Rows: rows, Summary: variance.Summarize(rows)}
}

func TestMoney(t *testing.T) {
	cases := map[string]string{
		"0":          "$0.00",
		"12.5":       "$12.50",
		"1234":       "$1,234.00",
		"-1234567.8": "-$1,234,567.80",
		"999.999":    "$1,000.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, Money(decimal.RequireFromString(in)), in)
	}
	assert.Equal(t, "+$10.00", SignedMoney(d(10)))
	assert.Equal(t, "-$10.00", SignedMoney(d(-10)))
}

func TestQuickSummary(t *testing.T) {
	in := scenario()
	q := QuickSummary(in.Summary)
	assert.Contains(t, q, "Status: OVER BUDGET")
	assert.Contains(t, q, "Total Estimated: $1,700.00")
	assert.Contains(t, q, "Total Actual: $1,850.00")
	assert.Contains(t, q, "Variance: +$150.00 (+8.8%)")
	assert.Contains(t, q, "Biggest Overrun: Equipment (+$300.00)")
	assert.Contains(t, q, "Biggest Underrun: Marketing (-$200.00)")

	empty := QuickSummary(variance.Summarize(nil))
	assert.Contains(t, empty, "Status: ON BUDGET")
	assert.Contains(t, empty, "Biggest Overrun: none")
}

func TestBuildPromptContainsFigures(t *testing.T) {
	p := BuildPrompt(scenario())
	for _, want := range []string{
		"**PROJECT**: Kitchen Remodel",
		"Total Estimated Budget: $1,700.00",
		"Net Variance: +$150.00 (+8.8%)",
		"Largest Overrun: Equipment (+$300.00)",
		"**DETAILED LINE ITEMS**",
		"Marketing",
		"+∞ (no estimate)",
	} {
		assert.Contains(t, p, want)
	}
	assert.NotContains(t, p, "Historical Context")
	assert.NotContains(t, p, "Based on similar past projects")
}

func TestBuildPromptHistoricalContext(t *testing.T) {
	in := scenario()
	long := strings.Repeat("x", 400)
	for i := 0; i < 5; i++ {
		in.Prior = append(in.Prior, memory.Insight{ProjectName: "Past " + string(rune('A'+i)), Narrative: long, Summary: in.Summary})
	}
	p := BuildPrompt(in)
	assert.Contains(t, p, "Historical Context - Similar Past Projects")
	assert.Contains(t, p, "3. **Past C**")
	assert.NotContains(t, p, "Past D")
	assert.Contains(t, p, "Insight: "+strings.Repeat("x", 300)+"...")
	assert.NotContains(t, p, strings.Repeat("x", 301))
	assert.Contains(t, p, "Pattern Detection")
	assert.Contains(t, p, "Based on similar past projects")
}

type stubRuntime struct {
	text string
	err  error
	got  ai.GenerateRequest
}

func (s *stubRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Content: s.text}}}, RequestID: "r1"}, nil
}

func TestNarratorUsesRuntime(t *testing.T) {
	rt := &stubRuntime{text: "  Over budget by 8.8%.  "}
	n := &Narrator{Runtime: rt, Settings: DefaultSettings("gemini-2.5-flash"), Logger: logging.Discard()}
	out := n.Narrate(context.Background(), scenario(), false)
	assert.Equal(t, SourceLLM, out.Source)
	assert.Equal(t, "Over budget by 8.8%.", out.Text)
	assert.Equal(t, "r1", out.RequestID)
	assert.Empty(t, out.Warning)

	assert.Equal(t, 2048, rt.got.MaxTokens)
	assert.InDelta(t, 0.3, rt.got.Temperature, 1e-9)
	assert.Equal(t, 40, rt.got.TopK)
	require.Len(t, rt.got.Messages, 2)
	assert.Equal(t, "system", rt.got.Messages[0].Role)
	assert.Contains(t, rt.got.Messages[1].Content, "Kitchen Remodel")
}

func TestNarratorFallsBack(t *testing.T) {
	in := scenario()
	for name, n := range map[string]*Narrator{
		"error":      {Runtime: &stubRuntime{err: &ai.AuthError{APIError: &ai.APIError{StatusCode: 401}}}, Logger: logging.Discard()},
		"empty text": {Runtime: &stubRuntime{text: "   "}, Logger: logging.Discard()},
		"no runtime": {Logger: logging.Discard()},
	} {
		out := n.Narrate(context.Background(), in, false)
		assert.Equal(t, SourceFallback, out.Source, name)
		assert.NotEmpty(t, out.Warning, name)
		assert.Equal(t, QuickSummary(in.Summary), out.Text, name)
	}

	auth := (&Narrator{Runtime: &stubRuntime{err: &ai.AuthError{APIError: &ai.APIError{StatusCode: 401}}}, Logger: logging.Discard()}).
		Narrate(context.Background(), in, false)
	assert.Contains(t, auth.Warning, "authentication failed")

	plain := (&Narrator{Runtime: &stubRuntime{err: errors.New("boom")}, Logger: logging.Discard()}).
		Narrate(context.Background(), in, false)
	assert.Contains(t, plain.Warning, "boom")
}

func TestNarratorQuickSkipsRuntime(t *testing.T) {
	rt := &stubRuntime{text: "unused"}
	out := (&Narrator{Runtime: rt}).Narrate(context.Background(), scenario(), true)
	assert.Equal(t, SourceQuick, out.Source)
	assert.Empty(t, rt.got.Model)
}

func TestRenderFormats(t *testing.T) {
	in := scenario()
	doc := Document{Project: in.Project, Summary: in.Summary, Rows: in.Rows, Narrative: "All good.", NarrativeSource: SourceLLM}

	var txt bytes.Buffer
	require.NoError(t, Render(&txt, doc, FormatText))
	assert.Contains(t, txt.String(), "Status:  OVER BUDGET")
	assert.Contains(t, txt.String(), "Narrative (llm):")

	var md bytes.Buffer
	require.NoError(t, Render(&md, doc, FormatMarkdown))
	assert.Contains(t, md.String(), "# Kitchen Remodel")
	assert.Contains(t, md.String(), "| Labor | $1,000.00 | $1,100.00 | +$100.00 | +10.0% |")

	var js bytes.Buffer
	require.NoError(t, Render(&js, doc, FormatJSON))
	var back map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &back))
	assert.Equal(t, "Kitchen Remodel", back["project_name"])
	rows := back["rows"].([]any)
	assert.Equal(t, "+inf", rows[3].(map[string]any)["variance_pct"])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("MD")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)
	_, err = ParseFormat("html")
	assert.Error(t, err)
}

func TestWritePDF(t *testing.T) {
	in := scenario()
	doc := Document{Project: "Café Fit-out", Summary: in.Summary, Rows: in.Rows, Narrative: "**Overview**\n\nCosts rose.", CreatedAt: time.Now()}
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, doc, nil))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestPDFFilename(t *testing.T) {
	at := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Kitchen_Remodel_2025_20250630.pdf", PDFFilename("Kitchen Remodel (2025)!", at))
	assert.Equal(t, "report_20250630.pdf", PDFFilename("???", at))
	assert.Len(t, PDFFilename(strings.Repeat("a", 80), at), 50+len("_20250630.pdf"))
}

func TestFromInsight(t *testing.T) {
	in := memory.Insight{ID: "x1", ProjectName: "P", Narrative: "n", Metadata: map[string]string{"narrative_source": SourceQuick}}
	doc := FromInsight(in)
	assert.Equal(t, "x1", doc.InsightID)
	assert.Equal(t, SourceQuick, doc.NarrativeSource)
}
