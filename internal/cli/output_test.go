package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/wiki"
)

func sampleAnswer() *models.AskResponse {
	return &models.AskResponse{
		Answer:    "Toronto is larger.",
		RequestID: "req-1",
		QueryTime: 42,
		Plan: []models.PlanUnit{
			{Question: "Population of Toronto?", Strategy: "vector_retrieval", Target: "Toronto"},
			{Question: "Population of Atlanta?", Strategy: "vector_retrieval", Target: "Atlanta"},
		},
		Partials: []models.PartialAnswer{
			{Question: "Population of Toronto?", Strategy: "vector_retrieval", Target: "Toronto", Answer: "2.8 million", Answered: true},
			{Question: "Population of Atlanta?", Strategy: "vector_retrieval", Target: "Atlanta", Answer: "498,715", Answered: true, Fallback: true},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteAnswer_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleAnswer(), OutputText, false); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "Toronto is larger.\n" {
		t.Errorf("plain answer output: %q", got)
	}
}

func TestWriteAnswer_verbose(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleAnswer(), OutputText, true); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"2 sub-questions", "42ms", "Toronto -> vector_retrieval (answered)", "summary fallback", "A: 498,715"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "Toronto is larger.\n") {
		t.Error("final answer should be printed last")
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleAnswer(), OutputJSON, false); err != nil {
		t.Fatal(err)
	}
	var decoded models.AskResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Answer != "Toronto is larger." || len(decoded.Partials) != 2 {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestWritePlan(t *testing.T) {
	var buf bytes.Buffer
	resp := &models.PlanResponse{Question: "q", Plan: sampleAnswer().Plan}
	if err := WritePlan(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "1. [vector_retrieval] Toronto: Population of Toronto?") {
		t.Errorf("plan output: %s", buf.String())
	}

	buf.Reset()
	if err := WritePlan(&buf, &models.PlanResponse{Question: "q"}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No sub-questions") {
		t.Errorf("empty plan output: %s", buf.String())
	}

	buf.Reset()
	if err := WritePlan(&buf, resp, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"subquestion_bundle_list"`) {
		t.Errorf("json plan output: %s", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	disk := int64(3 * 1024 * 1024)
	status := &models.StatusResponse{
		Documents:       5,
		Chunks:          120,
		VectorIndexSize: 120,
		Corpus:          []string{"Toronto", "Boston"},
		DiskUsageBytes:  &disk,
		Config:          &models.StatusConfig{LLMModel: "gemini-1.5-flash", LLMProvider: "openai", TopK: 3, PlanPolicy: "drop_invalid"},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Documents:         5", "Toronto, Boston", "3.0 MiB", "gemini-1.5-flash (openai)", "drop_invalid"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteCorpusReport(t *testing.T) {
	report := &indexer.CorpusReport{
		Indexed: []string{"Toronto"},
		Skipped: []string{"Boston"},
		Missing: []string{"Atlanta"},
		Failed:  map[string]string{"Houston": "bad pdf", "Chicago": "denied"},
	}
	var buf bytes.Buffer
	if err := WriteCorpusReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Indexed: 1, skipped (unchanged): 1, missing: 1, failed: 2") {
		t.Errorf("summary line: %s", out)
	}
	if strings.Index(out, "failed Chicago") > strings.Index(out, "failed Houston") {
		t.Error("failures should be sorted")
	}
}

func TestWriteFetchReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	report := &wiki.Report{Written: []string{"/tmp/Toronto.txt"}}
	if err := WriteFetchReport(&buf, report, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Toronto.txt") {
		t.Errorf("fetch output: %s", buf.String())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
