package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/tandas/pkg/infrastructure/repositories/rest"
)

const scenarioDir = "../../../../example/scenarios/drying_plant"

func scenarioOptions(in string) (Options, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return Options{ScenarioDir: scenarioDir, In: strings.NewReader(in), Out: out}, out
}

func TestParseIDs(t *testing.T) {
	tests := []struct {
		input   string
		want    []int64
		wantErr bool
	}{
		{"1,2,3", []int64{1, 2, 3}, false},
		{" 4 , 5 ,", []int64{4, 5}, false},
		{"", nil, false},
		{"1,x", nil, true},
		{"0", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIDs(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIDs(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		if got := confirm(strings.NewReader(tt.answer), &out, "Go?"); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.answer, got, tt.want)
		}
		if !strings.HasPrefix(out.String(), "Go? [y/N]") {
			t.Errorf("Expected prompt, got %q", out.String())
		}
	}
}

func TestOpenRuntime(t *testing.T) {
	ctx := context.Background()
	t.Setenv("TANDAS_BACKEND_URL", "")
	t.Setenv("TANDAS_BACKEND_SCENARIO", "")

	rt, err := OpenRuntime(ctx, Options{ScenarioDir: scenarioDir})
	if err != nil {
		t.Fatalf("OpenRuntime failed: %v", err)
	}
	if _, ok := rt.Batches.(*memory.Backend); !ok {
		t.Errorf("Expected in-memory backend for a scenario, got %T", rt.Batches)
	}
	_ = rt.Close()

	rt, err = OpenRuntime(ctx, Options{BackendURL: "http://localhost:5000"})
	if err != nil {
		t.Fatalf("OpenRuntime failed: %v", err)
	}
	if _, ok := rt.Orders.(*rest.Repository); !ok {
		t.Errorf("Expected REST backend for a URL, got %T", rt.Orders)
	}
	_ = rt.Close()

	if _, err := OpenRuntime(ctx, Options{}); err == nil {
		t.Error("Expected an error without scenario or backend")
	}
}

func TestLinesCommand(t *testing.T) {
	opts, out := scenarioOptions("")
	if err := NewLinesCommand(opts).Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Linea Secado") || !strings.Contains(got, "Linea Molienda") {
		t.Errorf("Expected active lines in output:\n%s", got)
	}
	if strings.Contains(got, "Linea Envasado") {
		t.Errorf("Expected busy line to be hidden:\n%s", got)
	}
}

func TestComposeCommand(t *testing.T) {
	opts, out := scenarioOptions("")
	cmd := NewComposeCommand(ComposeConfig{Options: opts, LineID: 1, OrderIDs: []int64{1, 2, 3}, Yes: true})

	if err := cmd.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Skipped order #3: Capacity exceeded") {
		t.Errorf("Expected order 3 to be rejected:\n%s", got)
	}
	if !strings.Contains(got, "Batch #21 created on line 1 with orders [1 2] (450.00 kg)") {
		t.Errorf("Expected batch 21 to be created:\n%s", got)
	}
}

func TestComposeCommand_Refusals(t *testing.T) {
	tests := []struct {
		name    string
		config  ComposeConfig
		answer  string
		wantErr error
	}{
		{"declined", ComposeConfig{LineID: 1, OrderIDs: []int64{1}}, "n\n", ErrAborted},
		{"zero weight", ComposeConfig{LineID: 2, OrderIDs: []int64{6}, Yes: true}, "", entities.ErrZeroWeight},
		{"nothing selected", ComposeConfig{LineID: 1, OrderIDs: []int64{99}, Yes: true}, "", entities.ErrEmptySelection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, _ := scenarioOptions(tt.answer)
			tt.config.Options = opts
			err := NewComposeCommand(tt.config).Execute(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	opts, _ := scenarioOptions("")
	if err := NewComposeCommand(ComposeConfig{Options: opts, LineID: 3, OrderIDs: []int64{200}}).Execute(context.Background()); err == nil {
		t.Error("Expected busy line to be refused")
	}
	if err := NewComposeCommand(ComposeConfig{Options: opts}).Execute(context.Background()); err == nil {
		t.Error("Expected missing -line to fail validation")
	}
}

func TestBatchesCommand(t *testing.T) {
	opts, out := scenarioOptions("")
	cmd := NewBatchesCommand(BatchesConfig{Options: opts, State: "planificada", Format: "csv"})

	if err := cmd.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Errorf("Expected header and 3 rows, got %d:\n%s", len(lines), out.String())
	}

	dir := t.TempDir()
	opts, _ = scenarioOptions("")
	cmd = NewBatchesCommand(BatchesConfig{Options: opts, State: "EN_PROGRESO", Format: "xlsx", OutputDir: dir})
	if err := cmd.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "batches_en_progreso.xlsx")); err != nil {
		t.Errorf("Expected workbook to be written: %v", err)
	}

	cmd = NewBatchesCommand(BatchesConfig{Options: opts, State: "lista"})
	if err := cmd.Execute(context.Background()); !errors.Is(err, entities.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}
}

func TestAdvanceCommand(t *testing.T) {
	opts, out := scenarioOptions("y\n")
	cmd := NewAdvanceCommand(AdvanceConfig{Options: opts, State: "planificada", LineID: 2})

	if err := cmd.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Move 3 batch(es) of line 2") {
		t.Errorf("Expected the plan to be shown:\n%s", got)
	}
	if !strings.Contains(got, "Line 2: 3 batch(es) moved from planificada to en_progreso") {
		t.Errorf("Expected the transition to be reported:\n%s", got)
	}
}

func TestAdvanceCommand_Refusals(t *testing.T) {
	tests := []struct {
		name    string
		config  AdvanceConfig
		answer  string
		wantErr error
	}{
		{"declined", AdvanceConfig{State: "planificada", LineID: 2}, "no\n", ErrAborted},
		{"nothing to move", AdvanceConfig{State: "planificada", LineID: 1, Yes: true}, "", entities.ErrNothingToTransition},
		{"terminal", AdvanceConfig{State: "completada", LineID: 2, Yes: true}, "", entities.ErrTerminalState},
		{"invalid state", AdvanceConfig{State: "x", LineID: 2}, "", entities.ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, _ := scenarioOptions(tt.answer)
			tt.config.Options = opts
			err := NewAdvanceCommand(tt.config).Execute(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestServeCommand_StopsOnCancel(t *testing.T) {
	opts, _ := scenarioOptions("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewServeCommand(ServeConfig{Options: opts, Addr: "127.0.0.1:0"})
	if err := cmd.Execute(ctx); err != nil {
		t.Errorf("Expected clean shutdown, got %v", err)
	}
}
