package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relaxlab/qexp/pkg/decay"
	"github.com/relaxlab/qexp/pkg/xeb"
)

// run executes the command tree with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFit_CSVMicroseconds(t *testing.T) {
	var b strings.Builder
	b.WriteString("delay_us,probability\n")
	for _, d := range []float64{0, 25, 50, 75, 100, 150, 200} {
		fmt.Fprintf(&b, "%g,%.12f\n", d, 0.9*math.Exp(-d/50)+0.05)
	}
	path := writeFile(t, "sweep.csv", b.String())

	out, err := run(t, "fit", path, "--time-unit", "us")
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	var res decay.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if math.Abs(res.DecayConstant-50e-6)/50e-6 > 1e-4 {
		t.Errorf("T1 = %g, want 50e-6", res.DecayConstant)
	}
	if math.Abs(res.Offset-0.05) > 1e-4 {
		t.Errorf("offset = %g, want 0.05", res.Offset)
	}
}

func TestFit_JSONSelectsQubit(t *testing.T) {
	var recs []string
	for _, d := range []float64{0, 20e-6, 40e-6, 80e-6, 160e-6} {
		recs = append(recs,
			fmt.Sprintf(`{"qubit":0,"delay":%g,"probability":%.12f}`, d, math.Exp(-d/30e-6)),
			fmt.Sprintf(`{"qubit":1,"delay":%g,"probability":%.12f}`, d, math.Exp(-d/70e-6)),
		)
	}
	path := writeFile(t, "sweep.json", "["+strings.Join(recs, ",")+"]")

	out, err := run(t, "fit", path, "--qubit", "1")
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	var res decay.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if math.Abs(res.DecayConstant-70e-6)/70e-6 > 1e-4 {
		t.Errorf("T1 = %g, want 70e-6", res.DecayConstant)
	}
}

func TestFit_TextOutput(t *testing.T) {
	path := writeFile(t, "sweep.csv", "0,1\n50e-6,0.36787944117\n100e-6,0.13533528323\n150e-6,0.04978706836\n")

	out, err := run(t, "fit", path, "-o", "text")
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if !strings.Contains(out, "T1        = 50.000") {
		t.Errorf("text output missing T1 line:\n%s", out)
	}
}

func TestFit_Errors(t *testing.T) {
	twoPoints := writeFile(t, "short.csv", "0,1\n1e-5,0.8\n")
	if _, err := run(t, "fit", twoPoints); !errors.Is(err, decay.ErrInsufficientData) {
		t.Errorf("two points: err = %v, want ErrInsufficientData", err)
	}

	bad := writeFile(t, "bad.csv", "0,1\n1e-5,abc\n")
	if _, err := run(t, "fit", bad); err == nil {
		t.Error("non-numeric row should fail")
	}

	ok := writeFile(t, "ok.csv", "0,1\n1e-5,0.8\n2e-5,0.7\n")
	if _, err := run(t, "fit", ok, "--time-unit", "fortnights"); err == nil {
		t.Error("unknown time unit should fail")
	}
	if _, err := run(t, "fit", ok, "-o", "yaml"); err == nil {
		t.Error("unknown output format should fail")
	}
}

func TestSimulate_ThenFit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.json")
	if _, err := run(t, "simulate", "--t1", "40e-6", "--max-delay", "160e-6", "--qubits", "0,2", "-f", path); err != nil {
		t.Fatalf("simulate: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var recs []map[string]any
	if err := json.Unmarshal(data, &recs); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(recs) != 2*21 {
		t.Errorf("records = %d, want 42", len(recs))
	}

	out, err := run(t, "fit", path, "--qubit", "2")
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	var res decay.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode fit: %v", err)
	}
	if math.Abs(res.DecayConstant-40e-6)/40e-6 > 0.2 {
		t.Errorf("T1 = %g, want about 40e-6", res.DecayConstant)
	}
}

func TestXEB(t *testing.T) {
	ideal := writeFile(t, "ideal.json", `{"00": 0.5, "11": 0.5}`)
	counts := writeFile(t, "counts.json", `{"00": 48, "11": 52}`)

	out, err := run(t, "xeb", "--ideal", ideal, "--counts", counts)
	if err != nil {
		t.Fatalf("xeb: %v", err)
	}
	var score xeb.Score
	if err := json.Unmarshal([]byte(out), &score); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if math.Abs(score.Linear-0.5) > 1e-12 || math.Abs(score.Normalized-1) > 1e-12 || score.Qubits != 2 {
		t.Errorf("score = %+v, want linear 0.5 normalized 1 qubits 2", score)
	}
}

func TestXEB_RequiresFlags(t *testing.T) {
	if _, err := run(t, "xeb"); err == nil {
		t.Error("xeb without --ideal/--counts should fail")
	}
}

func TestCrosstalk(t *testing.T) {
	ref := writeFile(t, "ref.json", `{"00": 98, "01": 2}`)
	op := writeFile(t, "op.json", `{"00": 80, "01": 12, "10": 8}`)

	out, err := run(t, "crosstalk", "--reference", ref, "--operation", op)
	if err != nil {
		t.Fatalf("crosstalk: %v", err)
	}
	var rep struct {
		Crosstalk map[string]float64 `json:"crosstalk"`
		Summary   struct {
			Count int `json:"count"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// qubit 0: 0.12 − 0.02; qubit 1: 0.08 − 0
	if math.Abs(rep.Crosstalk["0"]-0.10) > 1e-12 || math.Abs(rep.Crosstalk["1"]-0.08) > 1e-12 {
		t.Errorf("crosstalk = %v", rep.Crosstalk)
	}
	if rep.Summary.Count != 2 {
		t.Errorf("summary count = %d, want 2", rep.Summary.Count)
	}
}
