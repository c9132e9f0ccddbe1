package commands

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/relaxlab/qexp/agent/internal/scraper"
	"github.com/relaxlab/qexp/pkg/decay"
)

// timeScale converts a --time-unit value into seconds per unit.
func timeScale(unit string) (float64, error) {
	switch unit {
	case "s", "":
		return 1, nil
	case "ms":
		return 1e-3, nil
	case "us", "µs":
		return 1e-6, nil
	case "ns":
		return 1e-9, nil
	}
	return 0, fmt.Errorf("unknown time unit %q (want s, ms, us or ns)", unit)
}

// openInput opens path, or stdin for "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// readObservations loads one qubit's sweep from a CSV or JSON file. CSV rows
// are delay,probability with an optional header; JSON is an array of sweep
// records. Delays are multiplied by scale.
func readObservations(path string, qubit int, scale float64) ([]decay.Observation, error) {
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var obs []decay.Observation
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		obs, err = parseCSV(f)
	} else {
		obs, err = parseJSON(f, qubit)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range obs {
		obs[i].Delay *= scale
	}
	return obs, nil
}

func parseCSV(r io.Reader) ([]decay.Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var obs []decay.Observation
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: want delay,probability", line)
		}
		d, errD := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		p, errP := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if errD != nil || errP != nil {
			if line == 1 && len(obs) == 0 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: not a number", line)
		}
		obs = append(obs, decay.Observation{Delay: d, Probability: p})
	}
	return obs, nil
}

func parseJSON(r io.Reader, qubit int) ([]decay.Observation, error) {
	var recs []scraper.FileRecord
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	var obs []decay.Observation
	for i, rec := range recs {
		if rec.Qubit != qubit {
			continue
		}
		pt, err := rec.Point()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		obs = append(obs, decay.Observation{Delay: pt.Delay, Probability: pt.Probability})
	}
	return obs, nil
}

// readJSONFile decodes path (or stdin for "-") into out.
func readJSONFile(path string, out any) error {
	f, err := openInput(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// writeJSON writes v as indented JSON to w.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeJSONFile writes JSON via a temp file then rename, so a file scraper
// polling path never sees a partial sweep.
func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
