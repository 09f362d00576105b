// Command argus trains an adversarial anomaly detector on a reference
// expression matrix and writes calibrated anomaly probabilities for a
// target matrix.
//
// Both matrices are CSV files with a gene-name header row and one cell
// per data row. The reference and target must carry the same genes in
// the same order.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/openfluke/argus"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML run configuration (optional)")
		refPath    = flag.String("ref", "", "reference expression matrix (CSV)")
		tgtPath    = flag.String("target", "", "target expression matrix (CSV)")
		outPath    = flag.String("out", "scores.csv", "output probabilities (CSV)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if *refPath == "" || *tgtPath == "" {
		fmt.Fprintln(os.Stderr, "usage: argus -ref reference.csv -target target.csv [-config run.yaml] [-out scores.csv]")
		os.Exit(2)
	}

	if err := run(*configPath, *refPath, *tgtPath, *outPath); err != nil {
		logrus.WithError(err).Fatal("run failed")
	}
}

func run(configPath, refPath, tgtPath, outPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ref, err := readMatrix(refPath)
	if err != nil {
		return fmt.Errorf("reference %s: %w", refPath, err)
	}
	tgt, err := readMatrix(tgtPath)
	if err != nil {
		return fmt.Errorf("target %s: %w", tgtPath, err)
	}

	det := argus.New(cfg)
	if err := det.Detect(ref); err != nil {
		return err
	}
	probs, err := det.Predict(tgt)
	if err != nil {
		return err
	}

	return writeScores(outPath, probs)
}

// readMatrix parses a CSV expression matrix: first row gene names, each
// following row one cell.
func readMatrix(path string) (*argus.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("need a header row and at least one cell row")
	}

	genes := records[0]
	rows := len(records) - 1
	data := make([]float64, 0, rows*len(genes))
	for r, rec := range records[1:] {
		if len(rec) != len(genes) {
			return nil, fmt.Errorf("row %d has %d values, header has %d genes", r+2, len(rec), len(genes))
		}
		for _, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", r+2, err)
			}
			data = append(data, v)
		}
	}

	return argus.NewDataset(mat.NewDense(rows, len(genes), data), genes)
}

func writeScores(path string, probs []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"cell", "anomaly_probability"}); err != nil {
		return err
	}
	for i, p := range probs {
		rec := []string{strconv.Itoa(i), strconv.FormatFloat(p, 'g', -1, 64)}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
