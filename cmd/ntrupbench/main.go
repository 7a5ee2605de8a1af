// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Command ntrupbench times key generation, encapsulation, and decapsulation
// of the registered KEMs, printing summary statistics and rendering an HTML
// chart of the results.
package main

import (
	"bytes"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jrick/ntrup/kem"
	"github.com/montanaflynn/stats"
)

var operations = []string{"keygen", "encapsulate", "decapsulate"}

type summary struct {
	Mean, Median, Std, P95 float64
}

// result holds timings in microseconds per operation.
type result struct {
	kem     kem.KEM
	samples map[string][]float64
}

func main() {
	n := flag.Int("n", 100, "iterations per KEM")
	kems := flag.String("k", strings.Join(kem.Names(), ","), "comma separated KEM names")
	out := flag.String("out", "ntrupbench.html", "HTML chart output file (empty to skip)")
	flag.Parse()
	log.SetFlags(0)

	if *n < 1 {
		log.Fatal("-n must be positive")
	}
	var results []*result
	for _, name := range strings.Split(*kems, ",") {
		k, err := kem.Open(strings.TrimSpace(name))
		if err != nil {
			log.Fatal(err)
		}
		r, err := bench(k, *n)
		if err != nil {
			log.Fatalf("%v: %v", k, err)
		}
		results = append(results, r)
		for _, op := range operations {
			s, err := summarize(r.samples[op])
			if err != nil {
				log.Fatalf("%v %s: %v", k, op, err)
			}
			fmt.Printf("%-22s %-12s mean=%10.1fus median=%10.1fus std=%9.1fus p95=%10.1fus\n",
				k, op, s.Mean, s.Median, s.Std, s.P95)
		}
	}

	if *out == "" {
		return
	}
	err := render(*out, results, *n)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("create %v", *out)
}

func bench(k kem.KEM, n int) (*result, error) {
	r := &result{kem: k, samples: make(map[string][]float64)}
	seed := make([]byte, kem.SeedSize)
	for i := 0; i < n; i++ {
		_, err := rand.Read(seed)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		pubkey, err := k.GenerateKey(seed)
		if err != nil {
			return nil, err
		}
		r.add("keygen", start)

		start = time.Now()
		ct, key1, err := k.Encapsulate(pubkey)
		if err != nil {
			return nil, err
		}
		r.add("encapsulate", start)

		start = time.Now()
		key2, err := k.Decapsulate(seed, ct)
		if err != nil {
			return nil, err
		}
		r.add("decapsulate", start)

		if !bytes.Equal(key1, key2) {
			return nil, errors.New("shared keys differ")
		}
	}
	return r, nil
}

func (r *result) add(op string, start time.Time) {
	us := float64(time.Since(start).Nanoseconds()) / 1e3
	r.samples[op] = append(r.samples[op], us)
}

func summarize(samples []float64) (s summary, err error) {
	data := stats.LoadRawData(samples)
	if s.Mean, err = stats.Mean(data); err != nil {
		return
	}
	if s.Median, err = stats.Median(data); err != nil {
		return
	}
	if s.Std, err = stats.StandardDeviation(data); err != nil {
		return
	}
	s.P95, err = stats.Percentile(data, 95)
	return
}

func newMedianChart(results []*result, n int) (*charts.Bar, error) {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Median operation time (us)",
			Subtitle: fmt.Sprintf("n=%d per KEM", n),
		}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "ntrupbench", Width: "1200px", Height: "600px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(operations)
	for _, r := range results {
		items := make([]opts.BarData, len(operations))
		for i, op := range operations {
			s, err := summarize(r.samples[op])
			if err != nil {
				return nil, err
			}
			items[i] = opts.BarData{Value: s.Median}
		}
		bar.AddSeries(r.kem.String(), items)
	}
	return bar, nil
}

func render(filename string, results []*result, n int) error {
	bar, err := newMedianChart(results, n)
	if err != nil {
		return err
	}
	page := components.NewPage()
	page.AddCharts(bar)

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	err = page.Render(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
