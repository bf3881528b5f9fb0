package report

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/licenseaudit/internal/audit"
)

// Gather builds a private registry holding the run's gauges and returns the
// gathered families. A fresh registry per run keeps platforms dropped from
// the config out of the artifact.
func Gather(t *audit.Totals) ([]*dto.MetricFamily, error) {
	valid := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "licenseaudit_valid_licenses",
		Help: "Packages whose newest build carries a valid SPDX license expression.",
	}, []string{"platform"})
	invalid := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "licenseaudit_invalid_licenses",
		Help: "Packages whose newest build carries an unparseable license expression.",
	}, []string{"platform"})
	available := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "licenseaudit_platform_available",
		Help: "1 when the platform snapshot was loaded, 0 when it was unavailable.",
	}, []string{"platform"})
	packages := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "licenseaudit_license_packages",
		Help: "Packages per canonical license expression across all platforms.",
	}, []string{"license"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(valid, invalid, available, packages)

	for _, p := range t.Platforms {
		valid.WithLabelValues(p.Platform).Set(float64(p.Valid))
		invalid.WithLabelValues(p.Platform).Set(float64(p.Invalid))
		up := 1.0
		if !t.Available(p.Platform) {
			up = 0
		}
		available.WithLabelValues(p.Platform).Set(up)
	}
	for license, n := range t.Counts {
		packages.WithLabelValues(license).Set(float64(n))
	}

	mfs, err := reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("report: gather metrics: %w", err)
	}
	return mfs, nil
}

// WriteMetrics encodes the run's gauges to w in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func WriteMetrics(w io.Writer, t *audit.Totals) error {
	mfs, err := Gather(t)
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("report: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
