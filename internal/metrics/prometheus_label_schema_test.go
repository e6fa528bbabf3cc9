package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func describeLabels(t *testing.T, c prometheus.Collector) []string {
	t.Helper()

	descCh := make(chan *prometheus.Desc, 8)
	c.Describe(descCh)
	close(descCh)

	var desc *prometheus.Desc
	for d := range descCh {
		desc = d
		break
	}
	if desc == nil {
		t.Fatalf("no descriptor returned")
	}

	s := desc.String()
	start := strings.Index(s, "variableLabels: {")
	if start < 0 {
		return nil
	}
	start += len("variableLabels: {")
	end := strings.Index(s[start:], "}")
	if end < 0 {
		t.Fatalf("failed to parse descriptor: %s", s)
	}
	raw := strings.TrimSpace(s[start : start+end])
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func assertLabelsEqual(t *testing.T, got, want []string) {
	t.Helper()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("labels mismatch\ngot:  %v\nwant: %v", got, want)
	}
}

func TestPrometheusLabelSchema_LowCardinality(t *testing.T) {
	assertLabelsEqual(t, describeLabels(t, Lookups), []string{"cache_namespace", "match_kind"})
	assertLabelsEqual(t, describeLabels(t, SemanticSimilarity), []string{"cache_namespace"})
	assertLabelsEqual(t, describeLabels(t, Writes), []string{"cache_namespace", "outcome"})
	assertLabelsEqual(t, describeLabels(t, Evictions), []string{"cache_namespace"})
	assertLabelsEqual(t, describeLabels(t, Pruned), []string{"cache_namespace"})
	assertLabelsEqual(t, describeLabels(t, StoreErrors), []string{"cache_namespace", "operation"})
	assertLabelsEqual(t, describeLabels(t, Entries), []string{"cache_namespace"})
}

func TestRecordHelpers(t *testing.T) {
	ns := "metrics_test"

	RecordLookup(ns, "semantic", 0.97)
	RecordLookup(ns, "none", 0)
	if got := testutil.ToFloat64(Lookups.WithLabelValues(ns, "semantic")); got != 1 {
		t.Fatalf("semantic lookups = %v, want 1", got)
	}

	RecordEvictions(ns, 3)
	RecordEvictions(ns, 0)
	if got := testutil.ToFloat64(Evictions.WithLabelValues(ns)); got != 3 {
		t.Fatalf("evictions = %v, want 3", got)
	}

	SetEntries(ns, 42)
	if got := testutil.ToFloat64(Entries.WithLabelValues(ns)); got != 42 {
		t.Fatalf("entries = %v, want 42", got)
	}
}
