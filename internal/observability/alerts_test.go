package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	jobmetrics "github.com/sage-invoice/sage/internal/jobs"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertFile struct {
	Groups []struct {
		Name  string      `yaml:"name"`
		Rules []alertRule `yaml:"rules"`
	} `yaml:"groups"`
}

var (
	fqNamePattern = regexp.MustCompile(`fqName: "([^"]+)"`)
	seriesPattern = regexp.MustCompile(`\bsage_[a-z_]+`)
)

// nameCollector records the metric names of everything registered with it.
type nameCollector map[string]bool

func (n nameCollector) Register(c prometheus.Collector) error {
	descs := make(chan *prometheus.Desc, 8)
	go func() {
		c.Describe(descs)
		close(descs)
	}()
	for d := range descs {
		if m := fqNamePattern.FindStringSubmatch(d.String()); m != nil {
			n[m[1]] = true
		}
	}
	return nil
}

func (n nameCollector) MustRegister(cs ...prometheus.Collector) {
	for _, c := range cs {
		_ = n.Register(c)
	}
}

func (n nameCollector) Unregister(prometheus.Collector) bool { return false }

func exportedMetricNames() nameCollector {
	names := nameCollector{}
	m := NewMetrics()
	names.MustRegister(m.requestsTotal, m.requestDuration, m.renderCache, m.renders)
	jobmetrics.NewMetrics(names)
	return names
}

// seriesBase maps histogram series back to the metric that produces them.
func seriesBase(series string) string {
	for _, suffix := range []string{"_bucket", "_sum", "_count"} {
		if base, ok := strings.CutSuffix(series, suffix); ok {
			return base
		}
	}
	return series
}

func TestAlertRules(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "sage.yml"))
	require.NoError(t, err)
	var file alertFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	require.Len(t, file.Groups, 1)
	require.Equal(t, "sage", file.Groups[0].Name)

	runbook, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook.md"))
	require.NoError(t, err)

	want := map[string]string{
		"HighErrorRate":       "critical",
		"SlowRendering":       "warning",
		"TotalsJobFailures":   "warning",
		"RenderCacheColdness": "info",
	}
	exported := exportedMetricNames()
	rules := file.Groups[0].Rules
	require.Len(t, rules, len(want))

	for _, rule := range rules {
		t.Run(rule.Alert, func(t *testing.T) {
			severity, ok := want[rule.Alert]
			require.True(t, ok, "unexpected rule")
			assert.Equal(t, severity, rule.Labels["severity"])
			assert.NotEmpty(t, rule.For)
			assert.NotEmpty(t, rule.Annotations["summary"])
			assert.NotEmpty(t, rule.Annotations["description"])

			link := rule.Annotations["runbook"]
			anchor, ok := strings.CutPrefix(link, "docs/runbook.md#")
			require.True(t, ok, "runbook link %q", link)
			assert.Contains(t, strings.ToLower(string(runbook)), "## "+strings.ReplaceAll(anchor, "-", " "),
				"runbook section for %s", anchor)

			series := seriesPattern.FindAllString(rule.Expr, -1)
			require.NotEmpty(t, series, "expression references no sage metric")
			for _, s := range series {
				assert.True(t, exported[seriesBase(s)], "%s is not exported by the server or worker", s)
			}
		})
	}
}
