package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/runner/internal/performance/metrics"
)

// Format is a machine-readable summary format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatJUnit Format = "junit"
)

// FormatForPath picks a format from the file extension: .yaml/.yml for
// YAML, .xml for JUnit and JSON for anything else.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".xml":
		return FormatJUnit
	default:
		return FormatJSON
	}
}

// WriteFile writes the summary to path in the format implied by its extension.
func WriteFile(path string, s *metrics.Summary) error {
	var buf bytes.Buffer
	if err := Encode(&buf, FormatForPath(path), s); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// Encode writes the summary to w in the given format.
func Encode(w io.Writer, format Format, s *metrics.Summary) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode JSON summary: %w", err)
		}
		return nil
	case FormatYAML:
		return encodeYAML(w, s)
	case FormatJUnit:
		return encodeJUnit(w, s)
	}
	return fmt.Errorf("unknown summary format %q", format)
}

// ReadJSON decodes a summary previously written with FormatJSON.
func ReadJSON(r io.Reader) (*metrics.Summary, error) {
	var s metrics.Summary
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	return &s, nil
}

// encodeYAML reuses the JSON field names and ordering by decoding the JSON
// document into a yaml.Node.
func encodeYAML(w io.Writer, s *metrics.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("failed to convert summary to YAML: %w", err)
	}
	clearStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("failed to encode YAML summary: %w", err)
	}
	return enc.Close()
}

// clearStyle drops the flow and quoting styles inherited from JSON.
func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}

type junitSuites struct {
	XMLName xml.Name     `xml:"testsuites"`
	Suites  []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Time       string          `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []junitProperty `xml:"properties>property"`
	Cases      []junitCase     `xml:"testcase"`
}

type junitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Text    string `xml:",chardata"`
}

// encodeJUnit maps thresholds to test cases so CI systems can gate on them.
// Steps are reported as passing cases carrying their statistics.
func encodeJUnit(w io.Writer, s *metrics.Summary) error {
	suite := junitSuite{
		Name:      s.Name,
		Time:      fmt.Sprintf("%.3f", s.Duration.Seconds()),
		Timestamp: s.StartTime.UTC().Format("2006-01-02T15:04:05"),
		Properties: []junitProperty{
			{Name: "run_id", Value: s.RunID},
			{Name: "vus", Value: fmt.Sprint(s.VUs)},
			{Name: "iterations", Value: fmt.Sprint(s.Iterations)},
			{Name: "total_requests", Value: fmt.Sprint(s.TotalRequests)},
			{Name: "fail_rate", Value: fmt.Sprintf("%.4f", s.FailRate)},
		},
	}

	for _, st := range s.Steps {
		suite.Cases = append(suite.Cases, junitCase{
			Name:      st.Name,
			ClassName: s.Name + ".steps",
			Time:      fmt.Sprintf("%.3f", st.Latency.Mean.Seconds()),
			SystemOut: fmt.Sprintf("requests=%d passed=%d failed=%d network_errors=%d p95=%s p99=%s",
				st.TotalRequests, st.PassCount, st.FailCount, st.NetworkErrors, st.Latency.P95, st.Latency.P99),
		})
	}

	for _, t := range s.Thresholds {
		tc := junitCase{
			Name:      fmt.Sprintf("%s %s", t.Metric, t.Expression),
			ClassName: s.Name + ".thresholds",
			Time:      "0",
		}
		if !t.Passed {
			tc.Failure = &junitFailure{Message: t.Message, Type: "threshold", Text: "actual: " + t.Value}
			suite.Failures++
		}
		suite.Cases = append(suite.Cases, tc)
	}
	suite.Tests = len(suite.Cases)

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(junitSuites{Suites: []junitSuite{suite}}); err != nil {
		return fmt.Errorf("failed to encode JUnit summary: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}
