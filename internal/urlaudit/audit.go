package urlaudit

import (
	"context"

	"github.com/deploymenttheory/wfkit/internal/logger"
	"github.com/deploymenttheory/wfkit/internal/workflow"
)

// Report is the result of auditing a set of documents.
type Report struct {
	Findings []Finding `json:"findings"`
	Checked  int       `json:"checked"`
	Flagged  int       `json:"flagged"`
}

// Audit extracts URLs from docs and, when checker is non-nil, looks up each
// distinct URL once. Lookup failures are recorded on the finding.
func Audit(ctx context.Context, docs []*workflow.Document, checker Checker) (Report, error) {
	report := Report{Findings: []Finding{}}
	for _, doc := range docs {
		report.Findings = append(report.Findings, Extract(doc)...)
	}
	if checker == nil {
		return report, nil
	}

	type result struct {
		verdict *Verdict
		err     error
	}
	results := make(map[string]result)

	for i := range report.Findings {
		f := &report.Findings[i]
		r, ok := results[f.URL]
		if !ok {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			v, err := checker.CheckURL(ctx, f.URL)
			r = result{verdict: v, err: err}
			results[f.URL] = r
			report.Checked++
			if v != nil && v.Flagged() {
				report.Flagged++
				logger.LogWarn("URL flagged by VirusTotal", map[string]interface{}{
					"url":        f.URL,
					"malicious":  v.Malicious,
					"suspicious": v.Suspicious,
				})
			}
		}
		if r.err != nil {
			f.Error = r.err.Error()
			continue
		}
		f.Verdict = r.verdict
	}
	return report, nil
}
