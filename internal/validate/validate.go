// Package validate checks that the environment is ready for a pipeline run
// and prints a human-readable report.
package validate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/vnclimate/weathermart/internal/config"
)

// Status is the outcome of a single check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusWarn Status = "warn"
	StatusInfo Status = "info"
)

// Check is one validated item.
type Check struct {
	Name   string
	Status Status
	Detail string
}

// Report is the result of a full validation run.
type Report struct {
	Checks []Check
	When   time.Time
}

// Failures counts hard failures.
func (r Report) Failures() int {
	n := 0
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			n++
		}
	}
	return n
}

// Write renders the report for a terminal.
func (r Report) Write(w io.Writer) {
	marks := map[Status]string{
		StatusPass: "ok  ",
		StatusFail: "FAIL",
		StatusWarn: "warn",
		StatusInfo: "info",
	}
	fmt.Fprintf(w, "Pipeline validation - %s\n\n", r.When.Format(time.RFC3339))
	for _, c := range r.Checks {
		fmt.Fprintf(w, "[%s] %-28s %s\n", marks[c.Status], c.Name, c.Detail)
	}
	fmt.Fprintf(w, "\n%d failed, %d total\n", r.Failures(), len(r.Checks))
}

// Validator runs environment checks against a loaded configuration.
type Validator struct {
	cfg    config.Config
	client *http.Client
	logger *zap.Logger
}

// NewValidator constructs a Validator.
func NewValidator(cfg config.Config, logger *zap.Logger) *Validator {
	return &Validator{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// Run executes every check. It never returns an error; problems surface as
// failed checks in the report.
func (v *Validator) Run(ctx context.Context) Report {
	report := Report{When: time.Now()}

	report.Checks = append(report.Checks, v.checkConfig())
	report.Checks = append(report.Checks, v.checkWritableDir("dataset dir", filepath.Dir(v.cfg.Paths.DatasetCSV)))
	report.Checks = append(report.Checks, v.checkWritableDir("registry dir", filepath.Dir(v.cfg.Paths.RegistryCSV)))
	report.Checks = append(report.Checks, v.checkWritableDir("export dir", v.cfg.Export.Dir))
	report.Checks = append(report.Checks, v.checkArtifact("dataset artifact", v.cfg.Paths.DatasetCSV))
	report.Checks = append(report.Checks, v.checkArtifact("location registry", v.cfg.Paths.RegistryCSV))
	report.Checks = append(report.Checks, v.checkDatabase())
	report.Checks = append(report.Checks, v.checkArchiveAPI(ctx))
	report.Checks = append(report.Checks, v.checkBlob())
	report.Checks = append(report.Checks, v.checkNotify())

	return report
}

func (v *Validator) checkConfig() Check {
	if err := v.cfg.Validate(); err != nil {
		return Check{Name: "configuration", Status: StatusFail, Detail: err.Error()}
	}
	return Check{Name: "configuration", Status: StatusPass, Detail: "valid"}
}

func (v *Validator) checkWritableDir(name, dir string) Check {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Name: name, Status: StatusFail, Detail: fmt.Sprintf("cannot create %s: %v", dir, err)}
	}
	probe := filepath.Join(dir, ".write_probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return Check{Name: name, Status: StatusFail, Detail: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	_ = os.Remove(probe)
	return Check{Name: name, Status: StatusPass, Detail: dir}
}

func (v *Validator) checkArtifact(name, path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		return Check{Name: name, Status: StatusInfo, Detail: fmt.Sprintf("%s not created yet (generated by pipeline)", path)}
	}
	return Check{Name: name, Status: StatusPass, Detail: fmt.Sprintf("%s (%s)", path, humanSize(info.Size()))}
}

func (v *Validator) checkDatabase() Check {
	if v.cfg.DB.DSN == "" {
		return Check{Name: "database DSN", Status: StatusWarn, Detail: "not set; load, mart and export commands unavailable"}
	}
	return Check{Name: "database DSN", Status: StatusPass, Detail: "set"}
}

func (v *Validator) checkArchiveAPI(ctx context.Context) Check {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.Archive.BaseURL, nil)
	if err != nil {
		return Check{Name: "archive API", Status: StatusFail, Detail: err.Error()}
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return Check{Name: "archive API", Status: StatusFail, Detail: fmt.Sprintf("unreachable: %v", err)}
	}
	defer resp.Body.Close()
	// Any HTTP response proves reachability; a parameterless request is
	// expected to be rejected by the API.
	return Check{Name: "archive API", Status: StatusPass, Detail: fmt.Sprintf("%s responded %d", v.cfg.Archive.BaseURL, resp.StatusCode)}
}

func (v *Validator) checkBlob() Check {
	switch v.cfg.Blob.Provider {
	case "gcs":
		if v.cfg.Blob.GCSBucket == "" {
			return Check{Name: "blob mirror", Status: StatusFail, Detail: "provider gcs requires blob.gcs_bucket"}
		}
		return Check{Name: "blob mirror", Status: StatusPass, Detail: fmt.Sprintf("gcs bucket %s", v.cfg.Blob.GCSBucket)}
	case "local":
		return Check{Name: "blob mirror", Status: StatusPass, Detail: fmt.Sprintf("local dir %s", v.cfg.Blob.LocalDir)}
	case "noop", "":
		return Check{Name: "blob mirror", Status: StatusInfo, Detail: "disabled"}
	default:
		return Check{Name: "blob mirror", Status: StatusFail, Detail: fmt.Sprintf("unknown provider %q", v.cfg.Blob.Provider)}
	}
}

func (v *Validator) checkNotify() Check {
	switch v.cfg.Notify.Provider {
	case "pubsub":
		if v.cfg.Notify.ProjectID == "" || v.cfg.Notify.TopicID == "" {
			return Check{Name: "run notifications", Status: StatusFail, Detail: "provider pubsub requires notify.project_id and notify.topic_id"}
		}
		return Check{Name: "run notifications", Status: StatusPass, Detail: fmt.Sprintf("pubsub %s/%s", v.cfg.Notify.ProjectID, v.cfg.Notify.TopicID)}
	case "noop", "":
		return Check{Name: "run notifications", Status: StatusInfo, Detail: "disabled"}
	default:
		return Check{Name: "run notifications", Status: StatusFail, Detail: fmt.Sprintf("unknown provider %q", v.cfg.Notify.Provider)}
	}
}

func humanSize(n int64) string {
	switch {
	case n > 1<<30:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(1<<30))
	case n > 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(1<<20))
	default:
		return fmt.Sprintf("%.2f KB", float64(n)/float64(1<<10))
	}
}
