package harvest

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/tordrt/metaharvest/internal/logging"
	"github.com/tordrt/metaharvest/internal/report"
	"github.com/tordrt/metaharvest/internal/search"
)

// Status is the outcome of one instance
type Status string

const (
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// Stage names the pipeline step an instance failed in
type Stage string

const (
	StageConnections Stage = "connections"
	StageReport      Stage = "report"
	StageStore       Stage = "store"
)

// InstanceSummary reports what happened to one instance
type InstanceSummary struct {
	Subdomain          string
	Status             Status
	Stage              Stage
	Err                error
	Connections        int
	Databases          int
	Combined           int
	DatabaseFailures   int
	SkippedConnections int
	Paths              report.Paths
}

// Summary aggregates a whole run
type Summary struct {
	RunID         string
	MultiInstance bool
	Instances     []InstanceSummary
	Interrupted   bool
}

// Succeeded counts instances whose reports were written
func (s *Summary) Succeeded() int {
	return s.count(StatusSuccess)
}

// Failed counts instances that were skipped after an error
func (s *Summary) Failed() int {
	return s.count(StatusFailed)
}

func (s *Summary) count(status Status) int {
	n := 0
	for _, inst := range s.Instances {
		if inst.Status == status {
			n++
		}
	}
	return n
}

// TotalConnections sums connections over all instances
func (s *Summary) TotalConnections() int {
	n := 0
	for _, inst := range s.Instances {
		n += inst.Connections
	}
	return n
}

// TotalDatabases sums databases over all instances
func (s *Summary) TotalDatabases() int {
	n := 0
	for _, inst := range s.Instances {
		n += inst.Databases
	}
	return n
}

// ExitCode maps the run outcome to a process exit status. Instance failures
// only count when failOnInstanceError is set.
func (s *Summary) ExitCode(failOnInstanceError bool) int {
	if s.Interrupted {
		return 1
	}
	if failOnInstanceError && s.Failed() > 0 {
		return 1
	}
	return 0
}

// Render writes the per-instance table with run totals in the footer
func (s *Summary) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Subdomain", "Status", "Connections", "Databases", "Combined", "DB Failures", "Error"})
	table.SetAutoWrapText(false)

	for _, inst := range s.Instances {
		table.Append([]string{
			inst.Subdomain,
			string(inst.Status),
			strconv.Itoa(inst.Connections),
			strconv.Itoa(inst.Databases),
			strconv.Itoa(inst.Combined),
			strconv.Itoa(inst.DatabaseFailures),
			describeError(inst),
		})
	}

	table.SetFooter([]string{
		"Total",
		strconv.Itoa(s.Succeeded()) + "/" + strconv.Itoa(len(s.Instances)) + " ok",
		strconv.Itoa(s.TotalConnections()),
		strconv.Itoa(s.TotalDatabases()),
		strconv.Itoa(s.totalCombined()),
		strconv.Itoa(s.totalDatabaseFailures()),
		"",
	})

	table.Render()
}

func (s *Summary) totalCombined() int {
	n := 0
	for _, inst := range s.Instances {
		n += inst.Combined
	}
	return n
}

func (s *Summary) totalDatabaseFailures() int {
	n := 0
	for _, inst := range s.Instances {
		n += inst.DatabaseFailures
	}
	return n
}

func describeError(inst InstanceSummary) string {
	if inst.Err == nil {
		return ""
	}
	if inst.Status == StatusInterrupted {
		return inst.Err.Error()
	}
	kind := search.Kind(inst.Err)
	if inst.Stage != StageConnections {
		kind = string(inst.Stage)
	}
	return kind + ": " + logging.Redact(inst.Err.Error())
}
