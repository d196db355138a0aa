package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/tools"
)

// ErrNotRun marks an entry whose intake never reported a result
var ErrNotRun = errors.New("intake did not run")

// SurfaceFactory creates a surface over a fresh session
type SurfaceFactory func() *tools.Surface

// ClientEntry is one client in a batch file. Either Preset or the answers are set.
type ClientEntry struct {
	ID             string `yaml:"id,omitempty" json:"id,omitempty"`
	Preset         string `yaml:"preset,omitempty" json:"preset,omitempty"`
	Name           string `yaml:"name,omitempty" json:"name,omitempty"`
	Age            string `yaml:"age,omitempty" json:"age,omitempty"`
	MedicaidStatus string `yaml:"medicaid_status,omitempty" json:"medicaid_status,omitempty"`
	DisabilityType string `yaml:"disability_type,omitempty" json:"disability_type,omitempty"`
	HousingStatus  string `yaml:"housing_status,omitempty" json:"housing_status,omitempty"`
}

// Label identifies the entry in output
func (e ClientEntry) Label() string {
	switch {
	case e.ID != "":
		return e.ID
	case e.Preset != "":
		return e.Preset
	case e.Name != "":
		return e.Name
	default:
		return "(unnamed)"
	}
}

// IntakeJob runs a complete intake for one entry
type IntakeJob struct {
	Index      int
	Entry      ClientEntry
	NewSurface SurfaceFactory
}

// Execute executes the intake job
func (j *IntakeJob) Execute(ctx context.Context) Result {
	res := &IntakeResult{Index: j.Index, Entry: j.Entry}
	if err := ctx.Err(); err != nil {
		res.Error = err
		return res
	}

	surface := j.NewSurface()
	res.SessionID = surface.Session().ID()

	steps := j.steps()
	for _, step := range steps {
		reply, err := surface.Invoke(ctx, step.op, step.arg)
		if err != nil {
			res.Error = fmt.Errorf("%s: %w", step.op, err)
			return res
		}
		res.Replies = append(res.Replies, reply)
	}

	reply, err := surface.Invoke(ctx, tools.OpAssess, "")
	res.Assessment = reply
	res.Record = surface.Session().Snapshot()
	if err != nil {
		res.Error = err
	}
	return res
}

type step struct {
	op  tools.Operation
	arg string
}

func (j *IntakeJob) steps() []step {
	if j.Entry.Preset != "" {
		return []step{{tools.OpLoadPreset, j.Entry.Preset}}
	}
	return []step{
		{tools.OpSetName, j.Entry.Name},
		{tools.OpSetAge, j.Entry.Age},
		{tools.OpSetMedicaid, j.Entry.MedicaidStatus},
		{tools.OpSetDisability, j.Entry.DisabilityType},
		{tools.OpSetHousing, j.Entry.HousingStatus},
	}
}

// IntakeResult represents the result of an intake job
type IntakeResult struct {
	Index      int
	Entry      ClientEntry
	SessionID  string
	Replies    []string
	Assessment string
	Record     model.IntakeRecord
	Error      error
}

// GetError returns the error from the intake result
func (r *IntakeResult) GetError() error {
	return r.Error
}

// Assessed reports whether the entry reached an eligibility decision
func (r *IntakeResult) Assessed() bool {
	return r.Record.IsAssessed()
}

// BatchProcessor runs many independent intakes concurrently
type BatchProcessor struct {
	newSurface  SurfaceFactory
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(newSurface SurfaceFactory, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		newSurface:  newSurface,
		concurrency: concurrency,
	}
}

// ProcessEntries runs every entry in its own session. It returns exactly one
// result per entry, in input order.
func (b *BatchProcessor) ProcessEntries(ctx context.Context, entries []ClientEntry) []*IntakeResult {
	if len(entries) == 0 {
		return []*IntakeResult{}
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	for i, entry := range entries {
		pool.Submit(&IntakeJob{
			Index:      i,
			Entry:      entry,
			NewSurface: b.newSurface,
		})
	}

	intakeResults := make([]*IntakeResult, len(entries))
	for _, result := range pool.Wait() {
		res := result.(*IntakeResult)
		intakeResults[res.Index] = res
	}

	// Every entry gets a result, even if its job never reported back
	for i, res := range intakeResults {
		if res != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = ErrNotRun
		}
		intakeResults[i] = &IntakeResult{Index: i, Entry: entries[i], Error: err}
	}

	return intakeResults
}

// ProcessFile reads client entries from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*IntakeResult, error) {
	entries, err := ReadEntriesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}

	return b.ProcessEntries(ctx, entries), nil
}

// ReadEntriesFromFile reads a YAML or JSON list of client entries
func ReadEntriesFromFile(filePath string) ([]ClientEntry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	var entries []ClientEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}

	for i, e := range entries {
		hasAnswers := strings.TrimSpace(e.Name+e.Age+e.MedicaidStatus+e.DisabilityType+e.HousingStatus) != ""
		if e.Preset != "" && hasAnswers {
			return nil, fmt.Errorf("entry %d (%s): preset and answers are mutually exclusive", i+1, e.Label())
		}
	}

	return entries, nil
}
