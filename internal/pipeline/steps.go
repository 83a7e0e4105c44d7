package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/akuvvet/Automatisierung/internal/classify"
	"github.com/akuvvet/Automatisierung/internal/domain"
	"github.com/akuvvet/Automatisierung/internal/ledger"
	"github.com/akuvvet/Automatisierung/internal/logger"
	"github.com/akuvvet/Automatisierung/internal/match"
	"github.com/akuvvet/Automatisierung/internal/workbook"
)

// PipelineStep represents a single step of a reconciliation run.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID         string
	RosterPath    string
	StatementPath string
	OutputPath    string

	Roster       *workbook.Roster
	Transactions []*domain.Transaction
	Relevant     []*domain.Transaction
	Written      []domain.Allocation
	Stats        domain.RunStats
}

// Close releases the roster workbook if one was opened.
func (s *PipelineState) Close() {
	if s.Roster != nil {
		_ = s.Roster.Close()
		s.Roster = nil
	}
}

// Step 1: OpenRosterStep opens the roster workbook and locates its headers.
type OpenRosterStep struct{}

func (s *OpenRosterStep) Name() string { return "open_roster" }

func (s *OpenRosterStep) Execute(ctx context.Context, state *PipelineState) error {
	roster, err := workbook.OpenRoster(state.RosterPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRosterUnreadable, err)
	}
	state.Roster = roster

	if roster.Headers().Row == 0 {
		log := logger.FromContext(ctx)
		log.Warn().
			Str("sheet", roster.Sheet()).
			Msg("No header row found in roster, nothing can be written")
	}
	return nil
}

// Step 2: ReadStatementStep reads the bank statement into transactions.
type ReadStatementStep struct{}

func (s *ReadStatementStep) Name() string { return "read_statement" }

func (s *ReadStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	table, err := workbook.ReadStatement(state.StatementPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStatementUnreadable, err)
	}

	txs, dropped, err := table.Transactions()
	if err != nil {
		return err
	}
	state.Transactions = txs
	state.Stats.Transactions = len(txs)
	state.Stats.Dropped = dropped
	return nil
}

// Step 3: ClassifyStep labels transactions and keeps the relevant ones in
// matching order.
type ClassifyStep struct {
	Classifier *classify.Classifier
}

func (s *ClassifyStep) Name() string { return "classify" }

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	relevant := make([]*domain.Transaction, 0, len(state.Transactions))
	for _, tx := range state.Transactions {
		s.Classifier.Apply(tx)
		if classify.Relevant(tx) {
			relevant = append(relevant, tx)
		}
	}
	match.Sort(relevant)

	state.Relevant = relevant
	state.Stats.Relevant = len(relevant)
	return nil
}

// Step 4: SearchHitsStep rebuilds the search hits sheet.
type SearchHitsStep struct{}

func (s *SearchHitsStep) Name() string { return "search_hits" }

func (s *SearchHitsStep) Execute(ctx context.Context, state *PipelineState) error {
	return ledger.WriteSearchHits(state.Roster, state.Relevant)
}

// Step 5: AllocateStep matches transactions to roster rows and writes them.
type AllocateStep struct{}

func (s *AllocateStep) Name() string { return "allocate" }

func (s *AllocateStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	matcher := match.New(state.Relevant)
	updater := ledger.NewUpdater(state.Roster, state.Roster.Headers(), log)

	for _, row := range state.Roster.Tenants() {
		if err := ctx.Err(); err != nil {
			return err
		}
		state.Stats.Tenants++

		allocs, noMonth := matcher.Allocations(row)
		state.Stats.NoMonth += noMonth
		state.Stats.Matched += len(allocs)

		for _, a := range allocs {
			outcome, err := updater.Apply(a)
			if err != nil {
				return fmt.Errorf("write allocation for %q (sheet row %d): %w", row.Name, row.SheetRow, err)
			}
			switch outcome {
			case ledger.Written:
				state.Stats.Written++
				state.Written = append(state.Written, a)
			case ledger.Duplicate:
				state.Stats.Duplicates++
			case ledger.MissingHeaders:
				state.Stats.MissingHeaders++
			}
		}
	}
	return nil
}

// Step 6: SaveStep writes the workbook to the output path.
type SaveStep struct{}

func (s *SaveStep) Name() string { return "save" }

func (s *SaveStep) Execute(ctx context.Context, state *PipelineState) error {
	return state.Roster.SaveAs(state.OutputPath)
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		start := time.Now()
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		log.Debug().
			Str("step", step.Name()).
			Dur("duration", time.Since(start)).
			Msg("Pipeline step finished")
	}
	return nil
}

// NewReconciliationPipeline creates the standard six-step pipeline.
func NewReconciliationPipeline(classifier *classify.Classifier) *Pipeline {
	return NewPipeline(
		&OpenRosterStep{},
		&ReadStatementStep{},
		&ClassifyStep{Classifier: classifier},
		&SearchHitsStep{},
		&AllocateStep{},
		&SaveStep{},
	)
}
