package runtime

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runlog"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
)

// Stage is the workflow's position in its fixed sequence
type Stage string

const (
	StageIdle        Stage = "idle"
	StagePlanner     Stage = "planner_running"
	StageDataTeam    Stage = "data_team_running"
	StageContentTeam Stage = "content_team_running"
	StageReviewer    Stage = "reviewer_running"
	StageCompleted   Stage = "completed"
	StageFailed      Stage = "failed"
)

const (
	outputSeparator    = "\n\n---\n\n"
	finalReportHeading = "# Marketing Analysis Final Report"
)

// Progress is the engine's in-process position. Index is the agent index
// within the data or content team and zero otherwise.
type Progress struct {
	Stage Stage  `json:"stage"`
	Index int    `json:"index"`
	Agent string `json:"agent,omitempty"`
}

// WorkflowEngine runs planner, data team, content team and reviewer in
// order and assembles the final report.
type WorkflowEngine struct {
	runner    AgentRunner
	agents    AgentStore
	log       *runlog.RunLog
	artifacts storage.ArtifactStore
	logger    logging.Logger

	mu       sync.Mutex
	progress Progress
}

// NewWorkflowEngine creates a workflow engine
func NewWorkflowEngine(
	runner AgentRunner,
	agents AgentStore,
	log *runlog.RunLog,
	artifacts storage.ArtifactStore,
	logger logging.Logger,
) *WorkflowEngine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WorkflowEngine{
		runner:    runner,
		agents:    agents,
		log:       log,
		artifacts: artifacts,
		logger:    logger,
		progress:  Progress{Stage: StageIdle},
	}
}

// Stage returns the engine's current position.
func (w *WorkflowEngine) Stage() Progress {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.progress
}

func (w *WorkflowEngine) setStage(stage Stage, index int, agent string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.progress = Progress{Stage: stage, Index: index, Agent: agent}
}

// Run executes the workflow under a fresh run ID.
func (w *WorkflowEngine) Run(ctx context.Context, request string) (string, error) {
	return w.RunWithID(ctx, uuid.New().String(), request)
}

// RunWithID executes the whole workflow and returns the final report. The
// first failing step aborts the run; artifacts already written are kept.
func (w *WorkflowEngine) RunWithID(ctx context.Context, runID, request string) (string, error) {
	w.log.SetRunID(runID)
	if err := w.log.Clear(); err != nil {
		w.logger.Warn("Failed to clear run log", logging.F("run_id", runID), logging.Err(err))
	}
	w.log.Log(runlog.SystemAgent, models.LevelInfo, "workflow started", map[string]interface{}{"request": request})
	w.logger.LogRunEvent(runID, "started", map[string]interface{}{"request": request})

	report, err := w.run(WithRequest(ctx, request), request)
	if err != nil {
		last := w.Stage()
		w.setStage(StageFailed, last.Index, last.Agent)
		w.log.Log(runlog.SystemAgent, models.LevelError, "workflow aborted: "+err.Error(), nil)
		w.logger.LogRunEvent(runID, "failed", map[string]interface{}{"error": err.Error()})
		return "", err
	}

	w.setStage(StageCompleted, 0, "")
	w.log.Log(runlog.SystemAgent, models.LevelInfo, "workflow completed", nil)
	w.logger.LogRunEvent(runID, "completed", map[string]interface{}{"report_len": len(report)})
	return report, nil
}

func (w *WorkflowEngine) run(ctx context.Context, request string) (string, error) {
	w.setStage(StagePlanner, 0, AgentPlanner)
	plannerOutput, err := w.runner.RunAgent(ctx, TeamOrchestrator, AgentPlanner, request)
	if err != nil {
		return "", err
	}

	dataResults := newOrderedOutputs()
	dataTask := "Work on the following analysis request:\n\n" +
		"Original request: " + request + "\n\n" +
		"Planner instructions: " + plannerOutput
	dataAgents := w.agents.Agents(TeamData)
	w.teamEvent(TeamData, "started", len(dataAgents))
	for i, agent := range dataAgents {
		w.setStage(StageDataTeam, i, agent.Name)
		output, err := w.runner.RunAgent(ctx, TeamData, agent.Name, dataTask)
		if err != nil {
			return "", err
		}
		dataResults.set(agent.Name, output)
	}
	w.teamEvent(TeamData, "completed", len(dataAgents))
	combinedData := dataResults.join()

	contentResults := newOrderedOutputs()
	contentTask := "Create content based on the following analysis:\n\n" + combinedData
	contentAgents := w.agents.Agents(TeamContent)
	w.teamEvent(TeamContent, "started", len(contentAgents))
	for i, agent := range contentAgents {
		w.setStage(StageContentTeam, i, agent.Name)
		output, err := w.runner.RunAgent(ctx, TeamContent, agent.Name, contentTask)
		if err != nil {
			return "", err
		}
		contentResults.set(agent.Name, output)
	}
	w.teamEvent(TeamContent, "completed", len(contentAgents))

	review := newOrderedOutputs()
	review.merge(dataResults)
	review.merge(contentResults)

	w.setStage(StageReviewer, 0, AgentReviewer)
	reviewerOutput, err := w.runner.RunAgent(ctx, TeamOrchestrator, AgentReviewer,
		"Review the following deliverables:\n\n"+review.join())
	if err != nil {
		return "", err
	}

	report := buildFinalReport(request, plannerOutput, combinedData, contentResults, reviewerOutput)
	path, err := w.artifacts.Save(storage.FinalReportName, report)
	if err != nil {
		w.log.Log(runlog.SystemAgent, models.LevelError, "failed to save final report: "+err.Error(), nil)
		return "", &PersistenceError{Artifact: storage.FinalReportName, Err: err}
	}
	w.log.Log(runlog.SystemAgent, models.LevelOutput, "final report saved: "+storage.FinalReportName,
		map[string]interface{}{"path": path})

	return report, nil
}

// teamEvent records a team boundary in the run log so pollers in other
// processes can follow the stage.
func (w *WorkflowEngine) teamEvent(team, event string, agents int) {
	w.log.Log(runlog.SystemAgent, models.LevelInfo, team+" "+event,
		map[string]interface{}{"team": team, "agents": agents})
}

// buildFinalReport assembles the report sections in their fixed order.
func buildFinalReport(request, plannerOutput, combinedData string, content *orderedOutputs, reviewerOutput string) string {
	var b strings.Builder
	b.WriteString(finalReportHeading + "\n\n")
	b.WriteString("## Original Request\n" + request + "\n\n")
	b.WriteString("## Planner Analysis\n" + plannerOutput + "\n\n")
	b.WriteString("## Data Team Results\n" + combinedData + "\n\n")
	b.WriteString("## Content Team Deliverables\n")
	for _, name := range content.keys {
		b.WriteString("### " + name + "\n" + content.values[name] + "\n\n")
	}
	b.WriteString("## Reviewer Assessment\n" + reviewerOutput + "\n")
	return b.String()
}

// orderedOutputs maps agent names to outputs in first-insertion order.
type orderedOutputs struct {
	keys   []string
	values map[string]string
}

func newOrderedOutputs() *orderedOutputs {
	return &orderedOutputs{values: make(map[string]string)}
}

func (o *orderedOutputs) set(name, output string) {
	if _, exists := o.values[name]; !exists {
		o.keys = append(o.keys, name)
	}
	o.values[name] = output
}

func (o *orderedOutputs) merge(other *orderedOutputs) {
	for _, name := range other.keys {
		o.set(name, other.values[name])
	}
}

func (o *orderedOutputs) join() string {
	sections := make([]string, len(o.keys))
	for i, name := range o.keys {
		sections[i] = "## " + name + "\n" + o.values[name]
	}
	return strings.Join(sections, outputSeparator)
}
