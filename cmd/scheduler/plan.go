package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/config"
	"github.com/example/resource-scheduler/internal/planning"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// planFile is the YAML document read by `scheduler plan`.
type planFile struct {
	Name     string                  `yaml:"name"`
	Start    time.Time               `yaml:"start"`
	Stages   []planStage             `yaml:"stages"`
	Demands  []capability.Capability `yaml:"demands"`
	Critical map[string]planSlot     `yaml:"critical"`
}

type planStage struct {
	Name      string                  `yaml:"name"`
	Duration  string                  `yaml:"duration"`
	DependsOn []string                `yaml:"depends_on"`
	Demands   []capability.Capability `yaml:"demands"`
}

type planSlot struct {
	From time.Time `yaml:"from"`
	To   time.Time `yaml:"to"`
}

func readPlanFile(r io.Reader) (planFile, error) {
	var pf planFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		return planFile{}, fmt.Errorf("failed to parse plan file: %w", err)
	}
	if strings.TrimSpace(pf.Name) == "" {
		return planFile{}, errors.New("plan file needs a name")
	}
	if len(pf.Critical) == 0 && pf.Start.IsZero() {
		return planFile{}, errors.New("plan file needs critical stages or a start")
	}
	return pf, nil
}

func (pf planFile) stages() ([]planning.Stage, error) {
	stages := make([]planning.Stage, 0, len(pf.Stages))
	for _, s := range pf.Stages {
		var d time.Duration
		if strings.TrimSpace(s.Duration) != "" {
			parsed, err := time.ParseDuration(strings.TrimSpace(s.Duration))
			if err != nil {
				return nil, fmt.Errorf("stage %q: invalid duration %q", s.Name, s.Duration)
			}
			d = parsed
		}
		stage := planning.NewStage(s.Name).OfDuration(d)
		for _, dep := range s.DependsOn {
			stage = stage.DependsOnStage(dep)
		}
		for _, c := range s.Demands {
			stage = stage.WithDemands(planning.DemandFor(c))
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

func newPlanCommand(c *cli) *cobra.Command {
	var (
		file   string
		save   bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "plan --file stages.yaml",
		Short: "Plan a project around its critical stages",
		Long: `Reads a YAML project definition and prints the resulting schedule.
Stages are pinned through "critical"; without pins they are laid out from "start".
By default nothing is stored; --save keeps the project in the configured database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = c.in
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open plan file: %w", err)
				}
				defer f.Close()
				in = f
			}
			pf, err := readPlanFile(in)
			if err != nil {
				return err
			}

			cfg := c.cfg
			if !save {
				cfg.SQLiteDSN = config.MemoryDSN
			}
			project, err := c.plan(cmd, cfg, pf)
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(c.out, projectView(project))
			}
			c.renderSchedule(project)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `plan file, "-" for standard input`)
	cmd.Flags().BoolVar(&save, "save", false, "store the project in the configured database")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "table or json")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) plan(cmd *cobra.Command, cfg config.Config, pf planFile) (planning.Project, error) {
	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, c.logger)
	if err != nil {
		return planning.Project{}, err
	}
	defer a.Close()

	stages, err := pf.stages()
	if err != nil {
		return planning.Project{}, err
	}
	project, err := a.planning.AddNewProject(ctx, pf.Name, stages...)
	if err != nil {
		return planning.Project{}, err
	}
	if len(pf.Demands) > 0 {
		demands := make([]planning.Demand, 0, len(pf.Demands))
		for _, d := range pf.Demands {
			demands = append(demands, planning.DemandFor(d))
		}
		if project, err = a.planning.AddDemands(ctx, project.ID, demands...); err != nil {
			return planning.Project{}, err
		}
	}

	if len(pf.Critical) > 0 {
		pins := make(map[string]timeslot.TimeSlot, len(pf.Critical))
		for name, slot := range pf.Critical {
			pins[name] = timeslot.TimeSlot{From: slot.From.UTC(), To: slot.To.UTC()}
		}
		return a.planning.PlanCriticalStages(ctx, project.ID, pins)
	}
	return a.planning.PlanFromStart(ctx, project.ID, pf.Start.UTC())
}

func (c *cli) renderSchedule(p planning.Project) {
	tw := table.NewWriter()
	tw.SetOutputMirror(c.out)
	tw.SetTitle(p.Name)
	tw.AppendHeader(table.Row{"Stage", "From", "To", "Duration", "Critical", "Demands"})
	for _, placed := range p.Schedule.Dates() {
		stage, _ := p.Stage(placed.Stage)
		_, pinned := p.CriticalStages[placed.Stage]
		tw.AppendRow(table.Row{
			placed.Stage,
			placed.Slot.From.Format(time.RFC3339),
			placed.Slot.To.Format(time.RFC3339),
			placed.Slot.Duration(),
			pinned,
			strings.Join(stage.Demands.Strings(), ", "),
		})
	}
	if span, ok := p.Schedule.Span(); ok {
		tw.AppendFooter(table.Row{"total", span.From.Format(time.RFC3339), span.To.Format(time.RFC3339), span.Duration(), "", ""})
	}
	tw.Render()
}

type stageView struct {
	Name     string    `json:"name"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Critical bool      `json:"critical"`
}

type scheduleView struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Stages []stageView `json:"stages"`
}

func projectView(p planning.Project) scheduleView {
	view := scheduleView{ID: string(p.ID), Name: p.Name, Stages: make([]stageView, 0, len(p.Stages))}
	for _, placed := range p.Schedule.Dates() {
		_, pinned := p.CriticalStages[placed.Stage]
		view.Stages = append(view.Stages, stageView{Name: placed.Stage, From: placed.Slot.From, To: placed.Slot.To, Critical: pinned})
	}
	return view
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
