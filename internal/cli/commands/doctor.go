package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/payinsight/internal/cli/config"
	"github.com/leapstack-labs/payinsight/internal/cli/output"
	sharedcfg "github.com/leapstack-labs/payinsight/internal/config"
	"github.com/leapstack-labs/payinsight/internal/loader"
	"github.com/leapstack-labs/payinsight/internal/pipeline"
	"github.com/leapstack-labs/payinsight/internal/quality"
	"github.com/leapstack-labs/payinsight/internal/state"
	"github.com/leapstack-labs/payinsight/pkg/adapter"
	"github.com/leapstack-labs/payinsight/pkg/core"
	"github.com/spf13/cobra"
)

// Health check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// Health check groups.
const (
	groupConfig  = "configuration"
	groupData    = "data"
	groupRuntime = "runtime"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, inputs and run history",
		Long: `Check that PayInsight is ready to run.

The doctor command reports:
- Configuration: config file, validation errors and warnings, environment
- Data: input files present and loadable, data quality, firing alerts
- Runtime: run history store and warehouse target
- Health score (0-100) and actionable recommendations

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  payinsight doctor

  # Output as JSON
  payinsight doctor -o json`,
		Annotations: map[string]string{AnnotationSkipValidation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// ProjectSummary describes the configuration and inputs that were checked.
type ProjectSummary struct {
	ConfigFile   string `json:"config_file,omitempty"`
	Environment  string `json:"environment"`
	Users        int    `json:"users"`
	Transactions int    `json:"transactions"`
	Activity     int    `json:"activity"`
	StateDriver  string `json:"state_driver"`
	Warehouse    string `json:"warehouse,omitempty"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	out := buildDoctorOutput(cmd.Context(), cmdCtx)

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

func buildDoctorOutput(ctx context.Context, cmdCtx *CommandContext) *DoctorOutput {
	cfg := cmdCtx.Cfg
	summary := ProjectSummary{
		ConfigFile:  config.GetConfigFileUsed(),
		Environment: cfg.Environment,
		StateDriver: cfg.State.Driver,
	}
	if cfg.Warehouse != nil {
		summary.Warehouse = cfg.Warehouse.Type
	}

	checks := configChecks(cfg)
	checks = append(checks, dataChecks(ctx, cmdCtx, &summary)...)
	checks = append(checks, runtimeChecks(ctx, cmdCtx)...)

	sort.SliceStable(checks, func(i, j int) bool {
		if checks[i].Group != checks[j].Group {
			return checks[i].Group < checks[j].Group
		}
		return checks[i].RuleID < checks[j].RuleID
	})

	issues := 0
	for _, c := range checks {
		issues += c.IssueCount
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

func configChecks(cfg *config.Config) []HealthCheck {
	file := HealthCheck{RuleID: "CF01", Name: "config-file", Group: groupConfig, Status: statusPass}
	if used := config.GetConfigFileUsed(); used != "" {
		file.Details = []string{used}
	} else {
		file.Status = statusWarn
		file.IssueCount = 1
		file.Details = []string{"no " + sharedcfg.ConfigFileName + " found; using built-in defaults"}
	}

	v := cfg.Validate()
	valid := HealthCheck{RuleID: "CF02", Name: "config-valid", Group: groupConfig, Status: statusPass}
	switch {
	case !v.OK():
		valid.Status = statusError
		valid.IssueCount = len(v.Errors)
		valid.Details = v.Errors
	case len(v.Warnings) > 0:
		valid.Status = statusWarn
		valid.IssueCount = len(v.Warnings)
		valid.Details = v.Warnings
	}

	env := HealthCheck{RuleID: "CF03", Name: "environment", Group: groupConfig, Status: statusPass, Details: []string{cfg.Environment}}
	if _, ok := sharedcfg.ProfileFor(cfg.Environment); !ok {
		env.Status = statusWarn
		env.IssueCount = 1
		env.Details = []string{fmt.Sprintf("unknown environment %q (known: %s)", cfg.Environment, strings.Join(sharedcfg.Environments(), ", "))}
	}

	return []HealthCheck{file, valid, env}
}

func dataChecks(ctx context.Context, cmdCtx *CommandContext, summary *ProjectSummary) []HealthCheck {
	paths := cmdCtx.Cfg.Data

	files := HealthCheck{RuleID: "DA01", Name: "input-files", Group: groupData, Status: statusPass}
	all := paths.All()
	for _, name := range []string{loader.TableUsers, loader.TableTransactions, loader.TableActivity} {
		path := all[name]
		if _, err := os.Stat(path); err != nil {
			files.Status = statusError
			files.IssueCount++
			files.Details = append(files.Details, fmt.Sprintf("%s: %s not found", name, path))
		}
	}

	load := HealthCheck{RuleID: "DA02", Name: "input-load", Group: groupData, Status: statusPass}
	dq := HealthCheck{RuleID: "DA03", Name: "data-quality", Group: groupData, Status: statusPass}
	alerts := HealthCheck{RuleID: "DA04", Name: "alert-thresholds", Group: groupData, Status: statusPass}

	ds, err := loader.Load(ctx, paths, cmdCtx.Logger)
	if err != nil {
		load.Status = statusError
		load.IssueCount = 1
		load.Details = []string{err.Error()}
		return []HealthCheck{files, load}
	}
	summary.Users = len(ds.Users())
	summary.Transactions = len(ds.Transactions())
	summary.Activity = len(ds.Activity())

	rep := quality.Validate(ds)
	if !rep.IsValid {
		dq.Status = statusWarn
		dq.IssueCount = len(rep.Issues)
		for _, is := range rep.Issues {
			dq.Details = append(dq.Details, fmt.Sprintf("%s: %s", is.Table, is.Message))
		}
	}

	res, err := pipeline.Analyze(ctx, ds, cmdCtx.PipelineOptions())
	if err != nil {
		alerts.Status = statusError
		alerts.IssueCount = 1
		alerts.Details = []string{err.Error()}
	} else if len(res.Alerts) > 0 {
		alerts.Status = statusWarn
		alerts.IssueCount = len(res.Alerts)
		for _, a := range res.Alerts {
			alerts.Details = append(alerts.Details, a.Message)
		}
	}

	return []HealthCheck{files, load, dq, alerts}
}

func runtimeChecks(ctx context.Context, cmdCtx *CommandContext) []HealthCheck {
	store := HealthCheck{RuleID: "RT01", Name: "run-history", Group: groupRuntime, Status: statusPass}
	if s, err := cmdCtx.OpenStore(ctx); err != nil {
		store.Status = statusError
		store.IssueCount = 1
		store.Details = []string{err.Error()}
	} else {
		if v, err := state.MigrationVersion(ctx, s); err == nil {
			store.Details = []string{fmt.Sprintf("%s schema version %d", cmdCtx.Cfg.State.Driver, v)}
		}
		_ = s.Close()
	}

	return []HealthCheck{store, warehouseCheck(cmdCtx.Cfg.Warehouse)}
}

func warehouseCheck(w *core.AdapterConfig) HealthCheck {
	check := HealthCheck{RuleID: "RT02", Name: "warehouse", Group: groupRuntime, Status: statusPass}
	if w == nil {
		check.Status = statusWarn
		check.IssueCount = 1
		check.Details = []string{"no warehouse configured"}
		return check
	}
	if !adapter.IsRegistered(w.Type) {
		check.Details = []string{fmt.Sprintf("unknown adapter type %q (available: %s)", w.Type, strings.Join(adapter.ListAdapters(), ", "))}
		check.Status = statusError
		check.IssueCount = 1
		return check
	}
	check.Details = []string{w.Type}
	return check
}

// calculateHealthScore computes a health score from 0-100.
// Each warning costs 5 points and each error 10.
func calculateHealthScore(checks []HealthCheck) int {
	if len(checks) == 0 {
		return 100
	}

	const basePenalty = 5.0
	score := 100.0
	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= float64(check.IssueCount) * basePenalty * 2 // Errors count double
		case statusWarn:
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	if score < 0 {
		score = 0
	}
	return int(score)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		rec := getRecommendation(check.RuleID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(ruleID string) string {
	switch ruleID {
	case "CF01":
		return "Run 'payinsight init' to create " + sharedcfg.ConfigFileName
	case "CF02":
		return "Fix the configuration problems listed under config-valid"
	case "CF03":
		return "Set environment to development, production or testing"
	case "DA01":
		return "Point data.users, data.transactions and data.activity at existing CSV files"
	case "DA02":
		return "Fix the input CSV headers and values reported by input-load"
	case "DA03":
		return "Run 'payinsight validate' and clean the reported rows"
	case "DA04":
		return "Review the firing alerts or adjust analysis.alerts thresholds"
	case "RT01":
		return "Check state.driver and state.path or state.dsn"
	case "RT02":
		return "Add a warehouse section to enable 'payinsight export --warehouse'"
	default:
		return ""
	}
}

func statusIcon(styles *output.Styles, status string) string {
	switch status {
	case statusWarn:
		return styles.Warning.Render("!")
	case statusError:
		return styles.StatusFailed.Render("✗")
	}
	return styles.StatusSuccess.Render("✓")
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("PayInsight Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Header2.Render("Summary"))
	configFile := out.Summary.ConfigFile
	if configFile == "" {
		configFile = "(defaults)"
	}
	r.Printf("   Config: %s | Environment: %s\n", configFile, out.Summary.Environment)
	r.Printf("   Users: %d | Transactions: %d | Activity: %d\n", out.Summary.Users, out.Summary.Transactions, out.Summary.Activity)
	r.Println("")

	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		status := fmt.Sprintf("%s %s: %s", statusIcon(styles, check.Status), check.RuleID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		// Show first 3 details
		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# PayInsight Health Report")
	r.Println("")

	r.Println("## Summary")
	r.Println("")
	if out.Summary.ConfigFile != "" {
		r.Printf("- **Config**: %s\n", out.Summary.ConfigFile)
	}
	r.Printf("- **Environment**: %s\n", out.Summary.Environment)
	r.Printf("- **Users**: %d\n", out.Summary.Users)
	r.Printf("- **Transactions**: %d\n", out.Summary.Transactions)
	r.Printf("- **Activity records**: %d\n", out.Summary.Activity)
	r.Printf("- **Run history**: %s\n", out.Summary.StateDriver)
	if out.Summary.Warehouse != "" {
		r.Printf("- **Warehouse**: %s\n", out.Summary.Warehouse)
	}
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		r.Printf("- **[%s]** %s: %s", strings.ToUpper(check.Status), check.RuleID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
