package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"claritysim/internal/api"
	"claritysim/internal/audit"
	"claritysim/internal/drafts"
	"claritysim/internal/editor"
	"claritysim/internal/fields"
	"claritysim/internal/generate"
	"claritysim/internal/notify"
	"claritysim/internal/profile"
	"claritysim/internal/workspace"
)

const appName = "claritysim"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s: scenario simulation control plane\n\n", appName)
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [command] [flags]\n\n", appName)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  catalog   Browse scenario presets and intervention templates")
		fmt.Fprintln(os.Stderr, "  plan      Edit the baseline plan")
		fmt.Fprintln(os.Stderr, "  iv        Manage interventions")
		fmt.Fprintln(os.Stderr, "  generate  Generate synthetic history")
		fmt.Fprintln(os.Stderr, "  truth     Show the applied-history audit trail")
		fmt.Fprintln(os.Stderr, "  help      Show this help")
		fmt.Fprintln(os.Stderr, "\nGlobal flags:")
		fmt.Fprintln(os.Stderr, "  --profile   Path to profile YAML (default: ~/.config/claritysim/profile.yml)")
		fmt.Fprintln(os.Stderr, "  --business  Business id (overrides profile)")
	}

	globals, remaining, err := extractGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	args := remaining
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		flag.Usage()
		return
	}

	var runErr error
	switch args[0] {
	case "catalog":
		runErr = runCatalog(args[1:], globals)
	case "plan":
		runErr = runPlan(args[1:], globals)
	case "iv", "intervention":
		runErr = runIntervention(args[1:], globals)
	case "generate":
		runErr = runGenerate(args[1:], globals)
	case "truth":
		runErr = runTruth(args[1:], globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

type globalFlags struct {
	ProfilePath string
	BusinessID  string
}

func extractGlobalFlags(args []string) (globalFlags, []string, error) {
	var g globalFlags
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--profile":
			if i+1 >= len(args) {
				return g, nil, fmt.Errorf("--profile requires a value")
			}
			g.ProfilePath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--profile="):
			g.ProfilePath = strings.TrimPrefix(arg, "--profile=")
		case arg == "--business":
			if i+1 >= len(args) {
				return g, nil, fmt.Errorf("--business requires a value")
			}
			g.BusinessID = args[i+1]
			i++
		case strings.HasPrefix(arg, "--business="):
			g.BusinessID = strings.TrimPrefix(arg, "--business=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return g, remaining, nil
}

// newSession resolves the profile and builds a loaded editor session.
func newSession(ctx context.Context, g globalFlags) (*editor.Session, error) {
	ws, err := workspace.Default()
	if err != nil {
		return nil, err
	}

	path := g.ProfilePath
	if path == "" {
		path = ws.ProfilePath
	}
	prof, err := profile.Load(path)
	if err != nil {
		return nil, err
	}

	businessID := g.BusinessID
	if businessID == "" {
		businessID = prof.BusinessID
	}
	if businessID == "" {
		return nil, fmt.Errorf("business id is required (--business or profile business_id)")
	}

	auditDB := prof.AuditDB
	if auditDB == "" {
		if err := ws.EnsureDirs(); err != nil {
			return nil, err
		}
		auditDB = ws.AuditDBPath
	} else {
		resolved, err := ws.ResolvePath(auditDB)
		if err != nil {
			return nil, fmt.Errorf("resolve audit db path: %w", err)
		}
		auditDB = resolved
	}

	client := api.New(prof.BackendURL, prof.Token)
	trail := audit.NewTrail(auditDB)
	session := editor.NewSession(client, businessID, editor.WithAuditTrail(trail))
	if err := session.Load(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

func runCatalog(args []string, g globalFlags) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s catalog: missing subcommand (list, show)", appName)
	}

	ctx := context.Background()
	session, err := newSession(ctx, g)
	if err != nil {
		return err
	}
	cat := session.Catalog()

	switch args[0] {
	case "list":
		fmt.Fprintln(os.Stdout, "Scenario presets:")
		for _, id := range cat.ScenarioIDs() {
			s, _ := cat.Scenario(id)
			fmt.Fprintf(os.Stdout, "  %-24s %s\n", s.ID, s.Name)
		}
		fmt.Fprintln(os.Stdout)
		fmt.Fprintln(os.Stdout, "Intervention templates:")
		for _, kind := range cat.TemplateKinds() {
			t, _ := cat.Template(kind)
			fmt.Fprintf(os.Stdout, "  %-24s %s\n", t.Kind, t.Label)
		}
		return nil
	case "show":
		if len(args) < 2 {
			return fmt.Errorf("%s catalog show: template kind or scenario id is required", appName)
		}
		key := args[1]
		if s, ok := cat.Scenario(key); ok {
			fmt.Fprintf(os.Stdout, "Scenario: %s\n%s\n\n%s\n", s.ID, s.Name, s.Description)
			return nil
		}
		t, ok := cat.Template(key)
		if !ok {
			return fmt.Errorf("no scenario or template %q", key)
		}
		fmt.Fprintf(os.Stdout, "Template: %s\n%s\n\n%s\n\nFields:\n", t.Kind, t.Label, t.Description)
		for _, f := range t.Fields {
			min, max, step := fields.DisplayBounds(f)
			bounds := ""
			if min != nil && max != nil {
				bounds = fmt.Sprintf(" [%g..%g]", *min, *max)
			}
			if step != nil {
				bounds += fmt.Sprintf(" step %g", *step)
			}
			fmt.Fprintf(os.Stdout, "  %-20s %-8s %s%s\n", f.Key, f.Type, f.Label, bounds)
		}
		return nil
	default:
		return fmt.Errorf("%s catalog: unknown subcommand %q", appName, args[0])
	}
}

func runPlan(args []string, g globalFlags) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s plan: missing subcommand (show, edit, scenario)", appName)
	}

	switch args[0] {
	case "show":
		return runPlanShow(args[1:], g)
	case "edit":
		return runPlanEdit(args[1:], g)
	case "scenario":
		return runPlanScenario(args[1:], g)
	default:
		return fmt.Errorf("%s plan: unknown subcommand %q", appName, args[0])
	}
}

func runPlanShow(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("plan show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	showStory := fs.Bool("story", false, "Include the server-generated narrative")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	session, err := newSession(ctx, g)
	if err != nil {
		return err
	}
	plan := session.Plan()
	persisted := plan.Persisted()

	fmt.Fprintf(os.Stdout, "Business:      %s\n", session.BusinessID())
	fmt.Fprintf(os.Stdout, "Scenario:      %s\n", persisted.ScenarioID)
	fmt.Fprintf(os.Stdout, "Story version: %d\n\n", persisted.StoryVersion)
	fmt.Fprint(os.Stdout, plan.Text())
	if *showStory && persisted.StoryText != "" {
		fmt.Fprintf(os.Stdout, "\n%s\n", persisted.StoryText)
	}
	return nil
}

func runPlanEdit(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("plan edit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fromFile := fs.String("file", "", "Path to plan JSON ('-' for stdin)")
	dryRun := fs.Bool("dry-run", false, "Validate and format without saving")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fromFile == "" {
		return fmt.Errorf("--file is required")
	}

	var text []byte
	var err error
	if *fromFile == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(*fromFile)
	}
	if err != nil {
		return fmt.Errorf("read plan text: %w", err)
	}

	ctx := context.Background()
	session, err := newSession(ctx, g)
	if err != nil {
		return err
	}
	plan := session.Plan()

	plan.SetText(string(text))
	if parseErr := plan.Err(); parseErr != nil {
		return fmt.Errorf("plan not saved: %w", parseErr)
	}
	if err := plan.Format(); err != nil {
		return err
	}

	if *dryRun {
		fmt.Fprint(os.Stdout, plan.Text())
		return nil
	}
	if err := session.SavePlan(ctx); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Saved plan (story version now %d)\n", session.Plan().Persisted().StoryVersion)
	return nil
}

func runPlanScenario(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("plan scenario", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("scenario id is required")
	}

	ctx := context.Background()
	session, err := newSession(ctx, g)
	if err != nil {
		return err
	}
	if err := session.ChangeScenario(ctx, rest[0]); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Scenario is now %s\n", session.Plan().Persisted().ScenarioID)
	return nil
}

func runIntervention(args []string, g globalFlags) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s iv: missing subcommand (list, add, set, duplicate, delete, enable-all, disable-all)", appName)
	}

	switch args[0] {
	case "list":
		return runIVList(args[1:], g)
	case "add":
		return runIVAdd(args[1:], g)
	case "set":
		return runIVSet(args[1:], g)
	case "duplicate":
		return runIVDuplicate(args[1:], g)
	case "delete":
		return runIVDelete(args[1:], g)
	case "enable-all":
		return runIVBulk(args[1:], g, true)
	case "disable-all":
		return runIVBulk(args[1:], g, false)
	default:
		return fmt.Errorf("%s iv: unknown subcommand %q", appName, args[0])
	}
}

func runIVList(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("iv list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	session, err := newSession(ctx, g)
	if err != nil {
		return err
	}

	list := session.Interventions()
	if len(list) == 0 {
		fmt.Fprintln(os.Stdout, "No interventions.")
		return nil
	}
	for _, iv := range list {
		state := "off"
		if iv.Enabled {
			state = "on "
		}
		duration := "ongoing"
		if iv.DurationDays != nil {
			duration = fmt.Sprintf("%dd", *iv.DurationDays)
		}
		fmt.Fprintf(os.Stdout, "%-12s [%s] %-28s %s %s +%s\n",
			iv.ID, state, iv.Name, iv.Kind, iv.StartDate, duration)
	}
	return nil
}

func runIVAdd(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("iv add", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	name := fs.String("name", "", "Name for the new intervention (default: template label)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("template kind is required")
	}

	ctx := context.Background()
	session, err := newSession(ctx, g)
	if err != nil {
		return err
	}
	if err := session.AddFromTemplate(ctx, rest[0], *name); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Added intervention from template %s\n", rest[0])
	return nil
}

func runIVSet(args []string, g globalFlags) error {
	ivID := ""
	remaining := args
	if len(remaining) > 0 && !strings.HasPrefix(remaining[0], "-") {
		ivID = remaining[0]
		remaining = remaining[1:]
	}

	fs := flag.NewFlagSet("iv set", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	name := fs.String("name", "", "New name")
	startDate := fs.String("start", "", "New start date (YYYY-MM-DD)")
	duration := fs.Int("duration", 0, "Duration in days")
	ongoing := fs.Bool("ongoing", false, "Mark the intervention open-ended")
	enabled := fs.String("enabled", "", "Enable or disable (true/false)")
	params := multiFlag{}
	fs.Var(&params, "param", "Set a typed parameter as key=value (repeatable)")
	dryRun := fs.Bool("dry-run", false, "Show the resulting diff without saving")
	if err := fs.Parse(remaining); err != nil {
		return err
	}
	if ivID == "" {
		rest := fs.Args()
		if len(rest) == 0 {
			return fmt.Errorf("intervention id is required")
		}
		ivID = rest[0]
	}

	ctx := context.Background()
	session, err := newSession(ctx, g)
	if err != nil {
		return err
	}
	store := session.Drafts()
	draft, ok := store.Draft(ivID)
	if !ok {
		return fmt.Errorf("no intervention %s", ivID)
	}

	var patch drafts.FieldPatch
	if *name != "" {
		patch.Name = name
	}
	if *startDate != "" {
		patch.StartDate = startDate
	}
	if *ongoing {
		patch.ClearDuration = true
	} else if *duration > 0 {
		patch.DurationDays = duration
	}
	if *enabled != "" {
		v, err := strconv.ParseBool(*enabled)
		if err != nil {
			return fmt.Errorf("parse --enabled: %w", err)
		}
		patch.Enabled = &v
	}
	if err := store.UpdateField(ivID, patch); err != nil {
		return err
	}

	cat := session.Catalog()
	for _, kv := range params {
		key, raw, found := strings.Cut(kv, "=")
		if !found {
			return fmt.Errorf("--param %q: expected key=value", kv)
		}
		spec, ok := cat.Field(draft.Kind, key)
		if !ok {
			return fmt.Errorf("template %s has no field %q", draft.Kind, key)
		}
		value, ok := fields.ApplyInput(spec, raw)
		if !ok {
			return fmt.Errorf("--param %s: %q is not a valid %s value", key, raw, spec.Type)
		}
		if err := store.UpdateParam(ivID, key, value); err != nil {
			return err
		}
	}

	diff, err := store.Diff(ivID)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Fprintln(os.Stdout, "No changes.")
		return nil
	}
	fmt.Fprint(os.Stdout, diff)

	if *dryRun {
		return nil
	}
	if err := session.SaveIntervention(ctx, ivID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Saved intervention %s\n", ivID)
	return nil
}

func runIVDuplicate(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("iv duplicate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("intervention id is required")
	}

	ctx := context.Background()
	session, err := newSession(ctx, g)
	if err != nil {
		return err
	}
	if err := session.Duplicate(ctx, rest[0]); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Duplicated %s (%d interventions now)\n", rest[0], len(session.Interventions()))
	return nil
}

func runIVDelete(args []string, g globalFlags) error {
	ivID := ""
	remaining := args
	if len(remaining) > 0 && !strings.HasPrefix(remaining[0], "-") {
		ivID = remaining[0]
		remaining = remaining[1:]
	}

	fs := flag.NewFlagSet("iv delete", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	confirm := fs.Bool("yes", false, "Confirm the permanent delete")
	if err := fs.Parse(remaining); err != nil {
		return err
	}
	if ivID == "" {
		rest := fs.Args()
		if len(rest) == 0 {
			return fmt.Errorf("intervention id is required")
		}
		ivID = rest[0]
	}
	if !*confirm {
		return fmt.Errorf("deleting an intervention is permanent; re-run with --yes")
	}

	ctx := context.Background()
	session, err := newSession(ctx, g)
	if err != nil {
		return err
	}
	if err := session.Delete(ctx, ivID, *confirm); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Deleted intervention %s\n", ivID)
	return nil
}

func runIVBulk(args []string, g globalFlags, enabled bool) error {
	fs := flag.NewFlagSet("iv bulk", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	confirm := fs.Bool("yes", false, "Confirm updating every intervention")
	desktop := fs.Bool("notify", false, "Send a desktop notification when the bulk update finishes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	verb := "enable"
	if !enabled {
		verb = "disable"
	}
	if !*confirm {
		return fmt.Errorf("this will %s every intervention; re-run with --yes", verb)
	}

	ctx := context.Background()
	session, err := newSession(ctx, g)
	if err != nil {
		return err
	}
	bulkErr := session.BulkSetEnabled(ctx, enabled, *confirm)

	if *desktop {
		total := len(session.Interventions())
		applied := total
		failed := false
		var stopped *editor.BulkError
		if errors.As(bulkErr, &stopped) {
			applied = stopped.Applied
			failed = true
		}
		title, msg := notify.FormatBulkComplete(session.BusinessID(), applied, total, failed)
		if err := (&notify.Notifier{Enabled: true}).Send(title, msg); err != nil {
			fmt.Fprintf(os.Stderr, "notification failed: %v\n", err)
		}
	}

	if bulkErr != nil {
		return bulkErr
	}
	fmt.Fprintf(os.Stdout, "All interventions %sd\n", verb)
	return nil
}

func runGenerate(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	startDate := fs.String("start", "", "Start date (YYYY-MM-DD)")
	days := fs.Int("days", 365, "Number of days to generate")
	rangeLabels := make([]string, 0, len(generate.QuickRanges()))
	for _, opt := range generate.QuickRanges() {
		rangeLabels = append(rangeLabels, opt.Label)
	}
	quick := fs.String("range", "", "Quick range ("+strings.Join(rangeLabels, ", ")+"); sets start and days")
	mode := fs.String("mode", string(api.ModeAppend), "replace_from_start or append")
	seed := fs.Int64("seed", 1, "Reproducibility seed")
	shocks := fs.Bool("shocks", false, "Enable the randomized shock layer")
	shockDays := fs.Int("shock-days", 30, "Shock window length in days")
	revenueDrop := fs.Float64("revenue-drop", 20, "Revenue drop during shocks (whole percent)")
	expenseSpike := fs.Float64("expense-spike", 50, "Expense spike during shocks (whole percent)")
	confirm := fs.Bool("yes", false, "Confirm a history rewrite (replace_from_start)")
	desktop := fs.Bool("notify", false, "Send a desktop notification when generation finishes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	session, err := newSession(ctx, g)
	if err != nil {
		return err
	}

	controls := generate.Controls{
		StartDate:              *startDate,
		Days:                   *days,
		Mode:                   api.GenerateMode(*mode),
		Seed:                   *seed,
		EnableShocks:           *shocks,
		ShockDays:              *shockDays,
		RevenueDropDisplayPct:  *revenueDrop,
		ExpenseSpikeDisplayPct: *expenseSpike,
	}
	if *quick != "" {
		n, ok := generate.QuickRangeDays(*quick)
		if !ok {
			return fmt.Errorf("unknown range %q", *quick)
		}
		controls.StartDate, controls.Days = generate.QuickRange(time.Now(), n)
	}
	if controls.StartDate == "" {
		return fmt.Errorf("--start or --range is required")
	}
	if generate.Destructive(controls.Mode) && !*confirm {
		return fmt.Errorf("replace_from_start rewrites history from %s; re-run with --yes", controls.StartDate)
	}

	result, err := session.Generate(ctx, controls, *confirm)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Generated events: inserted=%d deleted=%d\n", result.Inserted, result.Deleted)

	if *desktop {
		title, msg := notify.FormatGenerateComplete(session.BusinessID(), result.Inserted, result.Deleted)
		if err := (&notify.Notifier{Enabled: true}).Send(title, msg); err != nil {
			fmt.Fprintf(os.Stderr, "notification failed: %v\n", err)
		}
	}
	return nil
}

func runTruth(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("truth", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print raw JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	session, err := newSession(ctx, g)
	if err != nil {
		return err
	}
	events, err := session.Truth(ctx)
	if err != nil {
		return err
	}

	if *asJSON {
		data, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return fmt.Errorf("encode truth events: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "No applied history.")
		return nil
	}
	for _, ev := range events {
		fmt.Fprintf(os.Stdout, "%s  %s\n", ev.Date, ev.Kind)
	}
	return nil
}

// multiFlag collects repeatable --param flags.
type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}
