// Command entsoeflow fetches one ENTSO-E dataset and prints it as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"entsoeflow/config"
	"entsoeflow/internal/advisor"
	"entsoeflow/logger"
	"entsoeflow/models"
	"entsoeflow/reader/entsoe"
)

const commandList = "Commands: prices | load | gen-forecast | netpos | exchanges | plan"

// backend is the part of the ENTSO-E client the commands use.
type backend interface {
	advisor.Source
	NetPosition(ctx context.Context, day time.Time, zone string) ([]models.QuantityRow, error)
	ScheduledExchanges(ctx context.Context, day time.Time, from, to string) ([]models.QuantityRow, error)
}

type planner interface {
	Plan(ctx context.Context, day time.Time, zone string) (models.AutomationPlan, error)
}

type app struct {
	client  backend
	planner planner
	loc     *time.Location
	zone    string
	now     func() time.Time
	stdout  io.Writer
	stderr  io.Writer
}

func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	flags := flag.NewFlagSet("entsoeflow", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)
	configPath := flags.String("config", "", "Path to configuration file")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: entsoeflow [-config file] <command> [args]")
		fmt.Fprintln(os.Stderr, commandList)
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if flags.NArg() < 1 {
		fmt.Fprintln(os.Stderr, commandList)
		os.Exit(2)
	}

	path := config.ConfigPath(*configPath)
	if _, err := os.Stat(path); err != nil && *configPath == "" {
		path = ""
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}

	// stdout carries the JSON result, so logs go to stderr.
	level := cfg.Logging.Level
	if level == "info" || level == "report" {
		level = "warn"
	}
	if err := log.Configure(level, cfg.Logging.Format, "stderr", 0); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}

	cache, err := entsoe.NewCache(cfg.Cache)
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
	var archives []entsoe.Archive
	if cfg.Archive.Enabled {
		archives = append(archives, entsoe.NewFileArchive(cfg.Archive.Root))
	}
	client, err := entsoe.NewClient(cfg, cache, archives...)
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
	adv, err := advisor.New(cfg, client)
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		client:  client,
		planner: adv,
		loc:     client.Location(),
		zone:    cfg.App.Zone,
		now:     time.Now,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	code := a.run(ctx, flags.Arg(0), flags.Args()[1:])
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func (a *app) run(ctx context.Context, cmd string, args []string) int {
	var (
		out interface{}
		err error
	)
	switch cmd {
	case "prices":
		out, err = a.prices(ctx, args)
	case "load":
		out, err = a.load(ctx, args)
	case "gen-forecast":
		out, err = a.genForecast(ctx, args)
	case "netpos":
		out, err = a.netPosition(ctx, args)
	case "exchanges":
		out, err = a.exchanges(ctx, args)
	case "plan":
		out, err = a.plan(ctx, args)
	default:
		err = models.NewBadRequest("Unknown command: %s", cmd)
	}
	if err != nil {
		printError(a.stderr, err)
		return 1
	}
	if err := writeJSON(a.stdout, out); err != nil {
		printError(a.stderr, err)
		return 1
	}
	return 0
}

// dateZone reads the optional [date] [zone] arguments. The date defaults
// to tomorrow in the market time zone.
func (a *app) dateZone(args []string) (time.Time, string, error) {
	var day time.Time
	if len(args) >= 1 && args[0] != "" {
		d, err := entsoe.ParseDay(args[0], a.loc)
		if err != nil {
			return time.Time{}, "", fmt.Errorf("invalid date '%s', expected YYYY-MM-DD", args[0])
		}
		day = d
	} else {
		day = entsoe.DayIn(a.now().In(a.loc), a.loc).AddDate(0, 0, 1)
	}
	zone := a.zone
	if len(args) >= 2 {
		zone = args[1]
	}
	return day, zone, nil
}

func (a *app) prices(ctx context.Context, args []string) (interface{}, error) {
	day, zone, err := a.dateZone(args)
	if err != nil {
		return nil, err
	}
	rows, err := a.client.DayAheadPrices(ctx, day, zone)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.PriceRow{}
	}
	return map[string]interface{}{
		"date":   day.Format(models.DateLayout),
		"zone":   zone,
		"prices": rows,
	}, nil
}

func (a *app) load(ctx context.Context, args []string) (interface{}, error) {
	day, zone, err := a.dateZone(args)
	if err != nil {
		return nil, err
	}
	load, err := a.client.TotalLoad(ctx, day, zone)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"date": day.Format(models.DateLayout),
		"zone": zone,
		"load": load,
	}, nil
}

func (a *app) genForecast(ctx context.Context, args []string) (interface{}, error) {
	day, zone, err := a.dateZone(args)
	if err != nil {
		return nil, err
	}
	var psrTypes []string
	if len(args) >= 3 {
		psrTypes = args[2:]
	}
	rows, err := a.client.GenerationForecast(ctx, day, zone, psrTypes...)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.GenerationRow{}
	}
	shown := psrTypes
	if len(shown) == 0 {
		shown = []string{"ALL"}
	}
	return map[string]interface{}{
		"date":                day.Format(models.DateLayout),
		"zone":                zone,
		"psr_types":           shown,
		"generation_forecast": rows,
	}, nil
}

func (a *app) netPosition(ctx context.Context, args []string) (interface{}, error) {
	day, zone, err := a.dateZone(args)
	if err != nil {
		return nil, err
	}
	rows, err := a.client.NetPosition(ctx, day, zone)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.QuantityRow{}
	}
	return map[string]interface{}{
		"date":         day.Format(models.DateLayout),
		"zone":         zone,
		"net_position": rows,
	}, nil
}

func (a *app) exchanges(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 3 {
		return nil, models.NewBadRequest("Usage: exchanges [YYYY-MM-DD] FROM_EIC TO_EIC")
	}
	day, _, err := a.dateZone(args[:1])
	if err != nil {
		return nil, err
	}
	from, to := args[1], args[2]
	rows, err := a.client.ScheduledExchanges(ctx, day, from, to)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.QuantityRow{}
	}
	return map[string]interface{}{
		"date":                day.Format(models.DateLayout),
		"from_zone":           from,
		"to_zone":             to,
		"scheduled_exchanges": rows,
	}, nil
}

func (a *app) plan(ctx context.Context, args []string) (interface{}, error) {
	day, zone, err := a.dateZone(args)
	if err != nil {
		return nil, err
	}
	return a.planner.Plan(ctx, day, zone)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printError writes {"error": {...}}. Untyped failures are reported as a
// 500 CLIENT_ERROR.
func printError(w io.Writer, err error) {
	e, ok := models.AsError(err)
	if !ok {
		e = models.NewClientError(err.Error(), http.StatusInternalServerError, nil)
	}
	writeJSON(w, map[string]interface{}{"error": e.ToMap()})
}
