package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"provincecast/internal/api"
	"provincecast/internal/collect"
	"provincecast/internal/openmeteo"
	"provincecast/internal/predict"
	"provincecast/internal/sched"
	"provincecast/internal/store"
	"provincecast/internal/verify"
	"provincecast/internal/weather"
)

type Globals struct {
	DB            string `help:"Path to the SQLite database." default:"data/provincecast.db" env:"DB_PATH"`
	MaxTempModel  string `help:"Path to the max-temperature model artifact." env:"MAX_TEMP_MODEL"`
	MinTempModel  string `help:"Path to the min-temperature model artifact." env:"MIN_TEMP_MODEL"`
	RainProbModel string `help:"Path to the rain-probability model artifact." env:"RAIN_PROB_MODEL"`
}

var cli struct {
	Globals

	Serve    ServeCmd    `cmd:"" default:"withargs" help:"Run the scheduler and HTTP server."`
	Collect  CollectCmd  `cmd:"" help:"Collect observations for all provinces and exit."`
	Verify   VerifyCmd   `cmd:"" help:"Verify due predictions against observations and exit."`
	Accuracy AccuracyCmd `cmd:"" help:"Print accuracy metrics and exit."`
}

type app struct {
	store      *store.Store
	collector  *collect.Collector
	forecaster *predict.Forecaster
	verifier   *verify.Verifier
	scheduler  *sched.Scheduler
	service    *weather.Service
}

func newApp(g Globals) (*app, func(), error) {
	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	client := openmeteo.NewClient()
	collector := collect.New(client, st, collect.Provinces)
	forecaster := predict.NewForecaster(st,
		predict.LoadModel("max-temp", g.MaxTempModel),
		predict.LoadModel("min-temp", g.MinTempModel),
		predict.LoadModel("rain-prob", g.RainProbModel),
	)
	verifier := verify.New(st)

	return &app{
		store:      st,
		collector:  collector,
		forecaster: forecaster,
		verifier:   verifier,
		scheduler:  sched.New(collector, verifier),
		service:    weather.NewService(client, forecaster),
	}, func() { db.Close() }, nil
}

type ServeCmd struct {
	Addr   string `help:"HTTP listen address." default:":8080" env:"LISTEN_ADDR"`
	NoCron bool   `help:"Disable scheduled jobs (server only, for local dev)."`
}

func (c *ServeCmd) Run(g Globals) error {
	app, closeDB, err := newApp(g)
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !c.NoCron {
		if err := app.scheduler.Start(); err != nil {
			return err
		}
		defer app.scheduler.Stop(context.Background())
	} else {
		log.Println("scheduled jobs disabled (--no-cron)")
	}

	server := api.NewServer(app.store, app.service, app.verifier, app.scheduler, collect.Provinces, c.Addr)
	log.Printf("starting server on %s", c.Addr)
	return server.Run(ctx)
}

type CollectCmd struct {
	Historical bool `help:"Collect the trailing 30-day archive window instead of today's observations."`
}

func (c *CollectCmd) Run(g Globals) error {
	app, closeDB, err := newApp(g)
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var summary collect.Summary
	if c.Historical {
		summary = app.collector.CollectAllHistorical(ctx)
	} else {
		summary = app.collector.CollectAllToday(ctx)
	}
	log.Printf("done: %d succeeded, %d failed, %d new records", summary.Succeeded, summary.Failed, summary.Saved)
	return nil
}

type VerifyCmd struct{}

func (c *VerifyCmd) Run(g Globals) error {
	app, closeDB, err := newApp(g)
	if err != nil {
		return err
	}
	defer closeDB()

	attempted, verified := app.verifier.VerifyDue()
	log.Printf("done: verified %d of %d due predictions", verified, attempted)
	return nil
}

type AccuracyCmd struct {
	Province string `help:"Restrict metrics to one province."`
}

func (c *AccuracyCmd) Run(g Globals) error {
	app, closeDB, err := newApp(g)
	if err != nil {
		return err
	}
	defer closeDB()

	stats, err := app.verifier.Accuracy(c.Province)
	if err != nil {
		return err
	}

	if stats.SampleSize == 0 {
		fmt.Println("no verified predictions yet")
		return nil
	}
	fmt.Printf("verified predictions: %d\n", stats.SampleSize)
	if stats.MAEMaxTemp.Valid {
		fmt.Printf("MAE max temp: %.2f°C\n", stats.MAEMaxTemp.Float64)
	}
	if stats.MAEMinTemp.Valid {
		fmt.Printf("MAE min temp: %.2f°C\n", stats.MAEMinTemp.Float64)
	}
	return nil
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("provincecast"),
		kong.Description("Province weather forecast and accuracy-feedback pipeline."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)
	if err := ctx.Run(cli.Globals); err != nil {
		log.Fatal(err)
	}
}
