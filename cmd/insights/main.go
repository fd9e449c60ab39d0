// cmd/insights/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"merchant-insights/internal/analysis"
	"merchant-insights/internal/classifier"
	"merchant-insights/internal/common/config"
	"merchant-insights/internal/common/database"
	"merchant-insights/internal/common/logger"
	"merchant-insights/internal/common/observability"
	"merchant-insights/internal/llm"
	"merchant-insights/internal/models"
	"merchant-insights/internal/pipeline"
	"merchant-insights/internal/research"
	"merchant-insights/internal/storage"
)

const usage = `Usage: insights <command> [flags]

Commands:
  classify       Classify unprocessed raw records and persist insights
  transcript     Extract interview insights from a transcript file
  stats          Print storage statistics
  opportunities  Print persisted opportunity scores, highest first
  rank           Rerank categories with interview evidence
  health         Check connectivity of the configured backends
`

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &application{cfg: cfg, log: log, zapLog: zapLog}

	switch command {
	case "classify":
		err = app.runClassify(ctx, args)
	case "transcript":
		err = app.runTranscript(ctx, args)
	case "stats":
		err = app.runStats(ctx, args)
	case "opportunities":
		err = app.runOpportunities(ctx, args)
	case "rank":
		err = app.runRank(ctx, args)
	case "health":
		err = app.runHealth(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		zapLog.Fatal("command failed", zap.String("command", command), zap.Error(err))
	}
}

type application struct {
	cfg    *config.Config
	log    logger.Logger
	zapLog *zap.Logger
}

func (a *application) openBackend(ctx context.Context) (storage.Backend, error) {
	var backend storage.Backend
	err := retryWithBackoff(func() error {
		var err error
		backend, err = storage.Open(ctx, a.cfg, a.log)
		return err
	}, 5, 2*time.Second, a.zapLog, "Storage backend initialization")
	return backend, err
}

// openResearchStore connects the interview store when Postgres is
// configured. Commands that can run without interviews treat nil as absent.
func (a *application) openResearchStore(ctx context.Context) (*research.Store, error) {
	if a.cfg.Storage.Postgres.Host == "" {
		return nil, nil
	}

	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(a.cfg.Storage.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 5, 2*time.Second, a.zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	return research.NewStore(ctx, pg, a.log)
}

func (a *application) newService(backend storage.Backend, researchStore *research.Store, obs *observability.Observability) *pipeline.Service {
	llmClient := llm.NewAnthropicClient(a.cfg.Anthropic)
	clfConfig := classifier.FromAppConfig(a.cfg)
	clf := classifier.New(llmClient, clfConfig, a.log, obs)
	transcripts := classifier.NewTranscriptClassifier(llmClient, clfConfig, a.log)
	return pipeline.NewService(backend, clf, transcripts, researchStore, obs, a.log, clfConfig.Concurrency)
}

func (a *application) runClassify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	limit := fs.Int("limit", 100, "maximum raw records to fetch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	backend, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	researchStore, err := a.openResearchStore(ctx)
	if err != nil {
		return err
	}
	if researchStore != nil {
		defer researchStore.Close()
	}

	obs := observability.New(a.cfg.App.Name)
	defer obs.Shutdown()

	if a.cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(a.cfg.Metrics.Address, mux); err != nil {
				a.zapLog.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
		a.zapLog.Info("metrics endpoint started", zap.String("address", a.cfg.Metrics.Address))
	}

	service := a.newService(backend, researchStore, obs)
	summary, err := service.Run(ctx, *limit)
	if err != nil {
		return err
	}

	a.zapLog.Info("classification run finished",
		zap.Int("fetched", summary.Fetched),
		zap.Int("classified", summary.Classified),
		zap.Int("failed", summary.Failed),
		zap.Int("saved", summary.Saved),
	)
	return nil
}

func (a *application) runTranscript(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("transcript", flag.ExitOnError)
	file := fs.String("file", "", "path to the transcript text file")
	participantID := fs.String("participant", "", "participant id, e.g. P007")
	date := fs.String("date", "", "interview date (YYYY-MM-DD, default today)")
	vertical := fs.String("vertical", "", "store vertical")
	beta := fs.Bool("beta", false, "participant opted into beta testing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" || *participantID == "" {
		return fmt.Errorf("transcript requires -file and -participant")
	}

	interviewDate := time.Now().UTC()
	if *date != "" {
		parsed, err := time.Parse("2006-01-02", *date)
		if err != nil {
			return fmt.Errorf("invalid -date: %w", err)
		}
		interviewDate = parsed
	}

	text, err := os.ReadFile(*file)
	if err != nil {
		return err
	}

	backend, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	researchStore, err := a.openResearchStore(ctx)
	if err != nil {
		return err
	}
	if researchStore == nil {
		return fmt.Errorf("transcript processing requires storage.postgres to be configured")
	}
	defer researchStore.Close()

	service := a.newService(backend, researchStore, nil)
	stored, err := service.ProcessTranscript(ctx,
		&models.Transcript{SourceFile: *file, FullText: string(text)},
		&models.InterviewParticipant{
			ParticipantID: *participantID,
			InterviewDate: interviewDate,
			StoreVertical: *vertical,
			BetaTester:    *beta,
		})
	if err != nil {
		return err
	}

	a.zapLog.Info("transcript processed",
		zap.String("file", *file),
		zap.String("participant", *participantID),
		zap.Int("insightsStored", stored),
	)
	return nil
}

func (a *application) runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	backend, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	stats, err := backend.GetStats(ctx)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func (a *application) runOpportunities(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("opportunities", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	backend, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	scores, err := backend.GetRankedOpportunities(ctx)
	if err != nil {
		return err
	}
	return printJSON(scores)
}

func (a *application) runRank(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rank", flag.ExitOnError)
	top := fs.Int("top", 0, "limit to the N highest ranked categories (0 = all)")
	validatedOnly := fs.Bool("validated", false, "only interview-validated categories")
	wtpOnly := fs.Bool("wtp", false, "only categories with interview-confirmed WTP")
	asJSON := fs.Bool("json", false, "emit JSON instead of the text report")
	if err := fs.Parse(args); err != nil {
		return err
	}

	backend, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	researchStore, err := a.openResearchStore(ctx)
	if err != nil {
		return err
	}
	if researchStore != nil {
		defer researchStore.Close()
	}

	obs := observability.New(a.cfg.App.Name)
	defer obs.Shutdown()

	service := a.newService(backend, researchStore, obs)
	ranked, err := service.RankOpportunities(ctx)
	if err != nil {
		return err
	}

	filtered := ranked[:0:0]
	for _, opp := range ranked {
		if *validatedOnly && !opp.InterviewValidated {
			continue
		}
		if *wtpOnly && !opp.InterviewWTPConfirmed {
			continue
		}
		filtered = append(filtered, opp)
	}
	ranked = filtered
	if *top > 0 && len(ranked) > *top {
		ranked = ranked[:*top]
	}

	if *asJSON {
		return printJSON(ranked)
	}
	fmt.Println(analysis.FormatOpportunityReport(ranked))
	return nil
}

func (a *application) runHealth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	status := map[string]string{}

	backend, err := a.openBackend(ctx)
	if err != nil {
		status["storage"] = err.Error()
	} else {
		status["storage"] = "ok"
		backend.Close()
	}

	if a.cfg.Storage.Postgres.Host != "" {
		pg, err := database.NewPostgres(a.cfg.Storage.Postgres)
		if err == nil {
			err = pg.Ping(ctx)
			pg.Close()
		}
		if err != nil {
			status["postgres"] = err.Error()
		} else {
			status["postgres"] = "ok"
		}
	}

	if a.cfg.Storage.Redis.Enabled {
		rc, err := database.NewRedis(a.cfg.Storage.Redis)
		if err == nil {
			err = rc.Ping(ctx)
			rc.Close()
		}
		if err != nil {
			status["redis"] = err.Error()
		} else {
			status["redis"] = "ok"
		}
	}

	if err := printJSON(status); err != nil {
		return err
	}
	for _, v := range status {
		if v != "ok" {
			return fmt.Errorf("one or more backends are unhealthy")
		}
	}
	return nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
