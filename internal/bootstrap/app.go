package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"quality-backend/internal/analyses"
	"quality-backend/internal/analyzer"
	"quality-backend/internal/coverage"
	"quality-backend/internal/issues"
	"quality-backend/internal/llm"
	openai "quality-backend/internal/llm/openai"
	"quality-backend/internal/projects"
	"quality-backend/internal/qualitygate"
	"quality-backend/internal/queue"
	"quality-backend/internal/remediation"
	"quality-backend/internal/services/health"
	"quality-backend/internal/shared/config"
	"quality-backend/internal/shared/metrics"
	"quality-backend/internal/shared/server"
	"quality-backend/internal/shared/storage/db"
	"quality-backend/internal/shared/storage/object"
	localstore "quality-backend/internal/shared/storage/object/local"
	s3store "quality-backend/internal/shared/storage/object/s3"
	"quality-backend/internal/shared/telemetry"
	"quality-backend/internal/workerproc"
)

// App holds shared dependencies for every entrypoint.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore

	Queue       queue.Client
	Source      queue.Source
	Memory      *queue.MemoryQueue
	SQS         *queue.SQSQueue
	RetryPolicy queue.RetryPolicy

	AnalysesService    *analyses.Service
	IssuesService      *issues.Service
	GatesService       *qualitygate.Service
	ProjectsService    *projects.Service
	RemediationService *remediation.Service
	HealthService      *health.Service
}

// Build prepares shared dependencies and the HTTP router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:      cfg,
		DB:          sqlDB,
		Store:       store,
		RetryPolicy: retryPolicy(cfg),
	}
	if err := buildQueue(ctx, app); err != nil {
		return nil, err
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config: cfg,
		Health: app.HealthService,
		Handlers: []server.RouteRegistrar{
			analyses.NewHandler(app.AnalysesService),
			issues.NewHandler(app.IssuesService),
			qualitygate.NewHandler(app.GatesService),
			projects.NewHandler(app.ProjectsService),
			remediation.NewHandler(app.RemediationService),
		},
	})

	return app, nil
}

// NewRunner builds a job runner over the app's queue with every job kind registered.
func (a *App) NewRunner() *queue.Runner {
	runner := queue.NewRunner(a.Source, a.RetryPolicy, a.Config.WorkerConcurrency)
	if a.Config.ShutdownTimeout > 0 {
		runner.SetShutdownTimeout(a.Config.ShutdownTimeout)
	}
	workerproc.Register(runner, a.AnalysesService, a.RemediationService)
	return runner
}

// NewSampler builds the queue depth sampler backed by persisted analyses.
func (a *App) NewSampler() *queue.DepthSampler {
	return queue.NewDepthSampler(a.AnalysesService, a.Config.SampleInterval)
}

// HasFailedQueue reports whether exhausted jobs are moved somewhere the
// worker controls.
func (a *App) HasFailedQueue() bool {
	if a.SQS != nil {
		return a.SQS.HasFailedQueue()
	}
	return a.Memory != nil
}

func retryPolicy(cfg config.Config) queue.RetryPolicy {
	policy := queue.DefaultRetryPolicy()
	if cfg.JobMaxAttempts > 0 {
		policy.MaxAttempts = cfg.JobMaxAttempts
	}
	if cfg.JobBackoffBase > 0 {
		policy.BackoffBase = cfg.JobBackoffBase
	}
	return policy.Normalize()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Info("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, db.ErrMissingURL
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Error("bootstrap.memory_repositories", map[string]any{"reason": "database connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := metrics.RegisterDBStats(sqlDB, "quality"); err != nil {
		telemetry.Error("bootstrap.db_stats_failed", map[string]any{"error": err.Error()})
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, app *App) error {
	switch app.Config.QueueBackend {
	case "sqs":
		if strings.TrimSpace(app.Config.SQSQueueURL) == "" {
			return fmt.Errorf("QUEUE_BACKEND=sqs requires SQS_QUEUE_URL")
		}
		q, err := queue.NewSQSQueue(ctx, app.Config.AWSRegion, app.Config.SQSQueueURL, app.Config.SQSFailedQueueURL, app.RetryPolicy)
		if err != nil {
			return err
		}
		app.SQS = q
		app.Queue = q
		app.Source = q
	default:
		q := queue.NewMemoryQueue(app.RetryPolicy)
		app.Memory = q
		app.Queue = q
		app.Source = q
	}
	return nil
}

func buildAnalyzer(cfg config.Config) (analyzer.Runner, error) {
	if strings.TrimSpace(cfg.AnalyzerURL) == "" {
		return analyzer.Placeholder{}, nil
	}
	return analyzer.NewHTTPRunner(cfg.AnalyzerURL, cfg.AnalyzerTimeout)
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	if cfg.LLMProvider != "openai" {
		return llm.PlaceholderClient{}, nil
	}
	return openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.LLMTimeout)
}

func buildServices(app *App) error {
	var (
		analysisRepo analyses.Repo
		issueRepo    issues.Repo
		coverageRepo coverage.Repo
		gateRepo     qualitygate.Repo
		projectRepo  projects.Repo
	)
	if app.DB != nil {
		analysisRepo = &analyses.PGRepo{DB: app.DB}
		issueRepo = &issues.PGRepo{DB: app.DB}
		coverageRepo = &coverage.PGRepo{DB: app.DB}
		gateRepo = &qualitygate.PGRepo{DB: app.DB}
		projectRepo = &projects.PGRepo{DB: app.DB}
	} else {
		analysisRepo = analyses.NewMemoryRepo()
		issueRepo = issues.NewMemoryRepo()
		coverageRepo = coverage.NewMemoryRepo()
		gateRepo = qualitygate.NewMemoryRepo()
		projectRepo = projects.NewMemoryRepo()
	}

	defaults, err := qualitygate.LoadDefaults(app.Config.QualityConfigFile)
	if err != nil {
		return err
	}
	runner, err := buildAnalyzer(app.Config)
	if err != nil {
		return err
	}
	llmClient, err := buildLLM(app.Config)
	if err != nil {
		return err
	}

	app.ProjectsService = &projects.Service{Repo: projectRepo}
	app.GatesService = &qualitygate.Service{Repo: gateRepo, Defaults: defaults}
	app.IssuesService = &issues.Service{Repo: issueRepo, Queue: app.Queue}
	app.AnalysesService = &analyses.Service{
		Repo:     analysisRepo,
		Issues:   issueRepo,
		Coverage: coverageRepo,
		Projects: app.ProjectsService,
		Gates:    app.GatesService,
		Debt:     defaults.Debt,
		Store:    app.Store,
		Queue:    app.Queue,
		Analyzer: runner,
	}
	app.RemediationService = &remediation.Service{
		Issues: app.IssuesService,
		LLM:    llmClient,
		Store:  app.Store,
	}
	app.HealthService = health.NewService(app.DB, app.Config.QueueBackend)
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
