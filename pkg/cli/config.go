package cli

import (
	"context"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/adapter"
	"github.com/m-mizutani/vestige/pkg/category"
	"github.com/m-mizutani/vestige/pkg/librarian"
	"github.com/m-mizutani/vestige/pkg/policy"
	"github.com/m-mizutani/vestige/pkg/repository"
	"github.com/m-mizutani/vestige/pkg/usecase/curator"
	"github.com/m-mizutani/vestige/pkg/utils/logging"
	"github.com/m-mizutani/vestige/pkg/vector"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	logLevel string

	// Repository
	backend  string
	logPath  string
	project  string
	database string

	// Librarian
	evaluator      string
	librarianModel string
	ollamaCommand  string
	categoryRules  string
	policyDir      string

	// Embedding
	embedder       string
	embeddingModel string

	// Adapters
	ollamaURL      string
	geminiProject  string
	geminiLocation string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("VESTIGE_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "Memory log backend (jsonl, firestore)",
			Value:       "jsonl",
			Sources:     cli.EnvVars("VESTIGE_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "log-path",
			Usage:       "Path of the JSONL memory log",
			Value:       repository.DefaultLogPath,
			Sources:     cli.EnvVars("VESTIGE_LOG_PATH"),
			Destination: &cfg.logPath,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID for Firestore",
			Sources:     cli.EnvVars("VESTIGE_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("VESTIGE_DATABASE"),
			Destination: &cfg.database,
		},
	}
}

// librarianFlags returns flags selecting and configuring the librarian
func librarianFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "evaluator",
			Usage:       "Librarian backend (ollama, command, gemini)",
			Value:       "ollama",
			Sources:     cli.EnvVars("VESTIGE_EVALUATOR"),
			Destination: &cfg.evaluator,
		},
		&cli.StringFlag{
			Name:        "librarian-model",
			Usage:       "Model used by the librarian (ollama and command backends)",
			Value:       adapter.DefaultLibrarianModel,
			Sources:     cli.EnvVars("VESTIGE_LIBRARIAN_MODEL"),
			Destination: &cfg.librarianModel,
		},
		&cli.StringFlag{
			Name:        "ollama-command",
			Usage:       "Ollama executable for the command backend",
			Value:       "ollama",
			Sources:     cli.EnvVars("VESTIGE_OLLAMA_COMMAND"),
			Destination: &cfg.ollamaCommand,
		},
		&cli.StringFlag{
			Name:        "category-rules",
			Usage:       "YAML keyword rules used when the librarian fails (\"default\" for the built-in set)",
			Sources:     cli.EnvVars("VESTIGE_CATEGORY_RULES"),
			Destination: &cfg.categoryRules,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego curation policies (package curate)",
			Sources:     cli.EnvVars("VESTIGE_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
	}
}

// embeddingFlags returns flags for the embedding provider
func embeddingFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedder",
			Usage:       "Embedding backend (ollama, gemini)",
			Value:       "ollama",
			Sources:     cli.EnvVars("VESTIGE_EMBEDDER"),
			Destination: &cfg.embedder,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model (ollama backend)",
			Value:       adapter.DefaultEmbeddingModel,
			Sources:     cli.EnvVars("VESTIGE_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
	}
}

// llmFlags returns connection flags for the LLM services
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "ollama-url",
			Usage:       "Base URL of the Ollama server",
			Value:       adapter.DefaultOllamaURL,
			Sources:     cli.EnvVars("VESTIGE_OLLAMA_URL"),
			Destination: &cfg.ollamaURL,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("VESTIGE_GEMINI_PROJECT"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("VESTIGE_GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
	}
}

// setup configures logging and returns a context carrying the logger
func (cfg *config) setup(ctx context.Context) (context.Context, error) {
	return logging.Configure(ctx, cfg.logLevel, os.Stderr)
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	switch cfg.backend {
	case "", "jsonl":
		return repository.NewJSONL(cfg.logPath), nil

	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required")
		}
		if cfg.database == "" {
			return nil, goerr.New("database is required")
		}

		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, nil

	default:
		return nil, goerr.New("unsupported backend", goerr.V("backend", cfg.backend))
	}
}

// closeRepository releases backends holding connections
func closeRepository(ctx context.Context, repo repository.Repository) {
	if c, ok := repo.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logging.From(ctx).Warn("failed to close repository", "error", err)
		}
	}
}

// newOllama creates a new Ollama adapter instance
func (cfg *config) newOllama() (*adapter.Ollama, error) {
	return adapter.NewOllama(cfg.ollamaURL,
		adapter.WithOllamaGenerativeModel(cfg.librarianModel),
		adapter.WithOllamaEmbeddingModel(cfg.embeddingModel),
	)
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (*adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation)
}

// newEvaluator creates the librarian for the configured backend
func (cfg *config) newEvaluator(ctx context.Context) (librarian.Evaluator, error) {
	switch cfg.evaluator {
	case "", "ollama":
		ollama, err := cfg.newOllama()
		if err != nil {
			return nil, err
		}
		return librarian.New(ollama), nil

	case "command":
		return librarian.New(adapter.NewOllamaCommand(cfg.ollamaCommand, cfg.librarianModel)), nil

	case "gemini":
		gemini, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		return librarian.New(gemini), nil

	default:
		return nil, goerr.New("unsupported evaluator", goerr.V("evaluator", cfg.evaluator))
	}
}

// newEmbedder creates the embedding provider for the configured backend
func (cfg *config) newEmbedder(ctx context.Context) (vector.Embedder, error) {
	switch cfg.embedder {
	case "", "ollama":
		ollama, err := cfg.newOllama()
		if err != nil {
			return nil, err
		}
		return ollama, nil

	case "gemini":
		gemini, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		return gemini, nil

	default:
		return nil, goerr.New("unsupported embedder", goerr.V("embedder", cfg.embedder))
	}
}

// newCategoryRules loads keyword rules; nil when none are configured
func (cfg *config) newCategoryRules() (*category.Rules, error) {
	switch cfg.categoryRules {
	case "":
		return nil, nil
	case "default":
		return category.Default(), nil
	default:
		return category.Load(cfg.categoryRules)
	}
}

// newCurator wires repository, librarian and category rules
func (cfg *config) newCurator(ctx context.Context, repo repository.Repository) (*curator.UseCase, error) {
	evaluator, err := cfg.newEvaluator(ctx)
	if err != nil {
		return nil, err
	}

	rules, err := cfg.newCategoryRules()
	if err != nil {
		return nil, err
	}

	var opts []curator.Option
	if rules != nil {
		opts = append(opts, curator.WithCategoryRules(rules))
	}

	if cfg.policyDir != "" {
		p, err := policy.Load(ctx, cfg.policyDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, curator.WithPolicy(p))
	}

	return curator.New(repo, evaluator, opts...), nil
}

// newStorage creates a new Storage adapter instance
func (cfg *config) newStorage(ctx context.Context, bucketName string) (adapter.Storage, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	storage, err := adapter.NewStorage(ctx, bucketName)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newBigQuery creates a new BigQuery adapter instance
func (cfg *config) newBigQuery(ctx context.Context, dataset, table string) (adapter.BigQuery, error) {
	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if table == "" {
		return nil, goerr.New("table is required")
	}

	bq, err := adapter.NewBigQuery(ctx, cfg.project, dataset, table)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery")
	}
	return bq, nil
}
