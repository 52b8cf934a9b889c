package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spigell/resume-forge/internal/ai"
	"github.com/spigell/resume-forge/internal/ai/gemini"
	"github.com/spigell/resume-forge/internal/ai/openai"
	"github.com/spigell/resume-forge/internal/conversation"
	"github.com/spigell/resume-forge/internal/extract"
	"github.com/spigell/resume-forge/internal/latex"
	"github.com/spigell/resume-forge/internal/logger"
	"github.com/spigell/resume-forge/internal/pipeline"
	"github.com/spigell/resume-forge/internal/secrets"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptRefine      = "Refine with feedback"
	PromptShowContent = "Show resume content"
	PromptExit        = "Exit"
)

// apiKeyEnvs names the conventional environment variable per provider.
var apiKeyEnvs = map[string]string{
	ai.ProviderOpenAI: "OPENAI_API_KEY",
	ai.ProviderGemini: "GEMINI_API_KEY",
	ai.ProviderGroq:   "GROQ_API_KEY",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Transform a resume to match a job description",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("resume", "r", "", "path to the resume file (PDF or plain text)")
	runCmd.Flags().String("job", "", "job description text")
	runCmd.Flags().String("job-file", "", "path to a file with the job description")
	runCmd.Flags().StringP("output", "o", "", "output path for the generated .tex file")
	runCmd.Flags().String("provider", "", "ai provider: openai, gemini or groq. Default is detected from the api key format.")
	runCmd.Flags().String("api-key", "", "api key for the ai provider")
	runCmd.Flags().String("template-file", "", "custom latex template file. Default is the built-in template.")
	runCmd.Flags().Int("feedback-rounds", conversation.DefaultMaxFollowups, "maximum number of follow-up refinements per session")
	runCmd.Flags().BoolP("skip-followups", "y", false, "do not prompt for follow-up refinements")
	runCmd.Flags().Bool("no-pdf", false, "skip pdflatex compilation, generate the .tex file only")

	viper.BindPFlag("provider", runCmd.Flags().Lookup("provider"))
	viper.BindPFlag("api-key", runCmd.Flags().Lookup("api-key"))
	viper.BindPFlag("output", runCmd.Flags().Lookup("output"))
	viper.BindPFlag("template-file", runCmd.Flags().Lookup("template-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the resume-forge", zap.String("version", version))

	resumePath := cmd.Flag("resume").Value.String()
	if resumePath == "" {
		logger.Fatal("resume file is required", zap.String("hint", "pass --resume with a PDF or text file"))
	}

	job, err := resolveJob(cmd)
	if err != nil {
		logger.Fatal("resolving job description", zap.Error(err))
	}

	client, provider, err := newAIClient(ctx, config, logger)
	if err != nil {
		logger.Fatal("building ai client", zap.Error(err))
	}

	template, err := resolveTemplate(config)
	if err != nil {
		logger.Fatal("loading latex template", zap.Error(err))
	}

	noPDF := cmd.Flag("no-pdf").Value.String() == "true"
	if config.PDF != nil && config.PDF.Skip {
		noPDF = true
	}

	cleanup := true
	if config.PDF != nil && config.PDF.NoCleanup {
		cleanup = false
	}

	feedbackRounds, err := cmd.Flags().GetInt("feedback-rounds")
	if err != nil {
		logger.Fatal("reading feedback-rounds flag", zap.Error(err))
	}

	session := pipeline.New(client, pipeline.Config{
		OutputPath:   viper.GetString("output"),
		Template:     template,
		CompilePDF:   !noPDF,
		Cleanup:      cleanup,
		MaxFollowups: feedbackRounds,
	}, sessionLogger(logger, provider, client.Model()))

	result, err := session.Run(ctx, pipeline.Inputs{ResumePath: resumePath, JobText: job})
	if err != nil {
		logger.Fatal("pipeline failed", zap.Error(err))
	}

	reportResult(logger, result)

	if cmd.Flag("skip-followups").Value.String() == "true" {
		return
	}

	followupLoop(ctx, session, logger)
}

// followupLoop keeps offering budgeted refinements until the user exits or
// the budget runs dry.
func followupLoop(ctx context.Context, session *pipeline.Session, logger *zap.Logger) {
	for {
		remaining := session.Budget().Remaining()

		items := []string{PromptShowContent, PromptExit}
		if remaining > 0 {
			items = []string{PromptRefine, PromptShowContent, PromptExit}
		}

		prompt := promptui.Select{
			Label: fmt.Sprintf("Transformation complete. Follow-ups left: %d", remaining),
			Items: items,
		}

		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		switch action {
		case PromptRefine:
			if err := refine(ctx, session, logger); err != nil {
				logger.Fatal("refinement failed", zap.Error(err))
			}
		case PromptShowContent:
			fmt.Println(session.Content())
		case PromptExit:
			logger.Info("exiting", zap.String("reason", "got exit from prompt"))
			return
		}
	}
}

func refine(ctx context.Context, session *pipeline.Session, logger *zap.Logger) error {
	feedbackPrompt := promptui.Prompt{Label: "Feedback"}

	feedback, err := feedbackPrompt.Run()
	if err != nil {
		return err
	}

	result, err := session.Refine(ctx, feedback)
	if errors.Is(err, conversation.ErrInvalidFeedback) || errors.Is(err, conversation.ErrBudgetExhausted) {
		logger.Warn("skipping refinement", zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	reportResult(logger, result)
	return nil
}

func reportResult(logger *zap.Logger, result pipeline.Result) {
	fields := []zap.Field{zap.String("tex_path", result.TexPath)}
	if result.PDFPath != "" {
		fields = append(fields, zap.String("pdf_path", result.PDFPath))
	} else {
		fields = append(fields, zap.String("hint", "compile manually with: pdflatex "+result.TexPath))
	}

	logger.Info("resume ready", fields...)
}

func sessionLogger(log *zap.Logger, provider, model string) *zap.Logger {
	return log.With(logger.ProviderFields(provider, model)...)
}

// newAIClient resolves the api key and provider, then builds the matching
// chat client. The provider may be set explicitly or detected from the key
// format.
func newAIClient(ctx context.Context, config *Config, log *zap.Logger) (ai.Client, string, error) {
	provider := strings.TrimSpace(strings.ToLower(viper.GetString("provider")))
	if provider == "" {
		provider = strings.TrimSpace(strings.ToLower(config.Provider))
	}
	if provider != "" && !ai.KnownProvider(provider) {
		return nil, "", fmt.Errorf("unsupported ai provider: %s", provider)
	}

	apiKey, err := resolveAPIKey(config, provider)
	if err != nil {
		return nil, "", err
	}

	if provider == "" {
		provider, err = ai.DetectProvider(apiKey)
		if err != nil {
			return nil, "", err
		}
	}

	model := modelFor(config, provider)
	clientLogger := sessionLogger(log, provider, model)
	clientLogger.Info("using ai provider")

	switch provider {
	case ai.ProviderOpenAI:
		client, err := openai.New(openai.Config{
			APIKey: apiKey,
			Model:  model,
		}, clientLogger)
		return client, provider, err
	case ai.ProviderGroq:
		client, err := openai.New(openai.Config{
			APIKey:  apiKey,
			BaseURL: openai.GroqBaseURL,
			Model:   model,
		}, clientLogger)
		return client, provider, err
	case ai.ProviderGemini:
		client, err := gemini.New(ctx, gemini.Config{
			APIKey: apiKey,
			Model:  model,
		}, clientLogger)
		return client, provider, err
	}

	return nil, "", fmt.Errorf("unsupported ai provider: %s", provider)
}

// resolveAPIKey checks the configured file, then the inline value, then the
// provider's conventional environment variable. With no provider chosen yet,
// every known variable is tried in a fixed order.
func resolveAPIKey(config *Config, provider string) (string, error) {
	envs := []string{apiKeyEnvs[ai.ProviderOpenAI], apiKeyEnvs[ai.ProviderGemini], apiKeyEnvs[ai.ProviderGroq]}
	if provider != "" {
		envs = []string{apiKeyEnvs[provider]}
	}

	apiKey := viper.GetString("api-key")
	if apiKey == "" {
		apiKey = config.APIKey
	}

	keyFile := strings.TrimSpace(config.APIKeyFile)
	if keyFile == "" {
		keyFile = strings.TrimSpace(viper.GetString("api-key-file"))
	}

	var lastErr error
	for _, env := range envs {
		key, err := secrets.Load(secrets.Source{
			Name:  "ai api key",
			Value: apiKey,
			File:  keyFile,
			Env:   env,
		})
		if err == nil {
			return key, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w (set api-key-file, api-key, or a provider environment variable)", lastErr)
}

func modelFor(config *Config, provider string) string {
	switch provider {
	case ai.ProviderOpenAI:
		if config.OpenAI != nil && config.OpenAI.Model != "" {
			return config.OpenAI.Model
		}
		return openai.DefaultOpenAIModel
	case ai.ProviderGroq:
		if config.Groq != nil && config.Groq.Model != "" {
			return config.Groq.Model
		}
		return openai.DefaultGroqModel
	case ai.ProviderGemini:
		if config.Gemini != nil && config.Gemini.Model != "" {
			return config.Gemini.Model
		}
		return gemini.DefaultModel
	}

	return ""
}

// resolveJob prefers a file over inline text. A PDF job description works
// the same way a PDF resume does.
func resolveJob(cmd *cobra.Command) (string, error) {
	if jobFile := cmd.Flag("job-file").Value.String(); jobFile != "" {
		return extract.FromFile(jobFile)
	}

	if job := cmd.Flag("job").Value.String(); job != "" {
		return job, nil
	}

	return "", errors.New("job description is required (pass --job or --job-file)")
}

func resolveTemplate(config *Config) (string, error) {
	templateFile := viper.GetString("template-file")
	if templateFile == "" {
		templateFile = config.TemplateFile
	}

	if templateFile == "" {
		return "", nil
	}

	return latex.LoadTemplate(templateFile)
}
