package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "resume-forge"
)

type Config struct {
	Provider     string          `mapstructure:"provider"`
	APIKey       string          `mapstructure:"api-key"`
	APIKeyFile   string          `mapstructure:"api-key-file"`
	Output       string          `mapstructure:"output"`
	TemplateFile string          `mapstructure:"template-file"`
	PDF          *PDFConfig      `mapstructure:"pdf"`
	OpenAI       *ProviderConfig `mapstructure:"openai"`
	Gemini       *ProviderConfig `mapstructure:"gemini"`
	Groq         *ProviderConfig `mapstructure:"groq"`
}

type ProviderConfig struct {
	Model string `mapstructure:"model"`
}

type PDFConfig struct {
	Skip      bool `mapstructure:"skip"`
	NoCleanup bool `mapstructure:"no-cleanup"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-forge is a cli for tailoring a resume to a job description with an LLM and compiling the result to PDF",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("api-key-file", "RESUME_FORGE_API_KEY_FILE"); err != nil {
		log.Fatalf("binding RESUME_FORGE_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-forge.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// Everything is configurable with flags, so a missing default config file
	// is fine. An explicit --config that fails to parse is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}

	return config, nil
}
