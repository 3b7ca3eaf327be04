package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/amarra-project/amarra/pkg/logger"
)

var (
	cfgFile     string
	verboseMode bool
	regionFlag  string
	awsProfile  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "amarra",
	Short: "Amarra converges AWS resources to a desired-state document",
	Long: `Amarra reads a desired-state document describing AWS resources and
converges the live account to it: resources that do not exist are
created, drifted attributes are corrected, and resources marked absent
are removed. Running the same document twice changes nothing the
second time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file (default is $HOME/.amarra.yaml)")
	rootCmd.PersistentFlags().
		BoolVarP(&verboseMode, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVar(&regionFlag, "region", "", "Override the region of every resource in the document")
	rootCmd.PersistentFlags().
		StringVar(&awsProfile, "aws-profile", "", "AWS profile to use for credentials")

	if err := viper.BindPFlag("aws.region", rootCmd.PersistentFlags().Lookup("region")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("aws.profile", rootCmd.PersistentFlags().Lookup("aws-profile")); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A .env next to the working directory can carry AWS credentials
	// for local runs. Missing files are fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".amarra" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".amarra")
	}

	viper.SetEnvPrefix("AMARRA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	logger.InitLoggerOutputs()
	if verboseMode {
		logger.GlobalLogLevel = "debug"
	}
	logger.InitProduction()
}
