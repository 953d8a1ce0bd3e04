package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/familycal/internal/profile"
	"github.com/hrygo/familycal/server"
	"github.com/hrygo/familycal/store"
	"github.com/hrygo/familycal/store/db"
)

// version is set at build time.
var version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "familycal",
		Short: `A family calendar with a natural-language event assistant.`,
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile := loadProfile()
			if err := instanceProfile.Validate(); err != nil {
				slog.Error("invalid profile", slog.String("error", err.Error()))
				os.Exit(1)
			}

			ctx, cancel := context.WithCancel(context.Background())
			storeInstance, err := openStore(ctx, instanceProfile)
			if err != nil {
				cancel()
				slog.Error("failed to open store", slog.String("error", err.Error()))
				os.Exit(1)
			}

			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				cancel()
				slog.Error("failed to create server", slog.String("error", err.Error()))
				os.Exit(1)
			}

			c := make(chan os.Signal, 1)
			// Trigger graceful shutdown on SIGINT or SIGTERM.
			// The default signal sent by the `kill` command is SIGTERM,
			// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)

			if err := s.Start(ctx); err != nil {
				cancel()
				slog.Error("failed to start server", slog.String("error", err.Error()))
				os.Exit(1)
			}
			printGreetings(instanceProfile)

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			// Wait for CTRL-C.
			<-ctx.Done()
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)
	viper.SetDefault("timezone", "UTC")

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8081, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver (sqlite or postgres)")
	flags.String("dsn", "", "database source name(aka. DSN)")
	flags.String("secret", "", "secret used to sign access tokens")
	flags.String("timezone", "UTC", "default timezone for resolving dates")
	flags.Bool("ai", false, "enable the natural-language assistant")

	for _, key := range []string{"mode", "addr", "port", "data", "driver", "dsn", "secret", "timezone", "ai"} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("familycal")
	viper.AutomaticEnv()
	if err := viper.BindEnv("ai", "FAMILYCAL_AI_ENABLED"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(tokenCmd, chatCmd)
}

func loadProfile() *profile.Profile {
	instanceProfile := &profile.Profile{
		Mode:      viper.GetString("mode"),
		Addr:      viper.GetString("addr"),
		Port:      viper.GetInt("port"),
		Data:      viper.GetString("data"),
		Driver:    viper.GetString("driver"),
		DSN:       viper.GetString("dsn"),
		Secret:    viper.GetString("secret"),
		Timezone:  viper.GetString("timezone"),
		AIEnabled: viper.GetBool("ai"),
		Version:   version,
	}
	instanceProfile.FromEnv()
	if instanceProfile.Secret == "" && instanceProfile.IsDev() {
		instanceProfile.Secret = "familycal-dev-secret"
	}
	return instanceProfile
}

func openStore(ctx context.Context, instanceProfile *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return nil, err
	}
	storeInstance := store.New(dbDriver, instanceProfile)
	if err := storeInstance.Migrate(ctx); err != nil {
		storeInstance.Close()
		return nil, err
	}
	return storeInstance, nil
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("familycal %s started successfully!\n", p.Version)
	fmt.Printf("Data directory: %s\n", p.Data)
	fmt.Printf("Database driver: %s\n", p.Driver)
	fmt.Printf("Mode: %s\n", p.Mode)
	fmt.Printf("Assistant enabled: %t\n", p.IsAIEnabled())
	if p.Addr == "" {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
