package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskboard/taskboard/config"
	"github.com/taskboard/taskboard/database"
	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/web"
	"github.com/taskboard/taskboard/web/service"
)

func initLogger() {
	level, err := logger.LevelFromConfig(config.GetLogLevel())
	if err != nil {
		log.Fatal(err)
	}
	logger.InitLogger(level)
}

func initDB() error {
	dbCfg, err := config.LoadDatabaseConfig()
	if err != nil {
		return err
	}
	return database.InitDB(dbCfg)
}

func startServer() (*web.Server, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, err
	}
	server, err := web.NewServer(cfg)
	if err != nil {
		return nil, err
	}
	return server, server.Start()
}

// runWebServer serves until SIGINT or SIGTERM. Startup failures are returned
// so the process exits non-zero.
func runWebServer() error {
	log.Printf("%v %v", config.GetName(), config.GetVersion())
	initLogger()
	defer logger.CloseLogger()

	if err := initDB(); err != nil {
		return err
	}
	defer database.CloseDB()

	server, err := startServer()
	if err != nil {
		logger.Error("start server failed:", err)
		return fmt.Errorf("start server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			logger.Info("reloading configuration")
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			server, err = startServer()
			if err != nil {
				logger.Error("restart server failed:", err)
				return fmt.Errorf("restart server: %w", err)
			}
		default:
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			return nil
		}
	}
}

func migrateDb() {
	initLogger()
	if err := initDB(); err != nil {
		log.Fatal(err)
	}
	defer database.CloseDB()
	fmt.Println("migration done")
}

func createAdmin(name, email string) {
	initLogger()
	if err := initDB(); err != nil {
		log.Fatal(err)
	}
	defer database.CloseDB()

	users := service.NewUserService(nil, "")
	user, tempPassword, err := users.CreateAdmin(context.Background(), name, email)
	if err != nil {
		fmt.Println("create admin failed:", err)
		os.Exit(1)
	}
	fmt.Println("admin created")
	fmt.Println("email:", user.Email)
	fmt.Println("username:", user.Username)
	fmt.Println("temporary password:", tempPassword)
	fmt.Println("reset it via PUT /auth/reset-password before logging in")
}

func main() {
	config.LoadEnv()

	rootCmd := &cobra.Command{
		Use:   config.GetName(),
		Short: "Multi-tenant task tracker",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runWebServer(); err != nil {
				log.Fatal(err)
			}
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Run: func(cmd *cobra.Command, args []string) {
			migrateDb()
		},
	}

	var name, email string
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator and print its temporary password",
		Run: func(cmd *cobra.Command, args []string) {
			createAdmin(name, email)
		},
	}
	createCmd.Flags().StringVar(&email, "email", "", "administrator email")
	createCmd.Flags().StringVar(&name, "name", "Administrator", "administrator display name")
	_ = createCmd.MarkFlagRequired("email")
	adminCmd.AddCommand(createCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.GetVersion())
		},
	}

	rootCmd.AddCommand(runCmd, migrateCmd, adminCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
