package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/mpc.driver/internal/config"
	"github.com/banshee-data/mpc.driver/internal/dashboard"
	"github.com/banshee-data/mpc.driver/internal/db"
	"github.com/banshee-data/mpc.driver/internal/linkmux"
	"github.com/banshee-data/mpc.driver/internal/mpc"
	"github.com/banshee-data/mpc.driver/internal/simlink"
	"github.com/banshee-data/mpc.driver/internal/timeutil"
	"github.com/banshee-data/mpc.driver/internal/version"
)

var (
	listen       = flag.String("listen", ":4567", "Simulator websocket listen address")
	debugListen  = flag.String("debug-listen", ":8080", "Dashboard and debug listen address (empty disables)")
	configPath   = flag.String("config", config.DefaultConfigPath, "Tuning config JSON (empty uses built-in defaults)")
	dbPath       = flag.String("db", "mpc_journal.db", "Cycle journal SQLite file (empty disables)")
	serialPort   = flag.String("serial", "", "Serial device to drive instead of serving websockets")
	baud         = flag.Int("baud", linkmux.DefaultBaudRate, "Serial baud rate")
	statusEvery  = flag.Duration("status-interval", 10*time.Second, "How often to log a status line (0 disables)")
	printVersion = flag.Bool("version", false, "Print version and exit")
)

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func main() {
	flag.Parse()

	if *printVersion {
		fmt.Println(version.String())
		return
	}
	log.Printf("starting %s", version.String())

	tuning, err := loadTuning(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	controller, err := mpc.NewController(mpc.ConfigFromTuning(tuning))
	if err != nil {
		log.Fatalf("failed to create controller: %v", err)
	}
	session := simlink.NewSession(controller, tuning.GetSpeedUnit(), tuning.GetActuationSleep())

	var journal *db.DB
	var runID string
	if *dbPath != "" {
		journal, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open journal: %v", err)
		}
		defer journal.Close()

		cfgJSON, err := json.Marshal(tuning)
		if err != nil {
			log.Fatalf("failed to encode config: %v", err)
		}
		runID, err = journal.StartRun(time.Now(), cfgJSON)
		if err != nil {
			log.Fatalf("failed to start run: %v", err)
		}
		log.Printf("journaling run %s to %s", runID, *dbPath)
		session.OnCycle = journalCycles(journal, runID)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	debugMux := http.NewServeMux()
	debug := tsweb.Debugger(debugMux)
	debug.KV("Version", version.Version)
	debug.KV("Git SHA", version.GitSHA)
	debug.KV("Run", runID)
	debug.KVFunc("Cycles", func() any { return session.Cycles() })
	debug.KVFunc("Delay estimate", func() any { return controller.Delay().String() })
	dash := &dashboard.Server{Latest: controller, RunID: runID}
	if journal != nil {
		dash.Journal = journal
		journal.AttachAdminRoutes(debugMux)
	}
	dash.AttachRoutes(debugMux)
	debugMux.Handle("/", http.RedirectHandler("/dashboard", http.StatusFound))

	if *serialPort != "" {
		link, err := linkmux.Open(*serialPort, linkmux.PortOptions{BaudRate: *baud})
		if err != nil {
			log.Fatalf("failed to open serial link: %v", err)
		}
		defer link.Close()
		linkmux.AttachAdminRoutes(debugMux, link)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := linkmux.Drive(ctx, link, session); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("serial link stopped: %v", err)
				stop()
			}
			log.Print("serial drive routine terminated")
		}()
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(ctx, "simulator", *listen, simlink.NewServer(session))
		}()
	}

	if *debugListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(ctx, "debug", *debugListen, debugMux)
		}()
	}

	if *statusEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reportStatus(ctx, timeutil.RealClock{}, *statusEvery, controller, session, log.Printf)
		}()
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// serveHTTP runs an HTTP server until ctx is cancelled.
func serveHTTP(ctx context.Context, name, addr string, h http.Handler) {
	server := &http.Server{
		Addr:    addr,
		Handler: h,
	}
	go func() {
		log.Printf("%s server listening on %s", name, addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start %s server: %v", name, err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down %s server...", name)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("%s server shutdown error: %v", name, err)
		if err := server.Close(); err != nil {
			log.Printf("%s server force close error: %v", name, err)
		}
	}
	log.Printf("%s server routine stopped", name)
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nDrives a simulated or serial-linked vehicle with a receding-horizon MPC.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
}
