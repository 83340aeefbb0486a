package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/can-bridge/udp2can/pkg/api/daemon/router"
	"github.com/can-bridge/udp2can/pkg/canlink"
	"github.com/can-bridge/udp2can/pkg/gateway"
	"github.com/can-bridge/udp2can/pkg/intfmap"
	"github.com/can-bridge/udp2can/pkg/metrics"
	pkgversion "github.com/can-bridge/udp2can/pkg/version"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

var (
	configFile    string
	socketFile    string
	pidFile       string
	logFilePath   string
	maxConfigSize int64
)

func main() {
	unix.Umask(0o077) // https://github.com/golang/go/issues/11822#issuecomment-123850227
	defaultSocket := ""
	if xdgRuntimeDir := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntimeDir != "" {
		defaultSocket = filepath.Join(xdgRuntimeDir, "udp2cand.sock")
	}

	flag.StringVarP(&configFile, "config", "c", "interface_map.json", "Interface map file (JSON, or YAML with .yaml/.yml extension)")
	flag.StringVar(&socketFile, "socket", defaultSocket, "Socket file for the API")
	flag.StringVar(&pidFile, "pid-file", "", "Pid file")
	flag.StringVar(&logFilePath, "log-file", "", "Output logs to file")
	flag.Int64Var(&maxConfigSize, "max-config-size", intfmap.DefaultMaxSize, "Maximum size of the interface map in bytes")
	verifyLinks := flag.Bool("verify-links", false, "Fail when a CAN interface of the map does not exist")
	check := flag.Bool("check", false, "Load and analyze the interface map, print it and exit")
	debug := flag.Bool("debug", false, "Enable debug mode")
	version := flag.Bool("version", false, "Show version")
	help := flag.Bool("help", false, "Show help")

	// Parse arguments
	flag.Parse()
	if flag.NArg() > 0 {
		flag.PrintDefaults()
		logrus.Fatal("Invalid command")
	}

	if *debug {
		logrus.Info("Debug mode enabled")
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	if *version {
		fmt.Printf("udp2cand version %s\n", strings.TrimPrefix(pkgversion.Version, "v"))
		os.Exit(0)
	}

	if *help {
		flag.Usage()
		os.Exit(0)
	}

	if logFilePath != "" {
		logFile, err := os.Create(logFilePath)
		if err != nil {
			logrus.Fatalf("Cannnot write log file %s : %v", logFilePath, err)
		}
		defer logFile.Close()
		logrus.SetOutput(io.MultiWriter(os.Stderr, logFile))
		logrus.Infof("LogFilePath %s", logFilePath)
	}

	gw, err := gateway.Open(configFile, intfmap.LoadOptions{MaxSize: maxConfigSize})
	if err != nil {
		logrus.Fatalf("Cannot load interface map %s: %v", configFile, err)
	}

	if *verifyLinks {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		report, err := canlink.Verify(ctx, gw.Mappings())
		cancel()
		if err != nil {
			logrus.Fatalf("Cannot list CAN links: %v", err)
		}
		for _, id := range report.Virtual {
			logrus.Infof("CAN interface %s is virtual", id)
		}
		if !report.OK() {
			for _, id := range report.Down {
				logrus.Warnf("CAN interface %s is down", id)
			}
			if len(report.Missing) > 0 {
				logrus.Fatalf("CAN interfaces not found: %s", strings.Join(report.Missing, ", "))
			}
		} else {
			logrus.Info("All CAN interfaces of the interface map exist and are up")
		}
	}

	if *check {
		printTable(os.Stdout, gw)
		os.Exit(0)
	}

	if socketFile == "" {
		logrus.Fatal("$XDG_RUNTIME_DIR needs to be set or --socket specified")
	}
	if err := os.Remove(socketFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Fatalf("Cannot cleanup socket file: %v", err)
	}
	logrus.Infof("SocketPath: %s", socketFile)

	if pidFile != "" {
		pid := fmt.Sprintf("%d", os.Getpid())
		if err := os.WriteFile(pidFile, []byte(pid), 0o644); err != nil {
			logrus.Fatalf("Cannot write pid file: %v", err)
		}
		logrus.Infof("PidFilePath: %s", pidFile)
	}

	collector := metrics.NewCollector()
	_, metricsHandler, err := metrics.NewRegistry(collector)
	if err != nil {
		logrus.Fatalf("Cannot register metrics: %v", err)
	}
	collector.Observe(gw.Len(), gw.Analysis())

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	if err := listenServeAPI(ctx, socketFile, newRouter(gw, metricsHandler)); err != nil {
		logrus.Fatalf("failed to serve API: %q", err)
	}
	logrus.Info("Exiting")
}

func newRouter(gw router.Gateway, metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()
	router.AddRoutes(r, &router.Backend{
		Gateway: gw,
	})
	if metricsHandler != nil {
		r.Path("/metrics").Methods("GET").Handler(metricsHandler)
	}
	return r
}

// listenServeAPI serves h on socketPath until ctx is done.
func listenServeAPI(ctx context.Context, socketPath string, h http.Handler) error {
	srv := &http.Server{Handler: h}
	err := os.RemoveAll(socketPath)
	if err != nil {
		return err
	}
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	defer os.Remove(socketPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()
	logrus.Infof("Starting udp2cand API to serve on %s", socketPath)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func printTable(w io.Writer, gw *gateway.Context) {
	a := gw.Analysis()
	fmt.Fprintf(w, "%d mappings, udp2can connections: %d (%d interfaces), can2udp connections: %d (%d endpoints)\n",
		gw.Len(), a.Outbound.Count, a.Outbound.DistinctKeys, a.Inbound.Count, a.Inbound.DistinctKeys)
	for i, e := range gw.Mappings() {
		fmt.Fprintf(w, "%-4d udp-->can    %-32s mutex=%-5v can-->udp    %-32s mutex=%v\n",
			i, e.ToCAN.Label, e.ToCAN.NeedsMutex, e.FromCAN.Label, e.FromCAN.NeedsMutex)
	}
}
