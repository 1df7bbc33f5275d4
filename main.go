package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"k8s.io/klog/v2"

	"github.com/gopykernel/gopykernel/internal/fleet"
	"github.com/gopykernel/gopykernel/internal/restapi"
)

var (
	flagAddr            = flag.String("addr", ":8888", "Address the REST control surface listens on")
	flagTransport        = flag.String("transport", "tcp", "ZeroMQ transport for launched kernels")
	flagIP               = flag.String("ip", "127.0.0.1", "IP address launched kernels bind their sockets to")
	flagMinPort          = flag.Int("min_port", 49152, "Lower bound of the auto-bind port range")
	flagMaxPort          = flag.Int("max_port", 65535, "Upper bound of the auto-bind port range")
	flagCardiacArrest    = flag.Duration("cardiac_arrest_timeout", 0, "Scram a kernel whose heartbeat has gone silent longer than this (0 disables)")
	flagWatchdogInterval = flag.Duration("watchdog_interval", 30*time.Second, "How often to sweep for cardiac arrest")
)

// CaptureSignals lists the signals that trigger a clean shutdown, adapted
// from the donor's internal/kernel/signals_posix.go (os.Interrupt is
// deliberately included here too, since kernels receive interrupts as
// interrupt_request messages on their control socket, not as OS signals to
// this process).
var CaptureSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

func main() {
	flag.Parse()
	printBanner()

	sup := fleet.NewSupervisor(*flagCardiacArrest)
	server := restapi.NewServer(sup, restapi.Config{
		Transport: *flagTransport,
		IP:        *flagIP,
		MinPort:   *flagMinPort,
		MaxPort:   *flagMaxPort,
	})

	mux := http.NewServeMux()
	server.Mount(mux)

	httpServer := &http.Server{Addr: *flagAddr, Handler: mux}

	go runWatchdog(sup, *flagWatchdogInterval)

	ctx, stop := signal.NotifyContext(context.Background(), CaptureSignals...)
	defer stop()

	go func() {
		klog.Infof("REST control surface listening on %s", *flagAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Errorf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	klog.Infof("shutting down: scramming every live kernel")
	if err := sup.ScramAll(); err != nil {
		klog.Errorf("scram_all during shutdown: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

func runWatchdog(sup *fleet.Supervisor, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if err := sup.CheckPulse(); err != nil {
			klog.Errorf("watchdog sweep: %v", err)
		}
	}
}

func printBanner() {
	banner := color.New(color.FgGreen, color.Bold).Sprint("ignition-pykernel")
	fmt.Printf("%s: a Jupyter kernel host for the Python-flavored execution subset\n", banner)
}
