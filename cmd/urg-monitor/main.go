// Command urg-monitor is a long-running daemon that keeps a single
// sensor session open, streams decoded frames over a websocket, and
// exposes Prometheus metrics: the domain-stack "viewer" surface of
// SPEC_FULL.md §6, replacing the SDL viewer named as an external
// collaborator in spec.md §6. Runs either in the foreground or
// installed as an OS service via kardianos/service, the same library
// the teacher repo uses to run its own driver as a background service.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kardianos/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/hokuyo/urgscip/metrics"
	"github.com/hokuyo/urgscip/monitor"
	"github.com/hokuyo/urgscip/urg"
)

// config holds the settings loadable from urg-monitor.toml (via
// viper, grounded on jbrzusto-ogdar/config.go's loadConfig). No flag
// overrides them; the only flags are -install and -uninstall.
type config struct {
	Device     string
	Baud       int
	TCP        bool
	ListenAddr string
}

func loadConfig() config {
	viper.SetConfigName("urg-monitor")
	viper.AddConfigPath("/etc/urgscip")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()

	viper.SetDefault("device", "/dev/ttyACM0")
	viper.SetDefault("baud", 115200)
	viper.SetDefault("tcp", false)
	viper.SetDefault("listen_addr", ":9876")

	return config{
		Device:     viper.GetString("device"),
		Baud:       viper.GetInt("baud"),
		TCP:        viper.GetBool("tcp"),
		ListenAddr: viper.GetString("listen_addr"),
	}
}

// program implements service.Interface: Start must not block, Stop
// must be prompt, matching kardianos/service's documented contract.
type program struct {
	cfg    config
	log    *logrus.Entry
	server *http.Server
	stop   chan struct{}
}

func (p *program) Start(s service.Service) error {
	p.stop = make(chan struct{})
	go p.run()
	return nil
}

func (p *program) Stop(s service.Service) error {
	close(p.stop)
	if p.server != nil {
		return p.server.Close()
	}
	return nil
}

func (p *program) run() {
	broker := monitor.New(32, p.log)
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/ws", broker.Handler())
	p.server = &http.Server{Addr: p.cfg.ListenAddr, Handler: mux}

	go func() {
		p.log.WithField("addr", p.cfg.ListenAddr).Info("monitor HTTP server listening")
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			p.log.WithError(err).Error("monitor HTTP server stopped")
		}
	}()

	for {
		select {
		case <-p.stop:
			return
		default:
		}

		session, err := p.open()
		if err != nil {
			p.log.WithError(err).Error("could not open sensor, retrying")
			select {
			case <-p.stop:
				return
			case <-time.After(2 * time.Second):
				continue
			}
		}

		session.SetObserver(multiObserver{broker, collector})
		p.streamUntilStopped(session, collector)
		session.Close()
	}
}

func (p *program) open() (*urg.Session, error) {
	if p.cfg.TCP {
		return urg.OpenTCP(p.cfg.Device, 0, p.log)
	}
	return urg.OpenSerial(p.cfg.Device, p.cfg.Baud, p.log)
}

func (p *program) streamUntilStopped(session *urg.Session, collector *metrics.Collector) {
	if err := session.StartMeasurement(urg.KindDistance, 0, 0); err != nil {
		p.log.WithError(err).Error("could not start measurement")
		return
	}
	defer session.StopMeasurement()

	params := session.Params()
	length := make([]int, params.LastDataIndex-params.FirstDataIndex+1)

	for {
		select {
		case <-p.stop:
			return
		default:
		}
		if _, err := session.GetDistance(length, nil); err != nil {
			collector.ObserveError(urg.CodeOf(err))
			if urg.CodeOf(err) == urg.NotConnected {
				return
			}
		}
	}
}

// multiObserver fans one decoded frame out to both the websocket
// broadcaster and the Prometheus collector.
type multiObserver struct {
	broker    *monitor.Broadcaster
	collector *metrics.Collector
}

func (m multiObserver) Observe(f urg.Frame) {
	m.broker.Observe(f)
	m.collector.Observe(f)
}

func main() {
	install := flag.Bool("install", false, "install as an OS service instead of running")
	uninstall := flag.Bool("uninstall", false, "uninstall the OS service")
	flag.Parse()

	cfg := loadConfig()
	log := logrus.NewEntry(logrus.StandardLogger())

	svcConfig := &service.Config{
		Name:        "urg-monitor",
		DisplayName: "Hokuyo SCIP Monitor",
		Description: "Streams decoded Hokuyo SCIP range sensor frames over websocket and Prometheus metrics.",
	}

	prg := &program{cfg: cfg, log: log}
	svc, err := service.New(prg, svcConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "service.New: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *install:
		if err := svc.Install(); err != nil {
			fmt.Fprintf(os.Stderr, "install: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("installed urg-monitor service")
	case *uninstall:
		if err := svc.Uninstall(); err != nil {
			fmt.Fprintf(os.Stderr, "uninstall: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("uninstalled urg-monitor service")
	default:
		if err := svc.Run(); err != nil {
			log.WithError(err).Fatal("service run failed")
		}
	}
}
